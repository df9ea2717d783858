package model

import "strings"

// TestType is the performance test category of an attempt.
type TestType string

// Known test types.
const (
	TestAnthropometry TestType = "anthropometry"
	TestVerticalJump  TestType = "vertical-jump"
	TestShuttleRun    TestType = "shuttle-run"
	TestSitUps        TestType = "sit-ups"
	TestEnduranceRun  TestType = "endurance-run"
)

var testTypeTitles = map[TestType]string{
	TestAnthropometry: "Height & Weight",
	TestVerticalJump:  "Vertical Jump",
	TestShuttleRun:    "Shuttle Run",
	TestSitUps:        "Sit-ups",
	TestEnduranceRun:  "Endurance Run",
}

// legacy slugs still sent by older clients
var testTypeAliases = map[string]TestType{
	"height-weight": TestAnthropometry,
}

// TestTypes lists the known test types in catalogue order.
func TestTypes() []TestType {
	return []TestType{TestAnthropometry, TestVerticalJump, TestShuttleRun, TestSitUps, TestEnduranceRun}
}

// ParseTestType resolves a raw slug, case-insensitively.
func ParseTestType(raw string) (TestType, error) {
	slug := strings.ToLower(strings.TrimSpace(raw))
	if t, ok := testTypeAliases[slug]; ok {
		return t, nil
	}
	t := TestType(slug)
	if _, ok := testTypeTitles[t]; !ok {
		return "", ErrUnknownTestType
	}
	return t, nil
}

// Valid reports whether t is a known test type.
func (t TestType) Valid() bool {
	_, ok := testTypeTitles[t]
	return ok
}

// Title is the display name of the test type.
func (t TestType) Title() string {
	if title, ok := testTypeTitles[t]; ok {
		return title
	}
	return string(t)
}
