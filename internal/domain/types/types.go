// Package types contains common read shapes used across the application
package types

import "github.com/okian/trials/internal/domain/model"

// Entry represents a leaderboard entry
type Entry struct {
	Rank      int    `json:"rank"`
	AthleteID string `json:"athleteId"`
	ClerkID   string `json:"clerkId,omitempty"`
	Name      string `json:"name"`
	Sport     string `json:"sport,omitempty"`
	City      string `json:"city,omitempty"`
	BestScore int    `json:"bestScore"`
	Band      string `json:"band"`
}

// ReviewItem is an attempt joined with its resolved athlete.
type ReviewItem struct {
	Attempt     model.TestAttempt    `json:"attempt"`
	Athlete     model.AthleteProfile `json:"athlete"`
	ReviewState model.ReviewState    `json:"reviewState"`
}

// Activity is one row of the recent-activity feed.
type Activity struct {
	Attempt     model.TestAttempt `json:"attempt"`
	AthleteName string            `json:"athleteName"`
	TestTitle   string            `json:"testTitle"`
}

// DashboardStats summarizes the attempt collection.
type DashboardStats struct {
	TotalAthletes int `json:"totalAthletes"`
	TotalAttempts int `json:"totalAttempts"`
	Pending       int `json:"pending"`
	Completed     int `json:"completed"`
	Failed        int `json:"failed"`
	Assessed      int `json:"assessed"`
	AverageScore  int `json:"averageScore"`
}
