package loadgen

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/okian/trials/internal/domain/model"
)

// Score bands as [min, width] in points; picked uniformly, so the middle
// bands dominate.
var scoreBands = [][2]int{
	{40, 30}, // average
	{40, 30},
	{70, 20}, // strong
	{90, 11}, // elite
	{10, 30}, // weak
	{0, 101}, // anything
}

func randInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// generatePlans creates n athletes with unique ids and a planned score each.
func generatePlans(n int) []Plan {
	types := model.TestTypes()
	plans := make([]Plan, n)
	for i := range plans {
		band := scoreBands[randInt(len(scoreBands))]
		plans[i] = Plan{
			AthleteID: uuid.NewString(),
			UserID:    "user_" + uuid.NewString(),
			Name:      fmt.Sprintf("Athlete %04d", i+1),
			TestType:  types[randInt(len(types))],
			Score:     band[0] + randInt(band[1]),
		}
	}
	return plans
}

// maxScore returns the highest planned score.
func maxScore(plans []Plan) int {
	best := 0
	for _, p := range plans {
		if p.Score > best {
			best = p.Score
		}
	}
	return best
}
