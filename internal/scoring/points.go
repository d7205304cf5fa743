package scoring

import (
	"math"

	"github.com/p-n-ai/eduruang/internal/catalog"
)

// MaxTimeBonus is the share of base points awarded for an instant answer.
const MaxTimeBonus = 0.5

// Points returns the points awarded for an answer to q.
//
// Incorrect answers score 0. With a time limit, a correct answer earns
// base + round(base * 0.5 * remaining/limit); remaining never goes below
// zero, so a late answer earns exactly base. A negative timeSpent means the
// time was not measured and earns base only.
func Points(q catalog.Question, correct bool, timeSpent float64) int {
	if !correct {
		return 0
	}

	points := q.BasePoints
	if q.TimeLimit > 0 && timeSpent >= 0 {
		points += TimeBonus(q.BasePoints, q.TimeLimit, timeSpent)
	}
	return points
}

// TimeBonus computes the speed bonus for base points under a limit in seconds.
func TimeBonus(basePoints, timeLimit int, timeSpent float64) int {
	if timeLimit <= 0 || timeSpent < 0 {
		return 0
	}
	limit := float64(timeLimit)
	fraction := math.Max(0, limit-timeSpent) / limit
	fraction = math.Min(1, fraction)
	return int(math.Round(float64(basePoints) * MaxTimeBonus * fraction))
}
