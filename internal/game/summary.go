package game

import "math"

// Summary aggregates a player's completed sessions.
type Summary struct {
	TotalGamesPlayed int    `json:"total_games_played"`
	TotalScore       int    `json:"total_score"`
	AverageScore     int    `json:"average_score"`
	BestScore        int    `json:"best_score"`
	BestSubject      string `json:"best_subject,omitempty"`
	HintsUsed        int    `json:"hints_used"`
}

// Summarize computes stats over the sessions belonging to userID.
// BestSubject is the subject with the highest summed score; ties go to the
// subject played first.
func Summarize(history []Session, userID string) Summary {
	var sum Summary
	bySubject := make(map[string]int)
	var order []string

	for i := range history {
		s := &history[i]
		if s.UserID != userID {
			continue
		}
		sum.TotalGamesPlayed++
		sum.TotalScore += s.Score
		sum.HintsUsed += s.HintsUsed
		sum.BestScore = max(sum.BestScore, s.Score)

		if _, seen := bySubject[s.SubjectID]; !seen {
			order = append(order, s.SubjectID)
		}
		bySubject[s.SubjectID] += s.Score
	}

	if sum.TotalGamesPlayed == 0 {
		return sum
	}
	sum.AverageScore = int(math.Round(float64(sum.TotalScore) / float64(sum.TotalGamesPlayed)))

	best := -1
	for _, subject := range order {
		if bySubject[subject] > best {
			best = bySubject[subject]
			sum.BestSubject = subject
		}
	}
	return sum
}
