// Package minigame tracks short standalone games: their definitions, each
// player's aggregate stats and the log of completed plays.
package minigame

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/eduruang/internal/catalog"
)

var (
	ErrNotFound     = errors.New("mini game not found")
	ErrInvalidInput = errors.New("invalid mini game result")
)

const dayLayout = "2006-01-02"

// Stats aggregates one player's mini-game plays.
type Stats struct {
	TotalGamesPlayed       int            `json:"total_games_played"`
	TotalScore             int            `json:"total_score"`
	AverageScore           int            `json:"average_score"`
	GamesCompletedThisWeek int            `json:"games_completed_this_week"`
	Week                   string         `json:"week,omitempty"` // ISO week of GamesCompletedThisWeek, e.g. 2026-W10
	CurrentStreak          int            `json:"current_streak"` // consecutive days played
	LongestStreak          int            `json:"longest_streak"`
	LastPlayedOn           string         `json:"last_played_on,omitempty"`
	FavoriteGameType       string         `json:"favorite_game_type,omitempty"`
	GamesByType            map[string]int `json:"games_by_type,omitempty"`
}

func (s Stats) clone() Stats {
	s.GamesByType = maps.Clone(s.GamesByType)
	return s
}

// Result is one completed play.
type Result struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	GameID      string    `json:"game_id"`
	GameType    string    `json:"game_type"`
	Score       int       `json:"score"`
	TimeSpent   int       `json:"time_spent"` // seconds
	HintsUsed   int       `json:"hints_used"`
	CompletedAt time.Time `json:"completed_at"`
}

// LeaderboardEntry ranks a player by score within the current week.
type LeaderboardEntry struct {
	Rank         int    `json:"rank"`
	UserID       string `json:"user_id"`
	TotalScore   int    `json:"total_score"`
	GamesPlayed  int    `json:"games_played"`
	AverageScore int    `json:"average_score"`
}

// Registry holds definitions, stats and results.
type Registry struct {
	games   []catalog.MiniGame
	stats   map[string]Stats // by user ID
	results []Result
	now     func() time.Time
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry. now defaults to time.Now.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		stats: make(map[string]Stats),
		now:   now,
	}
}

// SetGames replaces the available definitions.
func (r *Registry) SetGames(games []catalog.MiniGame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games = slices.Clone(games)
}

// Games returns every definition.
func (r *Registry) Games() []catalog.MiniGame {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]catalog.MiniGame, len(r.games))
	copy(out, r.games)
	return out
}

// Game returns a definition by ID.
func (r *Registry) Game(id string) (catalog.MiniGame, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.games {
		if g.ID == id {
			return g, nil
		}
	}
	return catalog.MiniGame{}, fmt.Errorf("%s: %w", id, ErrNotFound)
}

// Complete records a finished play and updates the player's stats.
func (r *Registry) Complete(userID, gameID string, score, timeSpent, hintsUsed int) (Result, Stats, error) {
	if userID == "" || score < 0 || timeSpent < 0 || hintsUsed < 0 {
		return Result{}, Stats{}, fmt.Errorf("%w: user=%q score=%d time=%d hints=%d",
			ErrInvalidInput, userID, score, timeSpent, hintsUsed)
	}
	game, err := r.Game(gameID)
	if err != nil {
		return Result{}, Stats{}, err
	}

	now := r.now()
	res := Result{
		ID:          uuid.NewString(),
		UserID:      userID,
		GameID:      gameID,
		GameType:    game.Type,
		Score:       score,
		TimeSpent:   timeSpent,
		HintsUsed:   hintsUsed,
		CompletedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.stats[userID].clone()
	s.TotalGamesPlayed++
	s.TotalScore += score
	s.AverageScore = int(math.Round(float64(s.TotalScore) / float64(s.TotalGamesPlayed)))

	if week := isoWeek(now); s.Week != week {
		s.Week = week
		s.GamesCompletedThisWeek = 0
	}
	s.GamesCompletedThisWeek++

	today := now.Format(dayLayout)
	switch s.LastPlayedOn {
	case today:
		s.CurrentStreak = max(s.CurrentStreak, 1)
	case now.AddDate(0, 0, -1).Format(dayLayout):
		s.CurrentStreak++
	default:
		s.CurrentStreak = 1
	}
	s.LastPlayedOn = today
	s.LongestStreak = max(s.LongestStreak, s.CurrentStreak)

	if s.GamesByType == nil {
		s.GamesByType = make(map[string]int)
	}
	s.GamesByType[game.Type]++
	s.FavoriteGameType = favorite(s.GamesByType)

	r.stats[userID] = s
	r.results = append(r.results, res)
	return res, s.clone(), nil
}

// Stats returns a player's stats. The weekly count reads as zero once the
// recorded week has passed, and the current streak once a day has been
// missed.
func (r *Registry) Stats(userID string) Stats {
	r.mu.RLock()
	s := r.stats[userID].clone()
	r.mu.RUnlock()

	now := r.now()
	if s.Week != "" && s.Week != isoWeek(now) {
		s.GamesCompletedThisWeek = 0
	}
	switch s.LastPlayedOn {
	case "", now.Format(dayLayout), now.AddDate(0, 0, -1).Format(dayLayout):
	default:
		s.CurrentStreak = 0
	}
	return s
}

// AllStats returns stats keyed by user ID.
func (r *Registry) AllStats() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Stats, len(r.stats))
	for id, s := range r.stats {
		out[id] = s.clone()
	}
	return out
}

// Results returns a player's plays in completion order. An empty userID
// returns every play.
func (r *Registry) Results(userID string) []Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Result, 0, len(r.results))
	for _, res := range r.results {
		if userID == "" || res.UserID == userID {
			out = append(out, res)
		}
	}
	return out
}

// WeeklyLeaderboard ranks players by total score over plays in the current
// ISO week. limit <= 0 returns everyone.
func (r *Registry) WeeklyLeaderboard(limit int) []LeaderboardEntry {
	week := isoWeek(r.now())

	r.mu.RLock()
	byUser := make(map[string]*LeaderboardEntry)
	for _, res := range r.results {
		if isoWeek(res.CompletedAt) != week {
			continue
		}
		e, ok := byUser[res.UserID]
		if !ok {
			e = &LeaderboardEntry{UserID: res.UserID}
			byUser[res.UserID] = e
		}
		e.TotalScore += res.Score
		e.GamesPlayed++
	}
	r.mu.RUnlock()

	entries := make([]LeaderboardEntry, 0, len(byUser))
	for _, e := range byUser {
		e.AverageScore = int(math.Round(float64(e.TotalScore) / float64(e.GamesPlayed)))
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// RestoreStats replaces all stats.
func (r *Registry) RestoreStats(stats map[string]Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = make(map[string]Stats, len(stats))
	for id, s := range stats {
		r.stats[id] = s.clone()
	}
}

// RestoreResults replaces the play log.
func (r *Registry) RestoreResults(results []Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = slices.Clone(results)
}

func isoWeek(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// favorite returns the most played type; ties go to the alphabetically first.
func favorite(counts map[string]int) string {
	best, bestCount := "", 0
	for _, typ := range slices.Sorted(maps.Keys(counts)) {
		if counts[typ] > bestCount {
			best, bestCount = typ, counts[typ]
		}
	}
	return best
}
