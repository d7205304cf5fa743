package minigame_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/eduruang/internal/catalog"
	"github.com/p-n-ai/eduruang/internal/minigame"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func setup() (*minigame.Registry, *fakeClock) {
	// Wednesday of ISO week 10, 2026.
	clock := &fakeClock{t: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)}
	r := minigame.NewRegistry(clock.Now)
	r.SetGames([]catalog.MiniGame{
		{ID: "crossword-math", Type: "crossword", SubjectID: "matematika", Title: "TTS Matematika", BasePoints: 50},
		{ID: "quiz-fisika", Type: "quick_quiz", SubjectID: "fisika", Title: "Kuis Kilat Fisika", BasePoints: 30},
	})
	return r, clock
}

func TestComplete_UpdatesStats(t *testing.T) {
	r, _ := setup()

	res, stats, err := r.Complete("u1", "crossword-math", 80, 120, 1)
	require.NoError(t, err)
	assert.Equal(t, "crossword", res.GameType)
	assert.Equal(t, 1, stats.TotalGamesPlayed)
	assert.Equal(t, 80, stats.AverageScore)

	_, stats, err = r.Complete("u1", "quiz-fisika", 45, 60, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalGamesPlayed)
	assert.Equal(t, 125, stats.TotalScore)
	assert.Equal(t, 63, stats.AverageScore, "62.5 rounds up")
	assert.Equal(t, 2, stats.GamesCompletedThisWeek)
	assert.Equal(t, "2026-W10", stats.Week)

	assert.Len(t, r.Results("u1"), 2)
	assert.Empty(t, r.Results("u2"))
}

func TestComplete_Validation(t *testing.T) {
	r, _ := setup()

	_, _, err := r.Complete("u1", "missing", 10, 10, 0)
	assert.ErrorIs(t, err, minigame.ErrNotFound)

	_, _, err = r.Complete("u1", "crossword-math", -1, 10, 0)
	assert.ErrorIs(t, err, minigame.ErrInvalidInput)

	_, _, err = r.Complete("", "crossword-math", 1, 10, 0)
	assert.ErrorIs(t, err, minigame.ErrInvalidInput)

	assert.Zero(t, r.Stats("u1").TotalGamesPlayed)
}

func TestComplete_Streaks(t *testing.T) {
	r, clock := setup()

	play := func() minigame.Stats {
		t.Helper()
		_, s, err := r.Complete("u1", "crossword-math", 10, 10, 0)
		require.NoError(t, err)
		return s
	}

	assert.Equal(t, 1, play().CurrentStreak)
	assert.Equal(t, 1, play().CurrentStreak, "same day keeps the streak")

	clock.t = clock.t.AddDate(0, 0, 1)
	assert.Equal(t, 2, play().CurrentStreak)
	clock.t = clock.t.AddDate(0, 0, 1)
	assert.Equal(t, 3, play().CurrentStreak)

	clock.t = clock.t.AddDate(0, 0, 2)
	s := play()
	assert.Equal(t, 1, s.CurrentStreak, "a missed day resets the streak")
	assert.Equal(t, 3, s.LongestStreak)
}

func TestStats_LapsedStreakReadsZero(t *testing.T) {
	r, clock := setup()

	_, _, err := r.Complete("u1", "crossword-math", 10, 10, 0)
	require.NoError(t, err)
	clock.t = clock.t.AddDate(0, 0, 1)
	_, _, err = r.Complete("u1", "crossword-math", 10, 10, 0)
	require.NoError(t, err)

	clock.t = clock.t.AddDate(0, 0, 1)
	assert.Equal(t, 2, r.Stats("u1").CurrentStreak, "streak holds through the next day")

	clock.t = clock.t.AddDate(0, 0, 1)
	s := r.Stats("u1")
	assert.Equal(t, 0, s.CurrentStreak)
	assert.Equal(t, 2, s.LongestStreak)
	assert.Equal(t, 2, r.AllStats()["u1"].CurrentStreak, "stored stats are untouched")
}

func TestWeeklyCountResets(t *testing.T) {
	r, clock := setup()

	_, _, err := r.Complete("u1", "crossword-math", 10, 10, 0)
	require.NoError(t, err)
	_, _, err = r.Complete("u1", "crossword-math", 10, 10, 0)
	require.NoError(t, err)

	clock.t = clock.t.AddDate(0, 0, 7)
	assert.Equal(t, 0, r.Stats("u1").GamesCompletedThisWeek)

	_, s, err := r.Complete("u1", "crossword-math", 10, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, s.GamesCompletedThisWeek)
	assert.Equal(t, "2026-W11", s.Week)
	assert.Equal(t, 3, s.TotalGamesPlayed)
}

func TestFavoriteGameType(t *testing.T) {
	r, _ := setup()

	_, s, _ := r.Complete("u1", "quiz-fisika", 10, 10, 0)
	assert.Equal(t, "quick_quiz", s.FavoriteGameType)

	_, s, _ = r.Complete("u1", "crossword-math", 10, 10, 0)
	assert.Equal(t, "crossword", s.FavoriteGameType, "ties go to the alphabetically first type")

	_, s, _ = r.Complete("u1", "quiz-fisika", 10, 10, 0)
	assert.Equal(t, "quick_quiz", s.FavoriteGameType)
}

func TestWeeklyLeaderboard(t *testing.T) {
	r, clock := setup()

	r.Complete("u1", "crossword-math", 50, 10, 0)
	r.Complete("u2", "crossword-math", 90, 10, 0)
	r.Complete("u1", "quiz-fisika", 60, 10, 0)
	r.Complete("u3", "quiz-fisika", 20, 10, 0)

	board := r.WeeklyLeaderboard(2)
	require.Len(t, board, 2)
	assert.Equal(t, minigame.LeaderboardEntry{Rank: 1, UserID: "u1", TotalScore: 110, GamesPlayed: 2, AverageScore: 55}, board[0])
	assert.Equal(t, "u2", board[1].UserID)

	clock.t = clock.t.AddDate(0, 0, 7)
	assert.Empty(t, r.WeeklyLeaderboard(0))
}

func TestRestore(t *testing.T) {
	r, _ := setup()
	r.RestoreStats(map[string]minigame.Stats{
		"u1": {TotalGamesPlayed: 4, TotalScore: 100, AverageScore: 25, Week: "2026-W10", GamesCompletedThisWeek: 4},
	})

	_, s, err := r.Complete("u1", "crossword-math", 50, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, s.TotalGamesPlayed)
	assert.Equal(t, 30, s.AverageScore)
	assert.Equal(t, 5, s.GamesCompletedThisWeek)
}
