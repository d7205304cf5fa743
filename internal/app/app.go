// Package app wires the learning engines together. Every mutation runs on
// the in-memory containers first and is then persisted; persistence
// failures are logged and never undo the transition.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/eduruang/internal/catalog"
	"github.com/p-n-ai/eduruang/internal/discussion"
	"github.com/p-n-ai/eduruang/internal/game"
	"github.com/p-n-ai/eduruang/internal/minigame"
	"github.com/p-n-ai/eduruang/internal/notification"
	"github.com/p-n-ai/eduruang/internal/progress"
	"github.com/p-n-ai/eduruang/internal/report"
	"github.com/p-n-ai/eduruang/internal/scoring"
	"github.com/p-n-ai/eduruang/internal/storage"
	"github.com/p-n-ai/eduruang/internal/user"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// Config holds dependencies for the app.
type Config struct {
	Catalog    *catalog.Catalog
	Documents  *storage.Documents
	Gateway    *notification.Gateway // optional
	Events     EventLogger           // optional
	SessionTTL time.Duration
	Now        func() time.Time
}

// App is the application service used by the HTTP layer.
type App struct {
	Catalog   *catalog.Catalog
	Users     *user.Directory
	Games     *game.Manager
	Progress  *progress.Tracker
	Board     *discussion.Board
	Inbox     *notification.Inbox
	MiniGames *minigame.Registry

	docs    *storage.Documents
	gateway *notification.Gateway
	events  EventLogger
	saveMu  sync.Mutex
}

// New creates the app with empty state. Call Load to restore persisted state.
func New(cfg Config) *App {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	gateway := cfg.Gateway
	if gateway == nil {
		gateway = notification.NewGateway()
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}

	return &App{
		Catalog:   cfg.Catalog,
		Users:     user.NewDirectory(now),
		Games:     game.NewManager(game.Config{SessionTTL: cfg.SessionTTL, Now: now}),
		Progress:  progress.NewTracker(cfg.Catalog, now),
		Board:     discussion.NewBoard(now),
		Inbox:     notification.NewInbox(now),
		MiniGames: minigame.NewRegistry(now),
		docs:      cfg.Documents,
		gateway:   gateway,
		events:    events,
	}
}

// Load restores every persisted key. Missing or malformed values leave the
// matching container empty. Mini-game definitions are seeded from the
// catalog on first run.
func (a *App) Load(ctx context.Context) error {
	var users []user.User
	if _, err := a.docs.Load(ctx, storage.KeyUsers, &users); err != nil {
		return fmt.Errorf("loading users: %w", err)
	}
	a.Users.Restore(users)

	var history []game.Session
	if _, err := a.docs.Load(ctx, storage.KeyGameHistory, &history); err != nil {
		return fmt.Errorf("loading game history: %w", err)
	}
	a.Games.RestoreHistory(history)

	var records []progress.Record
	if _, err := a.docs.Load(ctx, storage.KeyMaterialProgress, &records); err != nil {
		return fmt.Errorf("loading material progress: %w", err)
	}
	a.Progress.Restore(records)

	var posts []discussion.Post
	if _, err := a.docs.Load(ctx, storage.KeyDiscussions, &posts); err != nil {
		return fmt.Errorf("loading discussions: %w", err)
	}
	a.Board.Restore(posts)

	var notes []notification.Notification
	if _, err := a.docs.Load(ctx, storage.KeyNotifications, &notes); err != nil {
		return fmt.Errorf("loading notifications: %w", err)
	}
	a.Inbox.Restore(notes)

	var games []catalog.MiniGame
	found, err := a.docs.Load(ctx, storage.KeyMiniGames, &games)
	if err != nil {
		return fmt.Errorf("loading mini games: %w", err)
	}
	if found {
		a.MiniGames.SetGames(games)
	} else {
		a.MiniGames.SetGames(a.Catalog.MiniGames())
		a.save(ctx, storage.KeyMiniGames)
	}

	var stats map[string]minigame.Stats
	if _, err := a.docs.Load(ctx, storage.KeyMiniGameStats, &stats); err != nil {
		return fmt.Errorf("loading mini game stats: %w", err)
	}
	a.MiniGames.RestoreStats(stats)

	var results []minigame.Result
	if _, err := a.docs.Load(ctx, storage.KeyMiniGameSessions, &results); err != nil {
		return fmt.Errorf("loading mini game results: %w", err)
	}
	a.MiniGames.RestoreResults(results)

	slog.Info("state restored",
		"users", len(users),
		"game_history", len(history),
		"material_progress", len(records),
		"discussions", len(posts),
		"notifications", len(notes),
		"mini_game_results", len(results),
	)
	return nil
}

// Ready reports whether the backing store is reachable.
func (a *App) Ready(ctx context.Context) error {
	return a.docs.Store().Ping(ctx)
}

// --- users ---

// Register creates a profile or logs in an existing one.
func (a *App) Register(ctx context.Context, r user.Registration) (user.User, error) {
	u, err := a.Users.Register(r)
	if err != nil {
		return user.User{}, err
	}
	a.save(ctx, storage.KeyUsers)
	return u, nil
}

// UpdateProfile changes display fields of a profile.
func (a *App) UpdateProfile(ctx context.Context, userID string, upd user.ProfileUpdate) (user.User, error) {
	u, err := a.Users.UpdateProfile(userID, upd)
	if err != nil {
		return user.User{}, err
	}
	a.save(ctx, storage.KeyUsers)
	return u, nil
}

// EquipAccessory puts an unlocked accessory on the user's avatar.
func (a *App) EquipAccessory(ctx context.Context, userID, accessoryID string) (user.User, error) {
	u, err := a.Users.Equip(userID, accessoryID, a.Catalog)
	if err != nil {
		return user.User{}, err
	}
	a.save(ctx, storage.KeyUsers)
	return u, nil
}

// Profile is a user with derived progress figures.
type Profile struct {
	User                user.User           `json:"user"`
	Level               int                 `json:"level"`
	ProgressWithinLevel int                 `json:"progress_within_level"`
	PointsForNextLevel  int                 `json:"points_for_next_level"`
	Games               game.Summary        `json:"games"`
	MiniGames           minigame.Stats      `json:"mini_games"`
	Accessories         []catalog.Accessory `json:"unlocked_accessories"`
	UnreadNotifications int                 `json:"unread_notifications"`
}

// Profile returns the user's profile with level and activity summaries.
func (a *App) Profile(userID string) (Profile, error) {
	u, err := a.Users.Get(userID)
	if err != nil {
		return Profile{}, err
	}
	unlocked := a.Catalog.UnlockedAccessories(u.Level())
	if unlocked == nil {
		unlocked = []catalog.Accessory{}
	}
	return Profile{
		User:                u,
		Level:               u.Level(),
		ProgressWithinLevel: scoring.ProgressWithinLevel(u.Points),
		PointsForNextLevel:  scoring.PointsForNextLevel(u.Points),
		Games:               game.Summarize(a.Games.History(), userID),
		MiniGames:           a.MiniGames.Stats(userID),
		Accessories:         unlocked,
		UnreadNotifications: a.Inbox.UnreadCount(userID),
	}, nil
}

// --- quiz games ---

// StartGame begins a quiz over every question of the subject.
func (a *App) StartGame(userID, subjectID string) (game.Session, error) {
	if _, err := a.Users.Get(userID); err != nil {
		return game.Session{}, err
	}
	if _, ok := a.Catalog.Subject(subjectID); !ok {
		return game.Session{}, fmt.Errorf("subject %s: %w", subjectID, ErrNotFound)
	}
	return a.Games.Start(userID, subjectID, a.Catalog.QuestionsBySubject(subjectID))
}

// Answer submits an answer to the current question.
func (a *App) Answer(userID string, answer catalog.Answer, timeSpent float64) (game.AnswerResult, error) {
	return a.Games.Answer(userID, answer, timeSpent)
}

// Hint counts a hint and returns a hint for the current question. Each
// question's hints are revealed in order and the last one repeats; "" means
// the question has none.
func (a *App) Hint(userID string) (string, game.Session, error) {
	s, err := a.Games.UseHint(userID)
	if err != nil {
		return "", game.Session{}, err
	}
	q, ok := s.CurrentQuestion()
	if !ok || len(q.Hints) == 0 {
		return "", s, nil
	}
	return q.Hints[min(s.QuestionHints, len(q.Hints))-1], s, nil
}

// GameOutcome is the result of completing a quiz.
type GameOutcome struct {
	Session game.Session `json:"session"`
	User    user.User    `json:"user"`
	LevelUp bool         `json:"level_up"`
}

// CompleteGame finishes the current quiz, credits the score to the player
// and announces a level change.
func (a *App) CompleteGame(ctx context.Context, userID string) (GameOutcome, error) {
	s, err := a.Games.Complete(userID)
	if err != nil {
		return GameOutcome{}, err
	}
	a.save(ctx, storage.KeyGameHistory)
	a.logEvent(ctx, userID, EventGameCompleted, map[string]any{
		"session_id": s.ID,
		"subject_id": s.SubjectID,
		"score":      s.Score,
	})

	u, levelUp, err := a.Users.AddPoints(userID, s.Score)
	if err != nil {
		return GameOutcome{Session: s}, err
	}
	a.save(ctx, storage.KeyUsers)

	if levelUp {
		a.notify(ctx, userID, notification.TypeLevelUp,
			"Naik Level!",
			fmt.Sprintf("Selamat! Kamu sekarang level %d.", u.Level()),
			map[string]any{"level": u.Level(), "points": u.Points},
		)
		a.logEvent(ctx, userID, EventLevelUp, map[string]any{"level": u.Level()})
	}
	return GameOutcome{Session: s, User: u, LevelUp: levelUp}, nil
}

// ResetGame discards the player's current quiz.
func (a *App) ResetGame(userID string) {
	a.Games.Reset(userID)
}

// SweepExpiredGames drops abandoned quizzes and returns how many were dropped.
func (a *App) SweepExpiredGames() int {
	return len(a.Games.ExpireStale())
}

// --- materials ---

// StartReading opens a material for the user.
func (a *App) StartReading(ctx context.Context, userID, materialID string) (progress.Record, error) {
	r, err := a.Progress.StartReading(materialID, userID)
	if err != nil {
		return progress.Record{}, err
	}
	a.save(ctx, storage.KeyMaterialProgress)
	return r, nil
}

// CompleteMaterial marks a material finished. Finishing the last material
// of a subject sends an achievement notification.
func (a *App) CompleteMaterial(ctx context.Context, userID, materialID string, minutes int) (progress.Record, error) {
	before, _ := a.Progress.Progress(materialID, userID)

	r, err := a.Progress.CompleteMaterial(materialID, userID, minutes)
	if err != nil {
		return progress.Record{}, err
	}
	a.save(ctx, storage.KeyMaterialProgress)
	a.logEvent(ctx, userID, EventMaterialCompleted, map[string]any{"material_id": materialID, "minutes": minutes})

	if m, ok := a.Catalog.MaterialByID(materialID); ok && !before.IsCompleted {
		if p := a.Progress.SubjectProgress(m.SubjectID, userID); p.Total > 0 && p.Completed == p.Total {
			subject := m.SubjectID
			if s, ok := a.Catalog.Subject(m.SubjectID); ok {
				subject = s.Name
			}
			a.notify(ctx, userID, notification.TypeAchievement,
				"Materi Tuntas!",
				fmt.Sprintf("Kamu telah menyelesaikan semua materi %s.", subject),
				map[string]any{"subject_id": m.SubjectID},
			)
		}
	}
	return r, nil
}

// AddReadingTime adds minutes to an opened material.
func (a *App) AddReadingTime(ctx context.Context, userID, materialID string, minutes int) (progress.Record, error) {
	r, err := a.Progress.UpdateTimeSpent(materialID, userID, minutes)
	if err != nil {
		return progress.Record{}, err
	}
	a.save(ctx, storage.KeyMaterialProgress)
	return r, nil
}

// CompleteSection records a finished section of a material.
func (a *App) CompleteSection(ctx context.Context, userID, materialID, sectionID string) (progress.Record, error) {
	r, err := a.Progress.CompleteSection(materialID, userID, sectionID)
	if err != nil {
		return progress.Record{}, err
	}
	a.save(ctx, storage.KeyMaterialProgress)
	return r, nil
}

// SetBookmark flags a material for the user.
func (a *App) SetBookmark(ctx context.Context, userID, materialID string, on bool) (progress.Record, error) {
	r, err := a.Progress.SetBookmark(materialID, userID, on)
	if err != nil {
		return progress.Record{}, err
	}
	a.save(ctx, storage.KeyMaterialProgress)
	return r, nil
}

// --- discussions ---

// AddPost starts a thread.
func (a *App) AddPost(ctx context.Context, in discussion.NewPost) (discussion.Post, error) {
	if _, ok := a.Catalog.Subject(in.SubjectID); !ok {
		return discussion.Post{}, fmt.Errorf("subject %s: %w", in.SubjectID, ErrNotFound)
	}
	p, err := a.Board.AddPost(in)
	if err != nil {
		return discussion.Post{}, err
	}
	a.save(ctx, storage.KeyDiscussions)
	a.logEvent(ctx, in.UserID, EventPostCreated, map[string]any{"post_id": p.ID, "subject_id": p.SubjectID})
	return p, nil
}

// AddReply answers a thread and notifies its author.
func (a *App) AddReply(ctx context.Context, postID string, in discussion.NewReply) (discussion.Reply, error) {
	r, post, err := a.Board.AddReply(postID, in)
	if err != nil {
		return discussion.Reply{}, err
	}
	a.save(ctx, storage.KeyDiscussions)

	if post.UserID != in.UserID {
		name := in.UserName
		if name == "" {
			name = in.UserID
		}
		a.notify(ctx, post.UserID, notification.TypeDiscussion,
			"Balasan Baru",
			fmt.Sprintf("%s membalas diskusi \"%s\".", name, post.Title),
			map[string]any{"post_id": post.ID, "reply_id": r.ID},
		)
	}
	return r, nil
}

// React applies a like or dislike to a post, or a like to a reply when
// replyID is set.
func (a *App) React(ctx context.Context, postID, replyID string, like bool) error {
	var err error
	switch {
	case replyID != "" && like:
		_, err = a.Board.LikeReply(postID, replyID)
	case replyID != "":
		return fmt.Errorf("%w: replies can only be liked", discussion.ErrInvalidInput)
	case like:
		_, err = a.Board.LikePost(postID)
	default:
		_, err = a.Board.DislikePost(postID)
	}
	if err != nil {
		return err
	}
	a.save(ctx, storage.KeyDiscussions)
	return nil
}

// --- notifications ---

// MarkNotificationRead marks one notification read.
func (a *App) MarkNotificationRead(ctx context.Context, userID, id string) error {
	if err := a.Inbox.MarkAsRead(userID, id); err != nil {
		return err
	}
	a.save(ctx, storage.KeyNotifications)
	return nil
}

// MarkAllNotificationsRead marks every notification of the user read.
func (a *App) MarkAllNotificationsRead(ctx context.Context, userID string) int {
	n := a.Inbox.MarkAllAsRead(userID)
	if n > 0 {
		a.save(ctx, storage.KeyNotifications)
	}
	return n
}

// ClearNotification removes one notification.
func (a *App) ClearNotification(ctx context.Context, userID, id string) error {
	if err := a.Inbox.Clear(userID, id); err != nil {
		return err
	}
	a.save(ctx, storage.KeyNotifications)
	return nil
}

// --- mini games ---

// CompleteMiniGame records a finished mini-game play.
func (a *App) CompleteMiniGame(ctx context.Context, userID, gameID string, score, timeSpent, hintsUsed int) (minigame.Result, minigame.Stats, error) {
	if _, err := a.Users.Get(userID); err != nil {
		return minigame.Result{}, minigame.Stats{}, err
	}
	res, stats, err := a.MiniGames.Complete(userID, gameID, score, timeSpent, hintsUsed)
	if err != nil {
		return minigame.Result{}, minigame.Stats{}, err
	}
	a.save(ctx, storage.KeyMiniGameStats)
	a.save(ctx, storage.KeyMiniGameSessions)
	a.logEvent(ctx, userID, EventMiniGameCompleted, map[string]any{"game_id": gameID, "score": score})
	return res, stats, nil
}

// --- reports ---

// WriteReport renders the activity workbook. Only teachers may export.
func (a *App) WriteReport(w io.Writer, requesterID string) error {
	u, err := a.Users.Get(requesterID)
	if err != nil {
		return err
	}
	if u.Role != user.RoleGuru {
		return fmt.Errorf("%w: report requires role %s", ErrForbidden, user.RoleGuru)
	}
	return report.Write(w, report.Data{
		Users:    a.Users.All(),
		Sessions: a.Games.History(),
		Progress: a.Progress.Records(),
	})
}

// notify stores a notification and pushes it to connected clients.
func (a *App) notify(ctx context.Context, userID string, typ notification.Type, title, message string, data map[string]any) {
	n := a.Inbox.Add(userID, typ, title, message, data)
	a.save(ctx, storage.KeyNotifications)
	if err := a.gateway.Publish(ctx, n); err != nil {
		slog.Warn("notification push failed", "user_id", userID, "type", typ, "error", err)
	}
}

func (a *App) logEvent(ctx context.Context, userID, eventType string, data map[string]any) {
	if err := a.events.LogEvent(ctx, Event{UserID: userID, EventType: eventType, Data: data}); err != nil {
		slog.Warn("failed to log event", "type", eventType, "user_id", userID, "error", err)
	}
}

// save snapshots the container behind key and persists it. Saves are
// serialized so a later snapshot is never overwritten by an earlier one.
func (a *App) save(ctx context.Context, key string) {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	var v any
	switch key {
	case storage.KeyUsers:
		v = a.Users.All()
	case storage.KeyGameHistory:
		v = a.Games.History()
	case storage.KeyMaterialProgress:
		v = a.Progress.Records()
	case storage.KeyDiscussions:
		v = a.Board.Posts("")
	case storage.KeyNotifications:
		v = a.Inbox.All()
	case storage.KeyMiniGames:
		v = a.MiniGames.Games()
	case storage.KeyMiniGameStats:
		v = a.MiniGames.AllStats()
	case storage.KeyMiniGameSessions:
		v = a.MiniGames.Results("")
	default:
		slog.Error("no snapshot for key", "key", key)
		return
	}

	if err := a.docs.Save(ctx, key, v); err != nil {
		slog.Warn("failed to persist state", "key", key, "error", err)
	}
}
