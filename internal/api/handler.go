// Package api exposes the learning engine as a JSON HTTP API.
//
// Requests identify the learner with the X-User-ID header (or a user_id
// query parameter, for clients such as browsers opening a websocket that
// cannot set headers).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/p-n-ai/eduruang/internal/app"
	"github.com/p-n-ai/eduruang/internal/catalog"
	"github.com/p-n-ai/eduruang/internal/discussion"
	"github.com/p-n-ai/eduruang/internal/game"
	"github.com/p-n-ai/eduruang/internal/minigame"
	"github.com/p-n-ai/eduruang/internal/notification"
	"github.com/p-n-ai/eduruang/internal/progress"
	"github.com/p-n-ai/eduruang/internal/report"
	"github.com/p-n-ai/eduruang/internal/scoring"
	"github.com/p-n-ai/eduruang/internal/user"
)

// UserHeader carries the caller's user ID.
const UserHeader = "X-User-ID"

const maxBodyBytes = 1 << 20

var errUnauthenticated = errors.New("missing user id")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Handler serves the API routes.
type Handler struct {
	app *app.App
}

// New creates a Handler backed by a.
func New(a *app.App) *Handler {
	return &Handler{app: a}
}

// UserID returns the caller's user ID from the request.
func UserID(r *http.Request) string {
	if id := r.Header.Get(UserHeader); id != "" {
		return id
	}
	return r.URL.Query().Get("user_id")
}

// Register adds every route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/subjects", h.listSubjects)
	mux.HandleFunc("GET /api/subjects/{id}/materials", h.listMaterials)
	mux.HandleFunc("GET /api/subjects/{id}/progress", h.authed(h.subjectProgress))
	mux.HandleFunc("GET /api/subjects/{id}/next-material", h.authed(h.nextMaterial))
	mux.HandleFunc("GET /api/accessories", h.authed(h.listAccessories))

	mux.HandleFunc("POST /api/users", h.register)
	mux.HandleFunc("GET /api/me", h.authed(h.profile))
	mux.HandleFunc("PATCH /api/me", h.authed(h.updateProfile))
	mux.HandleFunc("POST /api/me/avatar", h.authed(h.equip))

	mux.HandleFunc("POST /api/games", h.authed(h.startGame))
	mux.HandleFunc("GET /api/games/current", h.authed(h.currentGame))
	mux.HandleFunc("DELETE /api/games/current", h.authed(h.resetGame))
	mux.HandleFunc("POST /api/games/current/answers", h.authed(h.answer))
	mux.HandleFunc("POST /api/games/current/hints", h.authed(h.hint))
	mux.HandleFunc("POST /api/games/current/complete", h.authed(h.completeGame))
	mux.HandleFunc("GET /api/games/history", h.authed(h.gameHistory))

	mux.HandleFunc("GET /api/materials/{id}", h.authed(h.material))
	mux.HandleFunc("POST /api/materials/{id}/start", h.authed(h.startReading))
	mux.HandleFunc("POST /api/materials/{id}/complete", h.authed(h.completeMaterial))
	mux.HandleFunc("POST /api/materials/{id}/time", h.authed(h.addReadingTime))
	mux.HandleFunc("POST /api/materials/{id}/sections/{section}/complete", h.authed(h.completeSection))
	mux.HandleFunc("PUT /api/materials/{id}/bookmark", h.authed(h.bookmark))
	mux.HandleFunc("GET /api/materials/completed", h.authed(h.completedMaterials))

	mux.HandleFunc("GET /api/discussions", h.listPosts)
	mux.HandleFunc("GET /api/discussions/{id}", h.getPost)
	mux.HandleFunc("POST /api/discussions", h.authed(h.addPost))
	mux.HandleFunc("POST /api/discussions/{id}/replies", h.authed(h.addReply))
	mux.HandleFunc("POST /api/discussions/{id}/like", h.authed(h.react(true)))
	mux.HandleFunc("POST /api/discussions/{id}/dislike", h.authed(h.react(false)))
	mux.HandleFunc("POST /api/discussions/{id}/replies/{reply}/like", h.authed(h.react(true)))

	mux.HandleFunc("GET /api/notifications", h.authed(h.listNotifications))
	mux.HandleFunc("POST /api/notifications/read-all", h.authed(h.markAllRead))
	mux.HandleFunc("POST /api/notifications/{id}/read", h.authed(h.markRead))
	mux.HandleFunc("DELETE /api/notifications/{id}", h.authed(h.clearNotification))

	mux.HandleFunc("GET /api/minigames", h.listMiniGames)
	mux.HandleFunc("GET /api/minigames/leaderboard", h.leaderboard)
	mux.HandleFunc("POST /api/minigames/{id}/complete", h.authed(h.completeMiniGame))

	mux.HandleFunc("GET /api/reports/activity.xlsx", h.authed(h.downloadReport))
}

// authed rejects requests without a user ID and refreshes the caller's
// last-active time.
func (h *Handler) authed(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := UserID(r)
		if userID == "" {
			writeError(w, errUnauthenticated)
			return
		}
		if err := h.app.Users.Touch(userID); err != nil {
			level := slog.LevelWarn
			if errors.Is(err, user.ErrNotFound) {
				level = slog.LevelDebug
			}
			slog.Log(r.Context(), level, "last active not refreshed", "user_id", userID, "error", err)
		}
		next(w, r, userID)
	}
}

// --- catalog ---

func (h *Handler) listSubjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Catalog.Subjects())
}

func (h *Handler) listMaterials(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.app.Catalog.Subject(id); !ok {
		writeError(w, fmt.Errorf("subject %s: %w", id, app.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(h.app.Catalog.MaterialsBySubject(id)))
}

func (h *Handler) subjectProgress(w http.ResponseWriter, r *http.Request, userID string) {
	writeJSON(w, http.StatusOK, h.app.Progress.SubjectProgress(r.PathValue("id"), userID))
}

func (h *Handler) nextMaterial(w http.ResponseWriter, r *http.Request, userID string) {
	m, ok := h.app.Progress.NextRecommendedMaterial(r.PathValue("id"), userID)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) listAccessories(w http.ResponseWriter, r *http.Request, userID string) {
	u, err := h.app.Users.Get(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(h.app.Catalog.UnlockedAccessories(u.Level())))
}

// --- users ---

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in user.Registration
	if !decode(w, r, &in) {
		return
	}
	u, err := h.app.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request, userID string) {
	p, err := h.app.Profile(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request, userID string) {
	var in user.ProfileUpdate
	if !decode(w, r, &in) {
		return
	}
	u, err := h.app.UpdateProfile(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type equipRequest struct {
	AccessoryID string `json:"accessory_id" validate:"required"`
}

func (h *Handler) equip(w http.ResponseWriter, r *http.Request, userID string) {
	var in equipRequest
	if !decodeValid(w, r, &in) {
		return
	}
	u, err := h.app.EquipAccessory(r.Context(), userID, in.AccessoryID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// --- quiz games ---

type startGameRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
}

func (h *Handler) startGame(w http.ResponseWriter, r *http.Request, userID string) {
	var in startGameRequest
	if !decodeValid(w, r, &in) {
		return
	}
	s, err := h.app.StartGame(userID, in.SubjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *Handler) currentGame(w http.ResponseWriter, r *http.Request, userID string) {
	s, ok := h.app.Games.Current(userID)
	if !ok {
		writeError(w, game.ErrNoActiveSession)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) resetGame(w http.ResponseWriter, r *http.Request, userID string) {
	h.app.ResetGame(userID)
	w.WriteHeader(http.StatusNoContent)
}

type answerRequest struct {
	Answer    *catalog.Answer `json:"answer" validate:"required"`
	TimeSpent *float64        `json:"time_spent"` // seconds; omitted means not measured
}

func (h *Handler) answer(w http.ResponseWriter, r *http.Request, userID string) {
	var in answerRequest
	if !decodeValid(w, r, &in) {
		return
	}
	spent := -1.0
	if in.TimeSpent != nil {
		spent = *in.TimeSpent
	}
	res, err := h.app.Answer(userID, *in.Answer, spent)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) hint(w http.ResponseWriter, r *http.Request, userID string) {
	text, s, err := h.app.Hint(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hint": text, "hints_used": s.HintsUsed})
}

func (h *Handler) completeGame(w http.ResponseWriter, r *http.Request, userID string) {
	out, err := h.app.CompleteGame(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) gameHistory(w http.ResponseWriter, r *http.Request, userID string) {
	history := h.app.Games.HistoryFor(userID)
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": nonNil(history),
		"summary":  game.Summarize(history, userID),
	})
}

// --- materials ---

func (h *Handler) material(w http.ResponseWriter, r *http.Request, userID string) {
	id := r.PathValue("id")
	m, ok := h.app.Catalog.MaterialByID(id)
	if !ok {
		writeError(w, fmt.Errorf("material %s: %w", id, app.ErrNotFound))
		return
	}
	resp := map[string]any{"material": m}
	if rec, ok := h.app.Progress.Progress(id, userID); ok {
		resp["progress"] = rec
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) startReading(w http.ResponseWriter, r *http.Request, userID string) {
	rec, err := h.app.StartReading(r.Context(), userID, r.PathValue("id"))
	writeRecord(w, rec, err)
}

type minutesRequest struct {
	Minutes int `json:"minutes" validate:"gte=0"`
}

func (h *Handler) completeMaterial(w http.ResponseWriter, r *http.Request, userID string) {
	var in minutesRequest
	if !decodeValid(w, r, &in) {
		return
	}
	rec, err := h.app.CompleteMaterial(r.Context(), userID, r.PathValue("id"), in.Minutes)
	writeRecord(w, rec, err)
}

func (h *Handler) addReadingTime(w http.ResponseWriter, r *http.Request, userID string) {
	var in minutesRequest
	if !decodeValid(w, r, &in) {
		return
	}
	rec, err := h.app.AddReadingTime(r.Context(), userID, r.PathValue("id"), in.Minutes)
	writeRecord(w, rec, err)
}

func (h *Handler) completeSection(w http.ResponseWriter, r *http.Request, userID string) {
	rec, err := h.app.CompleteSection(r.Context(), userID, r.PathValue("id"), r.PathValue("section"))
	writeRecord(w, rec, err)
}

type bookmarkRequest struct {
	Bookmarked bool `json:"bookmarked"`
}

func (h *Handler) bookmark(w http.ResponseWriter, r *http.Request, userID string) {
	var in bookmarkRequest
	if !decode(w, r, &in) {
		return
	}
	rec, err := h.app.SetBookmark(r.Context(), userID, r.PathValue("id"), in.Bookmarked)
	writeRecord(w, rec, err)
}

func (h *Handler) completedMaterials(w http.ResponseWriter, r *http.Request, userID string) {
	writeJSON(w, http.StatusOK, nonNil(h.app.Progress.CompletedMaterials(userID)))
}

func writeRecord(w http.ResponseWriter, rec progress.Record, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// --- discussions ---

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Board.Posts(r.URL.Query().Get("subject")))
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Board.Post(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// author builds the post author from the caller's profile.
func (h *Handler) author(userID string) (discussion.Author, error) {
	u, err := h.app.Users.Get(userID)
	if err != nil {
		return discussion.Author{}, err
	}
	return discussion.Author{UserID: u.ID, UserName: u.Name, UserAvatar: u.Avatar}, nil
}

func (h *Handler) addPost(w http.ResponseWriter, r *http.Request, userID string) {
	var in discussion.NewPost
	if !decode(w, r, &in) {
		return
	}
	a, err := h.author(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	in.Author = a
	p, err := h.app.AddPost(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) addReply(w http.ResponseWriter, r *http.Request, userID string) {
	var in discussion.NewReply
	if !decode(w, r, &in) {
		return
	}
	a, err := h.author(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	in.Author = a
	reply, err := h.app.AddReply(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

func (h *Handler) react(like bool) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, _ string) {
		if err := h.app.React(r.Context(), r.PathValue("id"), r.PathValue("reply"), like); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// --- notifications ---

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request, userID string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": nonNil(h.app.Inbox.List(userID)),
		"unread":        h.app.Inbox.UnreadCount(userID),
	})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.app.MarkNotificationRead(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request, userID string) {
	n := h.app.MarkAllNotificationsRead(r.Context(), userID)
	writeJSON(w, http.StatusOK, map[string]int{"marked": n})
}

func (h *Handler) clearNotification(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.app.ClearNotification(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- mini games ---

func (h *Handler) listMiniGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.MiniGames.Games())
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, fmt.Errorf("%w: limit must be a positive integer", minigame.ErrInvalidInput))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, nonNil(h.app.MiniGames.WeeklyLeaderboard(limit)))
}

type miniGameRequest struct {
	Score     int `json:"score"`
	TimeSpent int `json:"time_spent"`
	HintsUsed int `json:"hints_used"`
}

func (h *Handler) completeMiniGame(w http.ResponseWriter, r *http.Request, userID string) {
	var in miniGameRequest
	if !decode(w, r, &in) {
		return
	}
	res, stats, err := h.app.CompleteMiniGame(r.Context(), userID, r.PathValue("id"), in.Score, in.TimeSpent, in.HintsUsed)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": res, "stats": stats})
}

// --- reports ---

func (h *Handler) downloadReport(w http.ResponseWriter, r *http.Request, userID string) {
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="edu-ruang-activity.xlsx"`)
	if err := h.app.WriteReport(w, userID); err != nil {
		w.Header().Del("Content-Disposition")
		writeError(w, err)
	}
}

// --- helpers ---

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

// decodeValid decodes v and checks its validate tags.
func decodeValid(w http.ResponseWriter, r *http.Request, v any) bool {
	if !decode(w, r, v) {
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrForbidden), errors.Is(err, user.ErrLocked):
		return http.StatusForbidden
	case errors.Is(err, app.ErrNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.Is(err, progress.ErrNotFound),
		errors.Is(err, discussion.ErrNotFound),
		errors.Is(err, notification.ErrNotFound),
		errors.Is(err, minigame.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrInvalidSession):
		return http.StatusConflict
	case errors.Is(err, user.ErrInvalidInput),
		errors.Is(err, progress.ErrInvalidInput),
		errors.Is(err, discussion.ErrInvalidInput),
		errors.Is(err, minigame.ErrInvalidInput),
		errors.Is(err, scoring.ErrUnknownQuestionType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
