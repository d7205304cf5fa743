package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/eduruang/internal/api"
	"github.com/p-n-ai/eduruang/internal/app"
	"github.com/p-n-ai/eduruang/internal/catalog"
	"github.com/p-n-ai/eduruang/internal/report"
	"github.com/p-n-ai/eduruang/internal/storage"
)

func newServer(t *testing.T) *http.ServeMux {
	t.Helper()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mux, _ := newServerWithClock(t, func() time.Time { return now })
	return mux
}

func newServerWithClock(t *testing.T, now func() time.Time) (*http.ServeMux, *app.App) {
	t.Helper()

	cat, err := catalog.FromBundles(catalog.Bundle{
		Subjects: []catalog.Subject{{ID: "matematika", Name: "Matematika"}},
		Questions: []catalog.Question{
			{
				ID: "m1", SubjectID: "matematika", Type: catalog.MultipleChoice,
				Options: []string{"41", "42", "43", "44"}, CorrectAnswer: catalog.IndexAnswer(2),
				BasePoints: 10, TimeLimit: 30, Hints: []string{"15 + 28"},
			},
			{
				ID: "m2", SubjectID: "matematika", Type: catalog.FillBlank,
				CorrectAnswer: catalog.TextAnswer("17"), BasePoints: 10, TimeLimit: 60,
			},
		},
		Materials: []catalog.Material{
			{ID: "aljabar", SubjectID: "matematika", Title: "Aljabar", Order: 1},
		},
		MiniGames: []catalog.MiniGame{
			{ID: "quick-math", Type: "quick_quiz", SubjectID: "matematika", Title: "Kuis Kilat", BasePoints: 50},
		},
	})
	if err != nil {
		t.Fatalf("FromBundles() error = %v", err)
	}

	docs, err := storage.NewDocuments(storage.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewDocuments() error = %v", err)
	}

	a := app.New(app.Config{
		Catalog:   cat,
		Documents: docs,
		Now:       now,
	})
	if err := a.Load(t.Context()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	mux := http.NewServeMux()
	api.New(a).Register(mux)
	return mux, a
}

func do(t *testing.T, mux *http.ServeMux, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set(api.UserHeader, userID)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func registerUser(t *testing.T, mux *http.ServeMux, id, role string) {
	t.Helper()
	rec := do(t, mux, http.MethodPost, "/api/users", "", `{"id":"`+id+`","name":"Siswa `+id+`","role":"`+role+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("register %s: status = %d, body = %s", id, rec.Code, rec.Body.String())
	}
}

func TestGameFlow(t *testing.T) {
	mux := newServer(t)
	registerUser(t, mux, "u1", "murid")

	rec := do(t, mux, http.MethodPost, "/api/games", "u1", `{"subject_id":"matematika"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = do(t, mux, http.MethodPost, "/api/games/current/hints", "u1", "")
	var hint struct {
		Hint      string `json:"hint"`
		HintsUsed int    `json:"hints_used"`
	}
	decodeBody(t, rec, &hint)
	if hint.Hint != "15 + 28" || hint.HintsUsed != 1 {
		t.Errorf("hint = %+v", hint)
	}

	answers := []struct {
		body       string
		wantPoints int
	}{
		{`{"answer":2,"time_spent":15}`, 13},
		{`{"answer":" 17 "}`, 10},
	}
	for i, a := range answers {
		rec := do(t, mux, http.MethodPost, "/api/games/current/answers", "u1", a.body)
		if rec.Code != http.StatusOK {
			t.Fatalf("answer %d: status = %d, body = %s", i, rec.Code, rec.Body.String())
		}
		var res struct {
			Correct bool `json:"correct"`
			Points  int  `json:"points"`
		}
		decodeBody(t, rec, &res)
		if !res.Correct || res.Points != a.wantPoints {
			t.Errorf("answer %d = %+v, want correct with %d points", i, res, a.wantPoints)
		}
	}

	rec = do(t, mux, http.MethodPost, "/api/games/current/answers", "u1", `{"answer":1}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("answer past the end: status = %d, want 409", rec.Code)
	}

	rec = do(t, mux, http.MethodPost, "/api/games/current/complete", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var out struct {
		User struct {
			Points int `json:"points"`
			Level  int `json:"level"`
		} `json:"user"`
		LevelUp bool `json:"level_up"`
	}
	decodeBody(t, rec, &out)
	if out.User.Points != 23 || out.User.Level != 1 || out.LevelUp {
		t.Errorf("outcome = %+v", out)
	}

	rec = do(t, mux, http.MethodPost, "/api/games/current/complete", "u1", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("second complete: status = %d, want 409", rec.Code)
	}

	rec = do(t, mux, http.MethodGet, "/api/games/history", "u1", "")
	var history struct {
		Sessions []json.RawMessage `json:"sessions"`
		Summary  struct {
			TotalScore int `json:"total_score"`
		} `json:"summary"`
	}
	decodeBody(t, rec, &history)
	if len(history.Sessions) != 1 {
		t.Errorf("history sessions = %d, want 1", len(history.Sessions))
	}
}

func TestErrorStatuses(t *testing.T) {
	mux := newServer(t)
	registerUser(t, mux, "guru1", "guru")
	registerUser(t, mux, "murid1", "murid")

	tests := []struct {
		name       string
		method     string
		path       string
		userID     string
		body       string
		wantStatus int
	}{
		{"missing user id", http.MethodGet, "/api/me", "", "", http.StatusUnauthorized},
		{"unknown user", http.MethodGet, "/api/me", "ghost", "", http.StatusNotFound},
		{"no active game", http.MethodPost, "/api/games/current/answers", "murid1", `{"answer":1}`, http.StatusConflict},
		{"no current game", http.MethodGet, "/api/games/current", "murid1", "", http.StatusConflict},
		{"unknown subject", http.MethodPost, "/api/games", "murid1", `{"subject_id":"kimia"}`, http.StatusNotFound},
		{"missing subject", http.MethodPost, "/api/games", "murid1", `{}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/games", "murid1", `{`, http.StatusBadRequest},
		{"invalid registration", http.MethodPost, "/api/users", "", `{"name":"","role":"admin"}`, http.StatusBadRequest},
		{"time on unopened material", http.MethodPost, "/api/materials/aljabar/time", "murid1", `{"minutes":5}`, http.StatusNotFound},
		{"unknown material", http.MethodGet, "/api/materials/nope", "murid1", "", http.StatusNotFound},
		{"unknown post", http.MethodPost, "/api/discussions/nope/like", "murid1", "", http.StatusNotFound},
		{"unknown notification", http.MethodPost, "/api/notifications/nope/read", "murid1", "", http.StatusNotFound},
		{"unknown mini game", http.MethodPost, "/api/minigames/nope/complete", "murid1", `{"score":1}`, http.StatusNotFound},
		{"negative mini game score", http.MethodPost, "/api/minigames/quick-math/complete", "murid1", `{"score":-1}`, http.StatusBadRequest},
		{"bad leaderboard limit", http.MethodGet, "/api/minigames/leaderboard?limit=x", "", "", http.StatusBadRequest},
		{"locked accessory", http.MethodPost, "/api/me/avatar", "murid1", `{"accessory_id":"mahkota"}`, http.StatusForbidden},
		{"report as student", http.MethodGet, "/api/reports/activity.xlsx", "murid1", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, tt.method, tt.path, tt.userID, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestReportDownload(t *testing.T) {
	mux := newServer(t)
	registerUser(t, mux, "guru1", "guru")

	rec := do(t, mux, http.MethodGet, "/api/reports/activity.xlsx", "guru1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != report.ContentType {
		t.Errorf("Content-Type = %q", got)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty workbook")
	}
}

func TestMaterialsAndRecommendation(t *testing.T) {
	mux := newServer(t)
	registerUser(t, mux, "u1", "murid")

	rec := do(t, mux, http.MethodGet, "/api/subjects/matematika/next-material", "u1", "")
	var m struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &m)
	if m.ID != "aljabar" {
		t.Errorf("next material = %q, want aljabar", m.ID)
	}

	rec = do(t, mux, http.MethodPost, "/api/materials/aljabar/complete", "u1", `{"minutes":12}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = do(t, mux, http.MethodGet, "/api/subjects/matematika/next-material", "u1", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("next material after completing all: status = %d, want 204", rec.Code)
	}

	rec = do(t, mux, http.MethodGet, "/api/subjects/matematika/progress", "u1", "")
	var p struct {
		Completed  int `json:"completed"`
		Total      int `json:"total"`
		Percentage int `json:"percentage"`
	}
	decodeBody(t, rec, &p)
	if p.Completed != 1 || p.Total != 1 || p.Percentage != 100 {
		t.Errorf("progress = %+v", p)
	}

	rec = do(t, mux, http.MethodGet, "/api/notifications", "u1", "")
	var notes struct {
		Notifications []json.RawMessage `json:"notifications"`
		Unread        int               `json:"unread"`
	}
	decodeBody(t, rec, &notes)
	if len(notes.Notifications) != 1 || notes.Unread != 1 {
		t.Errorf("notifications = %d unread = %d, want 1 and 1", len(notes.Notifications), notes.Unread)
	}
}

func TestDiscussionReplyNotifiesAuthor(t *testing.T) {
	mux := newServer(t)
	registerUser(t, mux, "u1", "murid")
	registerUser(t, mux, "u2", "murid")

	rec := do(t, mux, http.MethodPost, "/api/discussions", "u1",
		`{"subject_id":"matematika","title":"Aljabar","content":"Bagaimana cara memfaktorkan?"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("post: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var post struct {
		ID       string `json:"id"`
		UserName string `json:"user_name"`
	}
	decodeBody(t, rec, &post)
	if post.UserName != "Siswa u1" {
		t.Errorf("author name = %q, want profile name", post.UserName)
	}

	rec = do(t, mux, http.MethodPost, "/api/discussions/"+post.ID+"/replies", "u2", `{"content":"Cari faktor persekutuan."}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("reply: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = do(t, mux, http.MethodPost, "/api/notifications/read-all", "u1", "")
	var marked struct {
		Marked int `json:"marked"`
	}
	decodeBody(t, rec, &marked)
	if marked.Marked != 1 {
		t.Errorf("marked = %d, want 1", marked.Marked)
	}
}

func TestListEndpointsReturnArrays(t *testing.T) {
	mux := newServer(t)

	for _, path := range []string{"/api/subjects", "/api/discussions", "/api/minigames", "/api/minigames/leaderboard"} {
		rec := do(t, mux, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, rec.Code)
			continue
		}
		if !strings.HasPrefix(rec.Body.String(), "[") {
			t.Errorf("%s: body = %s, want a JSON array", path, rec.Body.String())
		}
	}
}

func TestAuthedRequestRefreshesLastActive(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mux, a := newServerWithClock(t, func() time.Time { return now })
	registerUser(t, mux, "u1", "murid")

	now = now.Add(time.Hour)
	rec := do(t, mux, http.MethodGet, "/api/subjects/matematika/progress", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	u, err := a.Users.Get("u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !u.LastActive.Equal(now) {
		t.Errorf("LastActive = %v, want %v", u.LastActive, now)
	}

	// Unregistered callers are not tracked but are still served.
	rec = do(t, mux, http.MethodGet, "/api/subjects/matematika/progress", "ghost", "")
	if rec.Code != http.StatusOK {
		t.Errorf("unregistered caller: status = %d, want 200", rec.Code)
	}
}
