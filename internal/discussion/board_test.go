package discussion_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/eduruang/internal/discussion"
)

func newBoard() (*discussion.Board, *time.Time) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return discussion.NewBoard(func() time.Time { return now }), &now
}

func author(id string) discussion.Author {
	return discussion.Author{UserID: id, UserName: "Pengguna " + id}
}

func TestAddPost_Prepends(t *testing.T) {
	b, _ := newBoard()

	first, err := b.AddPost(discussion.NewPost{Author: author("u1"), SubjectID: "fisika", Title: "Hukum Newton", Content: "Bagaimana hukum ketiga?"})
	if err != nil {
		t.Fatalf("AddPost() error = %v", err)
	}
	second, err := b.AddPost(discussion.NewPost{Author: author("u2"), SubjectID: "matematika", Title: "Aljabar", Content: "Apa itu variabel?"})
	if err != nil {
		t.Fatalf("AddPost() error = %v", err)
	}

	posts := b.Posts("")
	if len(posts) != 2 || posts[0].ID != second.ID || posts[1].ID != first.ID {
		t.Fatalf("Posts() order wrong: %+v", posts)
	}
	if got := len(b.Posts("fisika")); got != 1 {
		t.Errorf("Posts(fisika) = %d, want 1", got)
	}
	if first.Replies == nil {
		t.Error("new post should have an empty, non-nil replies list")
	}
}

func TestAddPost_Validation(t *testing.T) {
	b, _ := newBoard()

	tests := []struct {
		name string
		in   discussion.NewPost
	}{
		{"missing author", discussion.NewPost{SubjectID: "fisika", Title: "t", Content: "c"}},
		{"missing title", discussion.NewPost{Author: author("u1"), SubjectID: "fisika", Content: "c"}},
		{"title too long", discussion.NewPost{Author: author("u1"), SubjectID: "fisika", Title: strings.Repeat("a", 201), Content: "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := b.AddPost(tt.in); !errors.Is(err, discussion.ErrInvalidInput) {
				t.Errorf("AddPost() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestAddReply(t *testing.T) {
	b, now := newBoard()
	p, _ := b.AddPost(discussion.NewPost{Author: author("u1"), SubjectID: "fisika", Title: "Gaya", Content: "Apa itu gaya?"})

	*now = now.Add(time.Hour)
	r, post, err := b.AddReply(p.ID, discussion.NewReply{Author: author("u2"), Content: "Tarikan atau dorongan."})
	if err != nil {
		t.Fatalf("AddReply() error = %v", err)
	}
	if r.PostID != p.ID {
		t.Errorf("reply PostID = %s, want %s", r.PostID, p.ID)
	}
	if post.UserID != "u1" {
		t.Errorf("returned post author = %s, want u1", post.UserID)
	}
	if !post.UpdatedAt.Equal(*now) {
		t.Errorf("UpdatedAt = %v, want %v", post.UpdatedAt, *now)
	}

	if _, _, err := b.AddReply("missing", discussion.NewReply{Author: author("u2"), Content: "x"}); !errors.Is(err, discussion.ErrNotFound) {
		t.Errorf("AddReply(missing) error = %v, want ErrNotFound", err)
	}
}

func TestReactions(t *testing.T) {
	b, _ := newBoard()
	p, _ := b.AddPost(discussion.NewPost{Author: author("u1"), SubjectID: "fisika", Title: "Gaya", Content: "?"})
	r, _, _ := b.AddReply(p.ID, discussion.NewReply{Author: author("u2"), Content: "!"})

	b.LikePost(p.ID)
	b.LikePost(p.ID)
	got, err := b.DislikePost(p.ID)
	if err != nil {
		t.Fatalf("DislikePost() error = %v", err)
	}
	if got.Likes != 2 || got.Dislikes != 1 {
		t.Errorf("likes/dislikes = %d/%d, want 2/1", got.Likes, got.Dislikes)
	}

	reply, err := b.LikeReply(p.ID, r.ID)
	if err != nil {
		t.Fatalf("LikeReply() error = %v", err)
	}
	if reply.Likes != 1 {
		t.Errorf("reply likes = %d, want 1", reply.Likes)
	}

	if _, err := b.LikeReply(p.ID, "missing"); !errors.Is(err, discussion.ErrNotFound) {
		t.Errorf("LikeReply(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := b.LikePost("missing"); !errors.Is(err, discussion.ErrNotFound) {
		t.Errorf("LikePost(missing) error = %v, want ErrNotFound", err)
	}
}

func TestPostJSON_FlattensAuthor(t *testing.T) {
	b, _ := newBoard()
	p, _ := b.AddPost(discussion.NewPost{Author: author("u1"), SubjectID: "fisika", Title: "Gaya", Content: "?"})

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, want := range []string{`"user_id":"u1"`, `"replies":[]`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Marshal() = %s, missing %s", data, want)
		}
	}

	var restored discussion.Post
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	b2, _ := newBoard()
	b2.Restore([]discussion.Post{restored})
	if _, err := b2.LikePost(p.ID); err != nil {
		t.Errorf("LikePost() after Restore error = %v", err)
	}
}
