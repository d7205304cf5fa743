// Package discussion implements subject discussion threads with replies and
// reactions.
package discussion

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("discussion not found")
	ErrInvalidInput = errors.New("invalid discussion input")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Author identifies who wrote a post or reply.
type Author struct {
	UserID     string `json:"user_id" validate:"required"`
	UserName   string `json:"user_name"`
	UserAvatar string `json:"user_avatar,omitempty"`
}

// Post is a discussion thread.
type Post struct {
	ID string `json:"id"`
	Author
	SubjectID string    `json:"subject_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Likes     int       `json:"likes"`
	Dislikes  int       `json:"dislikes"`
	Replies   []Reply   `json:"replies"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reply is an answer within a thread.
type Reply struct {
	ID string `json:"id"`
	Author
	PostID    string    `json:"post_id"`
	Content   string    `json:"content"`
	Likes     int       `json:"likes"`
	Dislikes  int       `json:"dislikes"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPost is the input for AddPost.
type NewPost struct {
	Author
	SubjectID string `json:"subject_id" validate:"required"`
	Title     string `json:"title" validate:"required,max=200"`
	Content   string `json:"content" validate:"required,max=5000"`
}

// NewReply is the input for AddReply.
type NewReply struct {
	Author
	Content string `json:"content" validate:"required,max=5000"`
}

func (p *Post) clone() Post {
	c := *p
	c.Replies = slices.Clone(p.Replies)
	if c.Replies == nil {
		c.Replies = []Reply{}
	}
	return c
}

// Board holds every thread, newest first.
type Board struct {
	posts []*Post
	now   func() time.Time
	mu    sync.RWMutex
}

// NewBoard creates an empty board. now defaults to time.Now.
func NewBoard(now func() time.Time) *Board {
	if now == nil {
		now = time.Now
	}
	return &Board{now: now}
}

// AddPost prepends a new thread.
func (b *Board) AddPost(in NewPost) (Post, error) {
	if err := validate.Struct(in); err != nil {
		return Post{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := b.now()
	p := &Post{
		ID:        uuid.NewString(),
		Author:    in.Author,
		SubjectID: in.SubjectID,
		Title:     in.Title,
		Content:   in.Content,
		Replies:   []Reply{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	b.mu.Lock()
	b.posts = append([]*Post{p}, b.posts...)
	b.mu.Unlock()
	return p.clone(), nil
}

// AddReply appends a reply to a thread and bumps its UpdatedAt. The updated
// post is returned so callers can notify its author.
func (b *Board) AddReply(postID string, in NewReply) (Reply, Post, error) {
	if err := validate.Struct(in); err != nil {
		return Reply{}, Post{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.findLocked(postID)
	if err != nil {
		return Reply{}, Post{}, err
	}
	now := b.now()
	r := Reply{
		ID:        uuid.NewString(),
		Author:    in.Author,
		PostID:    postID,
		Content:   in.Content,
		CreatedAt: now,
	}
	p.Replies = append(p.Replies, r)
	p.UpdatedAt = now
	return r, p.clone(), nil
}

// LikePost increments a thread's likes.
func (b *Board) LikePost(postID string) (Post, error) {
	return b.updatePost(postID, func(p *Post) { p.Likes++ })
}

// DislikePost increments a thread's dislikes.
func (b *Board) DislikePost(postID string) (Post, error) {
	return b.updatePost(postID, func(p *Post) { p.Dislikes++ })
}

// LikeReply increments a reply's likes.
func (b *Board) LikeReply(postID, replyID string) (Reply, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.findLocked(postID)
	if err != nil {
		return Reply{}, err
	}
	for i := range p.Replies {
		if p.Replies[i].ID == replyID {
			p.Replies[i].Likes++
			return p.Replies[i], nil
		}
	}
	return Reply{}, fmt.Errorf("reply %s: %w", replyID, ErrNotFound)
}

// Post returns a thread by ID.
func (b *Board) Post(postID string) (Post, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, err := b.findLocked(postID)
	if err != nil {
		return Post{}, err
	}
	return p.clone(), nil
}

// Posts returns threads newest first, optionally filtered by subject.
func (b *Board) Posts(subjectID string) []Post {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Post, 0, len(b.posts))
	for _, p := range b.posts {
		if subjectID == "" || p.SubjectID == subjectID {
			out = append(out, p.clone())
		}
	}
	return out
}

// Restore replaces the board contents, keeping the given order.
func (b *Board) Restore(posts []Post) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.posts = make([]*Post, 0, len(posts))
	for i := range posts {
		p := posts[i].clone()
		b.posts = append(b.posts, &p)
	}
}

func (b *Board) updatePost(postID string, fn func(*Post)) (Post, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.findLocked(postID)
	if err != nil {
		return Post{}, err
	}
	fn(p)
	return p.clone(), nil
}

func (b *Board) findLocked(postID string) (*Post, error) {
	for _, p := range b.posts {
		if p.ID == postID {
			return p, nil
		}
	}
	return nil, fmt.Errorf("post %s: %w", postID, ErrNotFound)
}
