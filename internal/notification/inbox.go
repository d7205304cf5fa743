// Package notification keeps per-user notification inboxes and pushes new
// notifications to connected clients.
package notification

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown notification IDs.
var ErrNotFound = errors.New("notification not found")

// Type classifies a notification.
type Type string

const (
	TypeAchievement Type = "achievement"
	TypeDiscussion  Type = "discussion"
	TypeChallenge   Type = "challenge"
	TypeLevelUp     Type = "level_up"
)

// Notification is one inbox entry.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
	Data      map[string]any `json:"data,omitempty"`
}

// Inbox stores notifications newest first.
type Inbox struct {
	items []Notification
	now   func() time.Time
	mu    sync.RWMutex
}

// NewInbox creates an empty inbox. now defaults to time.Now.
func NewInbox(now func() time.Time) *Inbox {
	if now == nil {
		now = time.Now
	}
	return &Inbox{now: now}
}

// Add prepends an unread notification for userID.
func (b *Inbox) Add(userID string, typ Type, title, message string, data map[string]any) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		CreatedAt: b.now(),
		Data:      maps.Clone(data),
	}

	b.mu.Lock()
	b.items = append([]Notification{n}, b.items...)
	b.mu.Unlock()
	return n
}

// MarkAsRead marks one notification read. Marking a read notification again
// is a no-op.
func (b *Inbox) MarkAsRead(userID, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		if b.items[i].ID == id && b.items[i].UserID == userID {
			b.items[i].IsRead = true
			return nil
		}
	}
	return fmt.Errorf("%s: %w", id, ErrNotFound)
}

// MarkAllAsRead marks every notification of userID read and returns how
// many changed.
func (b *Inbox) MarkAllAsRead(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	changed := 0
	for i := range b.items {
		if b.items[i].UserID == userID && !b.items[i].IsRead {
			b.items[i].IsRead = true
			changed++
		}
	}
	return changed
}

// Clear removes one notification.
func (b *Inbox) Clear(userID, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		if b.items[i].ID == id && b.items[i].UserID == userID {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%s: %w", id, ErrNotFound)
}

// List returns userID's notifications, newest first.
func (b *Inbox) List(userID string) []Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Notification
	for _, n := range b.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// UnreadCount returns the number of unread notifications for userID.
func (b *Inbox) UnreadCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	count := 0
	for _, n := range b.items {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count
}

// All returns every notification, newest first.
func (b *Inbox) All() []Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Notification, len(b.items))
	copy(out, b.items)
	return out
}

// Restore replaces the inbox contents, keeping the given order.
func (b *Inbox) Restore(items []Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append([]Notification(nil), items...)
}
