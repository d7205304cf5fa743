package user

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/p-n-ai/eduruang/internal/catalog"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrInvalidInput = errors.New("invalid user input")
	ErrLocked       = errors.New("accessory locked")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Registration is the input for a new profile.
type Registration struct {
	ID       string `json:"id"`
	Name     string `json:"name" validate:"required,max=100"`
	Username string `json:"username" validate:"omitempty,alphanum,max=50"`
	Class    string `json:"class" validate:"max=50"`
	Avatar   string `json:"avatar" validate:"max=100"`
	Role     Role   `json:"role" validate:"required,oneof=guru murid"`
}

// ProfileUpdate changes display fields. Nil fields are left unchanged.
// Points and level cannot be set here.
type ProfileUpdate struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=100"`
	Class  *string `json:"class" validate:"omitempty,max=50"`
	Avatar *string `json:"avatar" validate:"omitempty,max=100"`
}

// Accessories is the subset of the catalog needed to equip avatar items.
type Accessories interface {
	UnlockedAccessories(level int) []catalog.Accessory
}

// Directory holds every known profile.
type Directory struct {
	users map[string]*User
	order []string
	now   func() time.Time
	mu    sync.RWMutex
}

// NewDirectory creates an empty directory. now defaults to time.Now.
func NewDirectory(now func() time.Time) *Directory {
	if now == nil {
		now = time.Now
	}
	return &Directory{
		users: make(map[string]*User),
		now:   now,
	}
}

// Register creates a profile with zero points. An existing ID is a login:
// the stored profile is returned with LastActive refreshed.
func (d *Directory) Register(r Registration) (User, error) {
	if err := validate.Struct(r); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if r.ID != "" {
		if u, ok := d.users[r.ID]; ok {
			u.LastActive = now
			return u.clone(), nil
		}
	} else {
		r.ID = uuid.NewString()
	}

	u := &User{
		ID:         r.ID,
		Name:       r.Name,
		Username:   r.Username,
		Class:      r.Class,
		Avatar:     r.Avatar,
		Role:       r.Role,
		JoinDate:   now,
		LastActive: now,
	}
	d.users[u.ID] = u
	d.order = append(d.order, u.ID)

	slog.Info("user registered", "user_id", u.ID, "role", u.Role)
	return u.clone(), nil
}

// Get returns a profile by ID.
func (d *Directory) Get(id string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return User{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return u.clone(), nil
}

// UpdateProfile applies display changes.
func (d *Directory) UpdateProfile(id string, upd ProfileUpdate) (User, error) {
	if err := validate.Struct(upd); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return User{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Class != nil {
		u.Class = *upd.Class
	}
	if upd.Avatar != nil {
		u.Avatar = *upd.Avatar
	}
	u.LastActive = d.now()
	return u.clone(), nil
}

// AddPoints credits points and reports whether the level increased.
func (d *Directory) AddPoints(id string, points int) (User, bool, error) {
	if points < 0 {
		return User{}, false, fmt.Errorf("%w: negative points %d", ErrInvalidInput, points)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return User{}, false, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	before := u.Level()
	u.Points += points
	u.LastActive = d.now()
	return u.clone(), u.Level() > before, nil
}

// Equip sets an unlocked accessory on the user's avatar.
func (d *Directory) Equip(id, accessoryID string, items Accessories) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return User{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	for _, a := range items.UnlockedAccessories(u.Level()) {
		if a.ID != accessoryID {
			continue
		}
		if u.ActiveAvatar == nil {
			u.ActiveAvatar = make(map[string]string)
		}
		u.ActiveAvatar[a.Type] = a.ID
		return u.clone(), nil
	}
	return User{}, fmt.Errorf("%s at level %d: %w", accessoryID, u.Level(), ErrLocked)
}

// Touch refreshes LastActive.
func (d *Directory) Touch(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	u.LastActive = d.now()
	return nil
}

// All returns every profile in registration order.
func (d *Directory) All() []User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]User, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.users[id].clone())
	}
	return out
}

// Restore replaces the directory contents with persisted profiles.
func (d *Directory) Restore(users []User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users = make(map[string]*User, len(users))
	d.order = d.order[:0]
	for i := range users {
		u := users[i].clone()
		if _, exists := d.users[u.ID]; !exists {
			d.order = append(d.order, u.ID)
		}
		d.users[u.ID] = &u
	}
}
