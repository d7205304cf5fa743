// Package user keeps learner and teacher profiles and their point totals.
package user

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/p-n-ai/eduruang/internal/scoring"
)

// Role distinguishes teachers from students.
type Role string

const (
	RoleGuru  Role = "guru"
	RoleMurid Role = "murid"
)

// User is a profile. Level is never stored; it is derived from Points.
type User struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Username     string            `json:"username,omitempty"`
	Class        string            `json:"class,omitempty"`
	Avatar       string            `json:"avatar,omitempty"`
	Role         Role              `json:"role"`
	Points       int               `json:"points"`
	KoinSekolah  int               `json:"koin_sekolah,omitempty"`
	JoinDate     time.Time         `json:"join_date"`
	LastActive   time.Time         `json:"last_active"`
	ActiveAvatar map[string]string `json:"active_avatar,omitempty"` // accessory type -> accessory ID
}

// Level is the user's level derived from points.
func (u User) Level() int {
	return scoring.Level(u.Points)
}

// MarshalJSON adds the derived level to the encoded profile.
func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	return json.Marshal(struct {
		plain
		Level int `json:"level"`
	}{plain(u), u.Level()})
}

// UnmarshalJSON decodes a profile. A stored level is ignored.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*u = User(p)
	return nil
}

func (u *User) clone() User {
	c := *u
	c.ActiveAvatar = maps.Clone(u.ActiveAvatar)
	return c
}
