package user_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/eduruang/internal/catalog"
	"github.com/p-n-ai/eduruang/internal/user"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newDirectory() *user.Directory {
	return user.NewDirectory(func() time.Time { return fixedNow })
}

func TestRegister(t *testing.T) {
	d := newDirectory()

	u, err := d.Register(user.Registration{ID: "u1", Name: "Ahmad Rizki", Class: "XII IPA 1", Role: user.RoleMurid})
	require.NoError(t, err)

	assert.Equal(t, 0, u.Points)
	assert.Equal(t, 1, u.Level())
	assert.Equal(t, fixedNow, u.JoinDate)
}

func TestRegister_ExistingIDIsLogin(t *testing.T) {
	d := newDirectory()
	_, err := d.Register(user.Registration{ID: "u1", Name: "Ahmad", Role: user.RoleMurid})
	require.NoError(t, err)
	_, _, err = d.AddPoints("u1", 40)
	require.NoError(t, err)

	u, err := d.Register(user.Registration{ID: "u1", Name: "Ahmad", Role: user.RoleMurid})
	require.NoError(t, err)
	assert.Equal(t, 40, u.Points)
	assert.Len(t, d.All(), 1)
}

func TestRegister_GeneratesID(t *testing.T) {
	d := newDirectory()
	u, err := d.Register(user.Registration{Name: "Siti", Role: user.RoleGuru})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name string
		reg  user.Registration
	}{
		{"missing name", user.Registration{Role: user.RoleMurid}},
		{"unknown role", user.Registration{Name: "Budi", Role: "admin"}},
		{"username with spaces", user.Registration{Name: "Budi", Username: "budi s", Role: user.RoleMurid}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newDirectory().Register(tt.reg)
			assert.ErrorIs(t, err, user.ErrInvalidInput)
		})
	}
}

func TestAddPoints_LevelUp(t *testing.T) {
	d := newDirectory()
	_, err := d.Register(user.Registration{ID: "u1", Name: "Budi", Role: user.RoleMurid})
	require.NoError(t, err)

	u, up, err := d.AddPoints("u1", 99)
	require.NoError(t, err)
	assert.False(t, up)
	assert.Equal(t, 1, u.Level())

	u, up, err = d.AddPoints("u1", 1)
	require.NoError(t, err)
	assert.True(t, up)
	assert.Equal(t, 2, u.Level())

	_, _, err = d.AddPoints("u1", -5)
	assert.ErrorIs(t, err, user.ErrInvalidInput)

	_, _, err = d.AddPoints("nobody", 5)
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	d := newDirectory()
	_, err := d.Register(user.Registration{ID: "u1", Name: "Budi", Role: user.RoleMurid})
	require.NoError(t, err)

	class := "XII IPS 1"
	u, err := d.UpdateProfile("u1", user.ProfileUpdate{Class: &class})
	require.NoError(t, err)
	assert.Equal(t, "Budi", u.Name)
	assert.Equal(t, "XII IPS 1", u.Class)

	empty := ""
	_, err = d.UpdateProfile("u1", user.ProfileUpdate{Name: &empty})
	assert.ErrorIs(t, err, user.ErrInvalidInput)
}

func TestEquip(t *testing.T) {
	c, err := catalog.FromBundles(catalog.Bundle{Accessories: []catalog.Accessory{
		{ID: "topi-wisuda", Type: "hat", Name: "Topi Wisuda", UnlockLevel: 1},
		{ID: "kacamata-emas", Type: "glasses", Name: "Kacamata Emas", UnlockLevel: 3},
	}})
	require.NoError(t, err)

	d := newDirectory()
	_, err = d.Register(user.Registration{ID: "u1", Name: "Budi", Role: user.RoleMurid})
	require.NoError(t, err)

	u, err := d.Equip("u1", "topi-wisuda", c)
	require.NoError(t, err)
	assert.Equal(t, "topi-wisuda", u.ActiveAvatar["hat"])

	_, err = d.Equip("u1", "kacamata-emas", c)
	assert.ErrorIs(t, err, user.ErrLocked)

	_, _, err = d.AddPoints("u1", 200)
	require.NoError(t, err)
	u, err = d.Equip("u1", "kacamata-emas", c)
	require.NoError(t, err)
	assert.Equal(t, "kacamata-emas", u.ActiveAvatar["glasses"])
}

func TestUserJSON_LevelIsDerived(t *testing.T) {
	u := user.User{ID: "u1", Name: "Budi", Role: user.RoleMurid, Points: 250}

	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":3`)

	var got user.User
	require.NoError(t, json.Unmarshal([]byte(`{"id":"u1","name":"Budi","role":"murid","points":50,"level":9}`), &got))
	assert.Equal(t, 1, got.Level(), "stored level is ignored")
}

func TestRestore(t *testing.T) {
	d := newDirectory()
	d.Restore([]user.User{
		{ID: "u1", Name: "Budi", Role: user.RoleMurid, Points: 120},
		{ID: "u2", Name: "Bu Sari", Role: user.RoleGuru},
	})

	all := d.All()
	require.Len(t, all, 2)
	assert.Equal(t, "u1", all[0].ID)

	u, err := d.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, 2, u.Level())
}
