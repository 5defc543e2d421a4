package identity

import (
	"context"
	"strings"

	"github.com/nhle/shared-lists/internal/model"
)

// StaticDirectory serves lookups from a fixed user list, for local
// setups without a user pool.
type StaticDirectory struct {
	byUsername map[string]User
	byEmail    map[string]User
}

// NewStaticDirectory indexes users by username and lower-cased email.
func NewStaticDirectory(users []model.StaticUser) *StaticDirectory {
	d := &StaticDirectory{
		byUsername: make(map[string]User, len(users)),
		byEmail:    make(map[string]User, len(users)),
	}
	for _, su := range users {
		u := User{Subject: su.Subject, Username: su.Username, Email: su.Email}
		if su.Username != "" {
			d.byUsername[su.Username] = u
		}
		if su.Email != "" {
			d.byEmail[strings.ToLower(su.Email)] = u
		}
	}
	return d
}

// FindByUsername returns the user with exactly this username.
func (d *StaticDirectory) FindByUsername(_ context.Context, username string) (*User, error) {
	if u, ok := d.byUsername[username]; ok {
		return &u, nil
	}
	return nil, ErrUserNotFound
}

// FindByEmail matches emails case-insensitively.
func (d *StaticDirectory) FindByEmail(_ context.Context, email string) (*User, error) {
	if u, ok := d.byEmail[strings.ToLower(email)]; ok {
		return &u, nil
	}
	return nil, ErrUserNotFound
}
