// Package identity maps the free-form share target a caller types
// (username, email or user id) onto a stable user id.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when no directory entry matches.
var ErrUserNotFound = errors.New("user not found")

// User is a directory entry.
type User struct {
	Subject  string
	Username string
	Email    string
}

// Directory looks users up by an exact attribute match.
type Directory interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// Resolver turns share targets into user ids.
type Resolver struct {
	dir Directory
}

// NewResolver returns a Resolver backed by dir.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve returns the user id for input. A UUID is returned unchanged
// without consulting the directory; otherwise input is tried as a
// username, then as an email when it contains "@".
func (r *Resolver) Resolve(ctx context.Context, input string) (string, error) {
	in := strings.TrimSpace(input)
	if in == "" {
		return "", ErrUserNotFound
	}
	if _, err := uuid.Parse(in); err == nil {
		return in, nil
	}

	u, err := r.dir.FindByUsername(ctx, in)
	if err == nil {
		return u.Subject, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return "", fmt.Errorf("looking up username %q: %w", in, err)
	}

	if strings.Contains(in, "@") {
		u, err := r.dir.FindByEmail(ctx, in)
		if err == nil {
			return u.Subject, nil
		}
		if !errors.Is(err, ErrUserNotFound) {
			return "", fmt.Errorf("looking up email %q: %w", in, err)
		}
	}

	return "", ErrUserNotFound
}
