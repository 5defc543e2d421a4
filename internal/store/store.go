package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/shared-lists/internal/kv"
	"github.com/nhle/shared-lists/internal/model"
)

// Store defines the list operations offered to transports.
type Store interface {
	// === Lists ===

	CreateList(ctx context.Context, userID, listID, name string, order *int) error
	LoadList(ctx context.Context, userID, listID string) (*model.ListView, error)
	SaveList(ctx context.Context, list model.ShoppingList) error
	DeleteList(ctx context.Context, userID, listID string) error
	GetLists(ctx context.Context, userID string, take int) ([]model.ListView, error)

	// === Sharing ===

	ShareList(ctx context.Context, ownerID, listID, target string, requireAccept bool) (*model.ListView, error)
	LeaveList(ctx context.Context, userID, listID string) error

	// === Helpers ===

	NextOrder(ctx context.Context, userID string) (int, error)
	Resolve(ctx context.Context, userID, listID string) (*model.ResolvedTarget, error)
}

// UserResolver maps a share target to a user id. It returns
// identity.ErrUserNotFound when nothing matches.
type UserResolver interface {
	Resolve(ctx context.Context, input string) (string, error)
}

// ListStore implements Store on a single key-value table.
type ListStore struct {
	table            kv.Table
	users            UserResolver
	log              zerolog.Logger
	now              func() time.Time
	batchConcurrency int
}

var _ Store = (*ListStore)(nil)

// Option configures a ListStore.
type Option func(*ListStore)

// WithLogger sets the logger used for mutation traces.
func WithLogger(l zerolog.Logger) Option {
	return func(s *ListStore) { s.log = l }
}

// WithClock replaces time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *ListStore) { s.now = now }
}

// WithBatchConcurrency caps how many write batches run in parallel.
func WithBatchConcurrency(n int) Option {
	return func(s *ListStore) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}

// NewListStore returns a ListStore over table, resolving share targets
// through users.
func NewListStore(table kv.Table, users UserResolver, opts ...Option) *ListStore {
	s := &ListStore{
		table:            table,
		users:            users,
		log:              zerolog.Nop(),
		now:              time.Now,
		batchConcurrency: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ListStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}
