package testutil

import (
	"testing"

	"github.com/nhle/shared-lists/internal/identity"
	"github.com/nhle/shared-lists/internal/kv"
	"github.com/nhle/shared-lists/internal/model"
	"github.com/nhle/shared-lists/internal/store"
)

// Fixed user ids for tests. They are UUIDs, so resolving them skips the directory.
const (
	Alice = "11111111-1111-1111-1111-111111111111"
	Bob   = "22222222-2222-2222-2222-222222222222"
	Carol = "33333333-3333-3333-3333-333333333333"
)

// NewTestTable creates an in-memory SQLiteTable with all migrations applied.
// It automatically closes the table when the test completes.
func NewTestTable(t *testing.T) *kv.SQLiteTable {
	t.Helper()

	tbl, err := kv.NewSQLiteTable(":memory:")
	if err != nil {
		t.Fatalf("creating test table: %v", err)
	}

	t.Cleanup(func() {
		if err := tbl.Close(); err != nil {
			t.Errorf("closing test table: %v", err)
		}
	})

	return tbl
}

// NewTestDirectory returns a static directory knowing alice, bob and carol
// by username and email.
func NewTestDirectory() *identity.StaticDirectory {
	return identity.NewStaticDirectory([]model.StaticUser{
		{Subject: Alice, Username: "alice", Email: "alice@example.com"},
		{Subject: Bob, Username: "bob", Email: "bob@example.com"},
		{Subject: Carol, Username: "carol", Email: "carol@example.com"},
	})
}

// NewTestStore wires a ListStore over a fresh in-memory table. A nil dir
// uses NewTestDirectory.
func NewTestStore(t *testing.T, dir identity.Directory, opts ...store.Option) (*store.ListStore, *kv.SQLiteTable) {
	t.Helper()

	if dir == nil {
		dir = NewTestDirectory()
	}
	tbl := NewTestTable(t)
	return store.NewListStore(tbl, identity.NewResolver(dir), opts...), tbl
}
