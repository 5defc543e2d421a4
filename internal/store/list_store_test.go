package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shared-lists/internal/keys"
	"github.com/nhle/shared-lists/internal/kv"
	"github.com/nhle/shared-lists/internal/model"
	"github.com/nhle/shared-lists/internal/store"
	"github.com/nhle/shared-lists/tests/testutil"
)

const (
	alice = testutil.Alice
	bob   = testutil.Bob
	carol = testutil.Carol
)

func intPtr(n int) *int { return &n }

func items(names ...string) []model.Item {
	out := make([]model.Item, 0, len(names))
	for _, n := range names {
		out = append(out, model.Item{Name: n})
	}
	return out
}

func itemNames(view *model.ListView) []string {
	var out []string
	for _, it := range view.Items {
		out = append(out, it.Name)
	}
	return out
}

func TestCreateList_DefaultOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := testutil.NewTestStore(t, nil)

	next, err := s.NextOrder(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, next)

	require.NoError(t, s.CreateList(ctx, alice, "groceries", "Groceries", nil))
	require.NoError(t, s.CreateList(ctx, alice, "hardware", "Hardware", nil))
	require.NoError(t, s.CreateList(ctx, alice, "party", "Party", intPtr(10)))

	view, err := s.LoadList(ctx, alice, "hardware")
	require.NoError(t, err)
	assert.Equal(t, 1, view.Order)

	next, err = s.NextOrder(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 11, next)
}

func TestCreateList_Duplicate(t *testing.T) {
	ctx := context.Background()
	s, _ := testutil.NewTestStore(t, nil)

	require.NoError(t, s.CreateList(ctx, alice, "groceries", "Groceries", nil))
	err := s.CreateList(ctx, alice, "groceries", "Again", nil)
	assert.ErrorIs(t, err, store.ErrConflict)

	view, err := s.LoadList(ctx, alice, "groceries")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", view.Name)
}

func TestCreateList_InvalidInput(t *testing.T) {
	ctx := context.Background()
	s, _ := testutil.NewTestStore(t, nil)

	tests := []struct {
		name           string
		user, list, ln string
	}{
		{"empty list id", alice, "", "x"},
		{"hash in list id", alice, "a#b", "x"},
		{"reserved list id", alice, "SHARED", "x"},
		{"hash in user id", "u#1", "a", "x"},
		{"blank name", alice, "a", "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CreateList(ctx, tt.user, tt.list, tt.ln, nil)
			assert.ErrorIs(t, err, store.ErrInvalidOperation)
		})
	}
}

func TestNextOrder_MissingOrderCountsAsZero(t *testing.T) {
	ctx := context.Background()
	s, tbl := testutil.NewTestStore(t, nil)

	key := keys.HeaderKey(alice, "legacy")
	require.NoError(t, tbl.Put(ctx, kv.Record{PK: key.PK, SK: key.SK, Type: keys.KindList, ListName: "Legacy"}, false))

	next, err := s.NextOrder(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, next)

	view, err := s.LoadList(ctx, alice, "legacy")
	require.NoError(t, err)
	assert.Equal(t, 1, view.Order)
}

func TestLoadList_Owner(t *testing.T) {
	ctx := context.Background()
	s, _ := testutil.NewTestStore(t, nil)

	require.NoError(t, s.CreateList(ctx, alice, "groceries", "Groceries", intPtr(2)))

	view, err := s.LoadList(ctx, alice, "groceries")
	require.NoError(t, err)
	assert.Equal(t, "groceries", view.ListID)
	assert.Equal(t, "Groceries", view.Name)
	assert.Equal(t, 2, view.Order)
	assert.True(t, view.IsOwner)
	assert.Nil(t, view.IsShared)
	assert.Nil(t, view.SharedWith)
	assert.Equal(t, model.ShareStatusActive, view.ShareStatus)
	assert.Empty(t, view.Items)
}

func TestLoadList_NotFound(t *testing.T) {
	s, _ := testutil.NewTestStore(t, nil)

	_, err := s.LoadList(context.Background(), alice, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveList_ReplacesItems(t *testing.T) {
	ctx := context.Background()
	s, _ := testutil.NewTestStore(t, nil)
	require.NoError(t, s.CreateList(ctx, alice, "groceries", "Groceries", nil))

	list := model.ShoppingList{
		UserID: alice,
		ListID: "groceries",
		Name:   "Weekly",
		Order:  5,
		Items: []model.Item{
			{Name: "Milk"},
			{Name: "  "},
			{Name: "Eggs", Checked: true},
			{Name: ""},
			{Name: "Bread"},
		},
	}
	require.NoError(t, s.SaveList(ctx, list))

	view, err := s.LoadList(ctx, alice, "groceries")
	require.NoError(t, err)
	assert.Equal(t, "Weekly", view.Name)
	assert.Equal(t, 5, view.Order)
	assert.Equal(t, []model.Item{
		{ID: "0000", Name: "Milk"},
		{ID: "0001", Name: "Eggs", Checked: true},
		{ID: "0002", Name: "Bread"},
	}, view.Items)

	list.Items = items("Apples")
	require.NoError(t, s.SaveList(ctx, list))

	view, err = s.LoadList(ctx, alice, "groceries")
	require.NoError(t, err)
	assert.Equal(t, []model.Item{{ID: "0000", Name: "Apples"}}, view.Items)
}

func TestSaveList_ManyItemsAcrossBatches(t *testing.T) {
	ctx := context.Background()
	s, _ := testutil.NewTestStore(t, nil, store.WithBatchConcurrency(3))
	require.NoError(t, s.CreateList(ctx, alice, "big", "Big", nil))

	var names []string
	for i := 0; i < 3*kv.MaxBatchSize+7; i++ {
		names = append(names, fmt.Sprintf("item %d", i))
	}
	require.NoError(t, s.SaveList(ctx, model.ShoppingList{UserID: alice, ListID: "big", Name: "Big", Items: items(names...)}))

	view, err := s.LoadList(ctx, alice, "big")
	require.NoError(t, err)
	require.Len(t, view.Items, len(names))
	assert.Equal(t, "0081", view.Items[81].ID)
	assert.Equal(t, names, itemNames(view))

	require.NoError(t, s.SaveList(ctx, model.ShoppingList{UserID: alice, ListID: "big", Name: "Big", Items: items("a", "b")}))
	view, err = s.LoadList(ctx, alice, "big")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, itemNames(view))
}

func TestSaveList_UnknownList(t *testing.T) {
	ctx := context.Background()
	s, tbl := testutil.NewTestStore(t, nil)

	err := s.SaveList(ctx, model.ShoppingList{UserID: alice, ListID: "ghost", Name: "Ghost", Items: items("x")})
	assert.ErrorIs(t, err, store.ErrNotFound)

	rows, err := tbl.Query(ctx, keys.Partition(alice), keys.HeadersPrefix, kv.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSaveList_TooManyItems(t *testing.T) {
	ctx := context.Background()
	s, _ := testutil.NewTestStore(t, nil)
	require.NoError(t, s.CreateList(ctx, alice, "huge", "Huge", nil))

	list := model.ShoppingList{UserID: alice, ListID: "huge", Name: "Huge"}
	list.Items = make([]model.Item, keys.MaxItems+1)
	for i := range list.Items {
		list.Items[i].Name = "x"
	}
	err := s.SaveList(ctx, list)
	assert.ErrorIs(t, err, store.ErrInvalidOperation)
}

func TestSaveList_KeepsSharingAttributes(t *testing.T) {
	ctx := context.Background()
	s, _ := testutil.NewTestStore(t, nil)
	require.NoError(t, s.CreateList(ctx, alice, "groceries", "Groceries", nil))
	_, err := s.ShareList(ctx, alice, "groceries", "bob", false)
	require.NoError(t, err)

	require.NoError(t, s.SaveList(ctx, model.ShoppingList{UserID: alice, ListID: "groceries", Name: "Renamed", Order: 3}))

	view, err := s.LoadList(ctx, alice, "groceries")
	require.NoError(t, err)
	require.NotNil(t, view.IsShared)
	assert.True(t, *view.IsShared)
	assert.Equal(t, []string{bob}, view.SharedWith)
	assert.Equal(t, "Renamed", view.Name)
}

func TestDeleteList(t *testing.T) {
	ctx := context.Background()
	s, tbl := testutil.NewTestStore(t, nil)

	require.NoError(t, s.CreateList(ctx, alice, "12", "Twelve", nil))
	require.NoError(t, s.CreateList(ctx, alice, "123", "One two three", nil))
	require.NoError(t, s.SaveList(ctx, model.ShoppingList{UserID: alice, ListID: "12", Name: "Twelve", Items: items("a", "b")}))
	require.NoError(t, s.SaveList(ctx, model.ShoppingList{UserID: alice, ListID: "123", Name: "One two three", Items: items("c")}))

	require.NoError(t, s.DeleteList(ctx, alice, "12"))

	_, err := s.LoadList(ctx, alice, "12")
	assert.ErrorIs(t, err, store.ErrNotFound)
	rows, err := tbl.Query(ctx, keys.Partition(alice), keys.ItemPrefix("12"), kv.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, rows)

	view, err := s.LoadList(ctx, alice, "123")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, itemNames(view))

	require.NoError(t, s.DeleteList(ctx, alice, "12"))
	require.NoError(t, s.DeleteList(ctx, alice, "never-existed"))
}

type failingTable struct {
	kv.Table
}

func (failingTable) Query(context.Context, string, string, kv.QueryOptions) ([]kv.Record, error) {
	return nil, fmt.Errorf("throttled")
}

func TestUpstreamErrors(t *testing.T) {
	tbl := testutil.NewTestTable(t)
	s := store.NewListStore(failingTable{Table: tbl}, nil)

	_, err := s.NextOrder(context.Background(), alice)
	var upErr *store.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "scanning list headers", upErr.Op)

	_, err = s.GetLists(context.Background(), alice, 0)
	assert.ErrorAs(t, err, &upErr)
}
