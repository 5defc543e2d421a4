package store_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shared-lists/internal/keys"
	"github.com/nhle/shared-lists/internal/kv"
	"github.com/nhle/shared-lists/internal/model"
	"github.com/nhle/shared-lists/internal/store"
	"github.com/nhle/shared-lists/tests/testutil"
)

func newSharedFixture(t *testing.T) (*store.ListStore, *kv.SQLiteTable) {
	t.Helper()
	ctx := context.Background()

	s, tbl := testutil.NewTestStore(t, nil)
	require.NoError(t, s.CreateList(ctx, alice, "groceries", "Groceries", intPtr(0)))
	require.NoError(t, s.SaveList(ctx, model.ShoppingList{
		UserID: alice, ListID: "groceries", Name: "Groceries", Order: 0, Items: items("Milk", "Eggs"),
	}))
	return s, tbl
}

func TestShareList_PartnerSeesList(t *testing.T) {
	ctx := context.Background()
	s, _ := newSharedFixture(t)
	require.NoError(t, s.CreateList(ctx, bob, "own", "Bob's", intPtr(4)))

	view, err := s.ShareList(ctx, alice, "groceries", "bob@example.com", true)
	require.NoError(t, err)
	assert.True(t, view.IsOwner)
	require.NotNil(t, view.IsShared)
	assert.True(t, *view.IsShared)
	assert.Equal(t, []string{bob}, view.SharedWith)

	bobView, err := s.LoadList(ctx, bob, "groceries")
	require.NoError(t, err)
	assert.False(t, bobView.IsOwner)
	require.NotNil(t, bobView.IsShared)
	assert.True(t, *bobView.IsShared)
	assert.Nil(t, bobView.SharedWith)
	assert.Equal(t, "Groceries", bobView.Name)
	assert.Equal(t, 5, bobView.Order)
	assert.Equal(t, []string{"Milk", "Eggs"}, itemNames(bobView))
	assert.Equal(t, model.ShareStatusActive, bobView.ShareStatus)

	target, err := s.Resolve(ctx, bob, "groceries")
	require.NoError(t, err)
	assert.Equal(t, alice, target.OwnerID)
	assert.Equal(t, keys.SharedLinkKey(bob, alice, "groceries").SK, target.LinkSK)
}

func TestShareList_Errors(t *testing.T) {
	ctx := context.Background()
	s, _ := newSharedFixture(t)

	_, err := s.ShareList(ctx, alice, "groceries", "alice", false)
	assert.ErrorIs(t, err, store.ErrInvalidOperation)

	_, err = s.ShareList(ctx, alice, "groceries", "nobody", false)
	assert.ErrorIs(t, err, store.ErrInvalidOperation)

	_, err = s.ShareList(ctx, alice, "missing", "bob", false)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.ShareList(ctx, alice, "groceries", "bob", false)
	require.NoError(t, err)

	_, err = s.ShareList(ctx, alice, "groceries", "carol", false)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestShareList_Idempotent(t *testing.T) {
	ctx := context.Background()
	s, tbl := newSharedFixture(t)

	_, err := s.ShareList(ctx, alice, "groceries", "bob", false)
	require.NoError(t, err)
	view, err := s.ShareList(ctx, alice, "groceries", bob, false)
	require.NoError(t, err)
	assert.Equal(t, []string{bob}, view.SharedWith)

	links, err := tbl.Query(ctx, keys.Partition(bob), keys.SharedLinksPrefix, kv.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, alice, links[0].RefUserID)
	assert.Equal(t, "groceries", links[0].RefListID)
	assert.Equal(t, 0, *links[0].ListOrder)
}

func TestSaveList_ThroughLink(t *testing.T) {
	ctx := context.Background()
	s, tbl := newSharedFixture(t)
	require.NoError(t, s.SaveList(ctx, model.ShoppingList{
		UserID: alice, ListID: "groceries", Name: "Groceries", Order: 7, Items: items("Milk", "Eggs"),
	}))
	_, err := s.ShareList(ctx, alice, "groceries", "bob", false)
	require.NoError(t, err)

	require.NoError(t, s.SaveList(ctx, model.ShoppingList{
		UserID: bob,
		ListID: "groceries",
		Name:   "Shared groceries",
		Order:  3,
		Items:  []model.Item{{Name: "Milk", Checked: true}, {Name: "Butter"}},
	}))

	aliceView, err := s.LoadList(ctx, alice, "groceries")
	require.NoError(t, err)
	assert.Equal(t, "Shared groceries", aliceView.Name)
	assert.Equal(t, 7, aliceView.Order)
	assert.Equal(t, []model.Item{
		{ID: "0000", Name: "Milk", Checked: true},
		{ID: "0001", Name: "Butter"},
	}, aliceView.Items)
	assert.Equal(t, []string{bob}, aliceView.SharedWith)

	bobView, err := s.LoadList(ctx, bob, "groceries")
	require.NoError(t, err)
	assert.Equal(t, 3, bobView.Order)

	rows, err := tbl.Query(ctx, keys.Partition(bob), keys.ItemPrefix("groceries"), kv.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLeaveList(t *testing.T) {
	ctx := context.Background()
	s, _ := newSharedFixture(t)
	_, err := s.ShareList(ctx, alice, "groceries", "bob", false)
	require.NoError(t, err)

	require.NoError(t, s.LeaveList(ctx, bob, "groceries"))

	_, err = s.LoadList(ctx, bob, "groceries")
	assert.ErrorIs(t, err, store.ErrNotFound)

	view, err := s.LoadList(ctx, alice, "groceries")
	require.NoError(t, err)
	assert.Nil(t, view.IsShared)
	assert.Nil(t, view.SharedWith)
	assert.Equal(t, []string{"Milk", "Eggs"}, itemNames(view))

	err = s.LeaveList(ctx, bob, "groceries")
	assert.ErrorIs(t, err, store.ErrInvalidOperation)

	_, err = s.ShareList(ctx, alice, "groceries", "carol", false)
	require.NoError(t, err)
}

func TestLeaveList_OwnerDeleted(t *testing.T) {
	ctx := context.Background()
	s, tbl := newSharedFixture(t)
	_, err := s.ShareList(ctx, alice, "groceries", "bob", false)
	require.NoError(t, err)

	require.NoError(t, s.DeleteList(ctx, alice, "groceries"))

	_, err = s.LoadList(ctx, bob, "groceries")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.LeaveList(ctx, bob, "groceries"))

	_, err = tbl.Get(ctx, keys.HeaderKey(alice, "groceries"), nil)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestResolve_OwnListWinsOverLink(t *testing.T) {
	ctx := context.Background()
	s, _ := newSharedFixture(t)
	_, err := s.ShareList(ctx, alice, "groceries", "bob", false)
	require.NoError(t, err)
	require.NoError(t, s.CreateList(ctx, bob, "groceries", "Bob's own", nil))

	view, err := s.LoadList(ctx, bob, "groceries")
	require.NoError(t, err)
	assert.True(t, view.IsOwner)
	assert.Equal(t, "Bob's own", view.Name)
}

func TestGetLists(t *testing.T) {
	ctx := context.Background()
	s, tbl := newSharedFixture(t)

	require.NoError(t, s.CreateList(ctx, bob, "b-two", "Two", intPtr(2)))
	require.NoError(t, s.CreateList(ctx, bob, "b-zero", "Zero", intPtr(0)))
	require.NoError(t, s.CreateList(ctx, bob, "a-two", "Also two", intPtr(2)))
	require.NoError(t, s.SaveList(ctx, model.ShoppingList{UserID: bob, ListID: "b-zero", Name: "Zero", Items: items("x", "y", "z")}))

	legacy := keys.HeaderKey(bob, "legacy")
	require.NoError(t, tbl.Put(ctx, kv.Record{PK: legacy.PK, SK: legacy.SK, Type: keys.KindList, ListName: "Legacy"}, false))

	_, err := s.ShareList(ctx, alice, "groceries", "bob", false)
	require.NoError(t, err)

	lists, err := s.GetLists(ctx, bob, 2)
	require.NoError(t, err)

	var ids []string
	for _, l := range lists {
		ids = append(ids, l.ListID)
	}
	assert.Equal(t, []string{"b-zero", "a-two", "b-two", "groceries", "legacy"}, ids)

	assert.Equal(t, []string{"x", "y"}, itemNames(&lists[0]))
	assert.Equal(t, 3, lists[3].Order)
	assert.False(t, lists[3].IsOwner)
	assert.Equal(t, []string{"Milk", "Eggs"}, itemNames(&lists[3]))
	assert.Equal(t, math.MaxInt, lists[4].Order)

	lists, err = s.GetLists(ctx, bob, 0)
	require.NoError(t, err)
	for _, l := range lists {
		assert.Empty(t, l.Items)
	}
}

func TestGetLists_SkipsDanglingLinks(t *testing.T) {
	ctx := context.Background()
	s, _ := newSharedFixture(t)
	_, err := s.ShareList(ctx, alice, "groceries", "bob", false)
	require.NoError(t, err)
	require.NoError(t, s.CreateList(ctx, bob, "own", "Own", nil))

	require.NoError(t, s.DeleteList(ctx, alice, "groceries"))

	lists, err := s.GetLists(ctx, bob, 5)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, "own", lists[0].ListID)
}

func TestNextOrder_CountsSharedLinks(t *testing.T) {
	ctx := context.Background()
	s, _ := newSharedFixture(t)
	require.NoError(t, s.CreateList(ctx, bob, "own", "Bob's", nil))

	_, err := s.ShareList(ctx, alice, "groceries", bob, false)
	require.NoError(t, err)

	// own list at 0, link at 1.
	next, err := s.NextOrder(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 2, next)

	// The owner's collection is unaffected by the partner's link.
	next, err = s.NextOrder(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, next)
}

func TestShareList_CollapsesLegacyPartners(t *testing.T) {
	ctx := context.Background()
	s, tbl := newSharedFixture(t)
	headerKey := keys.HeaderKey(alice, "groceries")

	// Rows written before the single-partner rule may carry several partners.
	header, err := tbl.Get(ctx, headerKey, nil)
	require.NoError(t, err)
	shared := true
	header.IsShared = &shared
	header.SharedWith = []string{bob, testutil.Carol}
	require.NoError(t, tbl.Put(ctx, header, false))

	view, err := s.LoadList(ctx, alice, "groceries")
	require.NoError(t, err)
	assert.Equal(t, []string{bob}, view.SharedWith)

	_, err = s.ShareList(ctx, alice, "groceries", bob, false)
	require.NoError(t, err)

	header, err = tbl.Get(ctx, headerKey, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{bob}, header.SharedWith)

	require.NoError(t, s.LeaveList(ctx, bob, "groceries"))

	view, err = s.LoadList(ctx, alice, "groceries")
	require.NoError(t, err)
	assert.Nil(t, view.IsShared)
	assert.Empty(t, view.SharedWith)
}
