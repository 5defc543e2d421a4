package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/shared-lists/internal/keys"
	"github.com/nhle/shared-lists/internal/kv"
	"github.com/nhle/shared-lists/internal/model"
)

// CreateList writes a new header owned by userID. Without an explicit
// order the list is placed after the user's existing lists.
func (s *ListStore) CreateList(ctx context.Context, userID, listID, name string, order *int) error {
	if err := validateIDs(userID, listID); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("list name must not be empty: %w", ErrInvalidOperation)
	}

	var finalOrder int
	if order != nil {
		finalOrder = *order
	} else {
		next, err := s.NextOrder(ctx, userID)
		if err != nil {
			return err
		}
		finalOrder = next
	}

	key := keys.HeaderKey(userID, listID)
	err := s.table.Put(ctx, kv.Record{
		PK:        key.PK,
		SK:        key.SK,
		Type:      keys.KindList,
		ListName:  name,
		ListOrder: &finalOrder,
		UpdatedAt: s.timestamp(),
	}, true)
	if errors.Is(err, kv.ErrConditionFailed) {
		return fmt.Errorf("list %s already exists: %w", listID, ErrConflict)
	}
	if err != nil {
		return upstream("creating list", err)
	}

	s.log.Debug().Str("user_id", userID).Str("list_id", listID).Int("order", finalOrder).Msg("list created")
	return nil
}

// LoadList returns the list as userID sees it, following a shared link
// when the caller does not own listID.
func (s *ListStore) LoadList(ctx context.Context, userID, listID string) (*model.ListView, error) {
	target, err := s.Resolve(ctx, userID, listID)
	if err != nil {
		return nil, err
	}

	items, err := s.loadItems(ctx, target.OwnerID, target.ListID, 0)
	if err != nil {
		return nil, err
	}

	view := buildView(target, items)
	if target.Order == nil {
		next, err := s.NextOrder(ctx, userID)
		if err != nil {
			return nil, err
		}
		view.Order = next
	}
	return &view, nil
}

// SaveList replaces the name, order and items of a list. Saving through a
// shared link rewrites the owner's items and name, keeps the owner's order
// and records the caller's order on their own link row.
func (s *ListStore) SaveList(ctx context.Context, list model.ShoppingList) error {
	if err := validateIDs(list.UserID, list.ListID); err != nil {
		return err
	}

	var kept []model.Item
	for _, it := range list.Items {
		if strings.TrimSpace(it.Name) != "" {
			kept = append(kept, it)
		}
	}
	if len(kept) > keys.MaxItems {
		return fmt.Errorf("list holds %d items, limit is %d: %w", len(kept), keys.MaxItems, ErrInvalidOperation)
	}

	target, err := s.Resolve(ctx, list.UserID, list.ListID)
	if err != nil {
		return err
	}
	owner, listID := target.OwnerID, target.ListID

	existing, err := s.table.Query(ctx, keys.Partition(owner), keys.ItemPrefix(listID), kv.QueryOptions{
		Projection: []string{kv.AttrPK, kv.AttrSK},
	})
	if err != nil {
		return upstream("reading existing items", err)
	}
	deletes := make([]kv.Key, 0, len(existing))
	for _, r := range existing {
		deletes = append(deletes, r.Key())
	}
	if err := s.writeBatches(ctx, nil, deletes); err != nil {
		return err
	}

	now := s.timestamp()
	set := map[string]any{
		kv.AttrType:      keys.KindList,
		kv.AttrListName:  list.Name,
		kv.AttrUpdatedAt: now,
	}
	if target.IsOwner {
		set[kv.AttrListOrder] = list.Order
	}
	err = s.table.Update(ctx, keys.HeaderKey(owner, listID), kv.Update{Set: set, IfExists: true})
	if errors.Is(err, kv.ErrConditionFailed) {
		return fmt.Errorf("list %s: %w", listID, ErrNotFound)
	}
	if err != nil {
		return upstream("writing list header", err)
	}

	if !target.IsOwner {
		linkKey := kv.Key{PK: keys.Partition(list.UserID), SK: target.LinkSK}
		err := s.table.Update(ctx, linkKey, kv.Update{
			Set:      map[string]any{kv.AttrListOrder: list.Order, kv.AttrUpdatedAt: now},
			IfExists: true,
		})
		switch {
		case errors.Is(err, kv.ErrConditionFailed):
			s.log.Debug().Str("user_id", list.UserID).Str("list_id", listID).Msg("shared link gone before order update")
		case err != nil:
			return upstream("writing shared link order", err)
		}
	}

	puts := make([]kv.Record, 0, len(kept))
	for seq, it := range kept {
		key := keys.ItemKey(owner, listID, seq)
		checked := it.Checked
		puts = append(puts, kv.Record{
			PK:        key.PK,
			SK:        key.SK,
			Type:      keys.KindItem,
			Text:      it.Name,
			IsChecked: &checked,
			UpdatedAt: now,
		})
	}
	if err := s.writeBatches(ctx, puts, nil); err != nil {
		return err
	}

	s.log.Debug().
		Str("user_id", list.UserID).
		Str("owner_id", owner).
		Str("list_id", listID).
		Int("items", len(puts)).
		Int("removed", len(deletes)).
		Msg("list saved")
	return nil
}

// DeleteList removes the caller's own header and items. Links other users
// hold are left in place and stop resolving. Deleting an absent list is a
// no-op.
func (s *ListStore) DeleteList(ctx context.Context, userID, listID string) error {
	if err := validateIDs(userID, listID); err != nil {
		return err
	}

	items, err := s.table.Query(ctx, keys.Partition(userID), keys.ItemPrefix(listID), kv.QueryOptions{
		Projection: []string{kv.AttrPK, kv.AttrSK},
	})
	if err != nil {
		return upstream("reading list items", err)
	}

	deletes := make([]kv.Key, 0, len(items)+1)
	deletes = append(deletes, keys.HeaderKey(userID, listID))
	for _, r := range items {
		deletes = append(deletes, r.Key())
	}
	if err := s.writeBatches(ctx, nil, deletes); err != nil {
		return err
	}

	s.log.Debug().Str("user_id", userID).Str("list_id", listID).Int("items", len(items)).Msg("list deleted")
	return nil
}

// loadItems reads the items of a list in position order, skipping blank
// entries. A positive limit caps the rows read.
func (s *ListStore) loadItems(ctx context.Context, ownerID, listID string, limit int) ([]model.Item, error) {
	rows, err := s.table.Query(ctx, keys.Partition(ownerID), keys.ItemPrefix(listID), kv.QueryOptions{
		Projection: []string{kv.AttrSK, kv.AttrText, kv.AttrIsChecked},
		Limit:      limit,
	})
	if err != nil {
		return nil, upstream("reading list items", err)
	}

	items := make([]model.Item, 0, len(rows))
	for _, r := range rows {
		id := keys.ItemIDFromSK(r.SK)
		if id == "" || strings.TrimSpace(r.Text) == "" {
			continue
		}
		items = append(items, model.Item{
			ID:      id,
			Name:    r.Text,
			Checked: r.IsChecked != nil && *r.IsChecked,
		})
	}
	return items, nil
}

// buildView renders a resolved target for the caller. A missing order is
// left at zero for the caller to fill in.
func buildView(target *model.ResolvedTarget, items []model.Item) model.ListView {
	view := model.ListView{
		ListID:      target.ListID,
		Name:        target.DisplayName,
		Items:       items,
		ShareStatus: model.ShareStatusActive,
		IsOwner:     target.IsOwner,
	}
	if target.Order != nil {
		view.Order = *target.Order
	}
	if target.IsShared {
		shared := true
		view.IsShared = &shared
	}
	if target.IsOwner {
		view.SharedWith = target.Partners
	}
	return view
}
