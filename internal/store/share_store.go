package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/nhle/shared-lists/internal/identity"
	"github.com/nhle/shared-lists/internal/keys"
	"github.com/nhle/shared-lists/internal/kv"
	"github.com/nhle/shared-lists/internal/model"
)

// ShareList shares ownerID's list with the user target names. A list has
// at most one partner; sharing again with the same partner is a no-op
// apart from refreshing UpdatedAt. requireAccept is accepted for
// compatibility and has no effect.
func (s *ListStore) ShareList(ctx context.Context, ownerID, listID, target string, requireAccept bool) (*model.ListView, error) {
	if err := validateIDs(ownerID, listID); err != nil {
		return nil, err
	}

	targetID, err := s.users.Resolve(ctx, target)
	if errors.Is(err, identity.ErrUserNotFound) {
		return nil, fmt.Errorf("share target %q not found: %w", target, ErrInvalidOperation)
	}
	if err != nil {
		return nil, upstream("resolving share target", err)
	}
	if err := keys.ValidateUserID(targetID); err != nil {
		return nil, fmt.Errorf("share target %q: %v: %w", target, err, ErrInvalidOperation)
	}
	if targetID == ownerID {
		return nil, fmt.Errorf("cannot share a list with yourself: %w", ErrInvalidOperation)
	}

	headerKey := keys.HeaderKey(ownerID, listID)
	header, err := s.table.Get(ctx, headerKey, headerProjection)
	if errors.Is(err, kv.ErrNotFound) || (err == nil && header.Type != keys.KindList) {
		return nil, fmt.Errorf("list %s: %w", listID, ErrNotFound)
	}
	if err != nil {
		return nil, upstream("reading list header", err)
	}

	if len(header.SharedWith) > 0 && !slices.Contains(header.SharedWith, targetID) {
		return nil, fmt.Errorf("list %s is already shared with another user: %w", listID, ErrConflict)
	}

	order, err := s.NextOrder(ctx, targetID)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	linkKey := keys.SharedLinkKey(targetID, ownerID, listID)
	err = s.table.Put(ctx, kv.Record{
		PK:        linkKey.PK,
		SK:        linkKey.SK,
		Type:      keys.KindSharedLink,
		ListName:  header.ListName,
		ListOrder: &order,
		RefUserID: ownerID,
		RefListID: listID,
		UpdatedAt: now,
	}, true)
	switch {
	case errors.Is(err, kv.ErrConditionFailed):
		s.log.Debug().Str("owner_id", ownerID).Str("list_id", listID).Str("user_id", targetID).Msg("shared link already present")
	case err != nil:
		return nil, upstream("writing shared link", err)
	}

	err = s.table.Update(ctx, headerKey, kv.Update{
		Set: map[string]any{
			kv.AttrIsShared:   true,
			kv.AttrSharedWith: []string{targetID},
			kv.AttrUpdatedAt:  now,
		},
		IfExists: true,
	})
	if errors.Is(err, kv.ErrConditionFailed) {
		return nil, fmt.Errorf("list %s: %w", listID, ErrNotFound)
	}
	if err != nil {
		return nil, upstream("marking list shared", err)
	}

	s.log.Debug().
		Str("owner_id", ownerID).
		Str("list_id", listID).
		Str("user_id", targetID).
		Bool("require_accept", requireAccept).
		Msg("list shared")
	return s.LoadList(ctx, ownerID, listID)
}

// LeaveList removes the caller's shared link to listID and detaches them
// from the owner's header. The owner's list is marked unshared once no
// partner remains.
func (s *ListStore) LeaveList(ctx context.Context, userID, listID string) error {
	if err := validateIDs(userID, listID); err != nil {
		return err
	}

	link, err := s.findLink(ctx, userID, listID)
	if err != nil {
		return err
	}
	if link == nil {
		return fmt.Errorf("no shared list %s to leave: %w", listID, ErrInvalidOperation)
	}

	if err := s.table.Delete(ctx, link.Key()); err != nil {
		return upstream("deleting shared link", err)
	}

	ownerID := link.RefUserID
	log := s.log.With().Str("user_id", userID).Str("owner_id", ownerID).Str("list_id", listID).Logger()
	headerKey := keys.HeaderKey(ownerID, link.RefListID)
	err = s.table.Update(ctx, headerKey, kv.Update{
		Set:           map[string]any{kv.AttrUpdatedAt: s.timestamp()},
		DeleteFromSet: map[string][]string{kv.AttrSharedWith: {userID}},
		IfExists:      true,
	})
	if errors.Is(err, kv.ErrConditionFailed) {
		log.Debug().Msg("left shared list whose owner list is gone")
		return nil
	}
	if err != nil {
		return upstream("detaching partner", err)
	}

	header, err := s.table.Get(ctx, headerKey, []string{kv.AttrSK, kv.AttrSharedWith})
	if errors.Is(err, kv.ErrNotFound) {
		log.Debug().Msg("left shared list")
		return nil
	}
	if err != nil {
		return upstream("reading list header", err)
	}

	if len(header.SharedWith) == 0 {
		err := s.table.Update(ctx, headerKey, kv.Update{
			Set:      map[string]any{kv.AttrIsShared: false, kv.AttrUpdatedAt: s.timestamp()},
			Remove:   []string{kv.AttrSharedWith},
			IfExists: true,
		})
		if err != nil && !errors.Is(err, kv.ErrConditionFailed) {
			return upstream("marking list unshared", err)
		}
	}

	log.Debug().Msg("left shared list")
	return nil
}
