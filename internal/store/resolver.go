package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/shared-lists/internal/keys"
	"github.com/nhle/shared-lists/internal/kv"
	"github.com/nhle/shared-lists/internal/model"
)

var headerProjection = []string{
	kv.AttrSK, kv.AttrType, kv.AttrListName, kv.AttrListOrder, kv.AttrIsShared, kv.AttrSharedWith,
}

// Resolve reports where (userID, listID) points. The caller's own header
// wins over a shared link with the same list id.
func (s *ListStore) Resolve(ctx context.Context, userID, listID string) (*model.ResolvedTarget, error) {
	if err := validateIDs(userID, listID); err != nil {
		return nil, err
	}

	header, err := s.table.Get(ctx, keys.HeaderKey(userID, listID), headerProjection)
	switch {
	case err == nil && header.Type == keys.KindList:
		return ownerTarget(userID, listID, header), nil
	case err != nil && !errors.Is(err, kv.ErrNotFound):
		return nil, upstream("reading list header", err)
	}

	link, err := s.findLink(ctx, userID, listID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, fmt.Errorf("list %s: %w", listID, ErrNotFound)
	}
	return s.resolveLink(ctx, *link)
}

// findLink returns the first shared link in userID's partition that refers
// to listID, or nil.
func (s *ListStore) findLink(ctx context.Context, userID, listID string) (*kv.Record, error) {
	links, err := s.table.Query(ctx, keys.Partition(userID), keys.SharedLinksPrefix, kv.QueryOptions{})
	if err != nil {
		return nil, upstream("scanning shared links", err)
	}
	for i := range links {
		l := links[i]
		if l.Type == keys.KindSharedLink && l.RefListID == listID && l.RefUserID != "" {
			return &l, nil
		}
	}
	return nil, nil
}

// resolveLink follows a link row to the owner's header.
func (s *ListStore) resolveLink(ctx context.Context, link kv.Record) (*model.ResolvedTarget, error) {
	owner, err := s.table.Get(ctx, keys.HeaderKey(link.RefUserID, link.RefListID), headerProjection)
	if errors.Is(err, kv.ErrNotFound) || (err == nil && owner.Type != keys.KindList) {
		return nil, fmt.Errorf("shared list %s of %s no longer exists: %w", link.RefListID, link.RefUserID, ErrNotFound)
	}
	if err != nil {
		return nil, upstream("reading shared list header", err)
	}

	name := owner.ListName
	if name == "" {
		name = link.ListName
	}
	return &model.ResolvedTarget{
		OwnerID:     link.RefUserID,
		ListID:      link.RefListID,
		DisplayName: name,
		Order:       link.ListOrder,
		OwnerOrder:  owner.ListOrder,
		IsShared:    true,
		LinkSK:      link.SK,
	}, nil
}

func ownerTarget(userID, listID string, header kv.Record) *model.ResolvedTarget {
	return &model.ResolvedTarget{
		OwnerID:     userID,
		ListID:      listID,
		DisplayName: header.ListName,
		Order:       header.ListOrder,
		OwnerOrder:  header.ListOrder,
		IsOwner:     true,
		IsShared:    header.IsShared != nil && *header.IsShared,
		Partners:    normalizePartners(header.SharedWith),
	}
}

// normalizePartners keeps at most one partner; a list is shared with a
// single user at a time.
func normalizePartners(sharedWith []string) []string {
	if len(sharedWith) == 0 {
		return nil
	}
	return []string{sharedWith[0]}
}
