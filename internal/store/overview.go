package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/nhle/shared-lists/internal/keys"
	"github.com/nhle/shared-lists/internal/kv"
	"github.com/nhle/shared-lists/internal/model"
)

// GetLists returns every list the user owns or reaches through a shared
// link, each with up to take items, ordered by order then list id. Lists
// without a stored order sort last. Links whose owner list is gone are
// skipped.
func (s *ListStore) GetLists(ctx context.Context, userID string, take int) ([]model.ListView, error) {
	if err := keys.ValidateUserID(userID); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidOperation)
	}

	rows, err := s.table.Query(ctx, keys.Partition(userID), keys.HeadersPrefix, kv.QueryOptions{
		Projection: []string{
			kv.AttrSK, kv.AttrType, kv.AttrListName, kv.AttrListOrder, kv.AttrIsShared,
			kv.AttrSharedWith, kv.AttrRefUserID, kv.AttrRefListID,
		},
	})
	if err != nil {
		return nil, upstream("scanning list headers", err)
	}

	views := make([]model.ListView, 0, len(rows))
	for _, row := range rows {
		var target *model.ResolvedTarget
		switch row.Type {
		case keys.KindList:
			target = ownerTarget(userID, keys.ListIDFromHeaderSK(row.SK), row)
		case keys.KindSharedLink:
			if row.RefUserID == "" || row.RefListID == "" {
				continue
			}
			target, err = s.resolveLink(ctx, row)
			if errors.Is(err, ErrNotFound) {
				s.log.Debug().Str("user_id", userID).Str("owner_id", row.RefUserID).
					Str("list_id", row.RefListID).Msg("skipping dangling shared link")
				continue
			}
			if err != nil {
				return nil, err
			}
		default:
			continue
		}

		items := []model.Item{}
		if take > 0 {
			items, err = s.loadItems(ctx, target.OwnerID, target.ListID, take)
			if err != nil {
				return nil, err
			}
		}

		view := buildView(target, items)
		if target.Order == nil {
			view.Order = math.MaxInt
		}
		views = append(views, view)
	}

	slices.SortStableFunc(views, func(a, b model.ListView) int {
		return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.ListID, b.ListID))
	})
	return views, nil
}
