package store

import (
	"context"
	"fmt"

	"github.com/nhle/shared-lists/internal/keys"
	"github.com/nhle/shared-lists/internal/kv"
)

// NextOrder returns one past the highest order among the user's list
// headers and shared links, or 0 when the user has none. A header with no
// stored order counts as 0.
func (s *ListStore) NextOrder(ctx context.Context, userID string) (int, error) {
	if err := keys.ValidateUserID(userID); err != nil {
		return 0, fmt.Errorf("%v: %w", err, ErrInvalidOperation)
	}

	rows, err := s.table.Query(ctx, keys.Partition(userID), keys.HeadersPrefix, kv.QueryOptions{
		Projection: []string{kv.AttrSK, kv.AttrType, kv.AttrListOrder},
	})
	if err != nil {
		return 0, upstream("scanning list headers", err)
	}
	return nextOrderFrom(rows), nil
}

func nextOrderFrom(rows []kv.Record) int {
	highest := -1
	for _, r := range rows {
		if r.Type != keys.KindList && r.Type != keys.KindSharedLink {
			continue
		}
		order := 0
		if r.ListOrder != nil {
			order = *r.ListOrder
		}
		highest = max(highest, order)
	}
	return highest + 1
}
