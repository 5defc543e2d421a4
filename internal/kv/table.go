// Package kv is the narrow key-value port the list store runs on: a single
// table addressed by a partition key and a sort key, with prefix queries,
// conditional puts, partial updates and small write batches.
package kv

import (
	"context"
	"errors"
	"sort"
)

// Attribute names used on every row of the table.
const (
	AttrPK         = "PK"
	AttrSK         = "SK"
	AttrType       = "Type"
	AttrListName   = "ListName"
	AttrListOrder  = "ListOrder"
	AttrIsShared   = "IsShared"
	AttrSharedWith = "SharedWith"
	AttrRefUserID  = "RefUserId"
	AttrRefListID  = "RefListId"
	AttrText       = "Text"
	AttrIsChecked  = "IsChecked"
	AttrUpdatedAt  = "UpdatedAt"
)

// MaxBatchSize is the largest number of writes a single BatchWrite accepts.
const MaxBatchSize = 25

var (
	// ErrNotFound is returned by Get when no row exists under the key.
	ErrNotFound = errors.New("kv: item not found")
	// ErrConditionFailed is returned when a conditional write is rejected.
	ErrConditionFailed = errors.New("kv: condition failed")
	// ErrBatchTooLarge is returned when a batch exceeds MaxBatchSize.
	ErrBatchTooLarge = errors.New("kv: batch too large")
	// ErrUnprocessed is returned when a batch still has unwritten items after retries.
	ErrUnprocessed = errors.New("kv: unprocessed batch items")
)

// Key addresses a single row.
type Key struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
}

// QueryOptions narrows a prefix query.
type QueryOptions struct {
	// Projection limits the attributes returned. Empty means all attributes.
	Projection []string
	// Limit caps the number of rows returned. Zero means no limit.
	Limit int
}

// Update describes a partial update of a single row.
type Update struct {
	Set           map[string]any
	Remove        []string
	DeleteFromSet map[string][]string
	// IfExists rejects the update with ErrConditionFailed when the row is absent.
	IfExists bool
}

// Table is the storage port. Implementations must return rows of a query
// in ascending sort-key order.
type Table interface {
	Get(ctx context.Context, key Key, projection []string) (Record, error)
	// Put writes a whole row. With ifNotExists set, an existing row under
	// the same key makes the call fail with ErrConditionFailed.
	Put(ctx context.Context, rec Record, ifNotExists bool) error
	// Delete removes a row. Deleting an absent row is not an error.
	Delete(ctx context.Context, key Key) error
	Query(ctx context.Context, pk, skPrefix string, opts QueryOptions) ([]Record, error)
	// BatchWrite applies up to MaxBatchSize puts and deletes.
	BatchWrite(ctx context.Context, puts []Record, deletes []Key) error
	Update(ctx context.Context, key Key, upd Update) error
}

// normalized folds empty set assignments into removals, mirroring how a
// string set attribute cannot hold zero elements.
func (u Update) normalized() Update {
	out := Update{IfExists: u.IfExists, DeleteFromSet: u.DeleteFromSet}
	out.Remove = append(out.Remove, u.Remove...)
	if len(u.Set) > 0 {
		out.Set = make(map[string]any, len(u.Set))
	}
	for name, v := range u.Set {
		switch set := v.(type) {
		case []string:
			if len(set) == 0 {
				out.Remove = append(out.Remove, name)
				continue
			}
			out.Set[name] = StringSet(set)
		case StringSet:
			if len(set) == 0 {
				out.Remove = append(out.Remove, name)
				continue
			}
			out.Set[name] = set
		default:
			out.Set[name] = v
		}
	}
	return out
}

func (u Update) empty() bool {
	return len(u.Set) == 0 && len(u.Remove) == 0 && len(u.DeleteFromSet) == 0
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
