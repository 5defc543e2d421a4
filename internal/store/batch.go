package store

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/nhle/shared-lists/internal/kv"
)

// writeBatches splits puts and deletes into table-sized batches and
// applies them with bounded parallelism. A batch holds either puts or
// deletes, never both.
func (s *ListStore) writeBatches(ctx context.Context, puts []kv.Record, deletes []kv.Key) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)

	for start := 0; start < len(puts); start += kv.MaxBatchSize {
		chunk := puts[start:min(start+kv.MaxBatchSize, len(puts))]
		g.Go(func() error {
			return s.table.BatchWrite(ctx, chunk, nil)
		})
	}
	for start := 0; start < len(deletes); start += kv.MaxBatchSize {
		chunk := deletes[start:min(start+kv.MaxBatchSize, len(deletes))]
		g.Go(func() error {
			return s.table.BatchWrite(ctx, nil, chunk)
		})
	}

	if err := g.Wait(); err != nil {
		return upstream("writing batch", err)
	}
	return nil
}
