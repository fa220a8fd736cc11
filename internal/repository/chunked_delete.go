package repository

import (
	"context"
	"fmt"
)

// BatchDeleter is the subset of a collection needed for chunked deletes.
type BatchDeleter interface {
	BatchDelete(ctx context.Context, ids []string) (int64, error)
	BatchLimit() int
}

// DeleteInChunks deletes ids in sequential chunks no larger than the store's batch limit.
// Chunks commit independently; on failure the already committed chunks stay applied and the
// returned count reflects them, so callers recover by re-running with the remaining ids.
func DeleteInChunks(ctx context.Context, deleter BatchDeleter, ids []string) (int64, error) {
	limit := deleter.BatchLimit()
	if limit <= 0 {
		limit = DefaultBatchLimit
	}

	var deleted int64
	for start := 0; start < len(ids); start += limit {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		end := start + limit
		if end > len(ids) {
			end = len(ids)
		}
		n, err := deleter.BatchDelete(ctx, ids[start:end])
		if err != nil {
			return deleted, fmt.Errorf("delete chunk %d-%d: %w", start, end, err)
		}
		deleted += n
	}
	return deleted, nil
}
