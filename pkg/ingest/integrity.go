package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/rag"
)

// CheckIntegrity removes index records whose chunks no longer exist in the
// document store. Orphans appear when a commit is interrupted between the
// index and the store; they must never be served as evidence. Returns the
// number of purged records.
func (o *Orchestrator) CheckIntegrity(ctx context.Context) (int, error) {
	indexed, err := o.index.ChunkIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: listing indexed chunks: %v", rag.ErrIndexIntegrity, err)
	}

	stored, err := o.store.ChunkIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: listing stored chunks: %v", rag.ErrIndexIntegrity, err)
	}

	known := make(map[string]struct{}, len(stored))
	for _, id := range stored {
		known[id] = struct{}{}
	}

	var orphans []string
	for _, id := range indexed {
		if _, ok := known[id]; !ok {
			orphans = append(orphans, id)
		}
	}

	if len(orphans) == 0 {
		o.logger.Debug("index integrity check passed",
			zap.Int("indexed_chunks", len(indexed)),
		)
		return 0, nil
	}

	o.logger.Warn("purging orphaned index records",
		zap.Int("orphans", len(orphans)),
		zap.Strings("chunk_ids", orphans),
	)

	if err := o.index.Delete(ctx, orphans); err != nil {
		return 0, fmt.Errorf("%w: purging %d orphaned records: %v", rag.ErrIndexIntegrity, len(orphans), err)
	}

	return len(orphans), nil
}
