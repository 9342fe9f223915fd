package yearbook

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// DeleteBatch hard-deletes every page of an ingestion batch and then
// collects the batch's source object.
func (s *service) DeleteBatch(ctx context.Context, batchID uuid.UUID) error {
	if _, err := s.repository.GetBatch(ctx, batchID); err != nil {
		return err
	}

	pages, err := s.repository.ListPagesByBatch(ctx, batchID)
	if err != nil {
		return err
	}
	for _, page := range pages {
		// Best-effort per page: one stuck object must not strand the rest
		// of the batch.
		s.releaseObject(ctx, page.ObjectKey)
		if err := s.repository.DeletePage(ctx, page.ID); err != nil {
			return &PageError{PageID: page.ID, Op: "delete_batch", Err: err}
		}
		s.firePageDeleted(ctx, page.ID)
	}

	s.collectBatch(ctx, batchID)
	return nil
}

// collectBatch removes the batch's raw source object once no page
// references the batch anymore. Removing the batch row afterwards is what
// makes the source deletion happen exactly once. Best-effort throughout:
// a leftover source object costs storage, not metadata correctness.
func (s *service) collectBatch(ctx context.Context, batchID uuid.UUID) {
	remaining, err := s.repository.CountPagesInBatch(ctx, batchID)
	if err != nil {
		s.logger.Warn("batch collection skipped", "batch_id", batchID, "error", err)
		return
	}
	if remaining > 0 {
		return
	}

	batch, err := s.repository.GetBatch(ctx, batchID)
	if err != nil {
		if !errors.Is(err, ErrBatchNotFound) {
			s.logger.Warn("batch collection skipped", "batch_id", batchID, "error", err)
		}
		return
	}

	if _, err := s.store.Delete(ctx, batch.SourceObjectKey); err != nil {
		s.logger.Warn("batch source object not released",
			"batch_id", batchID, "key", batch.SourceObjectKey, "error", err)
		return
	}
	if err := s.repository.DeleteBatch(ctx, batchID); err != nil {
		s.logger.Warn("batch row not removed", "batch_id", batchID, "error", err)
		return
	}

	s.fireBatchCollected(ctx, batchID, batch.SourceObjectKey)
}
