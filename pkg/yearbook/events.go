package yearbook

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopEventSink is an event sink that does nothing.
type NoopEventSink struct{}

// NewNoopEventSink creates an event sink that discards all events.
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (s *NoopEventSink) PageCreated(ctx context.Context, page *Page) error   { return nil }
func (s *NoopEventSink) PageDeleted(ctx context.Context, id uuid.UUID) error { return nil }
func (s *NoopEventSink) DraftsCommitted(ctx context.Context, documentID uuid.UUID) error {
	return nil
}
func (s *NoopEventSink) DraftsDiscarded(ctx context.Context, documentID uuid.UUID) error {
	return nil
}
func (s *NoopEventSink) BatchCollected(ctx context.Context, batchID uuid.UUID, sourceKey string) error {
	return nil
}

// LogEventSink logs lifecycle events through slog.
type LogEventSink struct {
	logger *slog.Logger
}

// NewLogEventSink creates an event sink that records events on the given
// logger.
func NewLogEventSink(logger *slog.Logger) EventSink {
	return &LogEventSink{logger: logger}
}

func (s *LogEventSink) PageCreated(ctx context.Context, page *Page) error {
	s.logger.InfoContext(ctx, "page created",
		"page_id", page.ID, "document_id", page.DocumentID,
		"kind", page.Kind, "status", page.Status)
	return nil
}

func (s *LogEventSink) PageDeleted(ctx context.Context, id uuid.UUID) error {
	s.logger.InfoContext(ctx, "page deleted", "page_id", id)
	return nil
}

func (s *LogEventSink) DraftsCommitted(ctx context.Context, documentID uuid.UUID) error {
	s.logger.InfoContext(ctx, "drafts committed", "document_id", documentID)
	return nil
}

func (s *LogEventSink) DraftsDiscarded(ctx context.Context, documentID uuid.UUID) error {
	s.logger.InfoContext(ctx, "drafts discarded", "document_id", documentID)
	return nil
}

func (s *LogEventSink) BatchCollected(ctx context.Context, batchID uuid.UUID, sourceKey string) error {
	s.logger.InfoContext(ctx, "batch source collected", "batch_id", batchID, "key", sourceKey)
	return nil
}

// fire helpers: sink failures never fail the originating operation.

func (s *service) firePageCreated(ctx context.Context, page *Page) {
	if err := s.events.PageCreated(ctx, page); err != nil {
		s.logger.Warn("event sink error", "event", "page_created", "error", err)
	}
}

func (s *service) firePageDeleted(ctx context.Context, id uuid.UUID) {
	if err := s.events.PageDeleted(ctx, id); err != nil {
		s.logger.Warn("event sink error", "event", "page_deleted", "error", err)
	}
}

func (s *service) fireDraftsCommitted(ctx context.Context, documentID uuid.UUID) {
	if err := s.events.DraftsCommitted(ctx, documentID); err != nil {
		s.logger.Warn("event sink error", "event", "drafts_committed", "error", err)
	}
}

func (s *service) fireDraftsDiscarded(ctx context.Context, documentID uuid.UUID) {
	if err := s.events.DraftsDiscarded(ctx, documentID); err != nil {
		s.logger.Warn("event sink error", "event", "drafts_discarded", "error", err)
	}
}

func (s *service) fireBatchCollected(ctx context.Context, batchID uuid.UUID, sourceKey string) {
	if err := s.events.BatchCollected(ctx, batchID, sourceKey); err != nil {
		s.logger.Warn("event sink error", "event", "batch_collected", "error", err)
	}
}
