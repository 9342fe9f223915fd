package yearbook

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the main interface for the yearbook page lifecycle
type Service interface {
	// Document operations
	CreateDocument(ctx context.Context, req CreateDocumentRequest) (*Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*Document, error)
	ListPages(ctx context.Context, documentID uuid.UUID) ([]*Page, error)

	// Ingestion pipeline
	IngestPage(ctx context.Context, req IngestPageRequest) ([]*Page, error)
	DeletePage(ctx context.Context, pageID uuid.UUID) error
	DeleteBatch(ctx context.Context, batchID uuid.UUID) error

	// Draft/publish manager
	SetDraftCovers(ctx context.Context, req SetDraftCoversRequest) error
	CommitDrafts(ctx context.Context, documentID uuid.UUID) error
	DiscardDrafts(ctx context.Context, documentID uuid.UUID) error
	TouchSave(ctx context.Context, documentID uuid.UUID, auto bool) error

	// Access control & delivery
	ResolveDelivery(ctx context.Context, pageID uuid.UUID, actor Actor) (*Delivery, error)
}
