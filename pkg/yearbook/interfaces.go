package yearbook

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Artifact is one uploaded file: a single raster image or a paginated
// source document. Size may be zero when the caller does not know it.
type Artifact struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
}

// StoredObject identifies one remote object created by an upload.
type StoredObject struct {
	URL       string
	SecureURL string
	Key       string
}

// ExtractedPage is one per-page object produced from a paginated source.
type ExtractedPage struct {
	StoredObject
	Index int
}

// PageExtraction is the result of a multi-page upload. On failure the
// store returns it non-nil alongside the error so the caller can release
// every object created before the failure, including the raw source.
type PageExtraction struct {
	Pages     []ExtractedPage
	SourceKey string
}

// UploadOptions control access mode and typing for a single upload.
type UploadOptions struct {
	// Public objects are addressable by their plain URL without signing.
	// Front covers are the only public page objects.
	Public      bool
	ContentType string
}

// SignOptions control signed delivery URL minting.
type SignOptions struct {
	TTL       time.Duration
	Watermark bool
	Width     int
	Height    int
}

// ObjectStore is the client contract for the external binary asset
// service. Delete is idempotent: deleting an absent object reports
// (false, nil), never an error. Single-object operations retry a bounded
// number of times on transient failure before surfacing
// ErrStoreUnavailable.
type ObjectStore interface {
	// Upload stores one artifact under the given folder.
	Upload(ctx context.Context, artifact Artifact, folder string, opts UploadOptions) (*StoredObject, error)

	// UploadPages uploads the raw source document, rasterizes each page
	// into its own access-controlled object, and returns the per-page
	// objects plus the raw source object key. The caller owns deletion of
	// the source object (via the batch collector).
	UploadPages(ctx context.Context, artifact Artifact, folder string) (*PageExtraction, error)

	// Delete removes one object. Returns false when the object did not
	// exist.
	Delete(ctx context.Context, key string) (bool, error)

	// SignedURL mints a short-lived delivery URL for an access-controlled
	// object, optionally with watermark/resize transformation parameters
	// baked into the signature.
	SignedURL(ctx context.Context, key string, opts SignOptions) (string, error)
}

// Repository defines the interface for document, page and batch
// persistence. It is the single source of truth and serialization point;
// PromotePages is the conditional status update that keeps commit and
// discard individually idempotent.
type Repository interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id uuid.UUID) (*Document, error)
	UpdateDocument(ctx context.Context, doc *Document) error

	// Page operations
	CreatePage(ctx context.Context, page *Page) error
	GetPage(ctx context.Context, id uuid.UUID) (*Page, error)
	UpdatePage(ctx context.Context, page *Page) error
	// DeletePage removes the row. Releasing the remote object is the
	// caller's concern.
	DeletePage(ctx context.Context, id uuid.UUID) error
	ListPages(ctx context.Context, documentID uuid.UUID) ([]*Page, error)
	// ListPublishedPages returns published pages ordered by sequence.
	ListPublishedPages(ctx context.Context, documentID uuid.UUID) ([]*Page, error)
	ListPagesByStatus(ctx context.Context, documentID uuid.UUID, status PageStatus) ([]*Page, error)
	ListPagesByBatch(ctx context.Context, batchID uuid.UUID) ([]*Page, error)
	// FindPublishedCover returns the published cover page of the given
	// kind, or ErrPageNotFound.
	FindPublishedCover(ctx context.Context, documentID uuid.UUID, kind PageKind) (*Page, error)
	// MaxContentSequence returns the highest content-page sequence number
	// across all statuses, or 0 when the document has no content pages.
	MaxContentSequence(ctx context.Context, documentID uuid.UUID) (int, error)
	// PromotePages moves every page of the document from one status to
	// another and reports how many rows changed. Re-running is a no-op.
	PromotePages(ctx context.Context, documentID uuid.UUID, from, to PageStatus) (int64, error)

	// Batch operations
	CreateBatch(ctx context.Context, batch *Batch) error
	GetBatch(ctx context.Context, id uuid.UUID) (*Batch, error)
	DeleteBatch(ctx context.Context, id uuid.UUID) error
	CountPagesInBatch(ctx context.Context, batchID uuid.UUID) (int, error)
}

// PurchaseOracle answers ownership and purchase questions. Owned by the
// payment/auth subsystems; consumed here behind this interface only.
type PurchaseOracle interface {
	HasPurchased(ctx context.Context, actorID, schoolID uuid.UUID, year int) (bool, error)
	OwnsDocument(ctx context.Context, actorID, documentID uuid.UUID) (bool, error)
}

// EventSink defines the interface for lifecycle event handling. Sink
// failures never fail the originating operation.
type EventSink interface {
	PageCreated(ctx context.Context, page *Page) error
	PageDeleted(ctx context.Context, pageID uuid.UUID) error
	DraftsCommitted(ctx context.Context, documentID uuid.UUID) error
	DraftsDiscarded(ctx context.Context, documentID uuid.UUID) error
	BatchCollected(ctx context.Context, batchID uuid.UUID, sourceKey string) error
}
