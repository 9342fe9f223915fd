package yearbook

import "github.com/google/uuid"

// CreateDocumentRequest contains parameters for creating a document
type CreateDocumentRequest struct {
	SchoolID   uuid.UUID
	Year       int
	Free       bool
	PriceCents int64
}

// IngestPageRequest contains parameters for ingesting one artifact.
// Paginated source documents (application/pdf) fan out into one page per
// extracted page; everything else produces exactly one page.
type IngestPageRequest struct {
	DocumentID uuid.UUID
	Artifact   Artifact
	Kind       PageKind
	Title      string
}

// SetDraftCoversRequest stages new cover URLs without touching the
// published cover fields. Empty strings leave the corresponding field
// unchanged.
type SetDraftCoversRequest struct {
	DocumentID uuid.UUID
	FrontURL   string
	BackURL    string
}
