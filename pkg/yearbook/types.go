package yearbook

import (
	"time"

	"github.com/google/uuid"
)

// PageKind is the domain type for page roles within a document.
type PageKind string

// Page kind constants (typed).
const (
	PageKindFrontCover PageKind = "front_cover"
	PageKindBackCover  PageKind = "back_cover"
	PageKindContent    PageKind = "content"
)

// PageStatus is the domain type for page lifecycle states.
type PageStatus string

// Page status constants (typed).
const (
	PageStatusDraft        PageStatus = "draft"
	PageStatusPublished    PageStatus = "published"
	PageStatusDraftDeleted PageStatus = "draft_deleted"
)

// Role is the closed set of actor classes evaluated by the delivery
// decision procedure. Free-form user-type strings are deliberately not
// accepted anywhere.
type Role string

// Actor role constants (typed).
const (
	RolePlatformAdmin    Role = "platform_admin"
	RoleOwnerAdmin       Role = "owner_admin"
	RolePurchasingViewer Role = "purchasing_viewer"
	RoleAnonymous        Role = "anonymous"
)

// Document represents one school-year yearbook aggregate.
//
// Published cover URLs are what ordinary readers see; the draft cover
// fields are populated only while unpublished changes exist.
type Document struct {
	ID                 uuid.UUID  `json:"id"`
	SchoolID           uuid.UUID  `json:"school_id"`
	Year               int        `json:"year"`
	Free               bool       `json:"free"`
	PriceCents         int64      `json:"price_cents"`
	FrontCoverURL      string     `json:"front_cover_url,omitempty"`
	BackCoverURL       string     `json:"back_cover_url,omitempty"`
	DraftFrontCoverURL string     `json:"draft_front_cover_url,omitempty"`
	DraftBackCoverURL  string     `json:"draft_back_cover_url,omitempty"`
	HasDrafts          bool       `json:"has_drafts"`
	SavedAt            *time.Time `json:"saved_at,omitempty"`
	AutoSavedAt        *time.Time `json:"auto_saved_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Page represents one visual page belonging to a Document, backed by
// exactly one remote object at a time. Covers carry sequence 0; content
// pages carry strictly positive sequence numbers that are never reused
// by renumbering.
type Page struct {
	ID         uuid.UUID  `json:"id"`
	DocumentID uuid.UUID  `json:"document_id"`
	Kind       PageKind   `json:"kind"`
	Sequence   int        `json:"sequence"`
	Title      string     `json:"title,omitempty"`
	RemoteURL  string     `json:"remote_url"`
	ObjectKey  string     `json:"object_key"`
	Status     PageStatus `json:"status"`
	BatchID    *uuid.UUID `json:"batch_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Batch groups the pages produced by one multi-page source ingestion and
// remembers the raw source object so the collector can release it once the
// last page of the batch is gone.
type Batch struct {
	ID              uuid.UUID `json:"id"`
	DocumentID      uuid.UUID `json:"document_id"`
	SourceObjectKey string    `json:"source_object_key"`
	CreatedAt       time.Time `json:"created_at"`
}

// Actor is the requesting identity for delivery decisions.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// Anonymous returns the unauthenticated actor.
func Anonymous() Actor {
	return Actor{Role: RoleAnonymous}
}

// Delivery is the resolved access handle for a page: either a plain public
// URL (front covers) or a freshly minted signed URL, watermarked for
// purchasing viewers.
type Delivery struct {
	URL         string     `json:"url"`
	Public      bool       `json:"public"`
	Watermarked bool       `json:"watermarked"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// IsCover reports whether the kind is one of the two cover kinds.
func (k PageKind) IsCover() bool {
	return k == PageKindFrontCover || k == PageKindBackCover
}

// Valid reports whether the kind is a known page kind.
func (k PageKind) Valid() bool {
	return k == PageKindFrontCover || k == PageKindBackCover || k == PageKindContent
}
