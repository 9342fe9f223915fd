package yearbook

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrDocumentNotFound indicates a document was not found
	ErrDocumentNotFound = errors.New("document not found")

	// ErrPageNotFound indicates a page was not found
	ErrPageNotFound = errors.New("page not found")

	// ErrBatchNotFound indicates an ingestion batch was not found
	ErrBatchNotFound = errors.New("batch not found")

	// ErrStoreUnavailable indicates the object store could not be reached
	// after bounded retries; no partial state is retained by the caller.
	ErrStoreUnavailable = errors.New("object store unavailable")

	// ErrSourceUnreadable indicates the uploaded source document could not
	// be parsed; rejected before any remote state is created.
	ErrSourceUnreadable = errors.New("source document unreadable")

	// ErrInvalidPageKind indicates an unknown page kind was requested
	ErrInvalidPageKind = errors.New("invalid page kind")

	// ErrInvariantViolation indicates an operation would leave a document
	// in a state that breaks its cover/page invariants. Surfaced, never
	// silently repaired.
	ErrInvariantViolation = errors.New("document invariant violation")
)

// DenialReason is the closed set of reasons a delivery request is refused.
// Externally, a page that does not exist and a page the actor may not see
// are reported identically; the reason is for internal decisions only.
type DenialReason string

const (
	DenialUnauthenticated DenialReason = "unauthenticated"
	DenialUnpurchased     DenialReason = "unpurchased"
	DenialNotOwner        DenialReason = "not_owner"
	DenialNotFound        DenialReason = "not_found"
)

// AccessDeniedError reports a refused delivery decision.
type AccessDeniedError struct {
	Reason DenialReason
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: %s", e.Reason)
}

// DeniedReason extracts the denial reason when err is an access denial.
func DeniedReason(err error) (DenialReason, bool) {
	var denied *AccessDeniedError
	if errors.As(err, &denied) {
		return denied.Reason, true
	}
	return "", false
}

// DocumentError represents an error related to document operations
type DocumentError struct {
	DocumentID uuid.UUID
	Op         string
	Err        error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document operation %s failed for document %s: %v", e.Op, e.DocumentID, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// PageError represents an error related to page operations
type PageError struct {
	PageID uuid.UUID
	Op     string
	Err    error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page operation %s failed for page %s: %v", e.Op, e.PageID, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// StoreError represents an error related to object store operations
type StoreError struct {
	Key string
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store operation %s failed for object %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
