package yearbook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const defaultSignedURLTTL = time.Hour

// service implements the Service interface
type service struct {
	repository Repository
	store      ObjectStore
	oracle     PurchaseOracle
	events     EventSink
	logger     *slog.Logger
	signTTL    time.Duration
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the metadata repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithObjectStore sets the binary object store client
func WithObjectStore(store ObjectStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithPurchaseOracle sets the purchase/ownership oracle
func WithPurchaseOracle(oracle PurchaseOracle) Option {
	return func(s *service) {
		s.oracle = oracle
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.events = sink
	}
}

// WithLogger sets the structured logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithSignedURLTTL sets the expiry for minted delivery URLs. Values above
// one hour are clamped; signed URLs stay short-lived.
func WithSignedURLTTL(ttl time.Duration) Option {
	return func(s *service) {
		if ttl > 0 {
			s.signTTL = min(ttl, defaultSignedURLTTL)
		}
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		signTTL: defaultSignedURLTTL,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if s.oracle == nil {
		s.oracle = denyAllOracle{}
	}
	if s.events == nil {
		s.events = NewNoopEventSink()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// Document operations

func (s *service) CreateDocument(ctx context.Context, req CreateDocumentRequest) (*Document, error) {
	now := time.Now().UTC()
	doc := &Document{
		ID:         uuid.New(),
		SchoolID:   req.SchoolID,
		Year:       req.Year,
		Free:       req.Free,
		PriceCents: req.PriceCents,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repository.CreateDocument(ctx, doc); err != nil {
		return nil, &DocumentError{
			DocumentID: doc.ID,
			Op:         "create",
			Err:        err,
		}
	}

	return doc, nil
}

func (s *service) GetDocument(ctx context.Context, id uuid.UUID) (*Document, error) {
	return s.repository.GetDocument(ctx, id)
}

func (s *service) ListPages(ctx context.Context, documentID uuid.UUID) ([]*Page, error) {
	if _, err := s.repository.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.repository.ListPages(ctx, documentID)
}

// Helper methods

// pageFolder scopes every object of a document under one store folder.
func pageFolder(documentID uuid.UUID) string {
	return fmt.Sprintf("yearbooks/%s", documentID)
}

func (s *service) markDirty(ctx context.Context, doc *Document) error {
	if doc.HasDrafts {
		return nil
	}
	doc.HasDrafts = true
	doc.UpdatedAt = time.Now().UTC()
	return s.repository.UpdateDocument(ctx, doc)
}
