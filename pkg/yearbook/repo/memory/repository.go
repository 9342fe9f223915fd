package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/classfolio/yearbook/pkg/yearbook"
)

// Repository implements yearbook.Repository using in-memory storage
type Repository struct {
	mu         sync.RWMutex
	documents  map[uuid.UUID]*yearbook.Document
	pages      map[uuid.UUID]*yearbook.Page
	batches    map[uuid.UUID]*yearbook.Batch
	pagesByDoc map[uuid.UUID][]uuid.UUID // document_id -> []page_id
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		documents:  make(map[uuid.UUID]*yearbook.Document),
		pages:      make(map[uuid.UUID]*yearbook.Page),
		batches:    make(map[uuid.UUID]*yearbook.Batch),
		pagesByDoc: make(map[uuid.UUID][]uuid.UUID),
	}
}

// Document operations

func (r *Repository) CreateDocument(ctx context.Context, doc *yearbook.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Create a copy to avoid external modifications
	docCopy := *doc
	r.documents[doc.ID] = &docCopy

	return nil
}

func (r *Repository) GetDocument(ctx context.Context, id uuid.UUID) (*yearbook.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, exists := r.documents[id]
	if !exists {
		return nil, yearbook.ErrDocumentNotFound
	}

	// Return a copy to prevent external modifications
	docCopy := *doc
	return &docCopy, nil
}

func (r *Repository) UpdateDocument(ctx context.Context, doc *yearbook.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.documents[doc.ID]; !exists {
		return yearbook.ErrDocumentNotFound
	}

	docCopy := *doc
	docCopy.UpdatedAt = time.Now()
	r.documents[doc.ID] = &docCopy

	return nil
}

// Page operations

func (r *Repository) CreatePage(ctx context.Context, page *yearbook.Page) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Verify document exists
	if _, exists := r.documents[page.DocumentID]; !exists {
		return yearbook.ErrDocumentNotFound
	}

	pageCopy := *page
	r.pages[page.ID] = &pageCopy
	r.pagesByDoc[page.DocumentID] = append(r.pagesByDoc[page.DocumentID], page.ID)

	return nil
}

func (r *Repository) GetPage(ctx context.Context, id uuid.UUID) (*yearbook.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	page, exists := r.pages[id]
	if !exists {
		return nil, yearbook.ErrPageNotFound
	}

	pageCopy := *page
	return &pageCopy, nil
}

func (r *Repository) UpdatePage(ctx context.Context, page *yearbook.Page) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pages[page.ID]; !exists {
		return yearbook.ErrPageNotFound
	}

	pageCopy := *page
	pageCopy.UpdatedAt = time.Now()
	r.pages[page.ID] = &pageCopy

	return nil
}

func (r *Repository) DeletePage(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	page, exists := r.pages[id]
	if !exists {
		return yearbook.ErrPageNotFound
	}

	delete(r.pages, id)

	ids := r.pagesByDoc[page.DocumentID]
	for i, pid := range ids {
		if pid == id {
			r.pagesByDoc[page.DocumentID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}

	return nil
}

func (r *Repository) ListPages(ctx context.Context, documentID uuid.UUID) ([]*yearbook.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.listPages(documentID, func(*yearbook.Page) bool { return true }), nil
}

func (r *Repository) ListPublishedPages(ctx context.Context, documentID uuid.UUID) ([]*yearbook.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.listPages(documentID, func(p *yearbook.Page) bool {
		return p.Status == yearbook.PageStatusPublished
	}), nil
}

func (r *Repository) ListPagesByStatus(ctx context.Context, documentID uuid.UUID, status yearbook.PageStatus) ([]*yearbook.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.listPages(documentID, func(p *yearbook.Page) bool {
		return p.Status == status
	}), nil
}

func (r *Repository) ListPagesByBatch(ctx context.Context, batchID uuid.UUID) ([]*yearbook.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*yearbook.Page
	for _, page := range r.pages {
		if page.BatchID != nil && *page.BatchID == batchID {
			pageCopy := *page
			result = append(result, &pageCopy)
		}
	}

	sortPages(result)
	return result, nil
}

func (r *Repository) FindPublishedCover(ctx context.Context, documentID uuid.UUID, kind yearbook.PageKind) (*yearbook.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, pid := range r.pagesByDoc[documentID] {
		page := r.pages[pid]
		if page != nil && page.Kind == kind && page.Status == yearbook.PageStatusPublished {
			pageCopy := *page
			return &pageCopy, nil
		}
	}

	return nil, yearbook.ErrPageNotFound
}

func (r *Repository) MaxContentSequence(ctx context.Context, documentID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	max := 0
	for _, pid := range r.pagesByDoc[documentID] {
		page := r.pages[pid]
		if page != nil && page.Kind == yearbook.PageKindContent && page.Sequence > max {
			max = page.Sequence
		}
	}

	return max, nil
}

func (r *Repository) PromotePages(ctx context.Context, documentID uuid.UUID, from, to yearbook.PageStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changed int64
	now := time.Now()
	for _, pid := range r.pagesByDoc[documentID] {
		page := r.pages[pid]
		if page != nil && page.Status == from {
			page.Status = to
			page.UpdatedAt = now
			changed++
		}
	}

	return changed, nil
}

// Batch operations

func (r *Repository) CreateBatch(ctx context.Context, batch *yearbook.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.documents[batch.DocumentID]; !exists {
		return yearbook.ErrDocumentNotFound
	}

	batchCopy := *batch
	r.batches[batch.ID] = &batchCopy

	return nil
}

func (r *Repository) GetBatch(ctx context.Context, id uuid.UUID) (*yearbook.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	batch, exists := r.batches[id]
	if !exists {
		return nil, yearbook.ErrBatchNotFound
	}

	batchCopy := *batch
	return &batchCopy, nil
}

func (r *Repository) DeleteBatch(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.batches[id]; !exists {
		return yearbook.ErrBatchNotFound
	}

	delete(r.batches, id)
	return nil
}

func (r *Repository) CountPagesInBatch(ctx context.Context, batchID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, page := range r.pages {
		if page.BatchID != nil && *page.BatchID == batchID {
			count++
		}
	}

	return count, nil
}

// listPages returns copies of the document's pages matching the filter,
// covers first, then content by ascending sequence. Callers hold the lock.
func (r *Repository) listPages(documentID uuid.UUID, match func(*yearbook.Page) bool) []*yearbook.Page {
	var result []*yearbook.Page
	for _, pid := range r.pagesByDoc[documentID] {
		page := r.pages[pid]
		if page != nil && match(page) {
			pageCopy := *page
			result = append(result, &pageCopy)
		}
	}

	sortPages(result)
	return result
}

func sortPages(pages []*yearbook.Page) {
	rank := func(p *yearbook.Page) int {
		switch p.Kind {
		case yearbook.PageKindFrontCover:
			return 0
		case yearbook.PageKindBackCover:
			return 2
		default:
			return 1
		}
	}
	sort.Slice(pages, func(i, j int) bool {
		ri, rj := rank(pages[i]), rank(pages[j])
		if ri != rj {
			return ri < rj
		}
		if pages[i].Sequence != pages[j].Sequence {
			return pages[i].Sequence < pages[j].Sequence
		}
		return pages[i].CreatedAt.Before(pages[j].CreatedAt)
	})
}
