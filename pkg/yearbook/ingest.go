package yearbook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// pagedSourceContentType is the one paginated source format the pipeline
// accepts; everything else is treated as a single raster image.
const pagedSourceContentType = "application/pdf"

// IngestPage normalizes one uploaded artifact into one or more draft
// pages, each backed by a remote object. Partial success is never visible
// to callers: any mid-extraction failure rolls back every object and row
// created before it and surfaces a single error.
func (s *service) IngestPage(ctx context.Context, req IngestPageRequest) ([]*Page, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPageKind, req.Kind)
	}

	doc, err := s.repository.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}

	if req.Artifact.ContentType == pagedSourceContentType {
		return s.ingestPagedSource(ctx, doc, req)
	}
	return s.ingestImage(ctx, doc, req)
}

// ingestImage handles single-image artifacts: one upload, one draft page.
// Single-image content uploads never auto-assign covers; that asymmetry
// with the paged-source path is intentional and pinned by tests.
func (s *service) ingestImage(ctx context.Context, doc *Document, req IngestPageRequest) ([]*Page, error) {
	var replaced *Page
	if req.Kind.IsCover() {
		prev, err := s.repository.FindPublishedCover(ctx, doc.ID, req.Kind)
		if err != nil && !errors.Is(err, ErrPageNotFound) {
			return nil, err
		}
		replaced = prev
	}

	obj, err := s.store.Upload(ctx, req.Artifact, pageFolder(doc.ID), UploadOptions{
		Public:      req.Kind == PageKindFrontCover,
		ContentType: req.Artifact.ContentType,
	})
	if err != nil {
		return nil, err
	}

	sequence := 0
	if req.Kind == PageKindContent {
		maxSeq, err := s.repository.MaxContentSequence(ctx, doc.ID)
		if err != nil {
			s.releaseObject(ctx, obj.Key)
			return nil, err
		}
		sequence = maxSeq + 1
	}

	now := time.Now().UTC()
	page := &Page{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		Kind:       req.Kind,
		Sequence:   sequence,
		Title:      req.Title,
		RemoteURL:  remoteURLFor(obj, req.Kind),
		ObjectKey:  obj.Key,
		Status:     PageStatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if replaced != nil {
		// Covers are replace-not-append: the previous published cover's
		// object and row go away and the new cover publishes immediately.
		if err := s.removeCoverPage(ctx, replaced); err != nil {
			s.releaseObject(ctx, obj.Key)
			return nil, err
		}
		page.Status = PageStatusPublished
	}

	if err := s.repository.CreatePage(ctx, page); err != nil {
		s.releaseObject(ctx, obj.Key)
		return nil, &PageError{PageID: page.ID, Op: "ingest", Err: err}
	}

	if replaced != nil {
		setPublishedCoverURL(doc, req.Kind, page.RemoteURL)
		doc.UpdatedAt = now
	} else {
		if req.Kind.IsCover() {
			setDraftCoverURL(doc, req.Kind, page.RemoteURL)
		}
		doc.HasDrafts = true
		doc.UpdatedAt = now
	}
	if err := s.repository.UpdateDocument(ctx, doc); err != nil {
		return nil, &DocumentError{DocumentID: doc.ID, Op: "ingest", Err: err}
	}

	s.firePageCreated(ctx, page)
	return []*Page{page}, nil
}

// ingestPagedSource fans a paginated source document out into per-page
// objects and page rows grouped under a fresh batch.
func (s *service) ingestPagedSource(ctx context.Context, doc *Document, req IngestPageRequest) ([]*Page, error) {
	ext, err := s.store.UploadPages(ctx, req.Artifact, pageFolder(doc.ID))
	if err != nil {
		s.rollbackExtraction(ctx, ext)
		return nil, err
	}
	if len(ext.Pages) == 0 {
		s.rollbackExtraction(ctx, ext)
		return nil, fmt.Errorf("%w: source produced no pages", ErrSourceUnreadable)
	}

	if req.Kind.IsCover() {
		return s.ingestExtractedCover(ctx, doc, req, ext)
	}
	return s.ingestExtractedBook(ctx, doc, req, ext)
}

// ingestExtractedBook classifies a full extraction: page 0 becomes the
// draft front cover, the last page the draft back cover, and everything in
// between content with sequence numbers 1..N-2.
func (s *service) ingestExtractedBook(ctx context.Context, doc *Document, req IngestPageRequest, ext *PageExtraction) ([]*Page, error) {
	now := time.Now().UTC()
	batch := &Batch{
		ID:              uuid.New(),
		DocumentID:      doc.ID,
		SourceObjectKey: ext.SourceKey,
		CreatedAt:       now,
	}
	if err := s.repository.CreateBatch(ctx, batch); err != nil {
		s.rollbackExtraction(ctx, ext)
		return nil, &DocumentError{DocumentID: doc.ID, Op: "ingest_batch", Err: err}
	}

	last := len(ext.Pages) - 1
	created := make([]*Page, 0, len(ext.Pages))
	for i, ep := range ext.Pages {
		kind, sequence := PageKindContent, i
		switch {
		case i == 0:
			kind, sequence = PageKindFrontCover, 0
		case i == last:
			kind, sequence = PageKindBackCover, 0
		}

		page := &Page{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Kind:       kind,
			Sequence:   sequence,
			Title:      req.Title,
			RemoteURL:  remoteURLFor(&ep.StoredObject, kind),
			ObjectKey:  ep.Key,
			Status:     PageStatusDraft,
			BatchID:    &batch.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.repository.CreatePage(ctx, page); err != nil {
			s.rollbackBatch(ctx, created, batch, ext)
			return nil, &DocumentError{DocumentID: doc.ID, Op: "ingest_batch", Err: err}
		}
		created = append(created, page)
	}

	doc.DraftFrontCoverURL = created[0].RemoteURL
	if last > 0 {
		doc.DraftBackCoverURL = created[last].RemoteURL
	}
	doc.HasDrafts = true
	doc.UpdatedAt = now
	if err := s.repository.UpdateDocument(ctx, doc); err != nil {
		s.rollbackBatch(ctx, created, batch, ext)
		return nil, &DocumentError{DocumentID: doc.ID, Op: "ingest_batch", Err: err}
	}

	for _, page := range created {
		s.firePageCreated(ctx, page)
	}
	return created, nil
}

// ingestExtractedCover keeps only the first (front) or last (back)
// extracted page; the caller wanted one cover, so the remaining page
// objects are discarded immediately.
func (s *service) ingestExtractedCover(ctx context.Context, doc *Document, req IngestPageRequest, ext *PageExtraction) ([]*Page, error) {
	keep := 0
	if req.Kind == PageKindBackCover {
		keep = len(ext.Pages) - 1
	}
	for i, ep := range ext.Pages {
		if i != keep {
			s.releaseObject(ctx, ep.Key)
		}
	}
	kept := ext.Pages[keep]

	now := time.Now().UTC()
	batch := &Batch{
		ID:              uuid.New(),
		DocumentID:      doc.ID,
		SourceObjectKey: ext.SourceKey,
		CreatedAt:       now,
	}
	if err := s.repository.CreateBatch(ctx, batch); err != nil {
		s.releaseObject(ctx, kept.Key)
		s.releaseObject(ctx, ext.SourceKey)
		return nil, &DocumentError{DocumentID: doc.ID, Op: "ingest_cover", Err: err}
	}

	var replaced *Page
	prev, err := s.repository.FindPublishedCover(ctx, doc.ID, req.Kind)
	if err != nil && !errors.Is(err, ErrPageNotFound) {
		s.rollbackBatch(ctx, nil, batch, &PageExtraction{Pages: []ExtractedPage{kept}, SourceKey: ext.SourceKey})
		return nil, err
	}
	replaced = prev

	page := &Page{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		Kind:       req.Kind,
		Sequence:   0,
		Title:      req.Title,
		RemoteURL:  remoteURLFor(&kept.StoredObject, req.Kind),
		ObjectKey:  kept.Key,
		Status:     PageStatusDraft,
		BatchID:    &batch.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if replaced != nil {
		if err := s.removeCoverPage(ctx, replaced); err != nil {
			s.rollbackBatch(ctx, nil, batch, &PageExtraction{Pages: []ExtractedPage{kept}, SourceKey: ext.SourceKey})
			return nil, err
		}
		page.Status = PageStatusPublished
	}

	if err := s.repository.CreatePage(ctx, page); err != nil {
		s.rollbackBatch(ctx, nil, batch, &PageExtraction{Pages: []ExtractedPage{kept}, SourceKey: ext.SourceKey})
		return nil, &PageError{PageID: page.ID, Op: "ingest_cover", Err: err}
	}

	if replaced != nil {
		setPublishedCoverURL(doc, req.Kind, page.RemoteURL)
	} else {
		setDraftCoverURL(doc, req.Kind, page.RemoteURL)
		doc.HasDrafts = true
	}
	doc.UpdatedAt = now
	if err := s.repository.UpdateDocument(ctx, doc); err != nil {
		return nil, &DocumentError{DocumentID: doc.ID, Op: "ingest_cover", Err: err}
	}

	s.firePageCreated(ctx, page)
	return []*Page{page}, nil
}

// removeCoverPage releases a published cover's remote object and removes
// its row. Store failure aborts the replacement.
func (s *service) removeCoverPage(ctx context.Context, page *Page) error {
	if _, err := s.store.Delete(ctx, page.ObjectKey); err != nil {
		return &StoreError{Key: page.ObjectKey, Op: "replace_cover", Err: err}
	}
	if err := s.repository.DeletePage(ctx, page.ID); err != nil {
		return &PageError{PageID: page.ID, Op: "replace_cover", Err: err}
	}
	s.firePageDeleted(ctx, page.ID)
	return nil
}

// rollbackExtraction releases every object an extraction created,
// including the raw source document. Best-effort: one failed deletion
// does not stop the rest.
func (s *service) rollbackExtraction(ctx context.Context, ext *PageExtraction) {
	if ext == nil {
		return
	}
	for _, ep := range ext.Pages {
		s.releaseObject(ctx, ep.Key)
	}
	if ext.SourceKey != "" {
		s.releaseObject(ctx, ext.SourceKey)
	}
}

// rollbackBatch unwinds a partially persisted batch: rows first, then the
// batch record, then every remote object.
func (s *service) rollbackBatch(ctx context.Context, created []*Page, batch *Batch, ext *PageExtraction) {
	for _, page := range created {
		if err := s.repository.DeletePage(ctx, page.ID); err != nil {
			s.logger.Warn("rollback: page row not removed", "page_id", page.ID, "error", err)
		}
	}
	if err := s.repository.DeleteBatch(ctx, batch.ID); err != nil {
		s.logger.Warn("rollback: batch row not removed", "batch_id", batch.ID, "error", err)
	}
	s.rollbackExtraction(ctx, ext)
}

// releaseObject deletes one remote object, logging instead of failing:
// an orphaned object costs storage, not correctness.
func (s *service) releaseObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if _, err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("orphaned object not released", "key", key, "error", err)
	}
}

// remoteURLFor picks the address stored on the page row: front covers are
// served by their plain public URL, everything else by the secure one.
func remoteURLFor(obj *StoredObject, kind PageKind) string {
	if kind == PageKindFrontCover && obj.URL != "" {
		return obj.URL
	}
	if obj.SecureURL != "" {
		return obj.SecureURL
	}
	return obj.URL
}

func setPublishedCoverURL(doc *Document, kind PageKind, url string) {
	if kind == PageKindFrontCover {
		doc.FrontCoverURL = url
	} else {
		doc.BackCoverURL = url
	}
}

func setDraftCoverURL(doc *Document, kind PageKind, url string) {
	if kind == PageKindFrontCover {
		doc.DraftFrontCoverURL = url
	} else {
		doc.DraftBackCoverURL = url
	}
}
