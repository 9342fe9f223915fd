package yearbook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SetDraftCovers stages new cover URLs without touching the published
// cover fields and marks the document dirty.
func (s *service) SetDraftCovers(ctx context.Context, req SetDraftCoversRequest) error {
	doc, err := s.repository.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return err
	}

	if req.FrontURL != "" {
		doc.DraftFrontCoverURL = req.FrontURL
	}
	if req.BackURL != "" {
		doc.DraftBackCoverURL = req.BackURL
	}
	doc.HasDrafts = true
	doc.UpdatedAt = time.Now().UTC()

	if err := s.repository.UpdateDocument(ctx, doc); err != nil {
		return &DocumentError{DocumentID: doc.ID, Op: "set_draft_covers", Err: err}
	}
	return nil
}

// CommitDrafts publishes every staged change on the document. The steps
// run in a fixed order and each one is individually idempotent, so a
// commit interrupted midway can simply be re-run; a second commit of a
// clean document is a no-op.
func (s *service) CommitDrafts(ctx context.Context, documentID uuid.UUID) error {
	doc, err := s.repository.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	drafts, err := s.repository.ListPagesByStatus(ctx, documentID, PageStatusDraft)
	if err != nil {
		return err
	}
	softDeleted, err := s.repository.ListPagesByStatus(ctx, documentID, PageStatusDraftDeleted)
	if err != nil {
		return err
	}

	staged := doc.DraftFrontCoverURL != "" || doc.DraftBackCoverURL != ""
	if !doc.HasDrafts && !staged && len(drafts) == 0 && len(softDeleted) == 0 {
		return nil
	}

	hasFront, err := s.willHaveFrontCover(ctx, doc, drafts, softDeleted)
	if err != nil {
		return err
	}
	if !hasFront {
		return fmt.Errorf("%w: commit without a front cover", ErrInvariantViolation)
	}

	// Step 1: promote staged cover fields.
	if doc.DraftFrontCoverURL != "" {
		doc.FrontCoverURL = doc.DraftFrontCoverURL
		doc.DraftFrontCoverURL = ""
	}
	if doc.DraftBackCoverURL != "" {
		doc.BackCoverURL = doc.DraftBackCoverURL
		doc.DraftBackCoverURL = ""
	}

	// Step 2: purge soft-deleted pages for good. A purged cover takes its
	// published URL field with it; a replacement promoted below sets the
	// field anew.
	for _, page := range softDeleted {
		if err := s.hardDeletePage(ctx, page); err != nil {
			return err
		}
		switch {
		case page.Kind == PageKindFrontCover && doc.FrontCoverURL == page.RemoteURL:
			doc.FrontCoverURL = ""
		case page.Kind == PageKindBackCover && doc.BackCoverURL == page.RemoteURL:
			doc.BackCoverURL = ""
		}
	}

	// Step 3: promote drafts. A draft cover displaces any published cover
	// of the same kind so the one-published-cover invariant holds.
	for _, page := range drafts {
		if !page.Kind.IsCover() {
			continue
		}
		prev, err := s.repository.FindPublishedCover(ctx, documentID, page.Kind)
		if err != nil {
			if errors.Is(err, ErrPageNotFound) {
				continue
			}
			return err
		}
		if err := s.hardDeletePage(ctx, prev); err != nil {
			return err
		}
	}
	if _, err := s.repository.PromotePages(ctx, documentID, PageStatusDraft, PageStatusPublished); err != nil {
		return &DocumentError{DocumentID: documentID, Op: "commit", Err: err}
	}
	for _, page := range drafts {
		if page.Kind.IsCover() {
			setPublishedCoverURL(doc, page.Kind, page.RemoteURL)
		}
	}

	// Step 4: clear the dirty flag and stamp the save.
	now := time.Now().UTC()
	doc.HasDrafts = false
	doc.SavedAt = &now
	doc.UpdatedAt = now
	if err := s.repository.UpdateDocument(ctx, doc); err != nil {
		return &DocumentError{DocumentID: documentID, Op: "commit", Err: err}
	}

	s.fireDraftsCommitted(ctx, documentID)
	return nil
}

// DiscardDrafts throws away every staged change: draft pages and their
// remote objects go away, soft-deleted pages come back. Idempotent the
// same way commit is.
func (s *service) DiscardDrafts(ctx context.Context, documentID uuid.UUID) error {
	doc, err := s.repository.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	drafts, err := s.repository.ListPagesByStatus(ctx, documentID, PageStatusDraft)
	if err != nil {
		return err
	}
	softDeleted, err := s.repository.ListPagesByStatus(ctx, documentID, PageStatusDraftDeleted)
	if err != nil {
		return err
	}

	staged := doc.DraftFrontCoverURL != "" || doc.DraftBackCoverURL != ""
	if !doc.HasDrafts && !staged && len(drafts) == 0 && len(softDeleted) == 0 {
		return nil
	}

	// Step 1: drop draft pages, objects included.
	for _, page := range drafts {
		if err := s.hardDeletePage(ctx, page); err != nil {
			return err
		}
	}

	// Step 2: restore soft-deleted pages to published.
	if _, err := s.repository.PromotePages(ctx, documentID, PageStatusDraftDeleted, PageStatusPublished); err != nil {
		return &DocumentError{DocumentID: documentID, Op: "discard", Err: err}
	}

	// Step 3: clear staged cover fields. Objects staged through ingestion
	// belonged to draft cover pages and were released in step 1.
	doc.DraftFrontCoverURL = ""
	doc.DraftBackCoverURL = ""

	// Step 4: clear the dirty flag.
	doc.HasDrafts = false
	doc.UpdatedAt = time.Now().UTC()
	if err := s.repository.UpdateDocument(ctx, doc); err != nil {
		return &DocumentError{DocumentID: documentID, Op: "discard", Err: err}
	}

	s.fireDraftsDiscarded(ctx, documentID)
	return nil
}

// TouchSave stamps the manual or automatic save timestamp without
// changing draft state. Used by periodic-save callers.
func (s *service) TouchSave(ctx context.Context, documentID uuid.UUID, auto bool) error {
	doc, err := s.repository.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if auto {
		doc.AutoSavedAt = &now
	} else {
		doc.SavedAt = &now
	}
	doc.UpdatedAt = now

	if err := s.repository.UpdateDocument(ctx, doc); err != nil {
		return &DocumentError{DocumentID: documentID, Op: "touch_save", Err: err}
	}
	return nil
}

// DeletePage soft-deletes a published page (reversible until the next
// commit or discard) and hard-deletes a draft or already soft-deleted
// one, releasing its remote object now.
func (s *service) DeletePage(ctx context.Context, pageID uuid.UUID) error {
	page, err := s.repository.GetPage(ctx, pageID)
	if err != nil {
		return err
	}

	if page.Status == PageStatusPublished {
		page.Status = PageStatusDraftDeleted
		page.UpdatedAt = time.Now().UTC()
		if err := s.repository.UpdatePage(ctx, page); err != nil {
			return &PageError{PageID: pageID, Op: "delete", Err: err}
		}
		doc, err := s.repository.GetDocument(ctx, page.DocumentID)
		if err != nil {
			return err
		}
		return s.markDirty(ctx, doc)
	}

	return s.hardDeletePage(ctx, page)
}

// hardDeletePage releases the remote object, removes the row, and lets
// the collector decide whether the page's batch source can go too.
func (s *service) hardDeletePage(ctx context.Context, page *Page) error {
	if _, err := s.store.Delete(ctx, page.ObjectKey); err != nil {
		return &StoreError{Key: page.ObjectKey, Op: "delete_page", Err: err}
	}
	if err := s.repository.DeletePage(ctx, page.ID); err != nil {
		return &PageError{PageID: page.ID, Op: "delete_page", Err: err}
	}
	s.firePageDeleted(ctx, page.ID)

	if page.BatchID != nil {
		s.collectBatch(ctx, *page.BatchID)
	}
	return nil
}

// willHaveFrontCover reports whether the document ends the commit with a
// front cover from any source: staged, among the drafts being promoted,
// or already published. A front cover sitting in the soft-deleted set is
// about to be purged and counts for nothing, nor does the published URL
// field it fed.
func (s *service) willHaveFrontCover(ctx context.Context, doc *Document, drafts, softDeleted []*Page) (bool, error) {
	if doc.DraftFrontCoverURL != "" {
		return true, nil
	}
	for _, page := range drafts {
		if page.Kind == PageKindFrontCover {
			return true, nil
		}
	}
	for _, page := range softDeleted {
		if page.Kind == PageKindFrontCover {
			return false, nil
		}
	}
	if doc.FrontCoverURL != "" {
		return true, nil
	}
	_, err := s.repository.FindPublishedCover(ctx, doc.ID, PageKindFrontCover)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrPageNotFound) {
		return false, nil
	}
	return false, err
}
