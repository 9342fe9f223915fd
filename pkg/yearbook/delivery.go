package yearbook

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ResolveDelivery decides whether the actor may see the page and mints
// the matching delivery handle. The rules are evaluated in order, first
// match wins:
//
//  1. front covers are public: plain remote URL for everyone
//  2. platform admins: signed URL, no watermark
//  3. owner admins owning the document: signed URL, no watermark
//  4. purchasing viewers who bought the school's year: signed URL with a
//     watermark transformation
//  5. otherwise denied
//
// A page that does not exist and a page the actor may not see are
// indistinguishable to external callers; the internal denial reason keeps
// them apart. Signed URLs are minted fresh per request and never cached.
func (s *service) ResolveDelivery(ctx context.Context, pageID uuid.UUID, actor Actor) (*Delivery, error) {
	page, err := s.repository.GetPage(ctx, pageID)
	if err != nil {
		if errors.Is(err, ErrPageNotFound) {
			return nil, &AccessDeniedError{Reason: DenialNotFound}
		}
		return nil, &PageError{PageID: pageID, Op: "resolve_delivery", Err: err}
	}

	if page.Kind == PageKindFrontCover {
		return &Delivery{URL: page.RemoteURL, Public: true}, nil
	}

	doc, err := s.repository.GetDocument(ctx, page.DocumentID)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return nil, &AccessDeniedError{Reason: DenialNotFound}
		}
		return nil, &DocumentError{DocumentID: page.DocumentID, Op: "resolve_delivery", Err: err}
	}

	switch actor.Role {
	case RolePlatformAdmin:
		return s.signedDelivery(ctx, page, false)

	case RoleOwnerAdmin:
		owns, err := s.oracle.OwnsDocument(ctx, actor.ID, doc.ID)
		if err != nil {
			return nil, &DocumentError{DocumentID: doc.ID, Op: "resolve_delivery", Err: err}
		}
		if owns {
			return s.signedDelivery(ctx, page, false)
		}
		return nil, &AccessDeniedError{Reason: DenialNotOwner}

	case RolePurchasingViewer:
		// Drafts are invisible to readers: an unpublished page is
		// reported exactly like a missing one.
		if page.Status != PageStatusPublished {
			return nil, &AccessDeniedError{Reason: DenialNotFound}
		}
		purchased, err := s.oracle.HasPurchased(ctx, actor.ID, doc.SchoolID, doc.Year)
		if err != nil {
			return nil, &DocumentError{DocumentID: doc.ID, Op: "resolve_delivery", Err: err}
		}
		if purchased {
			return s.signedDelivery(ctx, page, true)
		}
		return nil, &AccessDeniedError{Reason: DenialUnpurchased}

	default:
		return nil, &AccessDeniedError{Reason: DenialUnauthenticated}
	}
}

// signedDelivery mints a fresh short-lived URL. Watermarking is a
// property of the actor's tier, never of the stored object: the same
// backing object serves clean and watermarked deliveries through
// different transformation parameters.
func (s *service) signedDelivery(ctx context.Context, page *Page, watermark bool) (*Delivery, error) {
	url, err := s.store.SignedURL(ctx, page.ObjectKey, SignOptions{
		TTL:       s.signTTL,
		Watermark: watermark,
	})
	if err != nil {
		return nil, &StoreError{Key: page.ObjectKey, Op: "sign_url", Err: err}
	}

	expiresAt := time.Now().UTC().Add(s.signTTL)
	return &Delivery{
		URL:         url,
		Watermarked: watermark,
		ExpiresAt:   &expiresAt,
	}, nil
}
