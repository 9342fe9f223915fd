package yearbook_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classfolio/yearbook/pkg/yearbook"
	repomemory "github.com/classfolio/yearbook/pkg/yearbook/repo/memory"
	storememory "github.com/classfolio/yearbook/pkg/yearbook/store/memory"
)

// deliveryFixture publishes a three-page book and returns the document
// plus its published front cover and one content page.
func deliveryFixture(t *testing.T) (*testEnv, *yearbook.Document, *yearbook.Page, *yearbook.Page) {
	t.Helper()

	env := newTestEnv(t)
	doc := env.createDocument(t)
	pages := env.publishBook(t, doc, "front", "middle", "back")
	return env, doc, pages[0], pages[1]
}

func TestResolveDelivery_FrontCoverIsPublic(t *testing.T) {
	env, doc, cover, _ := deliveryFixture(t)
	ctx := context.Background()

	admin := yearbook.Actor{ID: uuid.New(), Role: yearbook.RolePlatformAdmin}
	buyer := yearbook.Actor{ID: uuid.New(), Role: yearbook.RolePurchasingViewer}
	env.oracle.GrantPurchase(buyer.ID, doc.SchoolID, doc.Year)

	// Every actor, anonymous readers included, gets the identical plain
	// public URL.
	for _, actor := range []yearbook.Actor{yearbook.Anonymous(), admin, buyer} {
		delivery, err := env.svc.ResolveDelivery(ctx, cover.ID, actor)
		require.NoError(t, err)
		assert.True(t, delivery.Public)
		assert.Equal(t, cover.RemoteURL, delivery.URL)
		assert.False(t, delivery.Watermarked)
		assert.Nil(t, delivery.ExpiresAt)
	}
}

func TestResolveDelivery_PlatformAdmin(t *testing.T) {
	env, _, _, content := deliveryFixture(t)
	ctx := context.Background()

	admin := yearbook.Actor{ID: uuid.New(), Role: yearbook.RolePlatformAdmin}
	delivery, err := env.svc.ResolveDelivery(ctx, content.ID, admin)
	require.NoError(t, err)
	assert.False(t, delivery.Public)
	assert.False(t, delivery.Watermarked)
	assert.NotNil(t, delivery.ExpiresAt)
	assert.Contains(t, delivery.URL, "signature=")
	assert.NotContains(t, delivery.URL, "wm=1")
}

func TestResolveDelivery_OwnerAdmin(t *testing.T) {
	env, doc, _, content := deliveryFixture(t)
	ctx := context.Background()

	owner := yearbook.Actor{ID: uuid.New(), Role: yearbook.RoleOwnerAdmin}
	stranger := yearbook.Actor{ID: uuid.New(), Role: yearbook.RoleOwnerAdmin}
	env.oracle.GrantOwnership(owner.ID, doc.ID)

	t.Run("owning admin gets a clean signed URL", func(t *testing.T) {
		delivery, err := env.svc.ResolveDelivery(ctx, content.ID, owner)
		require.NoError(t, err)
		assert.False(t, delivery.Watermarked)
		assert.Contains(t, delivery.URL, "signature=")
	})

	t.Run("non-owning admin is denied", func(t *testing.T) {
		_, err := env.svc.ResolveDelivery(ctx, content.ID, stranger)
		reason, denied := yearbook.DeniedReason(err)
		require.True(t, denied)
		assert.Equal(t, yearbook.DenialNotOwner, reason)
	})
}

func TestResolveDelivery_PurchasingViewer(t *testing.T) {
	env, doc, _, content := deliveryFixture(t)
	ctx := context.Background()

	buyer := yearbook.Actor{ID: uuid.New(), Role: yearbook.RolePurchasingViewer}
	browser := yearbook.Actor{ID: uuid.New(), Role: yearbook.RolePurchasingViewer}
	env.oracle.GrantPurchase(buyer.ID, doc.SchoolID, doc.Year)

	t.Run("purchaser gets a watermarked signed URL", func(t *testing.T) {
		delivery, err := env.svc.ResolveDelivery(ctx, content.ID, buyer)
		require.NoError(t, err)
		assert.True(t, delivery.Watermarked)
		assert.Contains(t, delivery.URL, "wm=1")
		assert.Contains(t, delivery.URL, "signature=")
	})

	t.Run("non-purchaser is denied", func(t *testing.T) {
		_, err := env.svc.ResolveDelivery(ctx, content.ID, browser)
		reason, denied := yearbook.DeniedReason(err)
		require.True(t, denied)
		assert.Equal(t, yearbook.DenialUnpurchased, reason)
	})
}

func TestResolveDelivery_Anonymous(t *testing.T) {
	env, _, _, content := deliveryFixture(t)

	_, err := env.svc.ResolveDelivery(context.Background(), content.ID, yearbook.Anonymous())
	reason, denied := yearbook.DeniedReason(err)
	require.True(t, denied)
	assert.Equal(t, yearbook.DenialUnauthenticated, reason)
}

// Drafts are invisible to purchasing viewers: an unpublished page reads
// exactly like a missing one.
func TestResolveDelivery_DraftInvisibleToViewers(t *testing.T) {
	env, doc, _, _ := deliveryFixture(t)
	ctx := context.Background()

	draft := env.ingestImage(t, doc.ID, yearbook.PageKindContent)

	buyer := yearbook.Actor{ID: uuid.New(), Role: yearbook.RolePurchasingViewer}
	env.oracle.GrantPurchase(buyer.ID, doc.SchoolID, doc.Year)

	_, draftErr := env.svc.ResolveDelivery(ctx, draft.ID, buyer)
	_, missingErr := env.svc.ResolveDelivery(ctx, uuid.New(), buyer)

	draftReason, denied := yearbook.DeniedReason(draftErr)
	require.True(t, denied)
	missingReason, denied := yearbook.DeniedReason(missingErr)
	require.True(t, denied)

	assert.Equal(t, yearbook.DenialNotFound, draftReason)
	assert.Equal(t, missingReason, draftReason)
	assert.Equal(t, missingErr.Error(), draftErr.Error())
}

// Platform admins review drafts before publication.
func TestResolveDelivery_AdminSeesDrafts(t *testing.T) {
	env, doc, _, _ := deliveryFixture(t)
	ctx := context.Background()

	draft := env.ingestImage(t, doc.ID, yearbook.PageKindContent)

	admin := yearbook.Actor{ID: uuid.New(), Role: yearbook.RolePlatformAdmin}
	delivery, err := env.svc.ResolveDelivery(ctx, draft.ID, admin)
	require.NoError(t, err)
	assert.Contains(t, delivery.URL, "signature=")
}

type flakyPageRepo struct {
	*repomemory.Repository
	err error
}

func (r *flakyPageRepo) GetPage(ctx context.Context, id uuid.UUID) (*yearbook.Page, error) {
	return nil, r.err
}

// An infrastructure failure during lookup surfaces as an internal error,
// never as a denial.
func TestResolveDelivery_RepositoryFailureIsNotDenial(t *testing.T) {
	repo := &flakyPageRepo{Repository: repomemory.New(), err: errors.New("connection reset")}
	svc, err := yearbook.New(
		yearbook.WithRepository(repo),
		yearbook.WithObjectStore(storememory.New()),
	)
	require.NoError(t, err)

	_, err = svc.ResolveDelivery(context.Background(), uuid.New(), yearbook.Anonymous())
	require.Error(t, err)
	_, denied := yearbook.DeniedReason(err)
	assert.False(t, denied)
	assert.ErrorContains(t, err, "connection reset")
}

// Each resolution mints a fresh URL; nothing durable is cached on the
// page row.
func TestResolveDelivery_MintsFreshURLs(t *testing.T) {
	env, _, _, content := deliveryFixture(t)
	ctx := context.Background()

	admin := yearbook.Actor{ID: uuid.New(), Role: yearbook.RolePlatformAdmin}

	first, err := env.svc.ResolveDelivery(ctx, content.ID, admin)
	require.NoError(t, err)
	second, err := env.svc.ResolveDelivery(ctx, content.ID, admin)
	require.NoError(t, err)

	assert.True(t, strings.Contains(first.URL, "expires="))
	assert.True(t, strings.Contains(second.URL, "expires="))

	stored, err := env.repo.GetPage(ctx, content.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.URL, stored.RemoteURL)
}
