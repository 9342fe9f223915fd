package yearbook_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classfolio/yearbook/pkg/yearbook"
)

func (e *testEnv) ingestPDF(t *testing.T, doc *yearbook.Document, kind yearbook.PageKind, pages ...string) []*yearbook.Page {
	t.Helper()

	created, err := e.svc.IngestPage(context.Background(), yearbook.IngestPageRequest{
		DocumentID: doc.ID,
		Artifact:   pdfArtifact("book.pdf", pages...),
		Kind:       kind,
	})
	require.NoError(t, err)
	return created
}

// A full extraction classifies page 0 as the front cover, the last page
// as the back cover, and everything in between as content.
func TestIngestDocumentAssignsCovers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := env.createDocument(t)

	created := env.ingestPDF(t, doc, yearbook.PageKindContent, "p0", "p1", "p2", "p3")
	require.Len(t, created, 4)

	assert.Equal(t, yearbook.PageKindFrontCover, created[0].Kind)
	assert.Equal(t, 0, created[0].Sequence)
	assert.Equal(t, yearbook.PageKindContent, created[1].Kind)
	assert.Equal(t, 1, created[1].Sequence)
	assert.Equal(t, yearbook.PageKindContent, created[2].Kind)
	assert.Equal(t, 2, created[2].Sequence)
	assert.Equal(t, yearbook.PageKindBackCover, created[3].Kind)
	assert.Equal(t, 0, created[3].Sequence)

	for _, p := range created {
		assert.Equal(t, yearbook.PageStatusDraft, p.Status)
		require.NotNil(t, p.BatchID)
		assert.Equal(t, *created[0].BatchID, *p.BatchID)
	}

	updated, err := env.svc.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, updated.HasDrafts)
	assert.Equal(t, created[0].RemoteURL, updated.DraftFrontCoverURL)
	assert.Equal(t, created[3].RemoteURL, updated.DraftBackCoverURL)
}

func TestIngestDocument_SinglePage(t *testing.T) {
	env := newTestEnv(t)
	doc := env.createDocument(t)

	created := env.ingestPDF(t, doc, yearbook.PageKindContent, "only")
	require.Len(t, created, 1)
	assert.Equal(t, yearbook.PageKindFrontCover, created[0].Kind)
}

func TestIngestDocument_TwoPages(t *testing.T) {
	env := newTestEnv(t)
	doc := env.createDocument(t)

	created := env.ingestPDF(t, doc, yearbook.PageKindContent, "front", "back")
	require.Len(t, created, 2)
	assert.Equal(t, yearbook.PageKindFrontCover, created[0].Kind)
	assert.Equal(t, yearbook.PageKindBackCover, created[1].Kind)
}

// Uploading a multi-page source as a cover keeps exactly one extracted
// page and discards the rest immediately; the raw source stays for the
// batch collector.
func TestIngestDocument_AsCoverKeepsOnePage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := env.createDocument(t)

	created := env.ingestPDF(t, doc, yearbook.PageKindFrontCover, "p0", "p1", "p2")
	require.Len(t, created, 1)
	assert.Equal(t, yearbook.PageKindFrontCover, created[0].Kind)
	assert.Equal(t, yearbook.PageStatusDraft, created[0].Status)
	require.NotNil(t, created[0].BatchID)

	pages, err := env.svc.ListPages(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, pages, 1)

	// Kept page object plus the raw source, nothing else.
	assert.Equal(t, 2, env.store.Len())
}

// A mid-extraction failure leaves nothing behind: no page rows, no batch
// row, no remote objects.
func TestIngestDocument_PartialFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := env.createDocument(t)

	env.store.FailPageUpload(1)

	_, err := env.svc.IngestPage(ctx, yearbook.IngestPageRequest{
		DocumentID: doc.ID,
		Artifact:   pdfArtifact("book.pdf", "p0", "p1", "p2"),
		Kind:       yearbook.PageKindContent,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, yearbook.ErrStoreUnavailable)

	pages, listErr := env.svc.ListPages(ctx, doc.ID)
	require.NoError(t, listErr)
	assert.Empty(t, pages)
	assert.Equal(t, 0, env.store.Len())

	updated, getErr := env.svc.GetDocument(ctx, doc.ID)
	require.NoError(t, getErr)
	assert.False(t, updated.HasDrafts)
}

func TestIngestDocument_EmptySource(t *testing.T) {
	env := newTestEnv(t)
	doc := env.createDocument(t)

	_, err := env.svc.IngestPage(context.Background(), yearbook.IngestPageRequest{
		DocumentID: doc.ID,
		Artifact:   pdfArtifact("empty.pdf"),
		Kind:       yearbook.PageKindContent,
	})
	assert.ErrorIs(t, err, yearbook.ErrSourceUnreadable)
}
