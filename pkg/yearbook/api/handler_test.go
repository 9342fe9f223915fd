package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classfolio/yearbook/pkg/yearbook"
	"github.com/classfolio/yearbook/pkg/yearbook/api"
	repomemory "github.com/classfolio/yearbook/pkg/yearbook/repo/memory"
	storememory "github.com/classfolio/yearbook/pkg/yearbook/store/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, yearbook.Service) {
	t.Helper()

	svc, err := yearbook.New(
		yearbook.WithRepository(repomemory.New()),
		yearbook.WithObjectStore(storememory.New()),
	)
	require.NoError(t, err)

	server := httptest.NewServer(api.NewHandler(svc, nil).Routes())
	t.Cleanup(server.Close)
	return server, svc
}

func createDocument(t *testing.T, server *httptest.Server) api.DocumentResponse {
	t.Helper()

	body := fmt.Sprintf(`{"school_id": %q, "year": 2026, "price_cents": 4500}`, uuid.NewString())
	resp, err := http.Post(server.URL+"/documents", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var doc api.DocumentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	return doc
}

func multipartUpload(t *testing.T, filename, content, kind string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("kind", kind))
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func TestCreateDocument(t *testing.T) {
	server, _ := newTestServer(t)

	doc := createDocument(t, server)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, 2026, doc.Year)
	assert.False(t, doc.HasDrafts)
}

func TestCreateDocument_BadSchoolID(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/documents", "application/json",
		strings.NewReader(`{"school_id": "nope", "year": 2026}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetDocument_NotFound(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/documents/" + uuid.NewString())
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIngestPage_Image(t *testing.T) {
	server, _ := newTestServer(t)
	doc := createDocument(t, server)

	buf, contentType := multipartUpload(t, "page.png", "image-bytes", "content")
	resp, err := http.Post(server.URL+"/documents/"+doc.ID+"/pages", contentType, buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var pages []api.PageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pages))
	require.Len(t, pages, 1)
	assert.Equal(t, "content", pages[0].Kind)
	assert.Equal(t, "draft", pages[0].Status)
	assert.Equal(t, 1, pages[0].Sequence)
}

func TestIngestPage_MissingFile(t *testing.T) {
	server, _ := newTestServer(t)
	doc := createDocument(t, server)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("kind", "content"))
	require.NoError(t, w.Close())

	resp, err := http.Post(server.URL+"/documents/"+doc.ID+"/pages", w.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListPages(t *testing.T) {
	server, svc := newTestServer(t)
	doc := createDocument(t, server)
	docID := uuid.MustParse(doc.ID)

	_, err := svc.IngestPage(context.Background(), yearbook.IngestPageRequest{
		DocumentID: docID,
		Artifact: yearbook.Artifact{
			Reader:      strings.NewReader("front\fback"),
			Filename:    "book.pdf",
			ContentType: "application/pdf",
		},
		Kind: yearbook.PageKindContent,
	})
	require.NoError(t, err)

	resp, err := http.Get(server.URL + "/documents/" + doc.ID + "/pages")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pages []api.PageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pages))
	assert.Len(t, pages, 2)
}

func TestCommitWithoutFrontCover_Conflict(t *testing.T) {
	server, _ := newTestServer(t)
	doc := createDocument(t, server)

	buf, contentType := multipartUpload(t, "page.png", "image-bytes", "content")
	resp, err := http.Post(server.URL+"/documents/"+doc.ID+"/pages", contentType, buf)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Post(server.URL+"/documents/"+doc.ID+"/commit", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// Without a token the actor is anonymous; a protected page reads as 404,
// same as a page that does not exist.
func TestResolveDelivery_AnonymousGets404(t *testing.T) {
	server, svc := newTestServer(t)
	doc := createDocument(t, server)
	docID := uuid.MustParse(doc.ID)

	pages, err := svc.IngestPage(context.Background(), yearbook.IngestPageRequest{
		DocumentID: docID,
		Artifact: yearbook.Artifact{
			Reader:      strings.NewReader("front\fmiddle\fback"),
			Filename:    "book.pdf",
			ContentType: "application/pdf",
		},
		Kind: yearbook.PageKindContent,
	})
	require.NoError(t, err)
	require.NoError(t, svc.CommitDrafts(context.Background(), docID))

	content := pages[1]
	resp, err := http.Get(server.URL + "/pages/" + content.ID.String() + "/delivery")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	missing, err := http.Get(server.URL + "/pages/" + uuid.NewString() + "/delivery")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestResolveDelivery_FrontCoverPublic(t *testing.T) {
	server, svc := newTestServer(t)
	doc := createDocument(t, server)
	docID := uuid.MustParse(doc.ID)

	pages, err := svc.IngestPage(context.Background(), yearbook.IngestPageRequest{
		DocumentID: docID,
		Artifact: yearbook.Artifact{
			Reader:      strings.NewReader("front\fback"),
			Filename:    "book.pdf",
			ContentType: "application/pdf",
		},
		Kind: yearbook.PageKindContent,
	})
	require.NoError(t, err)

	resp, err := http.Get(server.URL + "/pages/" + pages[0].ID.String() + "/delivery")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var delivery api.DeliveryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&delivery))
	assert.True(t, delivery.Public)
	assert.NotEmpty(t, delivery.URL)
}

func TestDeletePage(t *testing.T) {
	server, svc := newTestServer(t)
	doc := createDocument(t, server)
	docID := uuid.MustParse(doc.ID)

	pages, err := svc.IngestPage(context.Background(), yearbook.IngestPageRequest{
		DocumentID: docID,
		Artifact: yearbook.Artifact{
			Reader:      strings.NewReader("image-bytes"),
			Filename:    "page.png",
			ContentType: "image/png",
		},
		Kind: yearbook.PageKindContent,
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/pages/"+pages[0].ID.String(), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	listed, err := svc.ListPages(context.Background(), docID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}
