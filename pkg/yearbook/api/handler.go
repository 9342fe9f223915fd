package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/classfolio/yearbook/pkg/yearbook"
)

// Handler handles HTTP requests for the yearbook page lifecycle
type Handler struct {
	service yearbook.Service
	logger  *slog.Logger

	// Largest accepted upload. Multi-page source documents dominate.
	maxUploadBytes int64
}

// NewHandler creates a new yearbook handler
func NewHandler(service yearbook.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:        service,
		logger:         logger,
		maxUploadBytes: 512 << 20,
	}
}

// Routes returns the routes for the yearbook API
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/documents", h.CreateDocument)
	r.Get("/documents/{documentID}", h.GetDocument)
	r.Get("/documents/{documentID}/pages", h.ListPages)
	r.Post("/documents/{documentID}/pages", h.IngestPage)

	r.Put("/documents/{documentID}/draft-covers", h.SetDraftCovers)
	r.Post("/documents/{documentID}/commit", h.CommitDrafts)
	r.Post("/documents/{documentID}/discard", h.DiscardDrafts)
	r.Post("/documents/{documentID}/touch-save", h.TouchSave)

	r.Delete("/pages/{pageID}", h.DeletePage)
	r.Delete("/batches/{batchID}", h.DeleteBatch)

	r.Get("/pages/{pageID}/delivery", h.ResolveDelivery)

	return r
}

// CreateDocumentRequest is the request body for creating a document
type CreateDocumentRequest struct {
	SchoolID   string `json:"school_id"`
	Year       int    `json:"year"`
	Free       bool   `json:"free"`
	PriceCents int64  `json:"price_cents"`
}

// DocumentResponse is the response body for a document
type DocumentResponse struct {
	ID                 string     `json:"id"`
	SchoolID           string     `json:"school_id"`
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

// PageResponse is the response body for a page. Object keys are internal
// coordinates and never appear here.
type PageResponse struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"document_id"`
	Kind       string     `json:"kind"`
	Sequence   int        `json:"sequence"`
	Title      string     `json:"title,omitempty"`
	Status     string     `json:"status"`
	BatchID    *uuid.UUID `json:"batch_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// DeliveryResponse is the response body for a resolved page delivery
type DeliveryResponse struct {
	URL         string     `json:"url"`
	Public      bool       `json:"public"`
	Watermarked bool       `json:"watermarked"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// CreateDocument creates a new document
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	schoolID, err := uuid.Parse(req.SchoolID)
	if err != nil {
		h.logger.Error("invalid school ID", "school_id", req.SchoolID, "error", err)
		http.Error(w, "invalid school ID", http.StatusBadRequest)
		return
	}

	doc, err := h.service.CreateDocument(r.Context(), yearbook.CreateDocumentRequest{
		SchoolID:   schoolID,
		Year:       req.Year,
		Free:       req.Free,
		PriceCents: req.PriceCents,
	})
	if err != nil {
		h.writeError(w, r, "create document", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, documentResponse(doc))
}

// GetDocument returns one document
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "documentID")
	if !ok {
		return
	}

	doc, err := h.service.GetDocument(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "get document", err)
		return
	}

	render.JSON(w, r, documentResponse(doc))
}

// ListPages returns every page of a document
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "documentID")
	if !ok {
		return
	}

	pages, err := h.service.ListPages(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "list pages", err)
		return
	}

	resp := make([]PageResponse, 0, len(pages))
	for _, page := range pages {
		resp = append(resp, pageResponse(page))
	}

	render.JSON(w, r, resp)
}

// IngestPage accepts one multipart upload: a single page image or a
// multi-page source document that fans out into one page per extracted
// page.
func (h *Handler) IngestPage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "documentID")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	kind := yearbook.PageKind(r.FormValue("kind"))
	if kind == "" {
		kind = yearbook.PageKindContent
	}

	pages, err := h.service.IngestPage(r.Context(), yearbook.IngestPageRequest{
		DocumentID: id,
		Artifact: yearbook.Artifact{
			Reader:      file,
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
		},
		Kind:  kind,
		Title: r.FormValue("title"),
	})
	if err != nil {
		h.writeError(w, r, "ingest page", err)
		return
	}

	resp := make([]PageResponse, 0, len(pages))
	for _, page := range pages {
		resp = append(resp, pageResponse(page))
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// SetDraftCoversRequest is the request body for staging draft cover art
type SetDraftCoversRequest struct {
	FrontURL string `json:"front_url"`
	BackURL  string `json:"back_url"`
}

// SetDraftCovers stages draft cover URLs on a document
func (h *Handler) SetDraftCovers(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "documentID")
	if !ok {
		return
	}

	var req SetDraftCoversRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := h.service.SetDraftCovers(r.Context(), yearbook.SetDraftCoversRequest{
		DocumentID: id,
		FrontURL:   req.FrontURL,
		BackURL:    req.BackURL,
	})
	if err != nil {
		h.writeError(w, r, "set draft covers", err)
		return
	}

	render.NoContent(w, r)
}

// CommitDrafts publishes every pending draft on a document
func (h *Handler) CommitDrafts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "documentID")
	if !ok {
		return
	}

	if err := h.service.CommitDrafts(r.Context(), id); err != nil {
		h.writeError(w, r, "commit drafts", err)
		return
	}

	render.NoContent(w, r)
}

// DiscardDrafts abandons every pending draft on a document
func (h *Handler) DiscardDrafts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "documentID")
	if !ok {
		return
	}

	if err := h.service.DiscardDrafts(r.Context(), id); err != nil {
		h.writeError(w, r, "discard drafts", err)
		return
	}

	render.NoContent(w, r)
}

// TouchSave stamps the document's save timestamp
func (h *Handler) TouchSave(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "documentID")
	if !ok {
		return
	}

	auto := r.URL.Query().Get("auto") == "true"
	if err := h.service.TouchSave(r.Context(), id, auto); err != nil {
		h.writeError(w, r, "touch save", err)
		return
	}

	render.NoContent(w, r)
}

// DeletePage deletes one page
func (h *Handler) DeletePage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "pageID")
	if !ok {
		return
	}

	if err := h.service.DeletePage(r.Context(), id); err != nil {
		h.writeError(w, r, "delete page", err)
		return
	}

	render.NoContent(w, r)
}

// DeleteBatch deletes every page of an ingestion batch plus its source
func (h *Handler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "batchID")
	if !ok {
		return
	}

	if err := h.service.DeleteBatch(r.Context(), id); err != nil {
		h.writeError(w, r, "delete batch", err)
		return
	}

	render.NoContent(w, r)
}

// ResolveDelivery resolves the requesting actor's access to one page
func (h *Handler) ResolveDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "pageID")
	if !ok {
		return
	}

	actor := ActorFromContext(r.Context())

	delivery, err := h.service.ResolveDelivery(r.Context(), id, actor)
	if err != nil {
		h.writeError(w, r, "resolve delivery", err)
		return
	}

	render.JSON(w, r, DeliveryResponse{
		URL:         delivery.URL,
		Public:      delivery.Public,
		Watermarked: delivery.Watermarked,
		ExpiresAt:   delivery.ExpiresAt,
	})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		http.Error(w, "invalid "+param, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps domain errors to HTTP statuses. Access denials map to
// the same 404 as a missing page so callers cannot probe for hidden
// content.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	if _, denied := yearbook.DeniedReason(err); denied {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	switch {
	case errors.Is(err, yearbook.ErrDocumentNotFound),
		errors.Is(err, yearbook.ErrPageNotFound),
		errors.Is(err, yearbook.ErrBatchNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, yearbook.ErrInvalidPageKind):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, yearbook.ErrInvariantViolation):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, yearbook.ErrSourceUnreadable):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, yearbook.ErrStoreUnavailable):
		http.Error(w, "object store unavailable", http.StatusServiceUnavailable)
	default:
		h.logger.Error("request failed", "operation", operation, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func documentResponse(doc *yearbook.Document) DocumentResponse {
	return DocumentResponse{
		ID:                 doc.ID.String(),
		SchoolID:           doc.SchoolID.String(),
		Year:               doc.Year,
		Free:               doc.Free,
		PriceCents:         doc.PriceCents,
		FrontCoverURL:      doc.FrontCoverURL,
		BackCoverURL:       doc.BackCoverURL,
		DraftFrontCoverURL: doc.DraftFrontCoverURL,
		DraftBackCoverURL:  doc.DraftBackCoverURL,
		HasDrafts:          doc.HasDrafts,
		SavedAt:            doc.SavedAt,
		AutoSavedAt:        doc.AutoSavedAt,
		CreatedAt:          doc.CreatedAt,
		UpdatedAt:          doc.UpdatedAt,
	}
}

func pageResponse(page *yearbook.Page) PageResponse {
	return PageResponse{
		ID:         page.ID.String(),
		DocumentID: page.DocumentID.String(),
		Kind:       string(page.Kind),
		Sequence:   page.Sequence,
		Title:      page.Title,
		Status:     string(page.Status),
		BatchID:    page.BatchID,
		CreatedAt:  page.CreatedAt,
		UpdatedAt:  page.UpdatedAt,
	}
}
