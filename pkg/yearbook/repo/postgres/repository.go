package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classfolio/yearbook/pkg/yearbook"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements yearbook.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "document") {
				return fmt.Errorf("document already exists")
			}
			if strings.Contains(pgErr.ConstraintName, "page") {
				return fmt.Errorf("page already exists")
			}
			return fmt.Errorf("duplicate entry")
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Document operations

func (r *Repository) CreateDocument(ctx context.Context, doc *yearbook.Document) error {
	query := `
		INSERT INTO documents (
			id, school_id, year, free, price_cents,
			front_cover_url, back_cover_url, draft_front_cover_url, draft_back_cover_url,
			has_drafts, saved_at, auto_saved_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.Exec(ctx, query,
		doc.ID, doc.SchoolID, doc.Year, doc.Free, doc.PriceCents,
		doc.FrontCoverURL, doc.BackCoverURL, doc.DraftFrontCoverURL, doc.DraftBackCoverURL,
		doc.HasDrafts, doc.SavedAt, doc.AutoSavedAt, doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		return r.handlePostgresError("create document", err)
	}

	return nil
}

func (r *Repository) GetDocument(ctx context.Context, id uuid.UUID) (*yearbook.Document, error) {
	query := `
		SELECT id, school_id, year, free, price_cents,
		       front_cover_url, back_cover_url, draft_front_cover_url, draft_back_cover_url,
		       has_drafts, saved_at, auto_saved_at, created_at, updated_at
		FROM documents WHERE id = $1`

	var doc yearbook.Document
	err := r.db.QueryRow(ctx, query, id).Scan(
		&doc.ID, &doc.SchoolID, &doc.Year, &doc.Free, &doc.PriceCents,
		&doc.FrontCoverURL, &doc.BackCoverURL, &doc.DraftFrontCoverURL, &doc.DraftBackCoverURL,
		&doc.HasDrafts, &doc.SavedAt, &doc.AutoSavedAt, &doc.CreatedAt, &doc.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, yearbook.ErrDocumentNotFound
		}
		return nil, r.handlePostgresError("get document", err)
	}

	return &doc, nil
}

func (r *Repository) UpdateDocument(ctx context.Context, doc *yearbook.Document) error {
	query := `
		UPDATE documents SET
			school_id = $2, year = $3, free = $4, price_cents = $5,
			front_cover_url = $6, back_cover_url = $7,
			draft_front_cover_url = $8, draft_back_cover_url = $9,
			has_drafts = $10, saved_at = $11, auto_saved_at = $12, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		doc.ID, doc.SchoolID, doc.Year, doc.Free, doc.PriceCents,
		doc.FrontCoverURL, doc.BackCoverURL,
		doc.DraftFrontCoverURL, doc.DraftBackCoverURL,
		doc.HasDrafts, doc.SavedAt, doc.AutoSavedAt)

	if err != nil {
		return r.handlePostgresError("update document", err)
	}
	if tag.RowsAffected() == 0 {
		return yearbook.ErrDocumentNotFound
	}

	return nil
}

// Page operations

func (r *Repository) CreatePage(ctx context.Context, page *yearbook.Page) error {
	query := `
		INSERT INTO pages (
			id, document_id, kind, sequence, title,
			remote_url, object_key, status, batch_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		page.ID, page.DocumentID, page.Kind, page.Sequence, page.Title,
		page.RemoteURL, page.ObjectKey, page.Status, page.BatchID,
		page.CreatedAt, page.UpdatedAt)

	if err != nil {
		return r.handlePostgresError("create page", err)
	}

	return nil
}

func (r *Repository) GetPage(ctx context.Context, id uuid.UUID) (*yearbook.Page, error) {
	query := pageSelect + ` WHERE id = $1`

	page, err := r.scanPage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, yearbook.ErrPageNotFound
		}
		return nil, r.handlePostgresError("get page", err)
	}

	return page, nil
}

func (r *Repository) UpdatePage(ctx context.Context, page *yearbook.Page) error {
	query := `
		UPDATE pages SET
			kind = $2, sequence = $3, title = $4, remote_url = $5,
			object_key = $6, status = $7, batch_id = $8, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		page.ID, page.Kind, page.Sequence, page.Title, page.RemoteURL,
		page.ObjectKey, page.Status, page.BatchID)

	if err != nil {
		return r.handlePostgresError("update page", err)
	}
	if tag.RowsAffected() == 0 {
		return yearbook.ErrPageNotFound
	}

	return nil
}

func (r *Repository) DeletePage(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM pages WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete page", err)
	}
	if tag.RowsAffected() == 0 {
		return yearbook.ErrPageNotFound
	}

	return nil
}

func (r *Repository) ListPages(ctx context.Context, documentID uuid.UUID) ([]*yearbook.Page, error) {
	query := pageSelect + ` WHERE document_id = $1 ` + pageOrder
	return r.queryPages(ctx, "list pages", query, documentID)
}

func (r *Repository) ListPublishedPages(ctx context.Context, documentID uuid.UUID) ([]*yearbook.Page, error) {
	return r.ListPagesByStatus(ctx, documentID, yearbook.PageStatusPublished)
}

func (r *Repository) ListPagesByStatus(ctx context.Context, documentID uuid.UUID, status yearbook.PageStatus) ([]*yearbook.Page, error) {
	query := pageSelect + ` WHERE document_id = $1 AND status = $2 ` + pageOrder
	return r.queryPages(ctx, "list pages by status", query, documentID, status)
}

func (r *Repository) ListPagesByBatch(ctx context.Context, batchID uuid.UUID) ([]*yearbook.Page, error) {
	query := pageSelect + ` WHERE batch_id = $1 ` + pageOrder
	return r.queryPages(ctx, "list pages by batch", query, batchID)
}

func (r *Repository) FindPublishedCover(ctx context.Context, documentID uuid.UUID, kind yearbook.PageKind) (*yearbook.Page, error) {
	query := pageSelect + ` WHERE document_id = $1 AND kind = $2 AND status = $3 LIMIT 1`

	page, err := r.scanPage(r.db.QueryRow(ctx, query, documentID, kind, yearbook.PageStatusPublished))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, yearbook.ErrPageNotFound
		}
		return nil, r.handlePostgresError("find published cover", err)
	}

	return page, nil
}

func (r *Repository) MaxContentSequence(ctx context.Context, documentID uuid.UUID) (int, error) {
	query := `
		SELECT COALESCE(MAX(sequence), 0)
		FROM pages WHERE document_id = $1 AND kind = $2`

	var max int
	err := r.db.QueryRow(ctx, query, documentID, yearbook.PageKindContent).Scan(&max)
	if err != nil {
		return 0, r.handlePostgresError("max content sequence", err)
	}

	return max, nil
}

// PromotePages flips every page of the document from one status to
// another in a single conditional update, so re-running it is a no-op.
func (r *Repository) PromotePages(ctx context.Context, documentID uuid.UUID, from, to yearbook.PageStatus) (int64, error) {
	query := `
		UPDATE pages SET status = $3, updated_at = NOW()
		WHERE document_id = $1 AND status = $2`

	tag, err := r.db.Exec(ctx, query, documentID, from, to)
	if err != nil {
		return 0, r.handlePostgresError("promote pages", err)
	}

	return tag.RowsAffected(), nil
}

// Batch operations

func (r *Repository) CreateBatch(ctx context.Context, batch *yearbook.Batch) error {
	query := `
		INSERT INTO batches (id, document_id, source_object_key, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(ctx, query,
		batch.ID, batch.DocumentID, batch.SourceObjectKey, batch.CreatedAt)

	if err != nil {
		return r.handlePostgresError("create batch", err)
	}

	return nil
}

func (r *Repository) GetBatch(ctx context.Context, id uuid.UUID) (*yearbook.Batch, error) {
	query := `
		SELECT id, document_id, source_object_key, created_at
		FROM batches WHERE id = $1`

	var batch yearbook.Batch
	err := r.db.QueryRow(ctx, query, id).Scan(
		&batch.ID, &batch.DocumentID, &batch.SourceObjectKey, &batch.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, yearbook.ErrBatchNotFound
		}
		return nil, r.handlePostgresError("get batch", err)
	}

	return &batch, nil
}

func (r *Repository) DeleteBatch(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM batches WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete batch", err)
	}
	if tag.RowsAffected() == 0 {
		return yearbook.ErrBatchNotFound
	}

	return nil
}

func (r *Repository) CountPagesInBatch(ctx context.Context, batchID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM pages WHERE batch_id = $1`, batchID).Scan(&count)
	if err != nil {
		return 0, r.handlePostgresError("count pages in batch", err)
	}

	return count, nil
}

// Query helpers

const pageSelect = `
	SELECT id, document_id, kind, sequence, title,
	       remote_url, object_key, status, batch_id, created_at, updated_at
	FROM pages`

// Covers sort around the content pages: front cover first, back cover last.
const pageOrder = `
	ORDER BY CASE kind
		WHEN 'front_cover' THEN 0
		WHEN 'back_cover' THEN 2
		ELSE 1
	END, sequence, created_at`

func (r *Repository) queryPages(ctx context.Context, operation, query string, args ...interface{}) ([]*yearbook.Page, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError(operation, err)
	}
	defer rows.Close()

	var pages []*yearbook.Page
	for rows.Next() {
		page, err := r.scanPage(rows)
		if err != nil {
			return nil, r.handlePostgresError(operation, err)
		}
		pages = append(pages, page)
	}

	return pages, rows.Err()
}

func (r *Repository) scanPage(row pgx.Row) (*yearbook.Page, error) {
	var page yearbook.Page
	err := row.Scan(
		&page.ID, &page.DocumentID, &page.Kind, &page.Sequence, &page.Title,
		&page.RemoteURL, &page.ObjectKey, &page.Status, &page.BatchID,
		&page.CreatedAt, &page.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &page, nil
}
