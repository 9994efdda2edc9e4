package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"vendocs/internal/model"
	"vendocs/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of
// repository.DocumentRepository. It uses database/sql with parameterized
// queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const docColumns = `id, title, category, grp, doc_type, min_level, active,
		download_url, storage_url, url, href, link, storage_path, thumbnail_url,
		tags, size, content_type, updated_at`

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (id, title, category, grp, doc_type, min_level, active,
			download_url, storage_url, url, href, link, storage_path, thumbnail_url,
			tags, size, content_type, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING ` + docColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.Title,
		doc.Category,
		doc.Group,
		doc.Type,
		doc.MinLevel,
		doc.Active,
		doc.DownloadURL,
		doc.StorageURL,
		doc.URL,
		doc.Href,
		doc.Link,
		doc.StoragePath,
		doc.ThumbnailURL,
		strings.Join(doc.Tags, ","),
		doc.Size,
		doc.ContentType,
		doc.UpdatedAt,
	)
	out, err := scanDocument(row)
	if err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `SELECT ` + docColumns + ` FROM documents WHERE id = $1`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, mapPgError(err)
	}
	return d, nil
}

// ListEntitled returns active documents admitted by the level, ordered
// (min_level ASC, title ASC). The inequality column leads the ORDER BY so
// the compound index (active, min_level, title) serves the whole query.
func (r *DocumentPostgres) ListEntitled(ctx context.Context, level, limit int) ([]model.Document, error) {
	const q = `
		SELECT ` + docColumns + `
		FROM documents
		WHERE active = TRUE AND min_level <= $1
		ORDER BY min_level ASC, title ASC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, q, level, limit)
	if err != nil {
		return nil, mapPgError(err)
	}
	return collectDocuments(rows)
}

// ListActive is the server-only fallback: newest first, retried unordered
// when the ordered query fails (e.g. updated_at still unset on legacy rows
// breaking an index expectation).
func (r *DocumentPostgres) ListActive(ctx context.Context, limit int) ([]model.Document, error) {
	const ordered = `
		SELECT ` + docColumns + `
		FROM documents
		WHERE active = TRUE
		ORDER BY updated_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, ordered, limit)
	if err == nil {
		return collectDocuments(rows)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	const unordered = `SELECT ` + docColumns + ` FROM documents WHERE active = TRUE LIMIT $1`
	rows, err = r.db.QueryContext(ctx, unordered, limit)
	if err != nil {
		return nil, mapPgError(err)
	}
	return collectDocuments(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanDocument reads one row, trimming stray whitespace and coercing legacy
// shapes cheaply; the maintenance tools fix records at the source, but the
// client must not depend on them having run.
func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		d           model.Document
		title       sql.NullString
		category    sql.NullString
		group       sql.NullString
		docType     sql.NullString
		minLevel    sql.NullInt64
		downloadURL sql.NullString
		storageURL  sql.NullString
		rawURL      sql.NullString
		href        sql.NullString
		link        sql.NullString
		storagePath sql.NullString
		thumbnail   sql.NullString
		tags        sql.NullString
		size        sql.NullInt64
		contentType sql.NullString
		updatedAt   sql.NullTime
	)
	if err := row.Scan(
		&d.ID,
		&title,
		&category,
		&group,
		&docType,
		&minLevel,
		&d.Active,
		&downloadURL,
		&storageURL,
		&rawURL,
		&href,
		&link,
		&storagePath,
		&thumbnail,
		&tags,
		&size,
		&contentType,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	d.Title = strings.TrimSpace(title.String)
	d.Category = strings.TrimSpace(category.String)
	d.Group = strings.TrimSpace(group.String)
	d.Type = strings.TrimSpace(docType.String)
	d.MinLevel = int(minLevel.Int64)
	d.DownloadURL = strings.TrimSpace(downloadURL.String)
	d.StorageURL = strings.TrimSpace(storageURL.String)
	d.URL = strings.TrimSpace(rawURL.String)
	d.Href = strings.TrimSpace(href.String)
	d.Link = strings.TrimSpace(link.String)
	d.StoragePath = strings.TrimSpace(storagePath.String)
	d.ThumbnailURL = strings.TrimSpace(thumbnail.String)
	d.Tags = model.SplitTags(tags.String)
	d.Size = size.Int64
	d.ContentType = strings.TrimSpace(contentType.String)
	if updatedAt.Valid {
		d.UpdatedAt = updatedAt.Time
	}
	return &d, nil
}

func collectDocuments(rows *sql.Rows) ([]model.Document, error) {
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// mapPgError translates PostgreSQL access-rule rejections into the
// repository-level permission error; everything else passes through.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42501" {
		return repository.ErrPermissionDenied
	}
	return err
}
