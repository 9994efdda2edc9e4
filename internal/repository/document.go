package repository

import (
	"context"
	"errors"

	"vendocs/internal/model"
)

// ErrPermissionDenied marks a query rejected by the store's access rules.
// Handlers translate it into a distinct user-facing message.
var ErrPermissionDenied = errors.New("permission denied by store")

// DocumentRepository defines data access for documents using SQL queries only.
// No business logic here, strictly persistence operations.
type DocumentRepository interface {
	// Create inserts a new document record (admin upload path only; the
	// client itself is read-only over documents).
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// ListEntitled returns active documents with min_level <= level, ordered
	// by min_level ascending then title ascending. The inequality field must
	// be the primary sort key to satisfy the compound index.
	ListEntitled(ctx context.Context, level, limit int) ([]model.Document, error)

	// ListActive is the fallback path: active documents ordered by
	// updated_at descending, retried without ordering if the ordered query
	// fails. Level and category narrowing happen client-side on this path.
	ListActive(ctx context.Context, limit int) ([]model.Document, error)
}

// ProfileRepository reads user access profiles.
type ProfileRepository interface {
	// FindByUID returns the profile for an identity, or sql.ErrNoRows.
	FindByUID(ctx context.Context, uid string) (*model.UserProfile, error)
}
