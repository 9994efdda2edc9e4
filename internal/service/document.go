package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"vendocs/internal/catalog"
	"vendocs/internal/model"
	"vendocs/internal/repository"
	"vendocs/internal/resolver"
	"vendocs/internal/share"
	"vendocs/internal/storage"
)

var (
	ErrIDRequired = errors.New("id is required")
	ErrNotFound   = errors.New("document not found")
	ErrReaderNil  = errors.New("reader is nil")
)

// ListQuery narrows the entitled set for one catalog screen.
type ListQuery struct {
	// UID selects the profile whose level gates the set; when empty,
	// RawLevel is coerced and clamped instead (unauthenticated default 0).
	UID      string
	RawLevel any
	Category string
	Search   string
	Limit    int
}

// UploadMeta carries the admin-supplied metadata for a new document.
type UploadMeta struct {
	Title    string
	Category string
	MinLevel int
	Tags     model.Tags
}

// PendingMarker records an outstanding local write so cached snapshot
// replays for affected levels remain admissible.
type PendingMarker interface {
	MarkPendingWrite(ctx context.Context, level int) error
}

// DocumentService defines the use cases for the document catalog.
type DocumentService interface {
	// List returns the entitled, narrowed, searched document set.
	List(ctx context.Context, q ListQuery) ([]model.Document, error)

	// ListFallback produces the same logical result set as List through the
	// server-only unindexed path (no live updates, staleness tolerated).
	ListFallback(ctx context.Context, q ListQuery) ([]model.Document, error)

	// ResolveLink returns the openable URL for a document, or
	// resolver.ErrNoLink when the record is linkless.
	ResolveLink(ctx context.Context, id string) (string, error)

	// Thumbnail returns the preview URL or the local placeholder.
	Thumbnail(ctx context.Context, id string) (string, error)

	// Open resolves a document and probes the platform opener; returns the
	// resolved URL on success.
	Open(ctx context.Context, id string) (string, error)

	// Share resolves a document, stages it and hands it to the share
	// surface (or the text fallback).
	Share(ctx context.Context, id string) (*share.Result, error)

	// Upload stores a new document (admin path): content to object storage,
	// metadata to the collection, storage rolled back if the insert fails.
	Upload(ctx context.Context, r io.Reader, originalFilename, contentType string, size int64, meta UploadMeta) (*model.Document, error)

	// EffectiveLevel resolves the clamped access level for an identity.
	EffectiveLevel(ctx context.Context, uid string, rawLevel any) int
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	docs     repository.DocumentRepository
	profiles repository.ProfileRepository
	links    *resolver.Resolver
	shares   *share.Orchestrator
	store    storage.Storage
	pending  PendingMarker
}

// NewDocumentService constructs a new DocumentService. pending may be nil
// when no snapshot cache is wired.
func NewDocumentService(
	docs repository.DocumentRepository,
	profiles repository.ProfileRepository,
	links *resolver.Resolver,
	shares *share.Orchestrator,
	store storage.Storage,
	pending PendingMarker,
) DocumentService {
	return &documentService{
		docs:     docs,
		profiles: profiles,
		links:    links,
		shares:   shares,
		store:    store,
		pending:  pending,
	}
}

const defaultListLimit = 100

// EffectiveLevel resolves the admission level: the profile's clamped level
// for a known identity, the coerced raw value otherwise. Missing profiles,
// lookup failures and malformed values all degrade to level 0.
func (s *documentService) EffectiveLevel(ctx context.Context, uid string, rawLevel any) int {
	if uid == "" {
		return catalog.CoerceLevel(rawLevel)
	}
	p, err := s.profiles.FindByUID(ctx, uid)
	if err != nil || !p.Active {
		return catalog.MinLevel
	}
	return catalog.ClampLevel(p.Level)
}

func (s *documentService) List(ctx context.Context, q ListQuery) ([]model.Document, error) {
	level := s.EffectiveLevel(ctx, q.UID, q.RawLevel)
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	docs, err := s.docs.ListEntitled(ctx, level, limit)
	if err != nil {
		return nil, err
	}
	return s.shape(docs, level, q), nil
}

func (s *documentService) ListFallback(ctx context.Context, q ListQuery) ([]model.Document, error) {
	level := s.EffectiveLevel(ctx, q.UID, q.RawLevel)
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	docs, err := s.docs.ListActive(ctx, limit)
	if err != nil {
		return nil, err
	}
	return s.shape(docs, level, q), nil
}

// shape applies the shared visibility predicate and the category/search
// narrowing. Running the predicate on the indexed path too keeps the two
// list paths logically identical.
func (s *documentService) shape(docs []model.Document, level int, q ListQuery) []model.Document {
	visible := make([]model.Document, 0, len(docs))
	for _, d := range docs {
		if !catalog.Visible(d, level) {
			continue
		}
		d.Tags = catalog.NormalizeTags(d.Tags)
		visible = append(visible, d)
	}
	return catalog.Narrow(visible, q.Category, q.Search)
}

func (s *documentService) ResolveLink(ctx context.Context, id string) (string, error) {
	doc, err := s.find(ctx, id)
	if err != nil {
		return "", err
	}
	return s.links.Resolve(ctx, *doc)
}

func (s *documentService) Thumbnail(ctx context.Context, id string) (string, error) {
	doc, err := s.find(ctx, id)
	if err != nil {
		return "", err
	}
	return s.links.Thumbnail(*doc), nil
}

func (s *documentService) Open(ctx context.Context, id string) (string, error) {
	url, err := s.ResolveLink(ctx, id)
	if err != nil {
		return "", err
	}
	if err := s.shares.Open(ctx, url); err != nil {
		return "", err
	}
	return url, nil
}

func (s *documentService) Share(ctx context.Context, id string) (*share.Result, error) {
	doc, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	url, err := s.links.Resolve(ctx, *doc)
	if err != nil {
		return nil, err
	}
	return s.shares.Share(ctx, doc.ID, doc.Title, url)
}

func (s *documentService) Upload(ctx context.Context, r io.Reader, originalFilename, contentType string, size int64, meta UploadMeta) (*model.Document, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	// Generate object key using UUID + original extension
	ext := filepath.Ext(originalFilename)
	genName := uuid.New().String() + ext
	key := filepath.ToSlash(filepath.Join("documents", genName))

	objInfo, err := s.store.Put(ctx, key, r, storage.PutObjectOptions{
		Size:        size,
		ContentType: contentType,
		Metadata: map[string]string{
			"original-filename": originalFilename,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	doc := &model.Document{
		ID:          uuid.New().String(),
		Title:       meta.Title,
		Category:    meta.Category,
		MinLevel:    catalog.ClampLevel(meta.MinLevel),
		Active:      true,
		StoragePath: objInfo.Key,
		Tags:        meta.Tags,
		Size:        objInfo.Size,
		ContentType: objInfo.ContentType,
		UpdatedAt:   time.Now().UTC(),
	}
	stored, err := s.docs.Create(ctx, doc)
	if err != nil {
		// Rollback: delete the object from storage
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	// The new record shows up for every level it is admitted at; mark those
	// cached snapshots as carrying a pending local write.
	if s.pending != nil {
		for lv := stored.MinLevel; lv <= catalog.MaxLevel; lv++ {
			_ = s.pending.MarkPendingWrite(ctx, lv)
		}
	}
	return stored, nil
}

func (s *documentService) find(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}
