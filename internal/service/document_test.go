package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vendocs/internal/model"
	repomocks "vendocs/internal/repository/mocks"
	"vendocs/internal/resolver"
	"vendocs/internal/share"
	"vendocs/internal/storage"
	storagemocks "vendocs/internal/storage/mocks"
)

func newService(docs *repomocks.MockDocumentRepository, profiles *repomocks.MockProfileRepository, store *storagemocks.MockStorage, pending PendingMarker) DocumentService {
	links := resolver.New(store, time.Hour)
	shares := share.NewOrchestrator("/tmp", share.NewHTTPOpener(nil), share.NoSheet{}, time.Second)
	return NewDocumentService(docs, profiles, links, shares, store, pending)
}

func TestEffectiveLevel(t *testing.T) {
	profiles := new(repomocks.MockProfileRepository)
	profiles.On("FindByUID", mock.Anything, "u1").Return(&model.UserProfile{UID: "u1", Active: true, Level: 2}, nil)
	profiles.On("FindByUID", mock.Anything, "u-high").Return(&model.UserProfile{UID: "u-high", Active: true, Level: 9}, nil)
	profiles.On("FindByUID", mock.Anything, "u-inactive").Return(&model.UserProfile{UID: "u-inactive", Active: false, Level: 3}, nil)
	profiles.On("FindByUID", mock.Anything, "missing").Return(nil, sql.ErrNoRows)

	svc := newService(new(repomocks.MockDocumentRepository), profiles, new(storagemocks.MockStorage), nil)
	ctx := context.Background()

	assert.Equal(t, 2, svc.EffectiveLevel(ctx, "u1", nil))
	assert.Equal(t, 3, svc.EffectiveLevel(ctx, "u-high", nil), "out-of-range levels clamp")
	assert.Equal(t, 0, svc.EffectiveLevel(ctx, "u-inactive", nil), "inactive profile gets the floor")
	assert.Equal(t, 0, svc.EffectiveLevel(ctx, "missing", nil))

	// No identity: raw level is coerced then clamped.
	assert.Equal(t, 1, svc.EffectiveLevel(ctx, "", "1"))
	assert.Equal(t, 3, svc.EffectiveLevel(ctx, "", 7))
	assert.Equal(t, 0, svc.EffectiveLevel(ctx, "", nil))
}

func TestListAppliesVisibilityAndNarrowing(t *testing.T) {
	docs := new(repomocks.MockDocumentRepository)
	docs.On("ListEntitled", mock.Anything, 1, 100).Return([]model.Document{
		{ID: "a", Title: "Ficha BM500", Group: "fichas", MinLevel: 0, Active: true},
		{ID: "b", Title: "Lista precios", Group: "precios", MinLevel: 1, Active: true},
		{ID: "c", Title: "Interna", Group: "fichas", MinLevel: 0, Active: false},
	}, nil)

	svc := newService(docs, new(repomocks.MockProfileRepository), new(storagemocks.MockStorage), nil)

	got, err := svc.List(context.Background(), ListQuery{RawLevel: 1, Category: "fichas"})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID, "inactive rows never surface even if the store returns them")
}

func TestListFallbackMatchesIndexedSemantics(t *testing.T) {
	rows := []model.Document{
		{ID: "a", Title: "Ficha BM500", MinLevel: 0, Active: true},
		{ID: "b", Title: "Reservado", MinLevel: 3, Active: true},
		{ID: "c", Title: "Inactiva", MinLevel: 0, Active: false},
	}
	docs := new(repomocks.MockDocumentRepository)
	docs.On("ListActive", mock.Anything, 100).Return(rows, nil)

	svc := newService(docs, new(repomocks.MockProfileRepository), new(storagemocks.MockStorage), nil)

	got, err := svc.ListFallback(context.Background(), ListQuery{RawLevel: 1})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID, "fallback path filters by the same level gate")
}

func TestListCategoryFallsBackToFullSet(t *testing.T) {
	rows := []model.Document{
		{ID: "a", Title: "Ficha BM500", Group: "fichas", MinLevel: 0, Active: true},
		{ID: "b", Title: "Lista precios", Group: "precios", MinLevel: 0, Active: true},
	}
	docs := new(repomocks.MockDocumentRepository)
	docs.On("ListEntitled", mock.Anything, 0, 100).Return(rows, nil)

	svc := newService(docs, new(repomocks.MockProfileRepository), new(storagemocks.MockStorage), nil)

	got, err := svc.List(context.Background(), ListQuery{Category: "no-such-category"})

	require.NoError(t, err)
	assert.Len(t, got, 2, "a category with no members falls back to the full visible set")
}

func TestResolveLink(t *testing.T) {
	store := new(storagemocks.MockStorage)
	store.On("PresignGet", mock.Anything, "docs/a.pdf", mock.Anything).Return("https://signed.example.com/a.pdf", nil)

	docs := new(repomocks.MockDocumentRepository)
	docs.On("FindByID", mock.Anything, "a").Return(&model.Document{ID: "a", StorageURL: "gs://bucket/docs/a.pdf"}, nil)
	docs.On("FindByID", mock.Anything, "bare").Return(&model.Document{ID: "bare"}, nil)
	docs.On("FindByID", mock.Anything, "nope").Return(nil, sql.ErrNoRows)

	svc := newService(docs, new(repomocks.MockProfileRepository), store, nil)
	ctx := context.Background()

	url, err := svc.ResolveLink(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example.com/a.pdf", url)

	_, err = svc.ResolveLink(ctx, "bare")
	assert.ErrorIs(t, err, resolver.ErrNoLink)

	_, err = svc.ResolveLink(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.ResolveLink(ctx, "")
	assert.ErrorIs(t, err, ErrIDRequired)
}

func TestThumbnailPlaceholder(t *testing.T) {
	docs := new(repomocks.MockDocumentRepository)
	docs.On("FindByID", mock.Anything, "a").Return(&model.Document{ID: "a", ThumbnailURL: "gs://bucket/t.png"}, nil)

	svc := newService(docs, new(repomocks.MockProfileRepository), new(storagemocks.MockStorage), nil)

	url, err := svc.Thumbnail(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, resolver.PlaceholderThumbnail, url)
}

type recordingMarker struct {
	levels []int
}

func (r *recordingMarker) MarkPendingWrite(_ context.Context, level int) error {
	r.levels = append(r.levels, level)
	return nil
}

func TestUpload(t *testing.T) {
	store := new(storagemocks.MockStorage)
	store.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "documents/") && strings.HasSuffix(key, ".pdf")
	}), mock.Anything, mock.Anything).Return(storage.ObjectInfo{Key: "documents/x.pdf", Size: 9, ContentType: "application/pdf"}, nil)

	docs := new(repomocks.MockDocumentRepository)
	docs.On("Create", mock.Anything, mock.Anything).Return(func(_ context.Context, d *model.Document) *model.Document { return d }, nil)

	marker := &recordingMarker{}
	svc := newService(docs, new(repomocks.MockProfileRepository), store, marker)

	doc, err := svc.Upload(context.Background(), strings.NewReader("pdf-bytes"), "ficha.pdf", "application/pdf", 9, UploadMeta{
		Title:    "Ficha BM500",
		Category: "fichas",
		MinLevel: 2,
	})

	require.NoError(t, err)
	assert.Equal(t, "documents/x.pdf", doc.StoragePath)
	assert.True(t, doc.Active)
	assert.Equal(t, 2, doc.MinLevel)
	assert.Equal(t, []int{2, 3}, marker.levels, "cached snapshots for admitted levels are marked dirty")
}

func TestUploadRollsBackStorageOnDBError(t *testing.T) {
	store := new(storagemocks.MockStorage)
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{Key: "documents/x.pdf"}, nil)
	store.On("Delete", mock.Anything, mock.Anything).Return(nil)

	docs := new(repomocks.MockDocumentRepository)
	docs.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("insert failed"))

	svc := newService(docs, new(repomocks.MockProfileRepository), store, nil)

	_, err := svc.Upload(context.Background(), strings.NewReader("x"), "a.pdf", "application/pdf", 1, UploadMeta{Title: "A"})

	require.Error(t, err)
	store.AssertCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestUploadNilReader(t *testing.T) {
	svc := newService(new(repomocks.MockDocumentRepository), new(repomocks.MockProfileRepository), new(storagemocks.MockStorage), nil)

	_, err := svc.Upload(context.Background(), nil, "a.pdf", "application/pdf", 1, UploadMeta{})
	assert.ErrorIs(t, err, ErrReaderNil)
}
