package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"vendocs/internal/model"
	storeMocks "vendocs/internal/storage/mocks"
)

const signExpiry = time.Hour

func TestResolvePresignedWins(t *testing.T) {
	mStore := new(storeMocks.MockStorage)
	r := New(mStore, signExpiry)

	doc := model.Document{
		DownloadURL: "https://cdn.example.com/signed/a.pdf?sig=abc",
		StoragePath: "documents/a.pdf",
	}

	url, err := r.Resolve(context.Background(), doc)

	assert.NoError(t, err)
	assert.Equal(t, doc.DownloadURL, url)
	// The signing service must never be called when a signed URL exists.
	mStore.AssertNotCalled(t, "PresignGet", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveStorageHTTPWithoutToken(t *testing.T) {
	mStore := new(storeMocks.MockStorage)
	mStore.On("PresignGet", mock.Anything, "docs/a.pdf", signExpiry).
		Return("https://signed.example.com/docs/a.pdf", nil)

	r := New(mStore, signExpiry)
	doc := model.Document{
		StorageURL: "https://firebasestorage.googleapis.com/v0/b/X/o/docs%2Fa.pdf?alt=media",
	}

	url, err := r.Resolve(context.Background(), doc)

	assert.NoError(t, err)
	assert.Equal(t, "https://signed.example.com/docs/a.pdf", url)
	mStore.AssertExpectations(t)
}

func TestResolveStorageHTTPWithToken(t *testing.T) {
	mStore := new(storeMocks.MockStorage)
	r := New(mStore, signExpiry)

	raw := "https://firebasestorage.googleapis.com/v0/b/X/o/docs%2Fa.pdf?alt=media&token=tok123"
	url, err := r.Resolve(context.Background(), model.Document{StorageURL: raw})

	assert.NoError(t, err)
	assert.Equal(t, raw, url)
	mStore.AssertNotCalled(t, "PresignGet", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveGsScheme(t *testing.T) {
	mStore := new(storeMocks.MockStorage)
	mStore.On("PresignGet", mock.Anything, "docs/sub/file.pdf", signExpiry).
		Return("https://signed.example.com/docs/sub/file.pdf", nil)

	r := New(mStore, signExpiry)
	url, err := r.Resolve(context.Background(), model.Document{StorageURL: "gs://mybucket/docs/sub/file.pdf"})

	assert.NoError(t, err)
	assert.Equal(t, "https://signed.example.com/docs/sub/file.pdf", url)
	mStore.AssertExpectations(t)
}

func TestResolveGenericURLPassThrough(t *testing.T) {
	mStore := new(storeMocks.MockStorage)
	r := New(mStore, signExpiry)

	url, err := r.Resolve(context.Background(), model.Document{URL: "https://drive.google.com/file/d/abc"})

	assert.NoError(t, err)
	assert.Equal(t, "https://drive.google.com/file/d/abc", url)
}

func TestResolveHintPriorityOrder(t *testing.T) {
	mStore := new(storeMocks.MockStorage)
	r := New(mStore, signExpiry)

	doc := model.Document{
		URL:  "https://example.com/from-url",
		Href: "https://example.com/from-href",
		Link: "https://example.com/from-link",
	}
	url, err := r.Resolve(context.Background(), doc)
	assert.NoError(t, err)
	assert.Equal(t, "https://example.com/from-url", url)

	doc.URL = ""
	url, err = r.Resolve(context.Background(), doc)
	assert.NoError(t, err)
	assert.Equal(t, "https://example.com/from-href", url)
}

func TestResolveStoragePathFallback(t *testing.T) {
	mStore := new(storeMocks.MockStorage)
	mStore.On("PresignGet", mock.Anything, "documents/fichas/bm500.pdf", signExpiry).
		Return("https://signed.example.com/bm500.pdf", nil)

	r := New(mStore, signExpiry)
	url, err := r.Resolve(context.Background(), model.Document{StoragePath: "documents/fichas/bm500.pdf"})

	assert.NoError(t, err)
	assert.Equal(t, "https://signed.example.com/bm500.pdf", url)
}

func TestResolveLinkless(t *testing.T) {
	r := New(new(storeMocks.MockStorage), signExpiry)

	_, err := r.Resolve(context.Background(), model.Document{ID: "d1", Title: "no link"})

	assert.ErrorIs(t, err, ErrNoLink)
}

func TestResolveMalformedGs(t *testing.T) {
	r := New(new(storeMocks.MockStorage), signExpiry)

	_, err := r.Resolve(context.Background(), model.Document{StorageURL: "gs://bucketonly"})

	assert.ErrorIs(t, err, ErrNoLink)
}

func TestResolveSignFailureIsTransient(t *testing.T) {
	mStore := new(storeMocks.MockStorage)
	mStore.On("PresignGet", mock.Anything, "docs/a.pdf", signExpiry).
		Return("", errors.New("backend down"))

	r := New(mStore, signExpiry)
	_, err := r.Resolve(context.Background(), model.Document{StoragePath: "docs/a.pdf"})

	var signErr *SignError
	assert.ErrorAs(t, err, &signErr)
	assert.Equal(t, "docs/a.pdf", signErr.Path)
	assert.NotErrorIs(t, err, ErrNoLink)
}

func TestThumbnail(t *testing.T) {
	r := New(new(storeMocks.MockStorage), signExpiry)

	assert.Equal(t, "https://cdn.example.com/t.png",
		r.Thumbnail(model.Document{ThumbnailURL: "https://cdn.example.com/t.png"}))

	// Scheme-marker thumbnails get the placeholder, never a signing call.
	assert.Equal(t, PlaceholderThumbnail,
		r.Thumbnail(model.Document{ThumbnailURL: "gs://bucket/thumbs/t.png"}))

	assert.Equal(t, PlaceholderThumbnail, r.Thumbnail(model.Document{}))
}

func TestPathFromStorageURL(t *testing.T) {
	path, ok := pathFromStorageURL("https://firebasestorage.googleapis.com/v0/b/X/o/docs%2Fa.pdf?alt=media")
	assert.True(t, ok)
	assert.Equal(t, "docs/a.pdf", path)

	_, ok = pathFromStorageURL("https://firebasestorage.googleapis.com/v0/b/X/")
	assert.False(t, ok)
}

func TestGsToPath(t *testing.T) {
	path, ok := gsToPath("gs://mybucket/docs/sub/file.pdf")
	assert.True(t, ok)
	assert.Equal(t, "docs/sub/file.pdf", path)

	_, ok = gsToPath("gs://mybucket/")
	assert.False(t, ok)
}
