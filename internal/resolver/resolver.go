// Package resolver turns a raw document record into a single openable URL.
// A record may carry an already-signed download URL, a gs:// object
// reference, a storage HTTP URL with or without an access token, a generic
// external link, or only a bare object path; resolution picks the first
// usable hint and performs a signing round-trip when needed.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"vendocs/internal/model"
	"vendocs/internal/storage"
)

const (
	// storageHTTPPrefix is the object-storage HTTP endpoint pattern. URLs
	// under it without an access token cannot be opened directly and must be
	// re-signed from their object path.
	storageHTTPPrefix = "https://firebasestorage.googleapis.com/v0/b/"

	// gsScheme marks a bucket+path reference requiring a signing step.
	gsScheme = "gs://"

	// pathMarker separates the bucket segment from the URL-encoded object
	// path inside a storage HTTP URL.
	pathMarker = "/o/"
)

// PlaceholderThumbnail is served when a record has no directly-usable
// thumbnail. Thumbnails are non-critical: no signing round-trip is attempted
// for them.
const PlaceholderThumbnail = "/static/pdf-thumb.png"

// ErrNoLink means the record is linkless or its hints are malformed beyond
// recovery. Terminal: callers surface "no link available" and must not retry.
var ErrNoLink = errors.New("no link available")

// SignError wraps a failed signing round-trip. Unlike ErrNoLink this is
// transient: the record has a valid object path and a retry may succeed.
type SignError struct {
	Path string
	Err  error
}

func (e *SignError) Error() string {
	return fmt.Sprintf("sign %q: %v", e.Path, e.Err)
}

func (e *SignError) Unwrap() error { return e.Err }

// LinkHint is one candidate URL field on a document record.
type LinkHint struct {
	Name string
	Get  func(model.Document) string
}

// LinkHints is the resolution priority order: first populated field wins.
// DownloadURL is first because it is already signed.
var LinkHints = []LinkHint{
	{"downloadUrl", func(d model.Document) string { return d.DownloadURL }},
	{"storageUrl", func(d model.Document) string { return d.StorageURL }},
	{"url", func(d model.Document) string { return d.URL }},
	{"href", func(d model.Document) string { return d.Href }},
	{"link", func(d model.Document) string { return d.Link }},
}

// rawHint returns the first populated link hint, or "".
func rawHint(d model.Document) string {
	for _, h := range LinkHints {
		if v := strings.TrimSpace(h.Get(d)); v != "" {
			return v
		}
	}
	return ""
}

// Resolver resolves document records against an object-storage signer.
type Resolver struct {
	signer storage.Signer
	expiry time.Duration
}

func New(signer storage.Signer, expiry time.Duration) *Resolver {
	return &Resolver{signer: signer, expiry: expiry}
}

// Resolve produces the final openable URL for a record.
//
// Order: first populated hint field; gs:// references and storage HTTP URLs
// without a token are converted to an object path and signed; anything else
// passes through unchanged. A record with no hint falls back to its
// storagePath field. Returns ErrNoLink for linkless/malformed records and a
// *SignError when the signing round-trip itself fails.
func (r *Resolver) Resolve(ctx context.Context, d model.Document) (string, error) {
	raw := rawHint(d)

	if raw == "" {
		if p := strings.TrimSpace(d.StoragePath); p != "" {
			return r.sign(ctx, p)
		}
		return "", ErrNoLink
	}

	if strings.HasPrefix(raw, gsScheme) {
		path, ok := gsToPath(raw)
		if !ok {
			return "", fmt.Errorf("%w: malformed %s reference", ErrNoLink, gsScheme)
		}
		return r.sign(ctx, path)
	}

	if !isStorageHTTP(raw) || hasToken(raw) {
		// Signed storage URL or external link (Drive etc.): use as-is.
		return raw, nil
	}

	// Storage HTTP URL without an access token: re-sign from its path.
	path, ok := pathFromStorageURL(raw)
	if !ok {
		return "", fmt.Errorf("%w: storage URL without object path", ErrNoLink)
	}
	return r.sign(ctx, path)
}

// Thumbnail returns a best-effort preview URL. Scheme-marker values get the
// local placeholder instead of a signing round-trip; thumbnails never fail.
func (r *Resolver) Thumbnail(d model.Document) string {
	t := strings.TrimSpace(d.ThumbnailURL)
	if t == "" || strings.HasPrefix(t, gsScheme) {
		return PlaceholderThumbnail
	}
	return t
}

func (r *Resolver) sign(ctx context.Context, path string) (string, error) {
	u, err := r.signer.PresignGet(ctx, path, r.expiry)
	if err != nil {
		return "", &SignError{Path: path, Err: err}
	}
	return u, nil
}

// isStorageHTTP reports whether the URL belongs to the object-storage HTTP
// endpoint pattern (.../v0/b/<bucket>/o/<encoded-path>...).
func isStorageHTTP(u string) bool {
	return strings.HasPrefix(u, storageHTTPPrefix)
}

// hasToken reports whether a storage HTTP URL already carries an access
// token query parameter.
func hasToken(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	return parsed.Query().Get("token") != ""
}

// pathFromStorageURL extracts the URL-decoded object path from a storage
// HTTP URL by locating the "/o/" marker and decoding up to the query string.
func pathFromStorageURL(u string) (string, bool) {
	idx := strings.Index(u, pathMarker)
	if idx < 0 {
		return "", false
	}
	enc := u[idx+len(pathMarker):]
	if q := strings.IndexByte(enc, '?'); q >= 0 {
		enc = enc[:q]
	}
	path, err := url.QueryUnescape(enc)
	if err != nil || path == "" {
		return "", false
	}
	return path, true
}

// gsToPath strips the scheme marker and bucket segment from a gs:// value,
// leaving the bare object path.
func gsToPath(gs string) (string, bool) {
	rest := strings.TrimPrefix(gs, gsScheme)
	slash := strings.IndexByte(rest, '/')
	if slash < 0 || slash == len(rest)-1 {
		return "", false
	}
	return rest[slash+1:], true
}
