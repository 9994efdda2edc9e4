// Package share stages resolved document URLs for viewing and sharing: a
// direct open through the platform URL opener, or a download into the local
// cache directory followed by a share-sheet handoff, with a plain title+URL
// share when no sheet is available.
package share

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrShareInProgress guards against duplicate concurrent shares of the same
// document; the first attempt must finish staging (or fail) before a retry.
var ErrShareInProgress = errors.New("share already in progress for this document")

// ErrCannotOpen means the platform reported the resolved URL as unopenable.
// Recoverable: the caller may offer another action.
var ErrCannotOpen = errors.New("cannot open url")

// StatusError is a staging download that came back non-200. The artifact is
// removed before this is returned; no partial file survives.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download failed (status %d)", e.StatusCode)
}

// Opener is the platform URL-opening facility.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// Sheet is the native share surface. It may be platform-absent: probe
// Available before ShareFile, and fall back to ShareText when it is not.
type Sheet interface {
	Available(ctx context.Context) bool
	ShareFile(ctx context.Context, path, mimeType, title string) error
	ShareText(ctx context.Context, title, url string) error
}

// Result describes how a share was performed.
type Result struct {
	Mode       string `json:"mode"` // "sheet" or "text"
	StagedPath string `json:"stagedPath,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	Title      string `json:"title"`
	URL        string `json:"url"`
}

// Orchestrator performs open/download/share against resolved URLs.
type Orchestrator struct {
	client   *resty.Client
	cacheDir string
	opener   Opener
	sheet    Sheet
	busy     sync.Map // document id -> struct{}
}

func NewOrchestrator(cacheDir string, opener Opener, sheet Sheet, timeout time.Duration) *Orchestrator {
	client := resty.New().
		SetTimeout(timeout).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetDoNotParseResponse(true)
	return &Orchestrator{client: client, cacheDir: cacheDir, opener: opener, sheet: sheet}
}

// Open delegates to the platform opener. Failures map to ErrCannotOpen and
// are reported, never propagated as a crash.
func (o *Orchestrator) Open(ctx context.Context, url string) error {
	if err := o.opener.Open(ctx, url); err != nil {
		return fmt.Errorf("%w: %v", ErrCannotOpen, err)
	}
	return nil
}

// Download stages a URL into the cache directory under a filename derived
// from the title. The body is written to a temp name and renamed on success,
// so a failed staging never leaves a partial file at the destination.
func (o *Orchestrator) Download(ctx context.Context, url, title string) (string, error) {
	dest := filepath.Join(o.cacheDir, FilenameFrom(title, url))
	tmp := dest + "." + uuid.NewString() + ".partial"

	resp, err := o.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", fmt.Errorf("stage download: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode()}
	}

	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("stage file: %w", err)
	}
	if _, err := f.ReadFrom(body); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("stage file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("stage file: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("stage file: %w", err)
	}
	return dest, nil
}

// Share stages the resolved URL and hands it to the share sheet, falling
// back to a plain title+URL share when no sheet is available. Concurrent
// shares of the same document are rejected with ErrShareInProgress.
func (o *Orchestrator) Share(ctx context.Context, docID, title, url string) (*Result, error) {
	if _, loaded := o.busy.LoadOrStore(docID, struct{}{}); loaded {
		return nil, ErrShareInProgress
	}
	defer o.busy.Delete(docID)

	if title == "" {
		title = "Documento"
	}

	staged, err := o.Download(ctx, url, title)
	if err != nil {
		return nil, err
	}

	if !o.sheet.Available(ctx) {
		// No native share surface: fall back to sharing the bare title+URL.
		if err := o.sheet.ShareText(ctx, title, url); err != nil {
			return nil, fmt.Errorf("share text: %w", err)
		}
		return &Result{Mode: "text", StagedPath: staged, Title: title, URL: url}, nil
	}

	mime := GuessMIME(url)
	if err := o.sheet.ShareFile(ctx, staged, mime, title); err != nil {
		return nil, fmt.Errorf("share file: %w", err)
	}
	return &Result{Mode: "sheet", StagedPath: staged, MimeType: mime, Title: title, URL: url}, nil
}

var (
	filenameAllowed = regexp.MustCompile(`[^\p{L}\p{N}\-_. ]+`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	extPattern      = regexp.MustCompile(`(?i)\.(pdf|png|jpg|jpeg|webp|docx?|xlsx?)$`)
)

// maxFilenameBase bounds the sanitized title before the extension.
const maxFilenameBase = 60

// FilenameFrom derives a safe staging filename from the document title and
// the URL's extension (default pdf).
func FilenameFrom(title, url string) string {
	if title == "" {
		title = "documento"
	}
	base := filenameAllowed.ReplaceAllString(title, "")
	base = whitespaceRun.ReplaceAllString(strings.TrimSpace(base), "_")
	if r := []rune(base); len(r) > maxFilenameBase {
		base = string(r[:maxFilenameBase])
	}
	if base == "" {
		base = "archivo"
	}

	ext := "pdf"
	if url != "" {
		noQuery := url
		if q := strings.IndexByte(noQuery, '?'); q >= 0 {
			noQuery = noQuery[:q]
		}
		if m := extPattern.FindStringSubmatch(noQuery); m != nil {
			ext = strings.ToLower(m[1])
		}
	}
	return base + "." + ext
}

var mimeByExt = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// GuessMIME maps a URL suffix to a MIME type, defaulting to a generic binary.
func GuessMIME(url string) string {
	u := strings.ToLower(url)
	if q := strings.IndexByte(u, '?'); q >= 0 {
		u = u[:q]
	}
	for ext, mime := range mimeByExt {
		if strings.HasSuffix(u, ext) {
			return mime
		}
	}
	return "application/octet-stream"
}
