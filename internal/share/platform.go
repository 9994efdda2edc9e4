package share

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
)

// HTTPOpener probes a URL with a HEAD request before declaring it openable.
// It stands in for the platform URL-opening facility on the server side.
type HTTPOpener struct {
	client *resty.Client
}

func NewHTTPOpener(client *resty.Client) *HTTPOpener {
	if client == nil {
		client = resty.New()
	}
	return &HTTPOpener{client: client}
}

var _ Opener = (*HTTPOpener)(nil)

func (p *HTTPOpener) Open(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("unsupported url %q", raw)
	}
	resp, err := p.client.R().SetContext(ctx).Head(raw)
	if err != nil {
		return err
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("url responded with status %d", resp.StatusCode())
	}
	return nil
}

// NoSheet is the absent share surface: probing reports unavailable and the
// orchestrator falls back to a plain title+URL share. ShareText succeeds
// trivially; the caller relays the title and URL itself.
type NoSheet struct{}

var _ Sheet = NoSheet{}

func (NoSheet) Available(context.Context) bool { return false }

func (NoSheet) ShareFile(_ context.Context, path, mimeType, title string) error {
	return fmt.Errorf("no share sheet on this platform")
}

func (NoSheet) ShareText(context.Context, string, string) error { return nil }
