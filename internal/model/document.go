package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Category buckets used by the catalog screens. Matching is case-insensitive.
const (
	CategoryFichas   = "Fichas"
	CategoryPrecios  = "Precios"
	CategoryMaterial = "Material"
)

// Document represents one distributable asset (price list, product sheet,
// marketing material). Records are created and mutated out-of-band by admin
// tooling, so every optional field must be treated as possibly absent or in a
// legacy shape. The client reads; it never creates or deletes documents.
type Document struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Category string `json:"category,omitempty"`
	// Group and Type are legacy aliases for Category still present on old
	// records; the catalog probes them in a fixed order.
	Group string `json:"group,omitempty"`
	Type  string `json:"type,omitempty"`

	// MinLevel is the access-tier floor. Clamped to [0,3] at every comparison.
	MinLevel int  `json:"minLevel"`
	Active   bool `json:"active"`

	// Link hint fields. At most a few are populated per record; resolution
	// tries them in a fixed priority order (see resolver.LinkHints).
	DownloadURL string `json:"downloadUrl,omitempty"` // already signed
	StorageURL  string `json:"storageUrl,omitempty"`  // https or gs://
	URL         string `json:"url,omitempty"`
	Href        string `json:"href,omitempty"`
	Link        string `json:"link,omitempty"`
	StoragePath string `json:"storagePath,omitempty"` // e.g. "documents/fichas/bm500.pdf"

	ThumbnailURL string `json:"thumbnailUrl,omitempty"` // https or gs://

	Tags Tags `json:"tags,omitempty"`

	Size        int64     `json:"size,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// Tags carries document tags, which arrive either as an array of strings or
// as a single comma/semicolon/space delimited string. Both JSON shapes decode
// into the normalized slice form.
type Tags []string

func (t *Tags) UnmarshalJSON(b []byte) error {
	var arr []string
	if err := json.Unmarshal(b, &arr); err == nil {
		*t = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Unexpected shape (number, object): coerce to empty, never fail.
		*t = nil
		return nil
	}
	*t = SplitTags(s)
	return nil
}

// SplitTags breaks a delimited tag string on commas, semicolons and
// whitespace, dropping empty entries.
func SplitTags(s string) []string {
	repl := strings.NewReplacer(",", " ", ";", " ")
	fields := strings.Fields(repl.Replace(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ParseUpdatedAt coerces the heterogeneous updatedAt forms seen in the wild:
// unix seconds or millis (numeric string), or an ISO-8601 string. Returns the
// zero time when the value cannot be interpreted.
func ParseUpdatedAt(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		// Heuristic: values past year 33658 in seconds are millis.
		if n > 1e12 {
			return time.UnixMilli(n).UTC()
		}
		return time.Unix(n, 0).UTC()
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC()
	}
	return time.Time{}
}

// UserProfile represents a signed-in identity's entitlement. Level is the
// single admission-control signal: a user sees exactly the documents whose
// MinLevel does not exceed it.
type UserProfile struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email,omitempty"`
	Active    bool      `json:"active"`
	Level     int       `json:"level"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}
