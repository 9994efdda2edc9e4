// Package catalog holds the pure document-catalog rules: access-level
// clamping, tag normalization, category narrowing and title/tag search.
// Everything here is deterministic and side-effect free so the same rules can
// back both the indexed query path and the client-side fallback path.
package catalog

import (
	"strconv"
	"strings"

	"vendocs/internal/model"
)

// Level bounds for the access tier. Every raw level is clamped into this
// range before any comparison.
const (
	MinLevel = 0
	MaxLevel = 3
)

// ClampLevel clamps an access level into [MinLevel, MaxLevel].
func ClampLevel(level int) int {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// CoerceLevel interprets a raw level value of unknown shape. Non-numeric,
// absent and negative values all collapse to MinLevel.
func CoerceLevel(raw any) int {
	switch v := raw.(type) {
	case int:
		return ClampLevel(v)
	case int64:
		return ClampLevel(int(v))
	case float64:
		return ClampLevel(int(v))
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return MinLevel
		}
		return ClampLevel(n)
	case nil:
		return MinLevel
	default:
		return MinLevel
	}
}

// Visible reports whether a document is admissible for the given level.
// This is the single predicate shared by the indexed query path and the
// server-only fallback path, so the two can never disagree on active or
// min-level handling.
func Visible(d model.Document, level int) bool {
	return d.Active && ClampLevel(d.MinLevel) <= ClampLevel(level)
}

// NormalizeTags trims tags, drops empties and guarantees the "#" prefix used
// for display and search.
func NormalizeTags(raw model.Tags) []string {
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, "#") {
			t = "#" + t
		}
		out = append(out, t)
	}
	return out
}

// categoryField is one candidate metadata field carrying the category bucket.
type categoryField struct {
	name string
	get  func(model.Document) string
}

// categoryFields is the probe order for the category bucket. Old records use
// "group" or "type" instead of "category"; the first field populated anywhere
// in the set wins for the whole set.
var categoryFields = []categoryField{
	{"group", func(d model.Document) string { return d.Group }},
	{"category", func(d model.Document) string { return d.Category }},
	{"type", func(d model.Document) string { return d.Type }},
}

// probeCategoryField returns the accessor for the first candidate field that
// is populated on at least one record, or nil when the dataset carries no
// usable category signal.
func probeCategoryField(docs []model.Document) func(model.Document) string {
	for _, f := range categoryFields {
		for _, d := range docs {
			if strings.TrimSpace(f.get(d)) != "" {
				return f.get
			}
		}
	}
	return nil
}

// Narrow reduces the entitled set to one category bucket and applies the
// token search. Category matching is case-insensitive; when no record matches
// the requested bucket the unfiltered set is returned, on the assumption that
// the metadata is incomplete rather than the bucket empty. An empty search
// string is a no-op.
func Narrow(docs []model.Document, category, search string) []model.Document {
	rows := docs
	if category != "" {
		if get := probeCategoryField(rows); get != nil {
			want := strings.ToLower(category)
			filtered := make([]model.Document, 0, len(rows))
			for _, d := range rows {
				if strings.ToLower(strings.TrimSpace(get(d))) == want {
					filtered = append(filtered, d)
				}
			}
			if len(filtered) > 0 {
				rows = filtered
			}
		}
	}
	return searchDocs(rows, search)
}

// searchDocs keeps records matching every whitespace token, either in the
// lowercased title or in a normalized "#"-prefixed tag.
func searchDocs(docs []model.Document, search string) []model.Document {
	q := strings.ToLower(strings.TrimSpace(search))
	if q == "" {
		return docs
	}
	tokens := strings.Fields(q)

	out := make([]model.Document, 0, len(docs))
	for _, d := range docs {
		title := strings.ToLower(d.Title)
		tags := NormalizeTags(d.Tags)
		for i, t := range tags {
			tags[i] = strings.ToLower(t)
		}
		if matchesAll(title, tags, tokens) {
			out = append(out, d)
		}
	}
	return out
}

func matchesAll(title string, tags []string, tokens []string) bool {
	for _, tok := range tokens {
		tagTok := tok
		if !strings.HasPrefix(tagTok, "#") {
			tagTok = "#" + tagTok
		}
		if strings.Contains(title, tok) {
			continue
		}
		found := false
		for _, tag := range tags {
			if strings.Contains(tag, tagTok) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
