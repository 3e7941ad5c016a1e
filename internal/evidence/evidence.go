// Package evidence defines the adapter contract shared by every reputation
// source, the evidence record they produce and the error taxonomy callers use
// to tell misconfiguration apart from upstream failure.
package evidence

import (
	"context"
	"time"
)

// Evidence is one observation about a phone number from a single source.
// Values are created at fetch time and never mutated afterwards.
type Evidence struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Snippet   string    `json:"snippet"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// New stamps an Evidence with the current UTC time.
func New(title, url, snippet, source string) Evidence {
	return Evidence{
		Title:     title,
		URL:       url,
		Snippet:   snippet,
		Timestamp: time.Now().UTC(),
		Source:    source,
	}
}

//go:generate mockgen -source=evidence.go -destination=mocks/mocks.go -package=mocks Adapter

// Adapter is the universal interface every evidence source implements.
type Adapter interface {
	// Name identifies the adapter in error maps, cache keys and metrics.
	Name() string

	// Check gathers evidence for an E.164 number. An empty slice means no
	// results and is not an error.
	Check(ctx context.Context, e164 string, limit int) ([]Evidence, error)
}

// Searcher is implemented by adapters backed by a free-text search API.
// Their Check is Search with the E.164 string as the query.
type Searcher interface {
	Adapter
	Search(ctx context.Context, query string, limit int) ([]Evidence, error)
}

// TruncateTitle bounds display titles so reports stay stable across sources.
func TruncateTitle(s string) string {
	const maxTitle = 120
	r := []rune(s)
	if len(r) <= maxTitle {
		return s
	}
	return string(r[:maxTitle])
}
