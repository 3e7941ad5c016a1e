// Package scamdb is an evidence adapter backed by a JSON dataset of reported
// scam numbers. A small sample dataset is embedded for demos and tests; real
// investigations point it at a dataset the operator is entitled to use.
package scamdb

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"phoneintel/internal/evidence"
)

const (
	// Name identifies the adapter.
	Name = "public_scam_db"

	// SourceTag is stamped on every evidence item the dataset produces.
	SourceTag = "public_scam_db"

	// URLScheme prefixes pseudo-URLs for entries without a reference link.
	URLScheme = "scamdb://"
)

//go:embed data/scam_list.json
var sampleDataset []byte

// Entry is one record of the dataset.
type Entry struct {
	E164         string
	Label        string
	Source       string
	ReferenceURL string
	LastSeen     *time.Time
	Notes        string
}

type rawEntry struct {
	E164         string `json:"e164"`
	Label        string `json:"label"`
	Source       string `json:"source"`
	ReferenceURL string `json:"reference_url"`
	LastSeen     string `json:"last_seen"`
	Notes        string `json:"notes"`
}

func (r rawEntry) toEntry() Entry {
	e := Entry{
		E164:         strings.TrimSpace(r.E164),
		Label:        r.Label,
		Source:       r.Source,
		ReferenceURL: r.ReferenceURL,
		Notes:        r.Notes,
	}
	if e.Source == "" {
		e.Source = "unknown"
	}
	if e.ReferenceURL == "" {
		e.ReferenceURL = URLScheme + e.Source
	}
	if r.LastSeen != "" {
		if d, err := time.Parse(time.DateOnly, r.LastSeen); err == nil {
			e.LastSeen = &d
		}
	}
	return e
}

// Parse decodes a dataset. The document must be a JSON array; elements that
// are not objects of the expected shape are skipped.
func Parse(data []byte) ([]Entry, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("scam dataset must contain a JSON array: %w", err)
	}
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		var raw rawEntry
		if err := json.Unmarshal(item, &raw); err != nil {
			continue
		}
		entries = append(entries, raw.toEntry())
	}
	return entries, nil
}

// Load reads the dataset at path. An empty path, a missing or unreadable
// file, or a blank file all fall back to the embedded sample dataset.
func Load(path string, logger *slog.Logger) ([]Entry, error) {
	data := sampleDataset
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil && len(strings.TrimSpace(string(raw))) > 0:
			data = raw
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			logger.Warn("scam dataset unreadable, using sample dataset", "path", path, "error", err)
		default:
			logger.Debug("scam dataset missing or empty, using sample dataset", "path", path)
		}
	}
	return Parse(data)
}

// Adapter matches numbers against an in-memory dataset loaded once.
type Adapter struct {
	entries []Entry
}

// Option configures the adapter.
type Option func(*options)

type options struct {
	path    string
	logger  *slog.Logger
	entries []Entry
}

// WithPath loads the dataset from a file instead of the embedded sample.
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithEntries uses a pre-parsed dataset.
func WithEntries(entries []Entry) Option {
	return func(o *options) {
		o.entries = entries
	}
}

// WithLogger sets the logger used while loading.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New loads the dataset. A malformed dataset is a configuration error.
func New(opts ...Option) (*Adapter, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.entries != nil {
		return &Adapter{entries: o.entries}, nil
	}
	entries, err := Load(o.path, o.logger)
	if err != nil {
		return nil, evidence.NewConfigError(Name, err.Error())
	}
	return &Adapter{entries: entries}, nil
}

// Name implements evidence.Adapter.
func (a *Adapter) Name() string {
	return Name
}

// Len returns the number of loaded entries.
func (a *Adapter) Len() int {
	return len(a.entries)
}

// Check returns up to limit dataset entries whose E.164 matches exactly.
func (a *Adapter) Check(ctx context.Context, e164 string, limit int) ([]evidence.Evidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	out := []evidence.Evidence{}
	for _, e := range a.entries {
		if len(out) >= limit {
			break
		}
		if e.E164 != e164 {
			continue
		}
		out = append(out, evidence.Evidence{
			Title:     e.Label,
			URL:       e.ReferenceURL,
			Snippet:   snippet(e),
			Timestamp: now,
			Source:    SourceTag,
		})
	}
	return out, nil
}

func snippet(e Entry) string {
	var parts []string
	if e.LastSeen != nil {
		parts = append(parts, "last_seen="+e.LastSeen.Format(time.DateOnly))
	}
	if e.Notes != "" {
		parts = append(parts, e.Notes)
	}
	return strings.Join(parts, " | ")
}
