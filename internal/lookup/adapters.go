package lookup

import (
	"fmt"
	"log/slog"
	"sync"

	"phoneintel/internal/evidence"
	"phoneintel/internal/evidence/providers/customsearch"
	"phoneintel/internal/evidence/providers/duckduckgo"
	"phoneintel/internal/evidence/providers/scamdb"
	"phoneintel/internal/transport/httpclient"
)

// AdapterConfig carries what the built-in adapters need. Base URLs are for
// tests and proxies; empty means the public endpoint.
type AdapterConfig struct {
	ScamListPath      string
	GoogleAPIKey      string
	GoogleCX          string
	GoogleBaseURL     string
	DuckDuckGoBaseURL string
}

// NewRegistry registers the built-in reputation adapters with their aliases.
// Each adapter is built at most once and shared; adapters hold immutable
// configuration only.
func NewRegistry(client *httpclient.Client, cfg AdapterConfig, logger *slog.Logger) (*evidence.Registry, error) {
	r := evidence.NewRegistry()

	ddg := once(func() (evidence.Adapter, error) {
		var opts []duckduckgo.Option
		if cfg.DuckDuckGoBaseURL != "" {
			opts = append(opts, duckduckgo.WithBaseURL(cfg.DuckDuckGoBaseURL))
		}
		return duckduckgo.New(client, opts...), nil
	})
	google := once(func() (evidence.Adapter, error) {
		var opts []customsearch.Option
		if cfg.GoogleBaseURL != "" {
			opts = append(opts, customsearch.WithBaseURL(cfg.GoogleBaseURL))
		}
		a, err := customsearch.New(client, customsearch.Credentials{APIKey: cfg.GoogleAPIKey, CX: cfg.GoogleCX}, opts...)
		if err != nil {
			return nil, err
		}
		return a, nil
	})
	public := once(func() (evidence.Adapter, error) {
		a, err := scamdb.New(scamdb.WithPath(cfg.ScamListPath), scamdb.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return a, nil
	})

	regs := []struct {
		name    string
		factory evidence.Factory
		aliases []string
	}{
		{duckduckgo.Name, ddg, []string{"ddg"}},
		{customsearch.Name, google, []string{"gcs"}},
		{scamdb.Name, public, []string{"public", "scam_db", "scamdb"}},
	}
	for _, reg := range regs {
		if err := r.Register(reg.name, reg.factory, reg.aliases...); err != nil {
			return nil, fmt.Errorf("register %s: %w", reg.name, err)
		}
	}
	return r, nil
}

// once memoizes a factory, including its error, so a failing constructor is
// not retried per request.
func once(build func() (evidence.Adapter, error)) evidence.Factory {
	var (
		o   sync.Once
		a   evidence.Adapter
		err error
	)
	return func() (evidence.Adapter, error) {
		o.Do(func() { a, err = build() })
		return a, err
	}
}
