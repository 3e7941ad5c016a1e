// Package customsearch queries an authenticated custom search JSON API
// (Google Programmable Search). It refuses to build without credentials so a
// misconfigured deployment fails loudly instead of quietly losing evidence.
package customsearch

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"phoneintel/internal/evidence"
	"phoneintel/internal/transport/httpclient"
)

const (
	// Name identifies the adapter.
	Name = "google"

	// DefaultBaseURL is the Custom Search JSON API endpoint.
	DefaultBaseURL = "https://www.googleapis.com/customsearch/v1"

	maxPerRequest = 10
)

type searchItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

// Credentials authenticate against the search API.
type Credentials struct {
	APIKey string
	CX     string
}

// Adapter is an evidence.Searcher over the custom search API.
type Adapter struct {
	client  *httpclient.Client
	creds   Credentials
	baseURL string
}

// Option configures the adapter.
type Option func(*Adapter)

// WithBaseURL points the adapter at another endpoint (tests, proxies).
func WithBaseURL(u string) Option {
	return func(a *Adapter) {
		a.baseURL = u
	}
}

// New validates credentials before any network I/O and returns a
// *evidence.ConfigError when either is missing.
func New(client *httpclient.Client, creds Credentials, opts ...Option) (*Adapter, error) {
	creds.APIKey = strings.TrimSpace(creds.APIKey)
	creds.CX = strings.TrimSpace(creds.CX)
	if creds.APIKey == "" || creds.CX == "" {
		return nil, evidence.NewConfigError(Name,
			"custom search requires an API key and a search engine id (GCS_API_KEY, GCS_CX)")
	}
	a := &Adapter{client: client, creds: creds, baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Name implements evidence.Adapter.
func (a *Adapter) Name() string {
	return Name
}

// Check searches for the number itself.
func (a *Adapter) Check(ctx context.Context, e164 string, limit int) ([]evidence.Evidence, error) {
	return a.Search(ctx, e164, limit)
}

// Search returns up to limit items. The API serves at most 10 per request.
func (a *Adapter) Search(ctx context.Context, query string, limit int) ([]evidence.Evidence, error) {
	params := url.Values{
		"key": {a.creds.APIKey},
		"cx":  {a.creds.CX},
		"q":   {query},
		"num": {strconv.Itoa(clampNum(limit))},
	}
	resp, err := a.client.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: a.baseURL, Params: params})
	if err != nil {
		return nil, evidence.Wrap(Name, "custom search request", err)
	}

	var body searchResponse
	if err := resp.JSON(&body); err != nil {
		return nil, evidence.NewAdapterError(evidence.ErrorBadData, Name, "decode search response", err)
	}

	out := []evidence.Evidence{}
	for _, item := range body.Items {
		if len(out) >= limit {
			break
		}
		out = append(out, evidence.New(evidence.TruncateTitle(item.Title), item.Link, item.Snippet, Name))
	}
	return out, nil
}

func clampNum(limit int) int {
	return max(1, min(limit, maxPerRequest))
}
