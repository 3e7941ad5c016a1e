// Package duckduckgo queries the DuckDuckGo Instant Answer API. It is not a
// full web search, but it needs no credentials and returns structured JSON.
package duckduckgo

import (
	"context"
	"net/http"
	"net/url"

	"phoneintel/internal/evidence"
	"phoneintel/internal/transport/httpclient"
)

const (
	// Name identifies the adapter.
	Name = "duckduckgo"

	// DefaultBaseURL is the public Instant Answer endpoint.
	DefaultBaseURL = "https://api.duckduckgo.com/"
)

type topic struct {
	FirstURL string `json:"FirstURL"`
	Text     string `json:"Text"`
}

// relatedTopic is either a plain topic or a named group of topics.
type relatedTopic struct {
	topic
	Topics []topic `json:"Topics"`
}

type instantAnswer struct {
	AbstractURL   string         `json:"AbstractURL"`
	AbstractText  string         `json:"AbstractText"`
	Results       []topic        `json:"Results"`
	RelatedTopics []relatedTopic `json:"RelatedTopics"`
}

// Adapter is an evidence.Searcher over the Instant Answer API.
type Adapter struct {
	client  *httpclient.Client
	baseURL string
}

// Option configures the adapter.
type Option func(*Adapter)

// WithBaseURL points the adapter at another endpoint (tests, mirrors).
func WithBaseURL(u string) Option {
	return func(a *Adapter) {
		a.baseURL = u
	}
}

// New creates the adapter. The client carries retry and pacing policy.
func New(client *httpclient.Client, opts ...Option) *Adapter {
	a := &Adapter{client: client, baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name implements evidence.Adapter.
func (a *Adapter) Name() string {
	return Name
}

// Check searches for the number itself.
func (a *Adapter) Check(ctx context.Context, e164 string, limit int) ([]evidence.Evidence, error) {
	return a.Search(ctx, e164, limit)
}

// Search collects the abstract, then direct results, then related topics
// (flattening groups) until limit items are gathered.
func (a *Adapter) Search(ctx context.Context, query string, limit int) ([]evidence.Evidence, error) {
	params := url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"skip_disambig": {"1"},
	}
	resp, err := a.client.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: a.baseURL, Params: params})
	if err != nil {
		return nil, evidence.Wrap(Name, "instant answer request", err)
	}

	var answer instantAnswer
	if err := resp.JSON(&answer); err != nil {
		return nil, evidence.NewAdapterError(evidence.ErrorBadData, Name, "decode instant answer", err)
	}

	out := []evidence.Evidence{}
	if limit <= 0 {
		return out, nil
	}
	add := func(u, text string) bool {
		if u == "" || text == "" {
			return len(out) >= limit
		}
		out = append(out, evidence.New(evidence.TruncateTitle(text), u, text, Name))
		return len(out) >= limit
	}

	if add(answer.AbstractURL, answer.AbstractText) {
		return out, nil
	}
	for _, r := range answer.Results {
		if add(r.FirstURL, r.Text) {
			return out, nil
		}
	}
	for _, rt := range answer.RelatedTopics {
		if len(rt.Topics) > 0 {
			for _, sub := range rt.Topics {
				if add(sub.FirstURL, sub.Text) {
					return out, nil
				}
			}
			continue
		}
		if add(rt.FirstURL, rt.Text) {
			return out, nil
		}
	}
	return out, nil
}
