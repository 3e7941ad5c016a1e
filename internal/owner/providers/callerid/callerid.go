// Package callerid is a PII-capable owner adapter for a caller-ID directory
// API. It returns the registered subscriber name and category, and refuses to
// run unless the caller presents a legal basis with explicit consent.
package callerid

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"phoneintel/internal/evidence"
	"phoneintel/internal/owner"
	"phoneintel/internal/signals"
	"phoneintel/internal/transport/httpclient"
	"phoneintel/pkg/domain"
)

const (
	// Name identifies the adapter in audit records.
	Name = "callerid"

	DefaultBaseURL = "https://api.callerid.invalid/v1/lookup"
)

type lookupResponse struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Profile  string `json:"profile_url"`
}

type Adapter struct {
	client  *httpclient.Client
	apiKey  string
	baseURL string
}

type Option func(*Adapter)

func WithBaseURL(u string) Option {
	return func(a *Adapter) { a.baseURL = u }
}

// New returns a *evidence.ConfigError when apiKey is empty.
func New(client *httpclient.Client, apiKey string, opts ...Option) (*Adapter, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, evidence.NewConfigError(Name, "caller-ID lookups require an API key (PHONEINT_CALLERID_API_KEY)")
	}
	a := &Adapter{client: client, apiKey: apiKey, baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) PIICapable() bool { return true }

// LookupOwner returns owner.ErrConsentRequired without network I/O unless
// basis records consent. A 404 from the directory is an empty result.
func (a *Adapter) LookupOwner(ctx context.Context, e164 string, basis *domain.LegalBasis, _ int, caller string) (owner.AdapterResult, error) {
	if !basis.Permits() {
		return owner.AdapterResult{}, fmt.Errorf("%s: %w", Name, owner.ErrConsentRequired)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+a.apiKey)
	header.Set("X-Lookup-Purpose", basis.Purpose)
	header.Set("X-Requested-By", caller)

	resp, err := a.client.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    a.baseURL,
		Params: url.Values{"phone": {e164}},
		Header: header,
	})
	if err != nil {
		if httpclient.StatusCode(err) == http.StatusNotFound {
			return owner.AdapterResult{}, nil
		}
		return owner.AdapterResult{}, evidence.Wrap(Name, "caller-ID lookup", err)
	}

	var body lookupResponse
	if err := resp.JSON(&body); err != nil {
		return owner.AdapterResult{}, evidence.NewAdapterError(evidence.ErrorBadData, Name, "decode lookup response", err)
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return owner.AdapterResult{}, nil
	}

	res := owner.AdapterResult{
		PII: &owner.PII{Name: name, Source: Name, OwnerCategory: category(body.Category)},
	}
	if body.Profile != "" {
		res.Associations = []owner.Association{{
			Source:    Name,
			URL:       body.Profile,
			Label:     signals.LabelIdentityConfirmed,
			Timestamp: time.Now().UTC(),
		}}
	}
	return res, nil
}

func category(raw string) owner.OwnershipType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "business", "company", "organization":
		return owner.OwnershipBusiness
	case "person", "individual", "personal":
		return owner.OwnershipIndividual
	case "voip":
		return owner.OwnershipVoIP
	default:
		return owner.OwnershipUnknown
	}
}
