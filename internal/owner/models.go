// Package owner estimates who operates a phone number. Public evidence is
// always used; privileged adapters that can return personal data run only
// behind an explicit consent gate, and every such invocation is audited.
package owner

import (
	"context"
	"errors"
	"time"

	"phoneintel/pkg/domain"
)

// OwnershipType is the classified owner category.
type OwnershipType string

const (
	OwnershipBusiness   OwnershipType = "business"
	OwnershipIndividual OwnershipType = "individual"
	OwnershipVoIP       OwnershipType = "voip"
	OwnershipUnknown    OwnershipType = "unknown"
)

// ErrConsentRequired is returned by PII-capable adapters called without a
// legal basis that records explicit consent.
var ErrConsentRequired = errors.New("explicit consent is required")

// Association links the number to a public source.
type Association struct {
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	Snippet   string    `json:"snippet"`
	Label     string    `json:"label"`
	Timestamp time.Time `json:"timestamp"`
}

// PII is confirmed identity returned by a PII-capable adapter.
type PII struct {
	Name          string        `json:"name"`
	Source        string        `json:"source"`
	OwnerCategory OwnershipType `json:"owner_category"`
}

// AdapterResult is what an owner adapter returns on success.
type AdapterResult struct {
	Associations []Association
	PII          *PII
}

//go:generate mockgen -source=models.go -destination=mocks/mocks.go -package=mocks Adapter

// Adapter is an owner-intelligence source.
type Adapter interface {
	Name() string

	// PIICapable adapters may return personal data and are consent-gated.
	PIICapable() bool

	// LookupOwner must return ErrConsentRequired (possibly wrapped) when a
	// PII-capable adapter is called without basis.Permits().
	LookupOwner(ctx context.Context, e164 string, basis *domain.LegalBasis, limit int, caller string) (AdapterResult, error)
}

// Result is the owner-intelligence report section.
type Result struct {
	OwnershipType       OwnershipType      `json:"ownership_type"`
	Associations        []Association      `json:"associations"`
	Signals             Signals            `json:"signals"`
	ConfidenceScore     int                `json:"confidence_score"`
	ConfidenceBreakdown []ConfidenceSignal `json:"confidence_breakdown"`
	PIIAllowed          bool               `json:"pii_allowed"`
	PII                 *PII               `json:"pii"`
}
