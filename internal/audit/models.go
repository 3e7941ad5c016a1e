// Package audit is the append-only compliance trail for PII-capable owner
// lookups. Records are created once per invocation that carried a legal
// basis and are never mutated or deleted by this module.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"phoneintel/pkg/domain"
)

// Outcome is the recorded result of one PII-capable invocation.
type Outcome string

const (
	OutcomePIIReturned Outcome = "pii_returned"
	OutcomeNone        Outcome = "none"
	OutcomeError       Outcome = "error"
)

// IsValid reports whether o is one of the recorded outcomes.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomePIIReturned, OutcomeNone, OutcomeError:
		return true
	}
	return false
}

// Record is one compliance entry. LegalBasis is a snapshot taken at
// invocation time.
type Record struct {
	ID         uuid.UUID         `json:"id"`
	Adapter    string            `json:"adapter"`
	Time       time.Time         `json:"time"`
	LegalBasis domain.LegalBasis `json:"legal_basis"`
	Caller     string            `json:"caller"`
	Result     Outcome           `json:"result"`
	RequestID  string            `json:"request_id,omitempty"`
}

// NewRecord stamps a record with a fresh ID and UTC time.
func NewRecord(adapter string, basis domain.LegalBasis, caller string, result Outcome) Record {
	return Record{
		ID:         uuid.New(),
		Adapter:    adapter,
		Time:       time.Now().UTC(),
		LegalBasis: basis,
		Caller:     caller,
		Result:     result,
	}
}

// Sink accepts records. Implementations must be safe for concurrent use.
type Sink interface {
	Append(ctx context.Context, rec Record) error
}

// Store is a Sink that can also be queried for compliance review.
type Store interface {
	Sink
	ListByCaller(ctx context.Context, caller string) ([]Record, error)
	ListRecent(ctx context.Context, limit int) ([]Record, error)
}
