package domain

import (
	"fmt"
	"strings"

	"phoneintel/pkg/platform/sentinel"
)

// LegalBasis is the caller's justification for a PII-capable lookup.
// Invariant: Purpose is non-empty once parsed.
//
// Usage: construct via ParseLegalBasis at trust boundaries; the value is
// passed per invocation and never cached.
type LegalBasis struct {
	Purpose         string `json:"purpose"`
	ConsentObtained bool   `json:"consent_obtained"`
}

const maxPurposeLen = 500

// ParseLegalBasis validates caller input.
//
// Errors: wraps sentinel.ErrInvalidInput when purpose is blank or too long.
func ParseLegalBasis(purpose string, consent bool) (*LegalBasis, error) {
	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		return nil, fmt.Errorf("legal basis purpose cannot be empty: %w", sentinel.ErrInvalidInput)
	}
	if len(purpose) > maxPurposeLen {
		return nil, fmt.Errorf("legal basis purpose exceeds %d bytes: %w", maxPurposeLen, sentinel.ErrInvalidInput)
	}
	return &LegalBasis{Purpose: purpose, ConsentObtained: consent}, nil
}

// Permits reports whether a PII-capable lookup may proceed. Nil-safe.
func (b *LegalBasis) Permits() bool {
	return b != nil && b.ConsentObtained
}
