// Package domain holds the value types shared across bounded contexts:
// the parsed phone number handed in by the telephony layer and the legal
// basis that gates PII-capable lookups.
package domain

import (
	"fmt"
	"strings"

	"phoneintel/pkg/platform/sentinel"
)

// Canonical number-type labels produced by the telephony layer.
const (
	NumberTypeVoIP      = "voip"
	NumberTypeMobile    = "mobile"
	NumberTypeFixedLine = "fixed_line"
	NumberTypeUnknown   = "unknown"
)

// ParsedNumber is the opaque result of phone parsing and validation, which
// happen upstream of this module.
type ParsedNumber struct {
	E164        string `json:"e164"`
	Region      string `json:"region"`
	CountryCode int    `json:"country_code"`
	NumberType  string `json:"number_type"`
}

// IsVoIP reports whether the number type marks the line as VOIP.
func (p ParsedNumber) IsVoIP() bool {
	return p.NumberType == NumberTypeVoIP
}

// ParseE164 checks the shape of an E.164 string: a plus sign followed by
// 8 to 15 digits with no leading zero. It does not validate numbering plans.
//
// Errors: wraps sentinel.ErrInvalidInput.
func ParseE164(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 9 || len(s) > 16 || s[0] != '+' || s[1] == '0' {
		return "", fmt.Errorf("not an E.164 number %q: %w", s, sentinel.ErrInvalidInput)
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("not an E.164 number %q: %w", s, sentinel.ErrInvalidInput)
		}
	}
	return s, nil
}
