package owner

import (
	"regexp"

	"phoneintel/internal/evidence"
	"phoneintel/internal/signals"
	"phoneintel/pkg/domain"
)

// RedactedEmail replaces email addresses found in snippets.
const RedactedEmail = "[REDACTED_EMAIL]"

var emailPattern = regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`)

// RedactEmails masks every email address in s.
func RedactEmails(s string) string {
	return emailPattern.ReplaceAllString(s, RedactedEmail)
}

// AssociationsFromEvidence labels each evidence item and redacts its snippet.
func AssociationsFromEvidence(items []evidence.Evidence) []Association {
	out := make([]Association, 0, len(items))
	for _, e := range items {
		out = append(out, Association{
			Source:    e.Source,
			URL:       e.URL,
			Snippet:   RedactEmails(e.Snippet),
			Label:     signals.LabelEvidence(e),
			Timestamp: e.Timestamp,
		})
	}
	return out
}

// Classify picks the ownership type. Priority: consented PII, VOIP, business
// listing, classified ad. pii must be nil unless consent-gated access was
// granted. Only the voip flag decides VOIP; callers derive it from the parsed
// number before any override is applied.
func Classify(_ domain.ParsedNumber, assocs []Association, voip bool, pii *PII) OwnershipType {
	if pii != nil {
		return pii.OwnerCategory
	}
	if voip {
		return OwnershipVoIP
	}

	var business, classified bool
	for _, a := range assocs {
		switch a.Label {
		case signals.LabelBusinessListing:
			business = true
		case signals.LabelClassifiedAd:
			classified = true
		}
	}
	switch {
	case business:
		return OwnershipBusiness
	case classified:
		return OwnershipIndividual
	default:
		return OwnershipUnknown
	}
}
