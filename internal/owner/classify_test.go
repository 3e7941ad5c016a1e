package owner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phoneintel/internal/evidence"
	"phoneintel/internal/signals"
	"phoneintel/pkg/domain"
)

func assoc(label string) Association {
	return Association{Source: "google", Label: label, Timestamp: time.Now().UTC()}
}

func TestClassifyPriority(t *testing.T) {
	mobile := domain.ParsedNumber{E164: "+14155550100", NumberType: domain.NumberTypeMobile}
	business := []Association{assoc(signals.LabelBusinessListing), assoc(signals.LabelClassifiedAd)}

	tests := []struct {
		name   string
		parsed domain.ParsedNumber
		assocs []Association
		voip   bool
		pii    *PII
		want   OwnershipType
	}{
		{"voip beats business", mobile, business, true, nil, OwnershipVoIP},
		{"business without voip", mobile, business, false, nil, OwnershipBusiness},
		{"classified only", mobile, []Association{assoc(signals.LabelClassifiedAd)}, false, nil, OwnershipIndividual},
		{"mentions only", mobile, []Association{assoc(signals.LabelMention)}, false, nil, OwnershipUnknown},
		{"nothing", mobile, nil, false, nil, OwnershipUnknown},
		{"voip number type without flag", domain.ParsedNumber{NumberType: domain.NumberTypeVoIP}, business, false, nil, OwnershipBusiness},
		{"pii wins", mobile, business, true, &PII{Name: "Acme", OwnerCategory: OwnershipIndividual}, OwnershipIndividual},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.parsed, tt.assocs, tt.voip, tt.pii))
		})
	}
}

func TestRedactEmails(t *testing.T) {
	in := "Call or mail John.Doe+ads@Example.co.uk / sales@acme.io today"
	assert.Equal(t, "Call or mail [REDACTED_EMAIL] / [REDACTED_EMAIL] today", RedactEmails(in))
	assert.Equal(t, "no address here @ all", RedactEmails("no address here @ all"))
}

func TestAssociationsFromEvidence(t *testing.T) {
	items := []evidence.Evidence{
		evidence.New("Listing", "https://www.yelp.com/biz/acme", "contact owner@acme.com", "google"),
		evidence.New("tech-support", "scamdb://community", "last_seen=2025-11-02", "public_scam_db"),
	}
	got := AssociationsFromEvidence(items)
	require.Len(t, got, 2)
	assert.Equal(t, signals.LabelBusinessListing, got[0].Label)
	assert.Equal(t, "contact [REDACTED_EMAIL]", got[0].Snippet)
	assert.Equal(t, items[0].Timestamp, got[0].Timestamp)
	assert.Equal(t, signals.LabelScamReport, got[1].Label)
}
