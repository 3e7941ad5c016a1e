package owner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phoneintel/internal/evidence"
	"phoneintel/internal/signals"
)

func TestExtractSignals(t *testing.T) {
	t.Run("empty evidence", func(t *testing.T) {
		s := ExtractSignals(nil, nil, false, false)
		assert.Nil(t, s.FirstSeen)
		assert.Nil(t, s.LastSeen)
		assert.Zero(t, s.EvidenceCount)
	})

	t.Run("counts and span", func(t *testing.T) {
		t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		items := []evidence.Evidence{
			{URL: "https://yelp.com/a", Source: "google", Timestamp: t0.Add(time.Hour)},
			{URL: "https://gumtree.com/b", Source: "duckduckgo", Timestamp: t0},
			{URL: "scamdb://x", Source: "public_scam_db", Timestamp: t0.Add(2 * time.Hour)},
			{URL: "https://example.com", Source: "", Timestamp: t0.Add(30 * time.Minute)},
		}
		s := ExtractSignals(items, AssociationsFromEvidence(items), true, false)
		assert.Equal(t, 1, s.BusinessListingCount)
		assert.Equal(t, 1, s.ClassifiedAdsCount)
		assert.Equal(t, 1, s.ScamReportCount)
		assert.True(t, s.FoundInScamDB)
		assert.True(t, s.VoIP)
		assert.Equal(t, 4, s.EvidenceCount)
		assert.Equal(t, 3, s.SourcesCount)
		require.NotNil(t, s.FirstSeen)
		assert.Equal(t, "2025-01-01T00:00:00Z", *s.FirstSeen)
		assert.Equal(t, "2025-01-01T02:00:00Z", *s.LastSeen)
	})
}

func TestScoreConfidence(t *testing.T) {
	t.Run("no signals", func(t *testing.T) {
		c := ScoreConfidence(OwnershipUnknown, Signals{}, nil)
		assert.Equal(t, 0, c.Score)
		assert.Empty(t, c.Breakdown)
		assert.NotNil(t, c.Breakdown)
	})

	t.Run("business counts are capped", func(t *testing.T) {
		s := Signals{EvidenceCount: 6, SourcesCount: 2, BusinessListingCount: 5}
		c := ScoreConfidence(OwnershipBusiness, s, nil)
		// 5 + 10 + 15*3
		assert.Equal(t, 60, c.Score)
		require.Len(t, c.Breakdown, 3)
		assert.Equal(t, ConfidenceBusinessListing, c.Breakdown[2].Signal)
		assert.Equal(t, 3.0, c.Breakdown[2].Value)
	})

	t.Run("only the matching type signal is scored", func(t *testing.T) {
		s := Signals{EvidenceCount: 1, SourcesCount: 1, ClassifiedAdsCount: 2, BusinessListingCount: 2}
		c := ScoreConfidence(OwnershipIndividual, s, nil)
		signalsSeen := []string{}
		for _, b := range c.Breakdown {
			signalsSeen = append(signalsSeen, b.Signal)
		}
		assert.Equal(t, []string{ConfidenceEvidenceAny, ConfidenceClassifiedAd}, signalsSeen)
		assert.Equal(t, 25, c.Score)
	})

	t.Run("pii and scam reports, clamped", func(t *testing.T) {
		s := Signals{EvidenceCount: 1, SourcesCount: 3, VoIP: true, ScamReportCount: 4, PIIPresent: true}
		c := ScoreConfidence(OwnershipVoIP, s, nil)
		// 5 + 10 + 25 + 15 + 50 = 105
		assert.Equal(t, 100, c.Score)
		assert.Equal(t, ConfidencePIIConfirmed, c.Breakdown[len(c.Breakdown)-1].Signal)
	})

	t.Run("weight overrides", func(t *testing.T) {
		c := ScoreConfidence(OwnershipUnknown, Signals{EvidenceCount: 1}, ConfidenceWeights{ConfidenceEvidenceAny: 20})
		assert.Equal(t, 20, c.Score)
		assert.Equal(t, 5.0, DefaultConfidenceWeights()[ConfidenceEvidenceAny])
	})

	t.Run("voip type without voip flag contributes zero", func(t *testing.T) {
		c := ScoreConfidence(OwnershipVoIP, Signals{}, nil)
		require.Len(t, c.Breakdown, 1)
		assert.Zero(t, c.Breakdown[0].Contribution)
	})
}

func TestLabelsFeedSignals(t *testing.T) {
	assocs := []Association{{Label: signals.LabelIdentityConfirmed}}
	s := ExtractSignals(nil, assocs, false, true)
	assert.Zero(t, s.BusinessListingCount)
	assert.True(t, s.PIIPresent)
}
