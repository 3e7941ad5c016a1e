package owner

import (
	"math"
	"time"

	"phoneintel/internal/evidence"
	"phoneintel/internal/signals"
)

// Confidence signal names double as weight keys.
const (
	ConfidenceVoIP            = "voip"
	ConfidenceBusinessListing = "business_listing"
	ConfidenceClassifiedAd    = "classified_ad"
	ConfidenceScamReport      = "scam_report"
	ConfidencePIIConfirmed    = "pii_confirmed"
	ConfidenceMultipleSources = "multiple_sources"
	ConfidenceEvidenceAny     = "evidence_any"
)

const countCap = 3

// Signals summarises associations for the confidence model and the report.
type Signals struct {
	FoundInScamDB        bool    `json:"found_in_scam_db"`
	BusinessListingCount int     `json:"business_listing_count"`
	ClassifiedAdsCount   int     `json:"classified_ads_count"`
	ScamReportCount      int     `json:"scam_report_count"`
	VoIP                 bool    `json:"voip"`
	EvidenceCount        int     `json:"evidence_count"`
	SourcesCount         int     `json:"sources_count"`
	FirstSeen            *string `json:"first_seen"`
	LastSeen             *string `json:"last_seen"`
	PIIPresent           bool    `json:"pii_present"`
}

// ExtractSignals counts labels across assocs and spans over items.
func ExtractSignals(items []evidence.Evidence, assocs []Association, voip, piiPresent bool) Signals {
	s := Signals{
		VoIP:          voip,
		EvidenceCount: len(items),
		PIIPresent:    piiPresent,
	}
	for _, a := range assocs {
		switch a.Label {
		case signals.LabelBusinessListing:
			s.BusinessListingCount++
		case signals.LabelClassifiedAd:
			s.ClassifiedAdsCount++
		case signals.LabelScamReport:
			s.ScamReportCount++
		}
	}
	s.FoundInScamDB = s.ScamReportCount > 0

	sources := make(map[string]struct{})
	var first, last time.Time
	for i, e := range items {
		if e.Source != "" {
			sources[e.Source] = struct{}{}
		}
		if i == 0 || e.Timestamp.Before(first) {
			first = e.Timestamp
		}
		if i == 0 || e.Timestamp.After(last) {
			last = e.Timestamp
		}
	}
	s.SourcesCount = len(sources)
	if len(items) > 0 {
		f, l := first.Format(time.RFC3339), last.Format(time.RFC3339)
		s.FirstSeen, s.LastSeen = &f, &l
	}
	return s
}

// ConfidenceWeights maps confidence signal names to weights.
type ConfidenceWeights map[string]float64

// DefaultConfidenceWeights returns a fresh copy of the defaults.
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		ConfidenceVoIP:            25,
		ConfidenceBusinessListing: 15,
		ConfidenceClassifiedAd:    10,
		ConfidenceScamReport:      5,
		ConfidencePIIConfirmed:    50,
		ConfidenceMultipleSources: 10,
		ConfidenceEvidenceAny:     5,
	}
}

// ConfidenceSignal is one line of the confidence breakdown.
type ConfidenceSignal struct {
	Signal       string  `json:"signal"`
	Weight       float64 `json:"weight"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
	Reason       string  `json:"reason"`
}

// Confidence is the score and breakdown.
type Confidence struct {
	Score     int                `json:"score"`
	Breakdown []ConfidenceSignal `json:"breakdown"`
}

// ScoreConfidence estimates certainty in the ownership classification, not
// abuse likelihood. Only the signal matching ownership is scored among the
// type-specific ones. overrides are merged over the defaults.
func ScoreConfidence(ownership OwnershipType, s Signals, overrides ConfidenceWeights) Confidence {
	w := DefaultConfidenceWeights()
	for k, v := range overrides {
		w[k] = v
	}

	var breakdown []ConfidenceSignal
	add := func(name string, value float64, reason string) {
		breakdown = append(breakdown, ConfidenceSignal{
			Signal:       name,
			Weight:       w[name],
			Value:        value,
			Contribution: w[name] * value,
			Reason:       reason,
		})
	}

	if s.EvidenceCount > 0 {
		add(ConfidenceEvidenceAny, 1, "At least one public evidence item was found")
	}
	if s.SourcesCount >= 2 {
		add(ConfidenceMultipleSources, 1, "Evidence spans multiple sources")
	}

	switch ownership {
	case OwnershipVoIP:
		add(ConfidenceVoIP, boolValue(s.VoIP), "Number metadata indicates VOIP")
	case OwnershipBusiness:
		add(ConfidenceBusinessListing, capped(s.BusinessListingCount), "Business listing domains referenced this number")
	case OwnershipIndividual:
		add(ConfidenceClassifiedAd, capped(s.ClassifiedAdsCount), "Classified ad domains referenced this number")
	}

	if s.ScamReportCount > 0 {
		add(ConfidenceScamReport, capped(s.ScamReportCount), "Scam reports mention this number (weak ownership-type signal)")
	}
	if s.PIIPresent {
		add(ConfidencePIIConfirmed, 1, "Official adapter returned confirmed owner identity (PII-capable)")
	}

	var sum float64
	for _, b := range breakdown {
		sum += b.Contribution
	}
	if breakdown == nil {
		breakdown = []ConfidenceSignal{}
	}
	return Confidence{
		Score:     int(math.RoundToEven(math.Max(0, math.Min(100, sum)))),
		Breakdown: breakdown,
	}
}

func capped(n int) float64 {
	return float64(min(n, countCap))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
