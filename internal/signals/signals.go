// Package signals derives domain signals from evidence URLs and applies
// operator-maintained overrides. Everything here is pure domain logic with
// no network I/O.
package signals

import (
	"strings"

	"phoneintel/internal/evidence"
	"phoneintel/internal/evidence/providers/scamdb"
)

// Evidence labels used by the owner-intelligence associations.
const (
	LabelScamReport        = "scam_report"
	LabelBusinessListing   = "business_listing"
	LabelClassifiedAd      = "classified_ad"
	LabelMention           = "mention"
	LabelIdentityConfirmed = "identity_confirmed"
)

// Marker tables are matched as case-insensitive substrings of the evidence URL.
var (
	ClassifiedsMarkers = []string{
		"craigslist.",
		"gumtree.",
		"olx.",
		"kijiji.",
		"marktplaats.",
		"facebook.com/marketplace",
	}

	BusinessMarkers = []string{
		"yelp.",
		"yellowpages.",
		"bbb.org",
		"google.com/maps",
		"linkedin.com/company",
	}
)

// DomainSignals are the URL-derived booleans fed to the risk scorer.
type DomainSignals struct {
	FoundInClassifieds bool `json:"found_in_classifieds"`
	BusinessListing    bool `json:"business_listing"`
}

// Infer scans every evidence URL against the marker tables.
func Infer(items []evidence.Evidence) DomainSignals {
	var out DomainSignals
	for _, e := range items {
		u := strings.ToLower(e.URL)
		if !out.FoundInClassifieds && containsAny(u, ClassifiedsMarkers) {
			out.FoundInClassifieds = true
		}
		if !out.BusinessListing && containsAny(u, BusinessMarkers) {
			out.BusinessListing = true
		}
		if out.FoundInClassifieds && out.BusinessListing {
			break
		}
	}
	return out
}

// LabelEvidence assigns the association label for one evidence item.
// Priority: scam dataset, business listing, classified ad, plain mention.
func LabelEvidence(e evidence.Evidence) string {
	u := strings.ToLower(e.URL)
	switch {
	case e.Source == scamdb.SourceTag || strings.HasPrefix(u, scamdb.URLScheme):
		return LabelScamReport
	case containsAny(u, BusinessMarkers):
		return LabelBusinessListing
	case containsAny(u, ClassifiedsMarkers):
		return LabelClassifiedAd
	default:
		return LabelMention
	}
}

// FoundInScamDB reports whether any item came from the scam dataset.
func FoundInScamDB(items []evidence.Evidence) bool {
	for _, e := range items {
		if e.Source == scamdb.SourceTag {
			return true
		}
	}
	return false
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
