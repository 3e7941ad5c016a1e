package lookup

import (
	"fmt"
	"time"

	"phoneintel/internal/audit"
	"phoneintel/internal/evidence"
	"phoneintel/internal/owner"
	"phoneintel/internal/risk"
	"phoneintel/pkg/domain"
)

// Tool identifies the producer in report metadata.
const (
	Tool    = "phoneintel"
	Version = "0.1.0"
)

// LegalDisclaimer is attached to every report.
const LegalDisclaimer = "This tool is for lawful, ethical OSINT research only. Do not use it to harass, " +
	"stalk, dox, or violate privacy. Always comply with applicable laws and Terms of Service."

// Request is one lookup. Number arrives already parsed and validated by the
// telephony layer; only the E.164 shape is rechecked here.
type Request struct {
	Raw      string
	Number   domain.ParsedNumber
	Adapters []string
	NoCache  bool
	Owner    *OwnerOptions
}

// OwnerOptions asks for owner intelligence. PII-capable adapters run only
// when AllowPII is set and the purpose and consent form a permitting basis.
type OwnerOptions struct {
	AllowPII        bool
	Purpose         string
	ConsentObtained bool
	// Caller is used only when the request carries no authenticated identity.
	Caller string
}

// Report is the full lookup result.
type Report struct {
	Metadata   Metadata            `json:"metadata"`
	Query      Query               `json:"query"`
	Normalized domain.ParsedNumber `json:"normalized"`
	Reputation Reputation          `json:"reputation"`
	Evidence   []evidence.Evidence `json:"evidence"`
	Signals    Signals             `json:"signals"`
	Score      risk.Result         `json:"score"`
	OwnerIntel *owner.Result       `json:"owner_intel,omitempty"`
	OwnerAudit []audit.Record      `json:"owner_audit,omitempty"`
	Summary    Summary             `json:"summary"`
}

type Metadata struct {
	Tool        string    `json:"tool"`
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
}

type Query struct {
	Raw      string   `json:"raw"`
	Adapters []string `json:"adapters"`
	NoCache  bool     `json:"no_cache"`
}

// Reputation reports which sources failed or were skipped.
type Reputation struct {
	AdapterErrors    map[string]string `json:"adapter_errors"`
	DisabledAdapters map[string]string `json:"disabled_adapters,omitempty"`
	UnknownAdapters  []string          `json:"unknown_adapters,omitempty"`
}

// Signals are the scorer inputs after overrides.
type Signals struct {
	FoundInScamDB      bool     `json:"found_in_scam_db"`
	VoIP               bool     `json:"voip"`
	FoundInClassifieds bool     `json:"found_in_classifieds"`
	BusinessListing    bool     `json:"business_listing"`
	Overrides          []string `json:"overrides"`
}

type Summary struct {
	ExecutiveSummary string `json:"executive_summary"`
	LegalDisclaimer  string `json:"legal_disclaimer"`
}

func executiveSummary(score int, foundInScamDB bool, evidenceCount int) string {
	matched := "no"
	if foundInScamDB {
		matched = "yes"
	}
	return fmt.Sprintf("Risk score %d/100. Matched scam dataset: %s. Evidence items: %d.",
		score, matched, evidenceCount)
}
