// Package risk turns reputation signals into an explainable 0-100 risk score.
// Every signal that was considered appears in the breakdown, including those
// that contributed nothing, so reports can show why a number scored low.
package risk

import (
	"math"
)

// Signal names double as weight keys.
const (
	SignalFoundInScamDB      = "found_in_scam_db"
	SignalVoIP               = "voip"
	SignalFoundInClassifieds = "found_in_classifieds"
	SignalBusinessListing    = "business_listing"
	SignalAgePerYear         = "age_of_first_mention_per_year"
)

const maxAgeYears = 10.0

// Weights maps a signal name to its weight. Positive raises risk.
type Weights map[string]float64

// DefaultWeights returns a fresh copy of the conservative defaults.
func DefaultWeights() Weights {
	return Weights{
		SignalFoundInScamDB:      60,
		SignalVoIP:               15,
		SignalFoundInClassifieds: 15,
		SignalBusinessListing:    -10,
		SignalAgePerYear:         -2,
	}
}

// Merge returns defaults with overrides applied on top. Neither input is
// modified.
func (w Weights) Merge(overrides Weights) Weights {
	out := make(Weights, len(w)+len(overrides))
	for k, v := range w {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Input carries the signals for one number.
type Input struct {
	FoundInScamDB      bool
	VoIP               bool
	FoundInClassifieds bool
	BusinessListing    bool

	// AgeOfFirstMentionDays is omitted from the breakdown when nil or negative.
	AgeOfFirstMentionDays *int
}

// ScoreSignal is one line of the breakdown.
type ScoreSignal struct {
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
	Reason       string  `json:"reason"`
}

// Result is the score and its explanation.
type Result struct {
	Score     int           `json:"score"`
	Breakdown []ScoreSignal `json:"breakdown"`
}

// Contribution returns the named signal's contribution, or 0 when absent.
func (r Result) Contribution(name string) float64 {
	for _, s := range r.Breakdown {
		if s.Name == name {
			return s.Contribution
		}
	}
	return 0
}

// Score computes the weighted sum of in. weights are merged over
// DefaultWeights, so a partial map only changes what it names.
// Pure and deterministic.
func Score(in Input, weights Weights) Result {
	w := DefaultWeights().Merge(weights)
	breakdown := make([]ScoreSignal, 0, 5)

	addBool := func(name string, v bool, reason string) {
		value := 0.0
		if v {
			value = 1
		}
		breakdown = append(breakdown, ScoreSignal{
			Name:         name,
			Weight:       w[name],
			Value:        value,
			Contribution: w[name] * value,
			Reason:       reason,
		})
	}

	addBool(SignalFoundInScamDB, in.FoundInScamDB, "Matched a public scam dataset")
	addBool(SignalVoIP, in.VoIP, "Number metadata classified the number as VOIP")
	addBool(SignalFoundInClassifieds, in.FoundInClassifieds, "Evidence URL matched a classifieds domain heuristic")
	addBool(SignalBusinessListing, in.BusinessListing, "Evidence URL matched a business listing domain heuristic")

	if in.AgeOfFirstMentionDays != nil && *in.AgeOfFirstMentionDays >= 0 {
		years := clamp(float64(*in.AgeOfFirstMentionDays)/365.0, 0, maxAgeYears)
		weight := w[SignalAgePerYear]
		breakdown = append(breakdown, ScoreSignal{
			Name:         SignalAgePerYear,
			Weight:       weight,
			Value:        years,
			Contribution: weight * years,
			Reason:       "Older first-mention generally reduces risk (capped at 10 years)",
		})
	}

	var sum float64
	for _, s := range breakdown {
		sum += s.Contribution
	}
	return Result{
		Score:     int(math.RoundToEven(clamp(sum, 0, 100))),
		Breakdown: breakdown,
	}
}

func clamp(n, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, n))
}
