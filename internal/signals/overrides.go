package signals

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"phoneintel/internal/evidence"
)

// Overridable signal names, in the order overrides are evaluated.
const (
	SignalVoIP               = "voip"
	SignalFoundInClassifieds = "found_in_classifieds"
	SignalBusinessListing    = "business_listing"
)

// OverrideSource tags evidence synthesized for a fired override.
const OverrideSource = "signal_override"

var signalNames = []string{SignalVoIP, SignalFoundInClassifieds, SignalBusinessListing}

// Overrides maps a signal name to the set of E.164 numbers it is forced on for.
// The zero value has no overrides.
type Overrides map[string]map[string]struct{}

// OverrideHits records which overrides fired for one lookup.
type OverrideHits struct {
	VoIP               bool `json:"voip"`
	FoundInClassifieds bool `json:"found_in_classifieds"`
	BusinessListing    bool `json:"business_listing"`
}

// Fired lists the names of fired overrides in evaluation order.
func (h OverrideHits) Fired() []string {
	var out []string
	if h.VoIP {
		out = append(out, SignalVoIP)
	}
	if h.FoundInClassifieds {
		out = append(out, SignalFoundInClassifieds)
	}
	if h.BusinessListing {
		out = append(out, SignalBusinessListing)
	}
	return out
}

// LoadOverrides reads a JSON object of signal name to E.164 list. A missing,
// unreadable or malformed file yields empty overrides; only the malformed
// case is logged since a missing file is the normal state.
func LoadOverrides(path string, logger *slog.Logger) Overrides {
	if path == "" {
		return Overrides{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) && logger != nil {
			logger.Warn("signal overrides unreadable", "path", path, "error", err)
		}
		return Overrides{}
	}
	o, err := ParseOverrides(data)
	if err != nil {
		if logger != nil {
			logger.Warn("signal overrides malformed, ignoring", "path", path, "error", err)
		}
		return Overrides{}
	}
	return o
}

// ParseOverrides decodes override JSON. Unknown keys and non-list values are
// ignored; entries are trimmed and blanks dropped.
func ParseOverrides(data []byte) (Overrides, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := Overrides{}
	for _, name := range signalNames {
		msg, ok := raw[name]
		if !ok {
			continue
		}
		var values []any
		if err := json.Unmarshal(msg, &values); err != nil {
			continue
		}
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			s, ok := v.(string)
			if !ok {
				b, _ := json.Marshal(v)
				s = string(b)
			}
			if s = strings.TrimSpace(s); s != "" {
				set[s] = struct{}{}
			}
		}
		out[name] = set
	}
	return out, nil
}

// Has reports whether the number is listed for the signal.
func (o Overrides) Has(signal, e164 string) bool {
	_, ok := o[signal][e164]
	return ok
}

// Apply merges overrides onto number-type and URL-derived signals.
// voip is true when the number type is "voip" or the voip override fires.
func (o Overrides) Apply(e164, numberType string, domain DomainSignals) (bool, DomainSignals, OverrideHits) {
	hits := OverrideHits{
		VoIP:               o.Has(SignalVoIP, e164),
		FoundInClassifieds: o.Has(SignalFoundInClassifieds, e164),
		BusinessListing:    o.Has(SignalBusinessListing, e164),
	}
	merged := domain
	if hits.FoundInClassifieds {
		merged.FoundInClassifieds = true
	}
	if hits.BusinessListing {
		merged.BusinessListing = true
	}
	return numberType == "voip" || hits.VoIP, merged, hits
}

// OverrideEvidence synthesizes one evidence entry per fired override so the
// report shows why a signal was forced.
func OverrideEvidence(e164 string, hits OverrideHits) []evidence.Evidence {
	fired := hits.Fired()
	if len(fired) == 0 {
		return nil
	}
	out := make([]evidence.Evidence, 0, len(fired))
	for _, name := range fired {
		out = append(out, evidence.New(
			"Signal override: "+name,
			"override://"+name,
			"Operator override forced "+name+" for "+e164,
			OverrideSource,
		))
	}
	return out
}
