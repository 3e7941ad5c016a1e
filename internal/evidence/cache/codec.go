package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"phoneintel/internal/evidence"
)

// envelopeVersion is bumped whenever the cached item shape changes; older
// payloads then read as misses and are overwritten.
const envelopeVersion = 1

// ErrDeserialization marks a cached payload that cannot be decoded. It is
// always treated as a cache miss.
var ErrDeserialization = errors.New("cache payload deserialization failed")

type envelope struct {
	V     int          `json:"v"`
	Items []cachedItem `json:"items"`
}

// cachedItem keeps the timestamp as text so a bad value degrades to "now"
// instead of failing the whole payload.
type cachedItem struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Snippet   string `json:"snippet"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// Encode serializes evidence into a versioned envelope.
func Encode(items []evidence.Evidence) ([]byte, error) {
	env := envelope{V: envelopeVersion, Items: make([]cachedItem, 0, len(items))}
	for _, it := range items {
		env.Items = append(env.Items, cachedItem{
			Title:     it.Title,
			URL:       it.URL,
			Snippet:   it.Snippet,
			Timestamp: it.Timestamp.UTC().Format(time.RFC3339Nano),
			Source:    it.Source,
		})
	}
	return json.Marshal(env)
}

// Decode validates and deserializes an envelope. Errors wrap
// ErrDeserialization.
func Decode(data []byte, now time.Time) ([]evidence.Evidence, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	if env.V != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported envelope version %d", ErrDeserialization, env.V)
	}
	if env.Items == nil {
		return nil, fmt.Errorf("%w: missing items", ErrDeserialization)
	}
	out := make([]evidence.Evidence, 0, len(env.Items))
	for _, it := range env.Items {
		ts, err := time.Parse(time.RFC3339Nano, it.Timestamp)
		if err != nil {
			ts = now
		}
		out = append(out, evidence.Evidence{
			Title:     it.Title,
			URL:       it.URL,
			Snippet:   it.Snippet,
			Timestamp: ts.UTC(),
			Source:    it.Source,
		})
	}
	return out, nil
}
