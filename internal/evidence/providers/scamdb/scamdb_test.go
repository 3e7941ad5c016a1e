package scamdb

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phoneintel/internal/evidence"
	"phoneintel/internal/evidence/providers/contract"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSampleDataset(t *testing.T) {
	a, err := New(WithLogger(discard))
	require.NoError(t, err)
	require.Positive(t, a.Len())

	items, err := a.Check(context.Background(), "+14155550100", 5)
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, SourceTag, items[0].Source)
	assert.Equal(t, "tech-support", items[0].Title)
	assert.Equal(t, "https://example.invalid/reports/14155550100", items[0].URL)
	assert.Contains(t, items[0].Snippet, "last_seen=2025-11-02 | ")
}

func TestAdapterContract(t *testing.T) {
	a, err := New(WithLogger(discard))
	require.NoError(t, err)

	suite := &contract.ContractSuite{
		AdapterName: Name,
		Tests: []contract.ContractTest{
			{
				Name:           "listed number",
				Adapter:        a,
				E164:           "+14155550100",
				Limit:          5,
				ExpectedSource: SourceTag,
				MinResults:     1,
			},
			{
				Name:    "unlisted number returns empty slice",
				Adapter: a,
				E164:    "+15555550199",
				Limit:   5,
				ValidateFunc: func(items []evidence.Evidence) error {
					if len(items) != 0 {
						return errors.New("expected no matches")
					}
					return nil
				},
			},
		},
	}
	suite.Run(t)
}

func TestExactMatchAndLimit(t *testing.T) {
	entries, err := Parse([]byte(`[
		{"e164": "+10000000001", "label": "a", "source": "s1"},
		{"e164": "+10000000001", "label": "b"},
		{"e164": "+10000000001", "label": "c", "notes": "n"},
		{"e164": "+100000000011", "label": "prefix"},
		"not an object",
		{"e164": 42}
	]`))
	require.NoError(t, err)
	a, err := New(WithEntries(entries))
	require.NoError(t, err)

	items, err := a.Check(context.Background(), "+10000000001", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Title)
	assert.Equal(t, "scamdb://s1", items[0].URL)
	assert.Equal(t, "scamdb://unknown", items[1].URL)

	items, err = a.Check(context.Background(), "+10000000001", 5)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "n", items[2].Snippet)
	for _, it := range items {
		assert.Equal(t, SourceTag, it.Source)
	}
}

func TestParse(t *testing.T) {
	t.Run("rejects non-array", func(t *testing.T) {
		_, err := Parse([]byte(`{"e164": "+1"}`))
		assert.Error(t, err)
	})

	t.Run("invalid last_seen is dropped", func(t *testing.T) {
		entries, err := Parse([]byte(`[{"e164": "+1", "last_seen": "yesterday", "notes": "x"}]`))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Nil(t, entries[0].LastSeen)
		assert.Equal(t, "x", snippet(entries[0]))
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file falls back to sample", func(t *testing.T) {
		entries, err := Load(filepath.Join(dir, "nope.json"), discard)
		require.NoError(t, err)
		assert.NotEmpty(t, entries)
	})

	t.Run("blank file falls back to sample", func(t *testing.T) {
		path := filepath.Join(dir, "blank.json")
		require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))
		entries, err := Load(path, discard)
		require.NoError(t, err)
		assert.NotEmpty(t, entries)
	})

	t.Run("custom file is used", func(t *testing.T) {
		path := filepath.Join(dir, "custom.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"e164":"+19998887777","label":"x"}]`), 0o600))
		a, err := New(WithPath(path), WithLogger(discard))
		require.NoError(t, err)
		assert.Equal(t, 1, a.Len())
	})

	t.Run("malformed file is a config error", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))
		_, err := New(WithPath(path), WithLogger(discard))
		assert.True(t, evidence.IsConfigError(err))
	})
}

func TestCancelledContext(t *testing.T) {
	a, err := New(WithLogger(discard))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Check(ctx, "+14155550100", 5)
	assert.ErrorIs(t, err, context.Canceled)
}
