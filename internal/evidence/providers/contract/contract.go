// Package contract is a reusable test harness that checks an adapter honours
// the evidence.Adapter contract.
package contract

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"phoneintel/internal/evidence"
)

// ContractTest defines a test case for adapter contract validation
type ContractTest struct {
	Name    string
	Adapter evidence.Adapter
	E164    string
	Limit   int
	// ExpectedSource is the source tag every item must carry.
	ExpectedSource string
	// MinResults is the fewest items the call must produce.
	MinResults   int
	ValidateFunc func(items []evidence.Evidence) error
}

// ContractSuite is a collection of contract tests for an adapter
type ContractSuite struct {
	AdapterName string
	Tests       []ContractTest
}

// Run executes all contract tests in the suite
func (s *ContractSuite) Run(t *testing.T) {
	t.Helper()
	for _, test := range s.Tests {
		t.Run(test.Name, func(t *testing.T) {
			ctx := context.Background()

			if got := test.Adapter.Name(); got != s.AdapterName {
				t.Errorf("expected adapter name %s, got %s", s.AdapterName, got)
			}

			items, err := test.Adapter.Check(ctx, test.E164, test.Limit)
			if err != nil {
				t.Fatalf("adapter check failed: %v", err)
			}

			// No results must be an empty slice, never nil
			if items == nil {
				t.Fatal("check returned a nil slice")
			}

			if len(items) > test.Limit {
				t.Errorf("expected at most %d items, got %d", test.Limit, len(items))
			}
			if len(items) < test.MinResults {
				t.Errorf("expected at least %d items, got %d", test.MinResults, len(items))
			}

			for i, item := range items {
				if item.Timestamp.IsZero() {
					t.Errorf("item %d: timestamp not set", i)
				}
				if item.Timestamp.Location() != time.UTC {
					t.Errorf("item %d: timestamp not in UTC", i)
				}
				if test.ExpectedSource != "" && item.Source != test.ExpectedSource {
					t.Errorf("item %d: expected source %s, got %s", i, test.ExpectedSource, item.Source)
				}
				if len([]rune(item.Title)) > 120 {
					t.Errorf("item %d: title longer than 120 runes", i)
				}
			}

			if test.ValidateFunc != nil {
				if err := test.ValidateFunc(items); err != nil {
					t.Errorf("custom validation failed: %v", err)
				}
			}
		})
	}
}

// SnapshotTest logs adapter output as JSON for manual review
type SnapshotTest struct {
	Name    string
	Adapter evidence.Adapter
	E164    string
	Limit   int
}

// Run executes a snapshot test
func (st *SnapshotTest) Run(t *testing.T) {
	t.Helper()
	items, err := st.Adapter.Check(context.Background(), st.E164, st.Limit)
	if err != nil {
		t.Fatalf("adapter check failed: %v", err)
	}
	actualJSON, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal evidence: %v", err)
	}
	t.Logf("Evidence snapshot for %s:\n%s", st.Name, string(actualJSON))
}

// ErrorContractTest validates that adapter errors follow the taxonomy
type ErrorContractTest struct {
	Name             string
	Adapter          evidence.Adapter
	E164             string
	ExpectedCategory evidence.ErrorCategory
	ExpectedRetry    bool
}

// Run executes an error contract test
func (ect *ErrorContractTest) Run(t *testing.T) {
	t.Helper()
	t.Run(ect.Name, func(t *testing.T) {
		_, err := ect.Adapter.Check(context.Background(), ect.E164, 5)
		if err == nil {
			t.Fatal("expected error but got none")
		}

		if category := evidence.Categorize(err); category != ect.ExpectedCategory {
			t.Errorf("expected error category %s, got %s", ect.ExpectedCategory, category)
		}

		if retry := evidence.IsRetryable(err); retry != ect.ExpectedRetry {
			t.Errorf("expected retryable=%v, got %v", ect.ExpectedRetry, retry)
		}
	})
}
