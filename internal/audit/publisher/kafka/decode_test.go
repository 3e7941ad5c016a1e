package kafka

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phoneintel/internal/audit"
	"phoneintel/pkg/domain"
)

func TestDecode(t *testing.T) {
	rec := audit.NewRecord("callerid", domain.LegalBasis{Purpose: "p", ConsentObtained: true}, "alice", audit.OutcomeNone)
	body, err := json.Marshal(rec)
	require.NoError(t, err)

	t.Run("valid message", func(t *testing.T) {
		got, err := Decode([]byte(rec.ID.String()), body)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, rec.LegalBasis, got.LegalBasis)
	})

	t.Run("bad key", func(t *testing.T) {
		_, err := Decode([]byte("nope"), body)
		assert.Error(t, err)
	})

	t.Run("mismatched key", func(t *testing.T) {
		_, err := Decode([]byte(uuid.NewString()), body)
		assert.ErrorContains(t, err, "does not match")
	})

	t.Run("bad body", func(t *testing.T) {
		_, err := Decode([]byte(rec.ID.String()), []byte("{"))
		assert.Error(t, err)
	})

	t.Run("unknown result", func(t *testing.T) {
		bad := rec
		bad.Result = "granted"
		b, _ := json.Marshal(bad)
		_, err := Decode([]byte(rec.ID.String()), b)
		assert.ErrorContains(t, err, "unknown result")
	})
}

func TestNewRequiresBrokers(t *testing.T) {
	_, err := NewProducer(nil)
	assert.Error(t, err)
	_, err = NewConsumer(nil, "", "", nil, nil)
	assert.Error(t, err)
}
