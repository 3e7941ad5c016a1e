package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phoneintel/pkg/platform/sentinel"
)

// TestParseE164 validates the trust-boundary invariant on number shape.
//
// Justification: pure function enforcing a domain invariant.
func TestParseE164(t *testing.T) {
	valid := []string{"+14155550100", " +442079460000 ", "+12345678"}
	for _, v := range valid {
		got, err := ParseE164(v)
		require.NoError(t, err, v)
		assert.Equal(t, strings.TrimSpace(v), got)
	}

	invalid := []string{"", "14155550100", "+0415555010", "+1415555O100", "+1234567", "+1234567890123456"}
	for _, v := range invalid {
		_, err := ParseE164(v)
		require.Error(t, err, v)
		assert.ErrorIs(t, err, sentinel.ErrInvalidInput)
	}
}

func TestParseLegalBasis(t *testing.T) {
	t.Run("rejects blank purpose", func(t *testing.T) {
		_, err := ParseLegalBasis("   ", true)
		assert.ErrorIs(t, err, sentinel.ErrInvalidInput)
	})

	t.Run("rejects oversized purpose", func(t *testing.T) {
		_, err := ParseLegalBasis(strings.Repeat("x", maxPurposeLen+1), true)
		assert.ErrorIs(t, err, sentinel.ErrInvalidInput)
	})

	t.Run("permits only with consent", func(t *testing.T) {
		b, err := ParseLegalBasis(" fraud investigation ", false)
		require.NoError(t, err)
		assert.Equal(t, "fraud investigation", b.Purpose)
		assert.False(t, b.Permits())

		b.ConsentObtained = true
		assert.True(t, b.Permits())
	})

	t.Run("nil basis never permits", func(t *testing.T) {
		var b *LegalBasis
		assert.False(t, b.Permits())
	})
}

func TestParsedNumberIsVoIP(t *testing.T) {
	assert.True(t, ParsedNumber{NumberType: NumberTypeVoIP}.IsVoIP())
	assert.False(t, ParsedNumber{NumberType: NumberTypeMobile}.IsVoIP())
}
