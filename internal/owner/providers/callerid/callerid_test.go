package callerid

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phoneintel/internal/evidence"
	"phoneintel/internal/owner"
	"phoneintel/internal/signals"
	"phoneintel/internal/transport/httpclient"
	"phoneintel/pkg/domain"
)

func newClient() *httpclient.Client {
	return httpclient.New(httpclient.Config{
		Timeout:     time.Second,
		BackoffBase: time.Millisecond,
		BackoffCap:  time.Millisecond,
	})
}

func consent() *domain.LegalBasis {
	return &domain.LegalBasis{Purpose: "fraud investigation", ConsentObtained: true}
}

func TestNewRequiresAPIKey(t *testing.T) {
	a, err := New(newClient(), " ")
	assert.Nil(t, a)
	assert.True(t, evidence.IsConfigError(err))
}

func TestLookupOwnerRequiresConsent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	a, err := New(newClient(), "secret", WithBaseURL(srv.URL))
	require.NoError(t, err)
	assert.True(t, a.PIICapable())

	for _, basis := range []*domain.LegalBasis{nil, {Purpose: "curiosity", ConsentObtained: false}} {
		_, err := a.LookupOwner(context.Background(), "+14155550100", basis, 5, "analyst")
		assert.True(t, errors.Is(err, owner.ErrConsentRequired))
	}
	assert.Zero(t, calls.Load())
}

func TestLookupOwnerReturnsPII(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "fraud investigation", r.Header.Get("X-Lookup-Purpose"))
		assert.Equal(t, "+14155550100", r.URL.Query().Get("phone"))
		_, _ = w.Write([]byte(`{"name":" Acme Plumbing ","category":"Company","profile_url":"https://dir.example/acme"}`))
	}))
	defer srv.Close()

	a, err := New(newClient(), "secret", WithBaseURL(srv.URL))
	require.NoError(t, err)

	res, err := a.LookupOwner(context.Background(), "+14155550100", consent(), 5, "analyst")
	require.NoError(t, err)
	require.NotNil(t, res.PII)
	assert.Equal(t, "Acme Plumbing", res.PII.Name)
	assert.Equal(t, owner.OwnershipBusiness, res.PII.OwnerCategory)
	require.Len(t, res.Associations, 1)
	assert.Equal(t, signals.LabelIdentityConfirmed, res.Associations[0].Label)
}

func TestLookupOwnerNotFoundIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a, err := New(newClient(), "secret", WithBaseURL(srv.URL))
	require.NoError(t, err)

	res, err := a.LookupOwner(context.Background(), "+14155550100", consent(), 5, "analyst")
	require.NoError(t, err)
	assert.Nil(t, res.PII)
}

func TestLookupOwnerUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a, err := New(newClient(), "secret", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = a.LookupOwner(context.Background(), "+14155550100", consent(), 5, "analyst")
	require.Error(t, err)
	assert.False(t, errors.Is(err, owner.ErrConsentRequired))
	assert.Equal(t, evidence.ErrorRejected, evidence.Categorize(err))
}

func TestCategory(t *testing.T) {
	assert.Equal(t, owner.OwnershipIndividual, category("Person"))
	assert.Equal(t, owner.OwnershipVoIP, category("voip"))
	assert.Equal(t, owner.OwnershipUnknown, category(""))
}
