package customsearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phoneintel/internal/evidence"
	"phoneintel/internal/evidence/providers/contract"
	"phoneintel/internal/transport/httpclient"
)

func newClient() *httpclient.Client {
	return httpclient.New(httpclient.Config{
		Timeout:     time.Second,
		MaxRetries:  0,
		BackoffBase: time.Millisecond,
		BackoffCap:  time.Millisecond,
	})
}

func TestNewRequiresCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
	}{
		{"no key", Credentials{CX: "cx"}},
		{"no cx", Credentials{APIKey: "key"}},
		{"blank", Credentials{APIKey: "  ", CX: " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(newClient(), tt.creds)
			assert.Nil(t, a)
			require.Error(t, err)
			assert.True(t, evidence.IsConfigError(err))
		})
	}
}

func TestSearch(t *testing.T) {
	var gotNum string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "key", q.Get("key"))
		assert.Equal(t, "cx", q.Get("cx"))
		assert.Equal(t, "+14155550100", q.Get("q"))
		gotNum = q.Get("num")
		_, _ = w.Write([]byte(`{"items":[
			{"title":"Acme Plumbing","link":"https://www.yelp.com/biz/acme","snippet":"Call +1 415"},
			{"title":"Forum","link":"https://forum.example/t/1","snippet":"who called me"},
			{"title":"Third","link":"https://example.com/3","snippet":""}
		]}`))
	}))
	defer srv.Close()

	a, err := New(newClient(), Credentials{APIKey: "key", CX: "cx"}, WithBaseURL(srv.URL))
	require.NoError(t, err)

	items, err := a.Check(context.Background(), "+14155550100", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "2", gotNum)
	assert.Equal(t, "Acme Plumbing", items[0].Title)
	assert.Equal(t, Name, items[0].Source)

	_, err = a.Check(context.Background(), "+14155550100", 50)
	require.NoError(t, err)
	assert.Equal(t, "10", gotNum)
}

func TestClampNum(t *testing.T) {
	assert.Equal(t, 1, clampNum(0))
	assert.Equal(t, 1, clampNum(-3))
	assert.Equal(t, 7, clampNum(7))
	assert.Equal(t, 10, clampNum(11))
}

func TestAdapterContract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"searchInformation":{"totalResults":"0"}}`))
	}))
	defer srv.Close()
	a, err := New(newClient(), Credentials{APIKey: "key", CX: "cx"}, WithBaseURL(srv.URL))
	require.NoError(t, err)

	(&contract.ContractSuite{
		AdapterName: Name,
		Tests: []contract.ContractTest{
			{Name: "no items", Adapter: a, E164: "+14155550100", Limit: 5, ExpectedSource: Name},
		},
	}).Run(t)

	denied := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer denied.Close()
	b, err := New(newClient(), Credentials{APIKey: "bad", CX: "cx"}, WithBaseURL(denied.URL))
	require.NoError(t, err)
	(&contract.ErrorContractTest{
		Name:             "forbidden",
		Adapter:          b,
		E164:             "+14155550100",
		ExpectedCategory: evidence.ErrorRejected,
	}).Run(t)
}
