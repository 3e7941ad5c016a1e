package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"phoneintel/internal/transport/ratelimit"
)

type ClientSuite struct {
	suite.Suite
	calls atomic.Int32
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.calls.Store(0)
}

func (s *ClientSuite) newClient(retries int) *Client {
	return New(Config{
		Timeout:     2 * time.Second,
		MaxRetries:  retries,
		BackoffBase: time.Millisecond,
		BackoffCap:  5 * time.Millisecond,
		UserAgent:   "phoneintel-test",
	}, WithJitter(func() float64 { return 0.5 }))
}

// server answers with statuses in order, repeating the last one.
func (s *ClientSuite) server(statuses ...int) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(s.calls.Add(1)) - 1
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		w.WriteHeader(statuses[n])
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	s.T().Cleanup(srv.Close)
	return srv
}

func (s *ClientSuite) TestSuccessFirstAttempt() {
	srv := s.server(http.StatusOK)
	resp, err := s.newClient(2).Do(context.Background(), Request{URL: srv.URL})
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.JSONEq(`{"ok":true}`, string(resp.Body))
	s.Equal(int32(1), s.calls.Load())
}

func (s *ClientSuite) TestRetriesRetryableStatusThenSucceeds() {
	srv := s.server(http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusOK)
	resp, err := s.newClient(2).Do(context.Background(), Request{URL: srv.URL})
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(int32(3), s.calls.Load())
}

func (s *ClientSuite) TestRetryableStatusExhausted() {
	srv := s.server(http.StatusBadGateway)
	_, err := s.newClient(2).Do(context.Background(), Request{URL: srv.URL})

	var he *HTTPError
	s.Require().ErrorAs(err, &he)
	s.Equal(http.StatusBadGateway, he.StatusCode)
	s.True(he.Retryable)
	s.Equal(int32(3), s.calls.Load())
}

func (s *ClientSuite) TestNonRetryableStatusFailsImmediately() {
	srv := s.server(http.StatusForbidden)
	_, err := s.newClient(3).Do(context.Background(), Request{URL: srv.URL})

	var he *HTTPError
	s.Require().ErrorAs(err, &he)
	s.Equal(http.StatusForbidden, he.StatusCode)
	s.False(he.Retryable)
	s.Equal(int32(1), s.calls.Load())
	s.Equal(http.StatusForbidden, StatusCode(err))
}

func (s *ClientSuite) TestTransportFailureExhausted() {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	_, err := s.newClient(1).Do(context.Background(), Request{URL: target})

	var te *TransportError
	s.Require().ErrorAs(err, &te)
	s.Equal(2, te.Attempts)
}

func (s *ClientSuite) TestCancellationIsNotATransportError() {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := s.newClient(3).Do(ctx, Request{URL: srv.URL})
	s.Require().Error(err)
	s.True(errors.Is(err, context.Canceled))
	var te *TransportError
	s.False(errors.As(err, &te))
}

func (s *ClientSuite) TestHonoursRetryAfter() {
	var first atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if first.CompareAndSwap(false, true) {
			w.Header().Set("Retry-After", "0.1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	start := time.Now()
	_, err := s.newClient(1).Do(context.Background(), Request{URL: srv.URL})
	s.Require().NoError(err)
	s.GreaterOrEqual(time.Since(start), 100*time.Millisecond)
}

func (s *ClientSuite) TestParamsAndUserAgent() {
	var gotQuery url.Values
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotUA = r.UserAgent()
		_, _ = w.Write([]byte(`{"a":1}`))
	}))
	defer srv.Close()

	out, err := s.newClient(0).GetJSON(context.Background(), srv.URL, url.Values{"q": {"+14155550100"}, "format": {"json"}})
	s.Require().NoError(err)
	s.Equal(float64(1), out["a"])
	s.Equal("+14155550100", gotQuery.Get("q"))
	s.Equal("json", gotQuery.Get("format"))
	s.Equal("phoneintel-test", gotUA)
}

func (s *ClientSuite) TestGetJSONRejectsNonObject() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[1,2,3]`))
	}))
	defer srv.Close()

	_, err := s.newClient(0).GetJSON(context.Background(), srv.URL, nil)
	s.Error(err)
}

func (s *ClientSuite) TestSharedLimiterPacesAttempts() {
	srv := s.server(http.StatusOK)
	limiter := ratelimit.NewHostLimiter(20)
	c := New(Config{MaxRetries: 0}, WithLimiter(limiter))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Do(context.Background(), Request{URL: srv.URL})
		s.Require().NoError(err)
	}
	s.GreaterOrEqual(time.Since(start), 2*limiter.Interval()-10*time.Millisecond)
}

func TestBackoff(t *testing.T) {
	base := 500 * time.Millisecond
	ceiling := 8 * time.Second

	t.Run("never exceeds cap times 1.2", func(t *testing.T) {
		for a := 0; a < 64; a++ {
			for _, r := range []float64{0, 0.25, 0.5, 0.999999} {
				got := Backoff(a, base, ceiling, r)
				assert.LessOrEqual(t, got, time.Duration(float64(ceiling)*1.2))
				assert.Greater(t, got, time.Duration(0))
			}
		}
	})

	t.Run("grows exponentially before the cap", func(t *testing.T) {
		assert.Equal(t, 500*time.Millisecond, Backoff(0, base, ceiling, 0.5))
		assert.Equal(t, time.Second, Backoff(1, base, ceiling, 0.5))
		assert.Equal(t, 2*time.Second, Backoff(2, base, ceiling, 0.5))
		assert.Equal(t, ceiling, Backoff(10, base, ceiling, 0.5))
	})

	t.Run("jitter bounds", func(t *testing.T) {
		assert.Equal(t, 400*time.Millisecond, Backoff(0, base, ceiling, 0))
		assert.Less(t, Backoff(0, base, ceiling, 0.9999), 600*time.Millisecond)
	})
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
		ok    bool
	}{
		{"2", 2 * time.Second, true},
		{"0.5", 500 * time.Millisecond, true},
		{"", 0, false},
		{"-1", 0, false},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set("Retry-After", tt.value)
			}
			got, ok := retryAfter(h)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "https://www.googleapis.com/customsearch/v1",
		redact("https://www.googleapis.com/customsearch/v1?key=secret&cx=1"))
}
