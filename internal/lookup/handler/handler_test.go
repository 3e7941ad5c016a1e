package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"phoneintel/internal/audit"
	auditmemory "phoneintel/internal/audit/store/memory"
	"phoneintel/internal/evidence/orchestrator"
	"phoneintel/internal/lookup"
	"phoneintel/internal/lookup/handler"
	"phoneintel/internal/risk"
	"phoneintel/internal/transport/httpclient"
	"phoneintel/pkg/domain"
	"phoneintel/pkg/platform/httputil"
	"phoneintel/pkg/platform/middleware/admin"
	"phoneintel/pkg/platform/sentinel"
	"phoneintel/pkg/testutil"
)

// =============================================================================
// Lookup HTTP Suite
// =============================================================================
// Justification for unit tests: request decoding and error-to-status mapping
// are the HTTP contract; a stub service isolates them from the pipeline.

type stubService struct {
	got    lookup.Request
	report *lookup.Report
	err    error
	block  bool
}

func (s *stubService) Lookup(ctx context.Context, req lookup.Request) (*lookup.Report, error) {
	s.got = req
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.report, s.err
}

type HandlerSuite struct {
	suite.Suite
	logger  *slog.Logger
	service *stubService
	store   *auditmemory.Store
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = &stubService{report: &lookup.Report{Score: risk.Result{Score: 42}}}
	s.store = auditmemory.New()
	s.router = chi.NewRouter()
	handler.New(s.service, s.logger,
		handler.WithAuditReader(s.store, "ops-token"),
		handler.WithTimeout(50*time.Millisecond),
	).Register(s.router)
}

func (s *HandlerSuite) post(body string) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/lookup", body))
}

func (s *HandlerSuite) TestLookupDecodesRequest() {
	w := s.post(`{
		"number": {"e164": "+14155550100", "region": "US", "country_code": 1, "number_type": "mobile"},
		"adapters": [" DDG ", "public", "ddg"],
		"no_cache": true,
		"owner": {"allow_pii": true, "purpose": "fraud investigation", "consent_obtained": true, "caller": "cli"}
	}`)

	s.Equal(http.StatusOK, w.Code)
	s.Equal("+14155550100", s.service.got.Raw, "raw defaults to the E.164 form")
	s.Equal([]string{"ddg", "public"}, s.service.got.Adapters)
	s.True(s.service.got.NoCache)
	s.Require().NotNil(s.service.got.Owner)
	s.Equal("fraud investigation", s.service.got.Owner.Purpose)

	report := testutil.UnmarshalResponse[lookup.Report](s.T(), w)
	s.Equal(42, report.Score.Score)
}

func (s *HandlerSuite) TestLookupRejectsBadBodies() {
	testutil.AssertStatusAndError(s.T(), s.post(`{"number": `), http.StatusBadRequest, httputil.CodeBadRequest)
	testutil.AssertStatusAndError(s.T(), s.post(`{"phone": "+14155550100"}`), http.StatusBadRequest, httputil.CodeBadRequest)
}

func (s *HandlerSuite) TestLookupErrorMapping() {
	s.service.err = sentinel.ErrInvalidInput
	s.service.report = nil
	testutil.AssertStatusAndError(s.T(), s.post(`{"number":{"e164":"123"}}`), http.StatusBadRequest, httputil.CodeBadRequest)

	s.service.err = assert.AnError
	testutil.AssertStatusAndError(s.T(), s.post(`{"number":{"e164":"+14155550100"}}`), http.StatusInternalServerError, httputil.CodeInternal)
}

func (s *HandlerSuite) TestLookupTimeout() {
	s.service.block = true
	testutil.AssertStatusAndError(s.T(), s.post(`{"number":{"e164":"+14155550100"}}`), http.StatusGatewayTimeout, httputil.CodeTimeout)
}

func (s *HandlerSuite) TestAuditListing() {
	basis := domain.LegalBasis{Purpose: "fraud investigation", ConsentObtained: true}
	s.Require().NoError(s.store.Append(context.Background(), audit.NewRecord("callerid", basis, "analyst-7", audit.OutcomePIIReturned)))
	s.Require().NoError(s.store.Append(context.Background(), audit.NewRecord("callerid", basis, "analyst-9", audit.OutcomeNone)))

	get := func(url, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		if token != "" {
			req.Header.Set(admin.HeaderAdminToken, token)
		}
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		return w
	}

	s.Equal(http.StatusUnauthorized, get("/v1/audit", "").Code)
	s.Equal(http.StatusBadRequest, get("/v1/audit?limit=zero", "ops-token").Code)

	w := get("/v1/audit?caller=analyst-7", "ops-token")
	s.Require().Equal(http.StatusOK, w.Code)
	var body struct {
		Records []audit.Record `json:"records"`
	}
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&body))
	s.Require().Len(body.Records, 1)
	s.Equal("analyst-7", body.Records[0].Caller)

	w = get("/v1/audit?limit=10", "ops-token")
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&body))
	s.Len(body.Records, 2)
}

// TestEndToEndScamNumber drives the real pipeline over HTTP: the embedded
// dataset flags the number and the search adapter finds nothing.
func TestEndToEndScamNumber(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ddg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ddg.Close()

	client := httpclient.New(httpclient.Config{Timeout: time.Second, BackoffBase: time.Millisecond, BackoffCap: time.Millisecond})
	reg, err := lookup.NewRegistry(client, lookup.AdapterConfig{DuckDuckGoBaseURL: ddg.URL}, logger)
	require.NoError(t, err)
	svc := lookup.NewService(reg, orchestrator.New(orchestrator.WithLogger(logger)), lookup.WithLogger(logger))

	router := chi.NewRouter()
	handler.New(svc, logger).Register(router)

	body := []byte(`{"number":{"e164":"+14155550100","region":"US","country_code":1,"number_type":"fixed_line"}}`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/lookup", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	var report struct {
		Signals struct {
			FoundInScamDB bool `json:"found_in_scam_db"`
		} `json:"signals"`
		Score      risk.Result `json:"score"`
		Reputation struct {
			AdapterErrors map[string]string `json:"adapter_errors"`
		} `json:"reputation"`
		Evidence []map[string]any  `json:"evidence"`
		Summary  map[string]string `json:"summary"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&report))

	assert.True(t, report.Signals.FoundInScamDB)
	assert.Equal(t, 60.0, report.Score.Contribution(risk.SignalFoundInScamDB))
	assert.GreaterOrEqual(t, report.Score.Score, 60)
	assert.Empty(t, report.Reputation.AdapterErrors)
	require.Len(t, report.Evidence, 1)
	assert.Equal(t, "public_scam_db", report.Evidence[0]["source"])
	assert.Contains(t, report.Summary["executive_summary"], "Matched scam dataset: yes")
}
