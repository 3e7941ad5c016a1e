// Package lookup runs the full reputation pipeline for one number: adapter
// selection, concurrent evidence gathering, owner intelligence, operator
// overrides and risk scoring.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"phoneintel/internal/evidence"
	"phoneintel/internal/evidence/cache"
	"phoneintel/internal/evidence/orchestrator"
	"phoneintel/internal/owner"
	"phoneintel/internal/platform/metrics"
	"phoneintel/internal/risk"
	"phoneintel/internal/signals"
	"phoneintel/pkg/domain"
	"phoneintel/pkg/platform/sentinel"
	"phoneintel/pkg/requestcontext"
)

// DefaultAdapters is used when a request names none.
var DefaultAdapters = []string{"duckduckgo", "public"}

// Service wires the pipeline stages together. It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	registry     *evidence.Registry
	orchestrator *orchestrator.Orchestrator
	cacheStore   cache.Store
	cacheOpts    []cache.Option
	engine       *owner.Engine
	overrides    signals.Overrides
	weights      risk.Weights
	defaults     []string
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithCache wraps every selected adapter with a cache-aside layer over store.
// A nil store disables caching.
func WithCache(store cache.Store, opts ...cache.Option) Option {
	return func(s *Service) {
		s.cacheStore = store
		s.cacheOpts = opts
	}
}

// WithOwnerEngine enables owner intelligence for requests that ask for it.
func WithOwnerEngine(e *owner.Engine) Option {
	return func(s *Service) {
		s.engine = e
	}
}

// WithOverrides sets the operator signal overrides.
func WithOverrides(o signals.Overrides) Option {
	return func(s *Service) {
		s.overrides = o
	}
}

// WithWeights sets risk weight overrides merged over the defaults.
func WithWeights(w risk.Weights) Option {
	return func(s *Service) {
		s.weights = w
	}
}

// WithDefaultAdapters replaces DefaultAdapters for this service.
func WithDefaultAdapters(names []string) Option {
	return func(s *Service) {
		if len(names) > 0 {
			s.defaults = names
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates the lookup service.
func NewService(registry *evidence.Registry, orch *orchestrator.Orchestrator, opts ...Option) *Service {
	s := &Service{
		registry:     registry,
		orchestrator: orch,
		overrides:    signals.Overrides{},
		defaults:     DefaultAdapters,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup produces a report. Invalid input wraps sentinel.ErrInvalidInput;
// cancellation returns ctx's error untouched. Individual adapter failures
// are reported inside the report, never as an error.
func (s *Service) Lookup(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	report, err := s.lookup(ctx, req)
	s.metrics.ObserveLookup(outcomeLabel(err), time.Since(start))
	return report, err
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, sentinel.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

func (s *Service) lookup(ctx context.Context, req Request) (*Report, error) {
	e164, err := domain.ParseE164(req.Number.E164)
	if err != nil {
		return nil, err
	}
	parsed := req.Number
	parsed.E164 = e164

	basis, err := legalBasis(req.Owner)
	if err != nil {
		return nil, err
	}

	names := req.Adapters
	if len(names) == 0 {
		names = s.defaults
	}
	sel, err := s.registry.Select(names)
	if err != nil {
		return nil, fmt.Errorf("select adapters: %w", err)
	}
	for _, n := range sel.Unknown {
		s.logger.WarnContext(ctx, "unknown adapter requested", "adapter", n)
	}
	for n, reason := range sel.Disabled {
		s.logger.WarnContext(ctx, "adapter disabled", "adapter", n, "reason", reason)
	}

	adapters := sel.Adapters
	if s.cacheStore != nil && !req.NoCache {
		adapters = cache.WrapAll(adapters, s.cacheStore, s.cacheOpts...)
	}

	run, err := s.orchestrator.Run(ctx, adapters, e164)
	if err != nil {
		return nil, err
	}
	items := run.Evidence

	foundInScamDB := signals.FoundInScamDB(items)
	domainSignals := signals.Infer(items)

	report := &Report{
		Metadata: Metadata{
			Tool:        Tool,
			Version:     Version,
			GeneratedAt: requestcontext.Now(ctx).UTC(),
		},
		Query: Query{
			Raw:      req.Raw,
			Adapters: names,
			NoCache:  req.NoCache,
		},
		Normalized: parsed,
		Reputation: Reputation{
			AdapterErrors:   run.Errors,
			UnknownAdapters: sel.Unknown,
		},
	}
	if len(sel.Disabled) > 0 {
		report.Reputation.DisabledAdapters = sel.Disabled
	}

	if req.Owner != nil && s.engine != nil {
		caller := requestcontext.Caller(ctx)
		if caller == "" {
			caller = req.Owner.Caller
		}
		res, records, err := s.engine.Build(ctx, owner.BuildRequest{
			E164:       e164,
			Parsed:     parsed,
			Evidence:   items,
			VoIP:       parsed.IsVoIP(),
			AllowPII:   req.Owner.AllowPII,
			LegalBasis: basis,
			Caller:     caller,
		})
		if err != nil {
			return nil, err
		}
		report.OwnerIntel = res
		report.OwnerAudit = records
		s.metrics.IncrementOwnerLookup(string(res.OwnershipType), res.PIIAllowed)
	}

	voip, domainSignals, hits := s.overrides.Apply(e164, parsed.NumberType, domainSignals)
	fired := hits.Fired()
	for _, name := range fired {
		s.metrics.IncrementOverride(name)
		s.logger.InfoContext(ctx, "signal override applied", "signal", name, "e164", e164)
	}
	items = append(items, signals.OverrideEvidence(e164, hits)...)

	score := risk.Score(risk.Input{
		FoundInScamDB:      foundInScamDB,
		VoIP:               voip,
		FoundInClassifieds: domainSignals.FoundInClassifieds,
		BusinessListing:    domainSignals.BusinessListing,
	}, s.weights)
	s.metrics.ObserveScore(score.Score)

	if fired == nil {
		fired = []string{}
	}
	report.Evidence = items
	report.Signals = Signals{
		FoundInScamDB:      foundInScamDB,
		VoIP:               voip,
		FoundInClassifieds: domainSignals.FoundInClassifieds,
		BusinessListing:    domainSignals.BusinessListing,
		Overrides:          fired,
	}
	report.Score = score
	report.Summary = Summary{
		ExecutiveSummary: executiveSummary(score.Score, foundInScamDB, len(items)),
		LegalDisclaimer:  LegalDisclaimer,
	}

	s.logger.InfoContext(ctx, "lookup finished",
		"adapters", len(adapters),
		"failed_adapters", len(run.Errors),
		"evidence", len(items),
		"score", score.Score,
		"request_id", requestcontext.RequestID(ctx),
	)
	return report, nil
}

// legalBasis parses owner options into a basis. No purpose means no basis,
// which is only an error when PII was explicitly requested.
func legalBasis(opts *OwnerOptions) (*domain.LegalBasis, error) {
	if opts == nil {
		return nil, nil
	}
	if strings.TrimSpace(opts.Purpose) == "" && !opts.AllowPII {
		return nil, nil
	}
	basis, err := domain.ParseLegalBasis(opts.Purpose, opts.ConsentObtained)
	if err != nil {
		return nil, fmt.Errorf("owner lookup: %w", err)
	}
	return basis, nil
}
