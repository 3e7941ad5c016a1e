package owner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"phoneintel/internal/audit"
	"phoneintel/internal/evidence"
	"phoneintel/pkg/domain"
)

// DefaultCaller is recorded when no caller identity is known.
const DefaultCaller = "unknown"

const adapterLimit = 5

// OutcomeKind tags how an adapter invocation ended.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeDenied
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeDenied:
		return "denied"
	default:
		return "failed"
	}
}

// Outcome is the tagged result of one adapter invocation. Result is set only
// for OutcomeSuccess; Err is set for the other kinds.
type Outcome struct {
	Kind   OutcomeKind
	Result AdapterResult
	Err    error
}

// AuditResult maps the outcome to the recorded audit result.
func (o Outcome) AuditResult() audit.Outcome {
	switch {
	case o.Kind != OutcomeSuccess:
		return audit.OutcomeError
	case o.Result.PII != nil:
		return audit.OutcomePIIReturned
	default:
		return audit.OutcomeNone
	}
}

// Invoke calls a and tags the result. Cancellation of ctx is returned as an
// error rather than an Outcome so callers never record it.
func Invoke(ctx context.Context, a Adapter, e164 string, basis *domain.LegalBasis, limit int, caller string) (Outcome, error) {
	res, err := a.LookupOwner(ctx, e164, basis, limit, caller)
	switch {
	case err == nil:
		return Outcome{Kind: OutcomeSuccess, Result: res}, nil
	case ctx.Err() != nil:
		return Outcome{}, ctx.Err()
	case errors.Is(err, ErrConsentRequired):
		return Outcome{Kind: OutcomeDenied, Err: err}, nil
	default:
		return Outcome{Kind: OutcomeFailed, Err: err}, nil
	}
}

// BuildRequest is the input to Engine.Build.
type BuildRequest struct {
	E164       string
	Parsed     domain.ParsedNumber
	Evidence   []evidence.Evidence
	VoIP       bool
	AllowPII   bool
	LegalBasis *domain.LegalBasis
	Caller     string
}

// Engine composes public evidence with owner adapters.
type Engine struct {
	adapters []Adapter
	weights  ConfidenceWeights
	sink     audit.Sink
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures the Engine.
type Option func(*Engine)

func WithAdapters(adapters ...Adapter) Option {
	return func(e *Engine) { e.adapters = append(e.adapters, adapters...) }
}

// WithWeights overrides confidence weights by name.
func WithWeights(w ConfidenceWeights) Option {
	return func(e *Engine) { e.weights = w }
}

// WithAuditSink persists audit records as they are produced. A sink error
// aborts Build so PII is never returned without a durable record.
func WithAuditSink(s audit.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer("phoneintel/owner") }
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger: slog.Default(),
		tracer: otel.Tracer("phoneintel/owner"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Build derives the owner report. Non-PII adapters always run; PII-capable
// adapters run only when AllowPII is set and the legal basis records
// consent. Each PII-capable invocation with a legal basis yields exactly one
// audit record, returned in call order and appended to the sink.
func (e *Engine) Build(ctx context.Context, req BuildRequest) (*Result, []audit.Record, error) {
	ctx, span := e.tracer.Start(ctx, "owner.build",
		trace.WithAttributes(attribute.Bool("owner.allow_pii", req.AllowPII)))
	defer span.End()

	caller := req.Caller
	if caller == "" {
		caller = DefaultCaller
	}

	assocs := AssociationsFromEvidence(req.Evidence)
	records := []audit.Record{}
	var pii *PII

	for _, a := range e.adapters {
		if a.PIICapable() && !(req.AllowPII && req.LegalBasis.Permits()) {
			continue
		}

		out, err := Invoke(ctx, a, req.E164, req.LegalBasis, adapterLimit, caller)
		if err != nil {
			span.SetStatus(codes.Error, "canceled")
			return nil, records, err
		}

		switch out.Kind {
		case OutcomeSuccess:
			assocs = append(assocs, out.Result.Associations...)
			if pii == nil && out.Result.PII != nil {
				pii = out.Result.PII
			}
		default:
			e.logger.WarnContext(ctx, "owner adapter did not succeed",
				"adapter", a.Name(),
				"outcome", out.Kind.String(),
				"error", out.Err,
			)
		}

		if a.PIICapable() && req.LegalBasis != nil {
			rec := audit.NewRecord(a.Name(), *req.LegalBasis, caller, out.AuditResult())
			if e.sink != nil {
				if err := e.sink.Append(ctx, rec); err != nil {
					span.SetStatus(codes.Error, "audit failed")
					return nil, records, fmt.Errorf("owner lookup aborted: %w", err)
				}
			}
			records = append(records, rec)
		}
	}

	piiAllowed := req.AllowPII && req.LegalBasis.Permits() && pii != nil
	var consented *PII
	if piiAllowed {
		consented = pii
	}

	ownership := Classify(req.Parsed, assocs, req.VoIP, consented)
	sig := ExtractSignals(req.Evidence, assocs, req.VoIP, piiAllowed)
	conf := ScoreConfidence(ownership, sig, e.weights)

	span.SetAttributes(
		attribute.String("owner.ownership_type", string(ownership)),
		attribute.Int("owner.audit_records", len(records)),
	)

	return &Result{
		OwnershipType:       ownership,
		Associations:        assocs,
		Signals:             sig,
		ConfidenceScore:     conf.Score,
		ConfidenceBreakdown: conf.Breakdown,
		PIIAllowed:          piiAllowed,
		PII:                 consented,
	}, records, nil
}
