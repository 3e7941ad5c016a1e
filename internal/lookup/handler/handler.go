package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"phoneintel/internal/audit"
	"phoneintel/internal/lookup"
	"phoneintel/pkg/domain"
	"phoneintel/pkg/platform/httputil"
	"phoneintel/pkg/platform/middleware/admin"
	pstrings "phoneintel/pkg/platform/strings"
	"phoneintel/pkg/requestcontext"
)

const (
	maxBodyBytes      = 64 << 10
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// Service defines the interface for lookups.
type Service interface {
	Lookup(ctx context.Context, req lookup.Request) (*lookup.Report, error)
}

// AuditReader lists stored owner audit records.
type AuditReader interface {
	ListByCaller(ctx context.Context, caller string) ([]audit.Record, error)
	ListRecent(ctx context.Context, limit int) ([]audit.Record, error)
}

// Handler serves the lookup API.
type Handler struct {
	service    Service
	audit      AuditReader
	adminToken string
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures the Handler.
type Option func(*Handler)

// WithAuditReader exposes GET /v1/audit behind the admin token. Without a
// token the route is not mounted.
func WithAuditReader(r AuditReader, adminToken string) Option {
	return func(h *Handler) {
		h.audit = r
		h.adminToken = adminToken
	}
}

// WithTimeout bounds each lookup.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.timeout = d
	}
}

// New creates a new lookup Handler.
func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the lookup routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/lookup", h.handleLookup)
	if h.audit != nil && h.adminToken != "" {
		r.With(admin.RequireAdminToken(h.adminToken, h.logger)).Get("/v1/audit", h.handleListAudit)
	}
}

// LookupRequest is the POST /v1/lookup body.
type LookupRequest struct {
	Raw      string              `json:"raw"`
	Number   domain.ParsedNumber `json:"number"`
	Adapters []string            `json:"adapters"`
	NoCache  bool                `json:"no_cache"`
	Owner    *OwnerRequest       `json:"owner,omitempty"`
}

// OwnerRequest asks for owner intelligence.
type OwnerRequest struct {
	AllowPII        bool   `json:"allow_pii"`
	Purpose         string `json:"purpose"`
	ConsentObtained bool   `json:"consent_obtained"`
	Caller          string `json:"caller"`
}

func (req LookupRequest) toLookup() lookup.Request {
	out := lookup.Request{
		Raw:      req.Raw,
		Number:   req.Number,
		Adapters: pstrings.DedupeAndTrimLower(req.Adapters),
		NoCache:  req.NoCache,
	}
	if out.Raw == "" {
		out.Raw = req.Number.E164
	}
	if req.Owner != nil {
		out.Owner = &lookup.OwnerOptions{
			AllowPII:        req.Owner.AllowPII,
			Purpose:         req.Owner.Purpose,
			ConsentObtained: req.Owner.ConsentObtained,
			Caller:          req.Owner.Caller,
		}
	}
	return out
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var body LookupRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		h.logger.WarnContext(ctx, "invalid lookup request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, httputil.BadRequest("invalid request body", err))
		return
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	report, err := h.service.Lookup(ctx, body.toLookup())
	if err != nil {
		h.writeLookupError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) writeLookupError(ctx context.Context, w http.ResponseWriter, err error) {
	requestID := requestcontext.RequestID(ctx)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.WarnContext(ctx, "lookup timed out", "request_id", requestID)
		httputil.WriteError(w, httputil.NewError(http.StatusGatewayTimeout, httputil.CodeTimeout, "lookup timed out"))
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the response.
		h.logger.InfoContext(ctx, "lookup cancelled by client", "request_id", requestID)
	default:
		h.logger.ErrorContext(ctx, "lookup failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
	}
}

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		records []audit.Record
		err     error
	)
	if caller := r.URL.Query().Get("caller"); caller != "" {
		records, err = h.audit.ListByCaller(ctx, caller)
	} else {
		limit, perr := auditLimit(r.URL.Query().Get("limit"))
		if perr != nil {
			httputil.WriteError(w, perr)
			return
		}
		records, err = h.audit.ListRecent(ctx, limit)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit records",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"records": records})
}

func auditLimit(raw string) (int, error) {
	if raw == "" {
		return defaultAuditLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, httputil.BadRequest("limit must be a positive integer", err)
	}
	return min(n, maxAuditLimit), nil
}
