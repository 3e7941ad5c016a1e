// Package httpclient is the rate-limited, retrying HTTP transport shared by
// every network-backed evidence adapter.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"phoneintel/internal/transport/ratelimit"
)

const (
	maxBodyBytes  = 4 << 20
	maxErrorBytes = 512
)

// Config configures retry and timeout behaviour.
type Config struct {
	// Timeout bounds a single HTTP attempt, not the whole retry sequence.
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	UserAgent   string
}

// DefaultConfig returns conservative defaults suitable for public APIs.
func DefaultConfig() Config {
	return Config{
		Timeout:     10 * time.Second,
		MaxRetries:  2,
		BackoffBase: 500 * time.Millisecond,
		BackoffCap:  8 * time.Second,
		UserAgent:   "phoneintel/1.0 (lawful OSINT only)",
	}
}

// Request describes one logical request; retries reuse it.
type Request struct {
	Method string
	URL    string
	Params url.Values
	Header http.Header
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON unmarshals the response body into target.
func (r *Response) JSON(target any) error {
	return json.Unmarshal(r.Body, target)
}

// Client issues requests with per-host pacing and full-jitter backoff.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *ratelimit.HostLimiter
	logger  *slog.Logger
	jitter  func() float64
}

// Option configures a Client.
type Option func(*Client)

// WithLimiter shares a per-host limiter across clients and adapters.
func WithLimiter(l *ratelimit.HostLimiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithLogger sets a logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTransport overrides the underlying RoundTripper (tests, proxies).
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.Transport = rt
	}
}

// WithJitter replaces the [0,1) random source used for backoff jitter.
func WithJitter(fn func() float64) Option {
	return func(c *Client) {
		c.jitter = fn
	}
}

// New builds a Client. Zero-valued config fields fall back to DefaultConfig.
func New(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = def.BackoffCap
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.New(slog.DiscardHandler),
		jitter: rand.Float64,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backoff computes min(ceiling, base*2^attempt) scaled by a jitter factor in
// [0.8, 1.2). r must be in [0,1).
func Backoff(attempt int, base, ceiling time.Duration, r float64) time.Duration {
	raw := float64(base) * math.Pow(2, float64(attempt))
	if raw > float64(ceiling) || math.IsInf(raw, 1) {
		raw = float64(ceiling)
	}
	return time.Duration(raw * (0.8 + 0.4*r))
}

func (c *Client) backoff(attempt int) time.Duration {
	return Backoff(attempt, c.cfg.BackoffBase, c.cfg.BackoffCap, c.jitter())
}

// Do executes req. Attempts are strictly sequential. Cancellation of ctx is
// returned as ctx.Err() from any suspension point and is never retried.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target, err := buildURL(req.URL, req.Params)
	if err != nil {
		return nil, err
	}
	host := ratelimit.HostOf(target)

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx, host); err != nil {
			return nil, err
		}

		resp, err := c.send(ctx, method, target, req.Header)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if attempt == c.cfg.MaxRetries {
				return nil, &TransportError{Method: method, URL: redact(target), Attempts: attempt + 1, Err: err}
			}
			delay := c.backoff(attempt)
			c.logger.DebugContext(ctx, "transport failure, retrying",
				"host", host,
				"attempt", attempt,
				"delay_ms", delay.Milliseconds(),
				"error", err,
			)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case IsRetryableStatus(resp.StatusCode):
			if attempt == c.cfg.MaxRetries {
				return nil, c.statusError(method, target, resp, true)
			}
			delay := c.backoff(attempt)
			if ra, ok := retryAfter(resp.Header); ok && ra > delay {
				delay = ra
			}
			drain(resp)
			c.logger.DebugContext(ctx, "retryable status, retrying",
				"host", host,
				"status", resp.StatusCode,
				"attempt", attempt,
				"delay_ms", delay.Milliseconds(),
			)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, c.statusError(method, target, resp, false)
		default:
			return c.read(ctx, method, target, attempt, resp)
		}
	}

	// Loop always returns; keep the compiler satisfied.
	return nil, &TransportError{Method: method, URL: redact(target), Attempts: c.cfg.MaxRetries + 1, Err: errors.New("attempts exhausted")}
}

// GetJSON issues a GET and decodes a top-level JSON object.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values) (map[string]any, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Params: params})
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := resp.JSON(&out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", redact(rawURL), err)
	}
	if out == nil {
		return nil, fmt.Errorf("decode %s: expected a JSON object at the top level", redact(rawURL))
	}
	return out, nil
}

func (c *Client) send(ctx context.Context, method, target string, header http.Header) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	return c.http.Do(httpReq)
}

func (c *Client) read(ctx context.Context, method, target string, attempt int, resp *http.Response) (*Response, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{Method: method, URL: redact(target), Attempts: attempt + 1, Err: fmt.Errorf("read body: %w", err)}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (c *Client) statusError(method, target string, resp *http.Response, retryable bool) *HTTPError {
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
	return &HTTPError{
		Method:     method,
		URL:        redact(target),
		StatusCode: resp.StatusCode,
		Retryable:  retryable,
		Body:       strings.TrimSpace(string(snippet)),
	}
}

// drain consumes the rest of the body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()
}

// retryAfter parses a delta-seconds Retry-After header.
func retryAfter(h http.Header) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func buildURL(raw string, params url.Values) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// redact strips the query string so credentials passed as parameters never
// reach error messages or logs.
func redact(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}
