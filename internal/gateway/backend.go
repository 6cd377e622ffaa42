package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cardledger/internal/api"
	"cardledger/internal/domain"
	"cardledger/pkg/circuitbreaker"
	"cardledger/pkg/logger"
	"cardledger/pkg/metrics"
	"cardledger/pkg/tracing"
)

const maxBackendBody = 4 << 20

type BackendConfig struct {
	Name        string
	URL         string
	Timeout     time.Duration
	MaxFailures uint32
	CoolDown    time.Duration
}

// Backend is one downstream service: a reverse proxy for passthrough
// traffic plus a JSON client for aggregation, both behind one breaker.
type Backend struct {
	Name    string
	URL     *url.URL
	timeout time.Duration

	proxy   *httputil.ReverseProxy
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  logger.Logger
}

type proxyErrKey struct{}

func NewBackend(cfg BackendConfig, transport http.RoundTripper, log logger.Logger) (*Backend, error) {
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse %s url: %w", cfg.Name, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("%s url %q must be absolute", cfg.Name, cfg.URL)
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}

	b := &Backend{
		Name:    cfg.Name,
		URL:     target,
		timeout: cfg.Timeout,
		client:  &http.Client{Transport: transport},
		logger:  log.WithFields(map[string]interface{}{"backend": cfg.Name}),
	}

	b.breaker = circuitbreaker.New(circuitbreaker.Settings{
		Name:        cfg.Name,
		Timeout:     cfg.CoolDown,
		ReadyToTrip: circuitbreaker.ConsecutiveFailures(cfg.MaxFailures),
		// A client that disconnected says nothing about the backend.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			metrics.SetCircuitBreakerState(name, int(to))
			b.logger.Warn("Backend circuit breaker state changed", map[string]interface{}{
				"from": from.String(),
				"to":   to.String(),
			})
		},
	})
	metrics.SetCircuitBreakerState(cfg.Name, int(circuitbreaker.StateClosed))

	b.proxy = &httputil.ReverseProxy{
		Transport:      transport,
		Rewrite:        b.rewrite,
		ModifyResponse: b.normalizeErrorResponse,
		ErrorHandler:   b.proxyError,
	}

	return b, nil
}

func (b *Backend) rewrite(pr *httputil.ProxyRequest) {
	pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, "/api")
	pr.Out.URL.RawPath = ""
	pr.SetURL(b.URL)
	pr.SetXForwarded()
	tracing.Inject(pr.Out.Context(), pr.Out.Header)
}

// ServeHTTP forwards the request with the /api prefix stripped. Transport
// failures, timeouts and an open breaker become a 502 envelope.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), b.timeout)
	defer cancel()

	var proxyErr error
	ctx = context.WithValue(ctx, proxyErrKey{}, &proxyErr)

	err := b.breaker.Execute(func() error {
		b.proxy.ServeHTTP(w, r.WithContext(ctx))
		return proxyErr
	})

	outcome := "ok"
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		outcome = "circuit_open"
		b.writeUnavailable(w, err)
	case err != nil:
		outcome = "unavailable"
	}
	metrics.RecordDependencyCall("gateway", b.Name, "proxy", outcome, time.Since(start))
}

func (b *Backend) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	if p, ok := r.Context().Value(proxyErrKey{}).(*error); ok {
		*p = err
	}
	b.logger.WarnContext(r.Context(), "Proxy request failed", map[string]interface{}{
		"path":  r.URL.Path,
		"error": err.Error(),
	})
	b.writeUnavailable(w, err)
}

func (b *Backend) writeUnavailable(w http.ResponseWriter, cause error) {
	msg := fmt.Sprintf("%s unavailable", b.Name)
	if errors.Is(cause, context.DeadlineExceeded) {
		msg = fmt.Sprintf("%s did not answer in time", b.Name)
	}
	api.WriteEnvelope(w, api.ErrorBody{
		Kind:    domain.KindDependencyUnavailable,
		Message: msg,
		Status:  http.StatusBadGateway,
		Service: "gateway",
	})
}

// normalizeErrorResponse rewrites any backend error body into the error
// envelope, keeping the status. Bodies that already are envelopes keep their
// kind and message.
func (b *Backend) normalizeErrorResponse(resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendBody))
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("read %s error body: %w", b.Name, err)
	}

	body := b.errorBody(resp.StatusCode, raw)
	encoded, err := json.Marshal(api.ErrorEnvelope{Error: body})
	if err != nil {
		return err
	}

	resp.Body = io.NopCloser(bytes.NewReader(encoded))
	resp.ContentLength = int64(len(encoded))
	resp.Header.Set("Content-Length", strconv.Itoa(len(encoded)))
	resp.Header.Set("Content-Type", "application/json; charset=utf-8")
	return nil
}

func (b *Backend) errorBody(status int, raw []byte) api.ErrorBody {
	var env api.ErrorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Kind != "" {
		body := env.Error
		body.Status = status
		if body.Service == "" {
			body.Service = b.Name
		}
		if body.Message == "" {
			body.Message = http.StatusText(status)
		}
		return body
	}

	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return api.ErrorBody{
		Kind:    domain.KindFromStatus(status),
		Message: msg,
		Status:  status,
		Service: b.Name,
	}
}

// getJSON fetches path from the backend and decodes a 200 body into dst. A
// non-200 answer is returned as a domain error carrying the backend's kind.
func (b *Backend) getJSON(ctx context.Context, operation, path string, dst interface{}) error {
	start := time.Now()
	outcome := "ok"
	defer func() {
		metrics.RecordDependencyCall("gateway", b.Name, operation, outcome, time.Since(start))
	}()

	var answered *api.ErrorBody
	err := b.breaker.Execute(func() error {
		status, raw, err := b.get(ctx, path)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			body := b.errorBody(status, raw)
			answered = &body
			if status >= http.StatusInternalServerError {
				return fmt.Errorf("%s answered %d", b.Name, status)
			}
			return nil
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("decode %s response: %w", b.Name, err)
		}
		return nil
	})

	switch {
	case err != nil:
		outcome = "unavailable"
		return domain.WrapError(domain.KindDependencyUnavailable, err, "%s unavailable", b.Name)
	case answered != nil:
		outcome = strings.ToLower(string(answered.Kind))
		return domain.NewError(answered.Kind, "%s", answered.Message)
	}
	return nil
}

func (b *Backend) get(ctx context.Context, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.URL.String()+path, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	tracing.Inject(ctx, req.Header)

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendBody))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

// Probe calls the backend health endpoint directly, bypassing the breaker so
// the reported state is always current.
func (b *Backend) Probe(ctx context.Context, timeout time.Duration) domain.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result := domain.ProbeResult{URL: b.URL.String() + "/health"}

	status, _, err := b.get(ctx, "/health")
	result.LatencyMS = time.Since(start).Milliseconds()

	switch {
	case err != nil:
		result.State = domain.ProbeUnreachable
		result.Error = err.Error()
	case status != http.StatusOK:
		result.State = domain.ProbeError
		result.StatusCode = status
	default:
		result.State = domain.ProbeUp
		result.StatusCode = status
	}

	metrics.RecordDependencyCall("gateway", b.Name, "health", string(result.State), time.Since(start))
	return result
}
