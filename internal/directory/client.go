// Package directory is the ledger's HTTP client for the user service. Every
// call answers with a definite outcome; transport trouble never surfaces as
// "user not found".
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cardledger/internal/domain"
	"cardledger/pkg/circuitbreaker"
	"cardledger/pkg/logger"
	"cardledger/pkg/metrics"
	"cardledger/pkg/tracing"
)

const maxBodyBytes = 1 << 20

const userServiceName = "user-service"

// errUserNotFound lets a 404 travel through the breaker as a success.
var errUserNotFound = errors.New("user not found")

// notFoundEnvelope is the part of the user service error body needed to tell
// "no such user" apart from a 404 that came from somewhere else.
type notFoundEnvelope struct {
	Error struct {
		Kind    domain.ErrorKind `json:"kind"`
		Service string           `json:"service"`
	} `json:"error"`
}

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxFailures uint32
	CoolDown    time.Duration
	Caller      string
}

type Client struct {
	baseURL    string
	timeout    time.Duration
	caller     string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     logger.Logger
}

func NewClient(cfg Config, httpClient *http.Client, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Caller == "" {
		cfg.Caller = "transaction-service"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}

	breaker := circuitbreaker.New(circuitbreaker.Settings{
		Name:        userServiceName,
		Timeout:     cfg.CoolDown,
		ReadyToTrip: circuitbreaker.ConsecutiveFailures(cfg.MaxFailures),
		// A caller that went away says nothing about the user service.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errUserNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			metrics.SetCircuitBreakerState(name, int(to))
			log.Warn("Circuit breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
	metrics.SetCircuitBreakerState(breaker.Name(), int(circuitbreaker.StateClosed))

	return &Client{
		baseURL:    cfg.BaseURL,
		timeout:    cfg.Timeout,
		caller:     cfg.Caller,
		httpClient: httpClient,
		breaker:    breaker,
		logger:     log,
	}
}

// LookupUser asks the user service whether id exists. It never retries.
func (c *Client) LookupUser(ctx context.Context, id int64) domain.UserLookup {
	ctx, span := tracing.StartSpan(ctx, "directory.LookupUser",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int64("user.id", id)),
	)
	defer span.End()

	start := time.Now()
	var user *domain.User
	err := c.breaker.Execute(func() error {
		u, err := c.fetchUser(ctx, id)
		user = u
		return err
	})

	var result domain.UserLookup
	switch {
	case err == nil:
		result = domain.UserLookup{Outcome: domain.LookupFound, User: user}
	case errors.Is(err, errUserNotFound):
		result = domain.UserLookup{Outcome: domain.LookupNotFound}
	default:
		result = domain.UserLookup{Outcome: domain.LookupUnavailable, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(attribute.String("lookup.outcome", result.Outcome.String()))
	metrics.RecordDependencyCall(c.caller, "user-service", "lookup_user", result.Outcome.String(), time.Since(start))
	return result
}

func (c *Client) fetchUser(ctx context.Context, id int64) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/users/%d", c.baseURL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	tracing.Inject(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call user service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read user service response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		if isUserNotFound(body) {
			return nil, errUserNotFound
		}
		return nil, errors.New("user service answered 404 without a NotFound error body")
	default:
		return nil, fmt.Errorf("user service answered %d", resp.StatusCode)
	}

	var user domain.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("decode user service response: %w", err)
	}
	if user.ID != id {
		return nil, fmt.Errorf("user service returned id %d for %d", user.ID, id)
	}
	return &user, nil
}

// isUserNotFound accepts only the user service's own NotFound envelope. A bare
// 404 usually means a wrong base URL or an unmatched route.
func isUserNotFound(body []byte) bool {
	var env notFoundEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return false
	}
	if env.Error.Kind != domain.KindNotFound {
		return false
	}
	return env.Error.Service == "" || env.Error.Service == userServiceName
}

// Ping checks the user service health endpoint. The ledger reports the result
// but keeps serving when it fails.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	tracing.Inject(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("user service health answered %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}
