package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cardledger/internal/domain"
)

// HealthCheck probes one dependency of a backend service. A failing critical
// check makes the service unhealthy; any other failure only degrades it.
type HealthCheck struct {
	Name     string
	Target   string
	Critical bool
	Probe    func(ctx context.Context) error
}

type HealthHandler struct {
	service string
	version string
	timeout time.Duration
	checks  []HealthCheck
}

func NewHealthHandler(service, version string, timeout time.Duration, checks ...HealthCheck) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{
		service: service,
		version: version,
		timeout: timeout,
		checks:  checks,
	}
}

func (h *HealthHandler) report(ctx context.Context) (domain.HealthReport, bool) {
	var (
		mu       sync.Mutex
		deps     = make(map[string]domain.ProbeResult, len(h.checks))
		critical = true
		degraded = false
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, check := range h.checks {
		check := check
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, h.timeout)
			defer cancel()

			start := time.Now()
			err := check.Probe(pctx)
			result := domain.ProbeResult{
				State:     domain.ProbeUp,
				URL:       check.Target,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				result.State = domain.ProbeError
				result.Error = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			deps[check.Name] = result
			if err != nil {
				if check.Critical {
					critical = false
				} else {
					degraded = true
				}
			}
			return nil
		})
	}
	g.Wait()

	status := domain.StatusHealthy
	switch {
	case !critical:
		status = domain.StatusUnhealthy
	case degraded:
		status = domain.StatusDegraded
	}

	return domain.HealthReport{
		Service:      h.service,
		Status:       status,
		Version:      h.version,
		Timestamp:    time.Now().UTC(),
		Dependencies: deps,
	}, critical
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report, ok := h.report(r.Context())
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, report)
}

// RegisterRoutes mounts /health plus the given legacy aliases.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux, aliases ...string) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	for _, alias := range aliases {
		mux.HandleFunc("GET "+alias, h.HealthCheck)
	}
}
