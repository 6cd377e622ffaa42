package gateway

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cardledger/internal/api"
	"cardledger/internal/domain"
	"cardledger/pkg/logger"
)

type Config struct {
	Version      string
	ProbeTimeout time.Duration
	ReportFetch  time.Duration
}

type Gateway struct {
	users   *Backend
	ledger  *Backend
	reports *ReportBuilder
	cfg     Config
	respond api.Responder
	logger  logger.Logger
}

func New(users, ledger *Backend, cfg Config, log logger.Logger) *Gateway {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 2 * time.Second
	}
	return &Gateway{
		users:   users,
		ledger:  ledger,
		reports: NewReportBuilder(users, ledger, cfg.ReportFetch),
		cfg:     cfg,
		respond: api.Responder{Service: "gateway", Logger: log},
		logger:  log,
	}
}

type routeInfo struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

type descriptor struct {
	Service string      `json:"service"`
	Version string      `json:"version"`
	Routes  []routeInfo `json:"routes"`
}

var routes = []routeInfo{
	{"*", "/api/users[/...]", "proxied to the user service"},
	{"*", "/api/transactions[/...]", "proxied to the transaction service"},
	{"GET", "/api/reports/user/{id}", "aggregated user report"},
	{"GET", "/health", "composite health of all backends"},
	{"GET", "/metrics", "prometheus metrics"},
}

func (g *Gateway) Describe(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, descriptor{
		Service: "gateway",
		Version: g.cfg.Version,
		Routes:  routes,
	})
}

func (g *Gateway) UserReport(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "id")
	if err != nil {
		g.respond.Error(w, r, err)
		return
	}

	report, err := g.reports.Build(r.Context(), id)
	if err != nil {
		g.respond.Error(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, report)
}

// Health probes every backend concurrently. It always answers 200; the
// payload carries the verdict.
func (g *Gateway) Health(w http.ResponseWriter, r *http.Request) {
	backends := []*Backend{g.users, g.ledger}

	var mu sync.Mutex
	probes := make(map[string]domain.ProbeResult, len(backends))

	eg, ctx := errgroup.WithContext(r.Context())
	for _, b := range backends {
		b := b
		eg.Go(func() error {
			result := b.Probe(ctx, g.cfg.ProbeTimeout)
			mu.Lock()
			probes[b.Name] = result
			mu.Unlock()
			return nil
		})
	}
	eg.Wait()

	api.WriteJSON(w, http.StatusOK, domain.HealthReport{
		Service:      "gateway",
		Status:       domain.AggregateHealth(probes),
		Version:      g.cfg.Version,
		Timestamp:    time.Now().UTC(),
		Dependencies: probes,
	})
}

func (g *Gateway) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api", g.Describe)
	mux.HandleFunc("GET /health", g.Health)
	mux.HandleFunc("GET /api/reports/user/{id}", g.UserReport)
	mux.HandleFunc("GET /reports/user/{id}", g.UserReport)

	mux.Handle("/api/users", g.users)
	mux.Handle("/api/users/", g.users)
	mux.Handle("/api/transactions", g.ledger)
	mux.Handle("/api/transactions/", g.ledger)

	mux.Handle("/", g.respond.NotFoundHandler())
}

