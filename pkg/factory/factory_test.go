package factory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardledger/internal/api"
	"cardledger/internal/config"
	"cardledger/internal/domain"
	"cardledger/pkg/logger"
)

func testConfig(t *testing.T, service config.ServiceName) *config.Config {
	return &config.Config{
		AppEnv:      "test",
		LogLevel:    "error",
		ServiceName: service,
		Version:     "test",
		Server:      config.ServerConfig{Port: "0", ShutdownTimeout: time.Second},
		Database: config.DatabaseConfig{
			Driver: "sqlite3",
			Path:   filepath.Join(t.TempDir(), string(service)+".db"),
		},
		Timeouts: config.TimeoutConfig{
			Validation:  time.Second,
			Proxy:       2 * time.Second,
			ReportFetch: 2 * time.Second,
			Probe:       time.Second,
		},
		Breaker: config.BreakerConfig{MaxFailures: 5, CoolDown: time.Minute},
	}
}

func startApp(t *testing.T, app *App, err error) *httptest.Server {
	t.Helper()
	require.NoError(t, err)
	srv := httptest.NewServer(app.Handler)
	t.Cleanup(func() {
		srv.Close()
		app.Close(context.Background())
	})
	return srv
}

type stack struct {
	users   *httptest.Server
	ledger  *httptest.Server
	gateway *httptest.Server
}

func startStack(t *testing.T) stack {
	ctx := context.Background()
	log := logger.NewNop()

	usersApp, err := NewUserServiceApp(ctx, testConfig(t, config.UserService), log)
	users := startApp(t, usersApp, err)

	ledgerCfg := testConfig(t, config.TransactionService)
	ledgerCfg.Services.UserServiceURL = users.URL
	ledgerApp, err := NewTransactionServiceApp(ctx, ledgerCfg, log, nil)
	ledger := startApp(t, ledgerApp, err)

	gwCfg := testConfig(t, config.Gateway)
	gwCfg.Services.UserServiceURL = users.URL
	gwCfg.Services.TransactionServiceURL = ledger.URL
	gwApp, err := NewGatewayApp(ctx, gwCfg, log, nil)
	gateway := startApp(t, gwApp, err)

	return stack{users: users, ledger: ledger, gateway: gateway}
}

func call(t *testing.T, method, url, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func errorKind(t *testing.T, raw []byte) domain.ErrorKind {
	t.Helper()
	var env api.ErrorEnvelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return env.Error.Kind
}

func TestStack_EndToEnd(t *testing.T) {
	s := startStack(t)
	gw := s.gateway.URL

	status, raw := call(t, http.MethodPost, gw+"/api/users", `{"nome":"Ana","email":"ana@x.com"}`)
	require.Equal(t, http.StatusCreated, status, string(raw))
	var ana domain.User
	require.NoError(t, json.Unmarshal(raw, &ana))
	assert.Equal(t, int64(1), ana.ID)

	status, raw = call(t, http.MethodPost, gw+"/api/transactions",
		`{"usuario_id":1,"descricao":"Padaria","valor":10.50,"cartao_tipo":"Crédito","cartao_final":"1234"}`)
	require.Equal(t, http.StatusCreated, status, string(raw))
	var tx domain.Transaction
	require.NoError(t, json.Unmarshal(raw, &tx))
	assert.Equal(t, int64(1), tx.UserID)
	assert.Equal(t, "10.50", tx.Amount.String())

	status, raw = call(t, http.MethodPost, gw+"/api/transactions",
		`{"usuario_id":999,"descricao":"Padaria","valor":10.50,"cartao_tipo":"Crédito","cartao_final":"1234"}`)
	require.Equal(t, http.StatusNotFound, status, string(raw))
	assert.Equal(t, domain.KindReferenceNotFound, errorKind(t, raw))

	status, raw = call(t, http.MethodGet, gw+"/api/transactions/user/999", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), `"transacoes":[]`)

	status, raw = call(t, http.MethodGet, gw+"/reports/user/1", "")
	require.Equal(t, http.StatusOK, status, string(raw))
	var report domain.UserReport
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Equal(t, "Ana", report.User.Name)
	require.Len(t, report.Transactions, 1)
	assert.Equal(t, "10.50", report.Summary.Total.String())
	assert.Equal(t, 1, report.Metadata.TotalRecords)

	status, raw = call(t, http.MethodGet, gw+"/health", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), `"status":"healthy"`)

	s.users.Close()

	status, raw = call(t, http.MethodPost, gw+"/api/transactions",
		`{"usuario_id":1,"descricao":"Mercado","valor":"20.00","cartao_tipo":"debito","cartao_final":"5678"}`)
	require.Equal(t, http.StatusBadGateway, status, string(raw))
	assert.Equal(t, domain.KindDependencyUnavailable, errorKind(t, raw))

	status, raw = call(t, http.MethodGet, gw+"/api/transactions/user/1", "")
	require.Equal(t, http.StatusOK, status, string(raw))
	var listing domain.UserTransactions
	require.NoError(t, json.Unmarshal(raw, &listing))
	assert.Len(t, listing.Transactions, 1, "the rejected transaction must not be stored")

	status, raw = call(t, http.MethodGet, gw+"/health", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), `"status":"degraded"`)

	status, raw = call(t, http.MethodGet, s.ledger.URL+"/health", "")
	require.Equal(t, http.StatusOK, status, "the user service is not critical for the ledger")
	assert.Contains(t, string(raw), `"status":"degraded"`)
}

func TestStack_ServiceEndpoints(t *testing.T) {
	s := startStack(t)

	for _, url := range []string{
		s.users.URL + "/health",
		s.users.URL + "/users/health",
		s.ledger.URL + "/transactions/health",
		s.gateway.URL + "/api",
	} {
		status, raw := call(t, http.MethodGet, url, "")
		assert.Equal(t, http.StatusOK, status, url+": "+string(raw))
	}

	status, raw := call(t, http.MethodGet, s.users.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "cardledger_http_requests_total")

	status, raw = call(t, http.MethodGet, s.users.URL+"/does-not-exist", "")
	require.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, domain.KindNotFound, errorKind(t, raw))
}

func TestApp_CloseRunsInReverseOrder(t *testing.T) {
	var order []int
	app := &App{}
	for i := 1; i <= 3; i++ {
		i := i
		app.onClose(func(context.Context) error {
			order = append(order, i)
			return nil
		})
	}

	require.NoError(t, app.Close(context.Background()))
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.NoError(t, app.Close(context.Background()))
}
