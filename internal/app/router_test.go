package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ppestock/internal/backup"
	backuphttp "github.com/odyssey-erp/ppestock/internal/backup/http"
	"github.com/odyssey-erp/ppestock/internal/calendar"
	jobmetrics "github.com/odyssey-erp/ppestock/internal/jobs"
	"github.com/odyssey-erp/ppestock/internal/observability"
	"github.com/odyssey-erp/ppestock/internal/platform/db"
	"github.com/odyssey-erp/ppestock/internal/products"
	producthttp "github.com/odyssey-erp/ppestock/internal/products/http"
)

func newTestServer(t *testing.T) (http.Handler, *db.Handle) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := t.TempDir()
	handle, err := db.Open(context.Background(), filepath.Join(root, "ppestock.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })

	metrics := observability.NewMetrics()
	jobs := jobmetrics.NewMetrics(metrics.Registerer())
	coord, err := backup.NewCoordinator(handle, backup.Config{Dir: filepath.Join(root, "backups"), CopyTimeout: time.Minute}, logger, jobs)
	require.NoError(t, err)
	coord.OnStoreReplaced(handle.Reopen)

	service := products.NewService(products.NewRepository(handle), logger)
	today := func() calendar.Date { return calendar.New(2026, time.October, 1) }
	router := NewRouter(RouterParams{
		Logger:         logger,
		Config:         &Config{AppEnv: "development", AppRequestTimeout: 5 * time.Second},
		ProductHandler: producthttp.NewHandler(logger, service, today),
		BackupHandler:  backuphttp.NewHandler(logger, coord, 10),
		Metrics:        metrics,
		Health:         func(r *http.Request) error { return handle.Ping(r.Context()) },
	})
	return router, handle
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "127.0.0.1:50000"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthzReflectsStore(t *testing.T) {
	router, handle := newTestServer(t)

	rr := serve(router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	require.NoError(t, handle.Close())
	rr = serve(router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestBackupRestoreRoundTripThroughAPI(t *testing.T) {
	router, _ := newTestServer(t)

	rr := serve(router, http.MethodPost, "/api/products", `{"name":"Luva X","batch":"L100","quantity":50,"expiry_date":"11/10/2026"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = serve(router, http.MethodPost, "/api/backups", "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var snap backup.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))

	rr = serve(router, http.MethodPost, "/api/products", `{"name":"Capacete","batch":"C1","quantity":2}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = serve(router, http.MethodPost, "/api/backups/"+snap.ID+"/restore", `{"confirm":true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var result backup.RestoreResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	require.False(t, result.RestartRequired)

	rr = serve(router, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)

	rr = serve(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `ppestock_jobs_total{job="backup_restore",status="success"} 1`)
	require.Contains(t, rr.Body.String(), `ppestock_http_requests_total{code="201"`)
}

func TestUnknownRouteIsProblem(t *testing.T) {
	router, _ := newTestServer(t)
	rr := serve(router, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}

func TestMiddlewareStackWithoutConfig(t *testing.T) {
	require.Len(t, MiddlewareStack(MiddlewareConfig{}), 6)
}
