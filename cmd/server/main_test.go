package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fitness-dashboard/internal/auth"
	"fitness-dashboard/internal/config"
	"fitness-dashboard/internal/handlers"
	"fitness-dashboard/internal/metrics"
	"fitness-dashboard/internal/predictor"
	"fitness-dashboard/internal/storage"
	"fitness-dashboard/internal/workouts"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupRouter(t *testing.T) {
	// Setup dependencies
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err, "failed to create database")
	defer db.Close()

	users := storage.NewJSONStore(filepath.Join(t.TempDir(), "users.json"))
	m := metrics.NewTestManager()

	// Use relative paths for tests running in cmd/server
	h := handlers.NewHandlers(handlers.Params{
		Users:       users,
		Sessions:    db,
		Workouts:    workouts.NewService(users, predictor.NewAdapter(nil)),
		Metrics:     m,
		TemplateDir: "../../web/templates",
	})

	if _, err := os.Stat("../../web/templates"); os.IsNotExist(err) {
		t.Skip("Template directory not found, skipping router test")
	}

	router := setupRouter(h, "../../web/static", m, []string{"http://localhost:5173"})

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantHeader map[string]string
	}{
		{
			name:       "Root redirects to /dashboard",
			method:     http.MethodGet,
			path:       "/",
			wantStatus: http.StatusFound,
			wantHeader: map[string]string{"Location": "/dashboard"},
		},
		{
			name:       "Static file access",
			method:     http.MethodGet,
			path:       "/static/style.css",
			wantStatus: http.StatusOK,
		},
		{
			name:       "Login page is public",
			method:     http.MethodGet,
			path:       "/login",
			wantStatus: http.StatusOK,
		},
		{
			name:       "Signup page is public",
			method:     http.MethodGet,
			path:       "/signup",
			wantStatus: http.StatusOK,
		},
		{
			name:       "Dashboard requires auth",
			method:     http.MethodGet,
			path:       "/dashboard",
			wantStatus: http.StatusFound,
			wantHeader: map[string]string{"Location": "/login"},
		},
		{
			name:       "Logging a workout requires auth",
			method:     http.MethodPost,
			path:       "/workouts",
			wantStatus: http.StatusFound,
		},
		{
			name:       "Logout only accepts POST",
			method:     http.MethodGet,
			path:       "/logout",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "API requires auth",
			method:     http.MethodGet,
			path:       "/api/dashboard",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "Metrics endpoint",
			method:     http.MethodGet,
			path:       "/metrics",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code, "%s %s returned unexpected status", tt.method, tt.path)
			for k, v := range tt.wantHeader {
				assert.Equal(t, v, w.Header().Get(k))
			}
			if w.Code != http.StatusMethodNotAllowed {
				assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
			}
		})
	}
}

func TestSetupRouterCORSPreflight(t *testing.T) {
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	users := storage.NewJSONStore(filepath.Join(t.TempDir(), "users.json"))
	m := metrics.NewTestManager()
	h := handlers.NewHandlers(handlers.Params{
		Users:       users,
		Sessions:    db,
		Workouts:    workouts.NewService(users, predictor.NewAdapter(nil)),
		Metrics:     m,
		TemplateDir: "../../web/templates",
	})
	router := setupRouter(h, "../../web/static", m, []string{"http://localhost:5173"})

	req := httptest.NewRequest(http.MethodOptions, "/api/dashboard", http.NoBody)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestBootstrapAdmin(t *testing.T) {
	ctx := context.Background()
	users := storage.NewJSONStore(filepath.Join(t.TempDir(), "users.json"))

	require.NoError(t, bootstrapAdmin(ctx, users, auth.SHA256Hasher{}, "", "secret1"))
	assert.Empty(t, users.Load(), "no admin without a username")

	require.NoError(t, bootstrapAdmin(ctx, users, auth.SHA256Hasher{}, "admin", "secret1"))
	admin, err := users.Get(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword("secret1", admin.PasswordHash))

	// an existing account keeps its password
	require.NoError(t, bootstrapAdmin(ctx, users, auth.SHA256Hasher{}, "admin", "other-pass"))
	admin, err = users.Get(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword("secret1", admin.PasswordHash))
}

func TestOpenUserStore(t *testing.T) {
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	cfg := config.Default()
	cfg.StorePath = filepath.Join(t.TempDir(), "users.json")
	assert.IsType(t, &storage.JSONStore{}, openUserStore(&cfg, db))

	cfg.StoreBackend = config.BackendSQLite
	assert.Same(t, db, openUserStore(&cfg, db))
}

type fakeCleaner struct {
	removed int64
	err     error
	calls   int
}

func (f *fakeCleaner) CleanExpiredSessions(context.Context) (int64, error) {
	f.calls++
	return f.removed, f.err
}

func TestCleanExpiredSessions(t *testing.T) {
	m := metrics.NewTestManager()

	cleaner := &fakeCleaner{removed: 3}
	cleanExpiredSessions(context.Background(), cleaner, m)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CounterSessionsCleaned))

	cleaner = &fakeCleaner{err: errors.New("db closed")}
	cleanExpiredSessions(context.Background(), cleaner, m)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CounterSessionsCleaned))
	assert.Equal(t, 1, cleaner.calls)
}

func TestCleanupSessionsStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cleaner := &fakeCleaner{}
	done := make(chan struct{})
	go func() {
		cleanupSessions(ctx, cleaner, time.Hour, metrics.NewTestManager())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
	assert.Equal(t, 1, cleaner.calls)
}
