package routes

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"countertime/internal/config"
	"countertime/internal/logger"
	"countertime/internal/middleware"
	"countertime/internal/repository/sqlite"
	"countertime/internal/services/analysis"
	"countertime/internal/services/websocket"
	"countertime/internal/zone"
)

func setupRouter(t *testing.T) http.Handler {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "routes.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log, err := logger.New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	runs := sqlite.NewRunRepository(db)
	visits := sqlite.NewVisitRepository(db)
	runner := analysis.NewRunner(analysis.RunnerConfig{Zones: zone.Default(), Runs: runs, Visits: visits}, log)
	t.Cleanup(runner.Stop)

	svc := Services{
		Runner:    runner,
		Hub:       websocket.NewHubService(log),
		Runs:      runs,
		Visits:    visits,
		Snapshots: sqlite.NewSnapshotRepository(db),
	}
	return SetupRoutes(svc, &config.Config{Password: "secret", UploadDirectory: t.TempDir()}, log)
}

func TestSetupRoutes_RequiresLogin(t *testing.T) {
	router := setupRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/zones", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without cookie, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report", nil))
	if rec.Code != http.StatusSeeOther && rec.Code != http.StatusFound {
		t.Errorf("Expected redirect for browsers, got %d", rec.Code)
	}
}

func TestSetupRoutes_Authenticated(t *testing.T) {
	router := setupRouter(t)
	cookie := &http.Cookie{Name: middleware.AuthCookie, Value: "true"}

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/zones", http.StatusOK},
		{http.MethodGet, "/api/runs", http.StatusOK},
		{http.MethodGet, "/api/report", http.StatusNotFound},
		{http.MethodGet, "/api/analyze", http.StatusMethodNotAllowed},
		{http.MethodGet, "/logs/info", http.StatusOK},
		{http.MethodPost, "/logs/error/clear", http.StatusNoContent},
		{http.MethodGet, "/no-such-page", http.StatusNotFound},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != tt.status {
			t.Errorf("%s %s = %d, expected %d", tt.method, tt.path, rec.Code, tt.status)
		}
	}
}
