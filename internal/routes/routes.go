package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"countertime/internal/config"
	"countertime/internal/handlers"
	"countertime/internal/logger"
	"countertime/internal/middleware"
	"countertime/internal/repository"
	"countertime/internal/services/analysis"
	"countertime/internal/services/websocket"
)

// Services are the dependencies the HTTP layer talks to. Videos may be nil
// when the detector is unavailable; track logs still work then.
type Services struct {
	Runner    *analysis.Runner
	Videos    handlers.VideoAnalyzer
	Hub       *websocket.HubService
	Runs      repository.RunRepository
	Visits    repository.VisitRepository
	Snapshots repository.SnapshotRepository
}

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", path+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(svc Services, cfg *config.Config, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()
	reports := handlers.NewReportService(svc.Runner, svc.Runs, svc.Visits)

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// Live preview and visit events
	mux.HandleFunc("/api/view", handlers.ViewWebsocketHandler(svc.Hub))

	// Analysis
	mux.HandleFunc("/api/analyze", handlers.AnalyzeHandler(svc.Runner, svc.Videos, cfg, log))
	mux.HandleFunc("/api/report", handlers.ReportHandler(reports, log))
	mux.HandleFunc("/api/report.csv", handlers.ReportCSVHandler(reports, log))
	mux.HandleFunc("/api/report/chart", handlers.ReportChartHandler(reports, log))
	mux.HandleFunc("/api/runs", handlers.RunsHandler(svc.Runner, svc.Runs, log))
	mux.HandleFunc("/api/runs/delete", handlers.DeleteRunHandler(svc.Runner, svc.Runs, svc.Snapshots, log))
	mux.HandleFunc("/api/zones", handlers.ZonesHandler(svc.Runner.Zones(), log))

	// Entry snapshots
	mux.HandleFunc("/api/snapshots", handlers.SnapshotsHandler(reports, svc.Snapshots, log))
	mux.HandleFunc("/api/snapshots/view", handlers.ViewSnapshotHandler(cfg))

	// Log endpoints
	for level, file := range map[string]string{
		"info":    logger.InfoFile,
		"warning": logger.WarningFile,
		"error":   logger.ErrorFile,
	} {
		mux.HandleFunc("/logs/"+level, handlers.ShowLogsHandler(log, file))
		mux.HandleFunc("/logs/"+level+"/clear", handlers.ClearLogsHandler(log, file))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handlers.LoginHandler(cfg, log))
	mux.HandleFunc("/auth/logout", handlers.LogoutHandler)

	// Automatic HTML handler mapping for example: /report -> /static/report.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	// Apply middleware
	return middleware.AuthMiddleware(mux)
}
