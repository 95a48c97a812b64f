package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"countertime/internal/config"
	"countertime/internal/logger"
	"countertime/internal/repository/sqlite"
	"countertime/internal/routes"
	"countertime/internal/services"
	"countertime/internal/services/ai"
	"countertime/internal/services/analysis"
	"countertime/internal/services/events"
	"countertime/internal/services/storage"
	"countertime/internal/services/websocket"
	"countertime/internal/zone"
)

type App struct {
	config          *config.Config
	logger          *logger.Logger
	db              *sqlite.DB
	detectorService *ai.DetectorService
	bufferService   *storage.BufferService
	hubService      *websocket.HubService
	mqtt            *events.MQTTPublisher
	runner          *analysis.Runner
	handler         http.Handler
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	zones := zone.Default()
	if cfg.ZonesFile != "" {
		loaded, err := zone.LoadFile(cfg.ZonesFile)
		if err != nil {
			return nil, err
		}
		zones = loaded
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	runs := sqlite.NewRunRepository(db)
	visits := sqlite.NewVisitRepository(db)
	snapshots := sqlite.NewSnapshotRepository(db)

	hub := websocket.NewHubService(log)

	var buffer *storage.BufferService
	if cfg.SnapshotsEnabled {
		buffer = storage.NewBufferService(cfg.SnapshotDirectory, cfg.SnapshotBufferLimit, snapshots, log)
	}

	var sinks []analysis.VisitSink
	var publisher *events.MQTTPublisher
	if cfg.MQTTBroker != "" {
		publisher = events.NewMQTTPublisher(cfg, log)
		sinks = append(sinks, publisher)
	}

	detector := ai.NewDetectorService(cfg, log)
	manager := services.NewManager(detector, buffer, hub, zones, cfg, log)

	runner := analysis.NewRunner(analysis.RunnerConfig{
		Zones:    zones,
		MinVisit: cfg.MinVisit,
		Runs:     runs,
		Visits:   visits,
		Hub:      hub,
		Sinks:    sinks,
	}, log)

	svc := routes.Services{
		Runner:    runner,
		Hub:       hub,
		Runs:      runs,
		Visits:    visits,
		Snapshots: snapshots,
	}
	if detector.Ready() {
		svc.Videos = manager
	} else {
		log.Warning("Video uploads are disabled until the detection model is available")
	}

	return &App{
		config:          cfg,
		logger:          log,
		db:              db,
		detectorService: detector,
		bufferService:   buffer,
		hubService:      hub,
		mqtt:            publisher,
		runner:          runner,
		handler:         routes.SetupRoutes(svc, cfg, log),
	}, nil
}

// Run serves until SIGINT or SIGTERM and then shuts down in order: HTTP,
// the running analysis, snapshot buffer, broker and database.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.hubService.Run(ctx)

	bufferDone := make(chan struct{})
	if a.bufferService != nil {
		go func() {
			defer close(bufferDone)
			a.bufferService.Run(ctx, a.config.FlushInterval)
		}()
	} else {
		close(bufferDone)
	}

	if a.mqtt != nil {
		if err := a.mqtt.Connect(ctx); err != nil {
			a.logger.Warning("MQTT broker %s unavailable, continuing without it: %v", a.config.MQTTBroker, err)
		}
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("🛒 Counter Dwell-Time Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("🗺️  Counters: %d\n", a.runner.Zones().Len())
	fmt.Printf("📁 Snapshots: %s\n", a.config.SnapshotDirectory)
	fmt.Printf("🤖 AI Model: %s\n", a.config.ModelPath)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	var err error
	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		stop()
	case <-ctx.Done():
		a.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			a.logger.Error("HTTP shutdown: %v", shutdownErr)
		}
		cancel()
	}

	a.runner.Stop()
	<-bufferDone
	if a.bufferService != nil {
		// Entries of the cancelled run may have arrived after the last flush.
		a.bufferService.FlushSnapshots()
	}
	if a.mqtt != nil {
		a.mqtt.Disconnect()
	}
	if closeErr := a.detectorService.Close(); closeErr != nil {
		a.logger.Warning("Closing detector: %v", closeErr)
	}
	if closeErr := a.db.Close(); closeErr != nil {
		a.logger.Error("Closing database: %v", closeErr)
	}
	return err
}
