package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"media-lite/internal/converter"
	"media-lite/internal/database"
	"media-lite/internal/filesystem"
	"media-lite/internal/handlers"
	"media-lite/internal/logging"
	"media-lite/internal/media"
	"media-lite/internal/mediatypes"
	"media-lite/internal/memory"
	"media-lite/internal/metrics"
	"media-lite/internal/middleware"
	"media-lite/internal/startup"
	"media-lite/internal/transcoder"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	memory.ConfigureLimit()
	metrics.InitializeMetrics()
	metrics.AppInfo.WithLabelValues(startup.Version, runtime.Version()).Set(1)
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"videos":     config.VideoDir,
		"images":     config.ImageDir,
		"documents":  config.DocumentDir,
		"thumbnails": config.ThumbnailDir,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	dbStart := time.Now()
	db, err := database.Open(ctx, database.Config{Driver: config.Database.Driver, URL: config.Database.URL})
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			db.UpdateDBMetrics()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	// Initialize transcoder
	tc := transcoder.NewFFmpeg(config.TranscoderConfig())
	startup.LogTranscoderInit(tc, config.Tools)

	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, using pure Go image decoding: %v", err)
	}
	thumbs := media.NewThumbnailGenerator(tc, config.ThumbnailDir)
	if _, err := thumbs.EnsurePlaceholder(); err != nil {
		logging.Warn("Could not create placeholder thumbnail: %v", err)
	}

	// Initialize converter
	startup.LogConverterInit(config.VideoDir, config.Converter)
	conv := converter.New(converter.Config{
		Dir:               config.VideoDir,
		LegacyExt:         config.Converter.LegacyExtension,
		TargetExt:         config.Converter.TargetExtension,
		PollInterval:      config.Converter.PollInterval,
		SettleAge:         config.Converter.SettleAge,
		TempMaxAge:        config.Converter.TempMaxAge,
		Watch:             config.Converter.WatchEnabled,
		ReconcileSchedule: config.Converter.ReconcileSchedule,
	}, tc, config.Policy, db.Catalog(mediatypes.KindVideo), thumbs)

	convDone := make(chan error, 1)
	go func() {
		convDone <- conv.Run(ctx)
	}()
	startup.LogConverterStarted()

	// Ops endpoints
	var srv *http.Server
	if config.MetricsEnabled {
		h := handlers.New(db, conv, tc)
		router := setupRouter(h)
		startup.LogHTTPRoutes(router)

		srv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           middleware.Logger(middleware.DefaultLoggingConfig())(router),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Ops server error: %v", err)
			}
		}()
	}

	startup.LogServerStarted(startup.ServerConfig{
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	reason := "signal"
	select {
	case <-ctx.Done():
	case err := <-convDone:
		reason = "converter exited"
		if err != nil {
			logging.Error("Converter stopped: %v", err)
		}
		stop()
	}

	shutdown(reason, srv, conv, convDone, tc)
	if reason != "signal" {
		_ = db.Close()
		os.Exit(1)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/converter", h.ConverterStatus).Methods("GET")
	api.HandleFunc("/converter/scan", h.TriggerScan).Methods("POST")
	api.HandleFunc("/converter/reconcile", h.TriggerReconcile).Methods("POST")

	return r
}

func shutdown(reason string, srv *http.Server, conv *converter.Converter, convDone <-chan error, tc *transcoder.FFmpeg) {
	startup.LogShutdownInitiated(reason)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping converter")
	if conv.Status().Running {
		select {
		case <-convDone:
			startup.LogShutdownStepComplete("Converter stopped")
		case <-ctx.Done():
			logging.Warn("Converter did not stop in time")
		}
	}

	startup.LogShutdownStep("Cleaning up transcoder")
	tc.Cleanup()
	startup.LogShutdownStepComplete("Transcoder cleanup complete")

	if srv != nil {
		startup.LogShutdownStep("Shutting down ops server")
		if err := srv.Shutdown(ctx); err != nil {
			logging.Warn("Server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Ops server stopped")
		}
	}

	media.ShutdownVips()
	startup.LogShutdownComplete()
}
