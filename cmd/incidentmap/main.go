package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/road-incident-map/internal/adapter/http"
	"github.com/couchcryptid/road-incident-map/internal/adapter/incidentapi"
	kafkaadapter "github.com/couchcryptid/road-incident-map/internal/adapter/kafka"
	"github.com/couchcryptid/road-incident-map/internal/adapter/scene"
	"github.com/couchcryptid/road-incident-map/internal/config"
	"github.com/couchcryptid/road-incident-map/internal/dashboard"
	"github.com/couchcryptid/road-incident-map/internal/domain"
	"github.com/couchcryptid/road-incident-map/internal/observability"
	"github.com/couchcryptid/road-incident-map/internal/pipeline"
	"github.com/couchcryptid/road-incident-map/internal/session"
)

func main() {
	if err := godotenv.Load(".env.local"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env.local", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	sess, err := openSession(cfg)
	if err != nil {
		logger.Error("failed to load session", "error", err)
		os.Exit(1)
	}
	if !sess.Authenticated() {
		logger.Warn("no usable access token, incident api requests will be anonymous")
	}

	client, err := incidentapi.NewClient(incidentapi.Options{
		BaseURL:  cfg.IncidentAPIURL,
		Timeout:  cfg.IncidentAPITimeout,
		RPS:      cfg.IncidentAPIRPS,
		MaxPages: cfg.IncidentAPIMaxPages,
		Tokens:   sess,
	}, metrics, logger)
	if err != nil {
		logger.Error("failed to create incident api client", "error", err)
		os.Exit(1)
	}

	dash := dashboard.New(dashboard.Options{
		Region:         domain.DefaultRegion,
		Size:           scene.Size{Width: cfg.MapWidth, Height: cfg.MapHeight},
		PopupCacheSize: cfg.PopupCacheSize,
		Metrics:        metrics,
		Logger:         logger,
	})

	var publisher pipeline.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("scene publishing enabled", "topic", cfg.KafkaSnapshotTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("scene publishing disabled")
	}

	p := pipeline.New(client, dash, publisher, pipeline.Options{
		Interval: cfg.RefreshInterval,
		Query:    pipeline.DayQuery(cfg.MapDate, cfg.IncidentStatus),
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, dash, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start refresher.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("refresher error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("refresher did not stop before shutdown timeout")
	}
	dash.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// openSession restores the saved session and seeds it from INCIDENT_API_TOKEN
// when it has no usable token of its own.
func openSession(cfg *config.Config) (*session.Session, error) {
	var store session.Store = session.NewMemoryStore()
	if cfg.SessionFile != "" {
		store = session.NewFileStore(cfg.SessionFile)
	}
	sess, err := session.Load(store, nil)
	if err != nil {
		return nil, err
	}
	if cfg.IncidentAPIToken != "" && !sess.Authenticated() {
		if err := sess.Login(session.Tokens{Access: cfg.IncidentAPIToken}, nil); err != nil {
			return nil, err
		}
	}
	return sess, nil
}
