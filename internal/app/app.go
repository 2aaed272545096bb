package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	httpapi "github.com/yungbote/videoinsight-backend/internal/http"
	"github.com/yungbote/videoinsight-backend/internal/observability"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services

	server        *httpapi.Server
	otelShutdown  func(context.Context) error
	metricEnabled bool
}

func New() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		Enabled:     cfg.Otel.Enabled,
		ServiceName: cfg.Otel.ServiceName,
		Environment: cfg.Env,
		Version:     cfg.Otel.Version,
		Endpoint:    cfg.Otel.Endpoint,
		Headers:     observability.ParseHeaders(cfg.Otel.Headers),
		Insecure:    cfg.Otel.Insecure,
		SampleRatio: cfg.Otel.SampleRatio,
	})

	var metrics *observability.Metrics
	if cfg.HTTP.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	clients, err := wireClients(context.Background(), log, cfg)
	if err != nil {
		_ = otelShutdown(context.Background())
		log.Sync()
		return nil, err
	}

	repoSet, err := wireRepos(log, cfg, clients)
	if err != nil {
		clients.Close(log)
		_ = otelShutdown(context.Background())
		return nil, err
	}

	svc, err := wireServices(log, cfg, clients, repoSet, metrics)
	if err != nil {
		clients.Close(log)
		_ = otelShutdown(context.Background())
		return nil, err
	}

	router := wireRouter(log, cfg, wireHandlers(log, svc), metrics)
	server := httpapi.NewServer(httpapi.ServerConfig{
		Addr:              ":" + strings.TrimPrefix(cfg.HTTP.Port, ":"),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   seconds(cfg.HTTP.ShutdownTimeoutSeconds),
	}, router)

	log.Info("App ready",
		"metadata_provider", cfg.Providers.Metadata,
		"stt_provider", cfg.Providers.STT,
		"transcripts_dir", cfg.Storage.TranscriptsDir,
		"analysis_dir", cfg.Storage.AnalysisDir,
	)

	return &App{
		Log:           log,
		Cfg:           cfg,
		Clients:       clients,
		Repos:         repoSet,
		Services:      svc,
		server:        server,
		otelShutdown:  otelShutdown,
		metricEnabled: metrics != nil,
	}, nil
}

// Run serves HTTP until ctx is cancelled and releases clients on the way out.
func (a *App) Run(ctx context.Context) error {
	a.Log.Info("Server listening", "port", a.Cfg.HTTP.Port, "metrics", a.metricEnabled)
	err := a.server.Run(ctx)
	a.Close()
	return err
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close(a.Log)
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("Failed to flush traces", "error", err)
		}
		cancel()
	}
	a.Log.Sync()
}
