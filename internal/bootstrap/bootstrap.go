package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/cropguard/internal/config"
	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/core/ports"
	"github.com/kirillkom/cropguard/internal/core/usecase"
	"github.com/kirillkom/cropguard/internal/infrastructure/cropapi"
	"github.com/kirillkom/cropguard/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/cropguard/internal/infrastructure/preview"
	"github.com/kirillkom/cropguard/internal/infrastructure/queue/nats"
	"github.com/kirillkom/cropguard/internal/infrastructure/resilience"
	"github.com/kirillkom/cropguard/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/cropguard/internal/infrastructure/storage/memory"
	"github.com/kirillkom/cropguard/internal/observability/logging"
	"github.com/kirillkom/cropguard/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Metrics *metrics.HTTPServerMetrics
	Client  *cropapi.Client
	Events  *nats.Publisher

	SessionUC   *usecase.SessionUseCase
	DashboardUC *usecase.DashboardUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	return NewWithLogger(ctx, cfg, service, logging.NewJSONLogger(service, cfg.LogLevel))
}

func NewWithLogger(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	serverMetrics := metrics.NewHTTPServerMetrics(service)
	upstreamMetrics := metrics.NewUpstreamMetrics(service, serverMetrics.Registerer())

	resilienceCfg := resilience.DefaultConfig()
	resilienceCfg.BreakerEnabled = cfg.BreakerEnabled
	executor := resilience.NewExecutor(resilienceCfg)

	contract, err := cropapi.LoadContract(ctx)
	if err != nil {
		return nil, fmt.Errorf("load backend contract: %w", err)
	}

	client := cropapi.New(cfg.CropAPIURL, cropapi.Options{
		Cookie:        cfg.CropAPICookie,
		DetectTimeout: time.Duration(cfg.DetectTimeoutSeconds) * time.Second,
		FetchTimeout:  time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
		Executor:      executor,
		Contract:      contract,
		Observer:      upstreamMetrics,
	})

	sessionOpts := usecase.SessionOptions{
		MaxImageBytes: int64(cfg.MaxUploadBytes),
		Observer:      serverMetrics,
		Logger:        logger,
	}

	if cfg.ReportDir != "" {
		reports, err := localfs.New(cfg.ReportDir)
		if err != nil {
			return nil, fmt.Errorf("init report storage: %w", err)
		}
		sessionOpts.Reports = reports
	}

	var events *nats.Publisher
	if cfg.NATSURL != "" {
		events, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init detection events: %w", err)
		}
		sessionOpts.Events = events
	}

	breakerOps := cropapi.BreakerOperations
	if events != nil {
		breakerOps = append(breakerOps[:len(breakerOps):len(breakerOps)], nats.PublishOperation)
	}
	metrics.RegisterBreakerStates(serverMetrics.Registerer(), service, executor, breakerOps...)

	store := memory.NewSessionStore()
	metrics.RegisterActiveSessions(serverMetrics.Registerer(), service, store)

	sessionUC := usecase.NewSessionUseCase(
		store,
		client,
		preview.NewRenderer(cfg.PreviewMaxSide),
		sessionOpts,
	)
	dashboardUC := usecase.NewDashboardUseCase(client, client, xlsx.NewExporter(), usecase.DashboardOptions{
		StatsPolicy:   domain.FailurePolicy(cfg.StatsFailurePolicy),
		HistoryPolicy: domain.FailurePolicy(cfg.HistoryFailurePolicy),
		HistoryLimit:  cfg.HistoryLimit,
		Logger:        logger,
	})

	return &App{
		Config: cfg,
		Logger: logger,

		Metrics: serverMetrics,
		Client:  client,
		Events:  events,

		SessionUC:   sessionUC,
		DashboardUC: dashboardUC,

		closeFn: func() {
			if events != nil {
				events.Close()
			}
		},
	}, nil
}

// Sessions and Dashboard expose the use cases through their inbound ports.
func (a *App) Sessions() ports.SessionService     { return a.SessionUC }
func (a *App) Dashboard() ports.DashboardService { return a.DashboardUC }

// RunSessionSweeper evicts sessions idle longer than the configured TTL until ctx ends.
func (a *App) RunSessionSweeper(ctx context.Context) {
	ttl := time.Duration(a.Config.SessionTTLMinutes) * time.Minute
	if ttl <= 0 {
		return
	}
	interval := ttl / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := a.SessionUC.SweepIdle(ctx, ttl); removed > 0 {
				a.Metrics.RecordSessionsSwept(removed)
			}
		}
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
