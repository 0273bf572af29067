package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/cropguard/internal/bootstrap"
	"github.com/kirillkom/cropguard/internal/config"
	"github.com/kirillkom/cropguard/internal/core/domain"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.NATSURL == "" {
		log.Fatal("worker requires NATS_URL")
	}

	app, err := bootstrap.New(ctx, cfg, "cropguard-worker")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()
	slog.SetDefault(app.Logger)

	counts := map[domain.SeverityBucket]int{}
	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Events.SubscribeDetectionCompleted(ctx, func(_ context.Context, event domain.DetectionEvent) error {
		counts[event.SeverityBucket]++
		slog.Info("detection_event_received",
			"session_id", event.SessionID,
			"detection_id", event.DetectionID,
			"disease", domain.DisplayName(event.DiseaseName),
			"confidence", event.Confidence,
			"severity_bucket", event.SeverityBucket,
			"seen_in_bucket", counts[event.SeverityBucket],
		)
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
