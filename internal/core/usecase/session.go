package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/core/ports"
)

const (
	outcomeSuccess  = "success"
	outcomeFailed   = "failed"
	outcomeStale    = "stale"
	outcomeRejected = "rejected"
)

// SessionOptions carries the optional collaborators of SessionUseCase.
type SessionOptions struct {
	MaxImageBytes int64
	Events        ports.DetectionEventPublisher
	Reports       ports.ObjectStorage
	Observer      ports.DetectionObserver
	Logger        *slog.Logger
}

type SessionUseCase struct {
	store    ports.SessionStore
	intake   *Intake
	detector ports.Detector
	previews ports.PreviewRenderer
	events   ports.DetectionEventPublisher
	reports  ports.ObjectStorage
	observer ports.DetectionObserver
	logger   *slog.Logger

	now   func() time.Time
	newID func() string
}

func NewSessionUseCase(
	store ports.SessionStore,
	detector ports.Detector,
	previews ports.PreviewRenderer,
	opts SessionOptions,
) *SessionUseCase {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionUseCase{
		store:    store,
		intake:   NewIntake(opts.MaxImageBytes),
		detector: detector,
		previews: previews,
		events:   opts.Events,
		reports:  opts.Reports,
		observer: opts.Observer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

func (uc *SessionUseCase) Create(ctx context.Context) (*domain.SessionSnapshot, error) {
	session := domain.NewSession(uc.newID(), uc.now())
	if err := uc.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	snap := session.Snapshot()
	return &snap, nil
}

func (uc *SessionUseCase) Snapshot(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	session, err := uc.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	snap := session.Snapshot()
	return &snap, nil
}

func (uc *SessionUseCase) Close(ctx context.Context, sessionID string) error {
	session, err := uc.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	session.Clear(uc.now())
	return uc.store.Delete(ctx, sessionID)
}

// SelectImage validates the upload synchronously and starts the preview
// decode in the background. A rejected upload leaves the session untouched.
func (uc *SessionUseCase) SelectImage(ctx context.Context, sessionID string, upload ports.ImageUpload) (*domain.SessionSnapshot, error) {
	session, err := uc.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	image, err := uc.intake.Accept(upload)
	if err != nil {
		uc.logger.Info("image_rejected", "session_id", sessionID, "filename", upload.Filename, "error", err)
		return nil, err
	}

	generation, err := session.Select(image, uc.now())
	if err != nil {
		return nil, err
	}

	go uc.renderPreview(context.WithoutCancel(ctx), session, generation, image)

	snap := session.Snapshot()
	return &snap, nil
}

func (uc *SessionUseCase) ClearImage(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	session, err := uc.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Clear(uc.now())
	snap := session.Snapshot()
	return &snap, nil
}

// Detect submits the current selection. Only the most recently issued
// detect call may change the session; earlier ones get ErrStaleResponse.
func (uc *SessionUseCase) Detect(ctx context.Context, sessionID string) (*domain.ResultView, error) {
	session, err := uc.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	start := uc.now()
	ticket, err := session.BeginDetect(start)
	if err != nil {
		uc.observe(outcomeRejected, 0)
		return nil, err
	}

	result, err := uc.detector.Detect(ctx, ticket.Image)
	if err == nil && result == nil {
		err = fmt.Errorf("empty detection result")
	}
	if err != nil {
		if !domain.IsKind(err, domain.ErrDetection) {
			err = domain.WrapError(domain.ErrRequestFailed, "detect", err)
		}
		if failErr := session.FailDetect(ticket, uc.now()); failErr != nil {
			uc.discardStale(sessionID, ticket, start)
			return nil, failErr
		}
		uc.observe(outcomeFailed, uc.now().Sub(start))
		uc.logger.Warn("detection_failed",
			"session_id", sessionID,
			"sequence", ticket.Seq,
			"error", err,
		)
		return nil, err
	}

	if err := session.CompleteDetect(ticket, *result, uc.now()); err != nil {
		uc.discardStale(sessionID, ticket, start)
		return nil, err
	}

	uc.observe(outcomeSuccess, uc.now().Sub(start))
	uc.logger.Info("detection_completed",
		"session_id", sessionID,
		"sequence", ticket.Seq,
		"disease", result.DiseaseName,
		"confidence", result.Confidence,
	)
	uc.publish(ctx, sessionID, *result)

	view := BuildResultView(*result)
	return &view, nil
}

// Report renders the current result as a downloadable text file and, when
// report storage is configured, keeps a copy under the same name. A failed
// save fails the call.
func (uc *SessionUseCase) Report(ctx context.Context, sessionID string) (*domain.Report, error) {
	session, err := uc.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	result, ok := session.Result()
	if !ok {
		return nil, domain.WrapError(domain.ErrNoResult, "report", fmt.Errorf("session %s", sessionID))
	}

	now := uc.now()
	report := &domain.Report{
		Filename: ReportFilename(now),
		Content:  BuildReport(result, now),
	}
	if uc.reports != nil {
		if err := uc.reports.Save(ctx, report.Filename, strings.NewReader(report.Content)); err != nil {
			uc.logger.Warn("report_save_failed", "session_id", sessionID, "filename", report.Filename, "error", err)
			return nil, fmt.Errorf("save report %s: %w", report.Filename, err)
		}
	}
	return report, nil
}

// SweepIdle tears down sessions untouched for longer than ttl.
func (uc *SessionUseCase) SweepIdle(ctx context.Context, ttl time.Duration) int {
	removed := uc.store.SweepIdle(ctx, uc.now().Add(-ttl))
	if removed > 0 {
		uc.logger.Info("sessions_swept", "removed", removed)
	}
	return removed
}

func (uc *SessionUseCase) renderPreview(ctx context.Context, session *domain.Session, generation uint64, image domain.SelectedImage) {
	var (
		dataURL string
		err     error
	)
	if uc.previews != nil {
		dataURL, err = uc.previews.Render(ctx, image)
	} else {
		dataURL = rawDataURL(image)
	}
	if !session.ApplyPreview(generation, dataURL, err) {
		uc.logger.Debug("preview_discarded", "session_id", session.ID, "generation", generation)
		return
	}
	if err != nil {
		uc.logger.Warn("preview_failed", "session_id", session.ID, "error", err)
	}
}

func (uc *SessionUseCase) discardStale(sessionID string, ticket domain.DetectTicket, start time.Time) {
	uc.observe(outcomeStale, uc.now().Sub(start))
	uc.logger.Info("detection_stale_discarded", "session_id", sessionID, "sequence", ticket.Seq)
}

func (uc *SessionUseCase) publish(ctx context.Context, sessionID string, result domain.DetectionResult) {
	if uc.events == nil {
		return
	}
	event := domain.DetectionEvent{
		SessionID:      sessionID,
		DetectionID:    result.DetectionID,
		DiseaseName:    result.DiseaseName,
		Confidence:     result.Confidence,
		SeverityBucket: domain.BucketForSeverity(result.DiseaseInfo.Severity),
		DetectedAt:     uc.now(),
	}
	if err := uc.events.PublishDetectionCompleted(ctx, event); err != nil {
		uc.logger.Warn("detection_event_publish_failed", "session_id", sessionID, "error", err)
	}
}

func (uc *SessionUseCase) observe(outcome string, duration time.Duration) {
	if uc.observer != nil {
		uc.observer.RecordDetection(outcome, duration)
	}
}

func rawDataURL(image domain.SelectedImage) string {
	return "data:" + image.MimeType + ";base64," + base64.StdEncoding.EncodeToString(image.Data)
}
