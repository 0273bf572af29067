package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

// Detector submits one image to the inference endpoint. Exactly one attempt.
type Detector interface {
	Detect(ctx context.Context, image domain.SelectedImage) (*domain.DetectionResult, error)
}

// DashboardSource reads dashboard data from the backend.
type DashboardSource interface {
	Stats(ctx context.Context) (*domain.DashboardStats, error)
	History(ctx context.Context) ([]domain.HistoryEntry, error)
}

// CropRegistrar posts add-crop form fields to the backend.
type CropRegistrar interface {
	AddCrop(ctx context.Context, form domain.CropForm) (*domain.CropReceipt, error)
}

// PreviewRenderer decodes an image into a displayable data URL.
type PreviewRenderer interface {
	Render(ctx context.Context, image domain.SelectedImage) (string, error)
}

// SessionStore keeps live sessions for the lifetime of a page view.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	SweepIdle(ctx context.Context, idleBefore time.Time) int
}

// ObjectStorage stores generated artifacts such as reports.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// DetectionEventPublisher announces detections that became a session's current result.
type DetectionEventPublisher interface {
	PublishDetectionCompleted(ctx context.Context, event domain.DetectionEvent) error
}

// DashboardExporter writes dashboard data in a downloadable format.
type DashboardExporter interface {
	Export(ctx context.Context, w io.Writer, data domain.DashboardExport) error
}

// DetectionObserver records detection outcomes (success, failed, stale, rejected).
type DetectionObserver interface {
	RecordDetection(outcome string, duration time.Duration)
}
