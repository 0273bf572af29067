package ports

import (
	"context"
	"io"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

// ImageUpload is an image as received from a file picker, drop zone or CLI argument.
type ImageUpload struct {
	Filename string
	MimeType string
	Body     io.Reader
}

// SessionService is the inbound contract of the detect page: one session per page view.
type SessionService interface {
	Create(ctx context.Context) (*domain.SessionSnapshot, error)
	Snapshot(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error)
	Close(ctx context.Context, sessionID string) error
	SelectImage(ctx context.Context, sessionID string, upload ImageUpload) (*domain.SessionSnapshot, error)
	ClearImage(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error)
	Detect(ctx context.Context, sessionID string) (*domain.ResultView, error)
	Report(ctx context.Context, sessionID string) (*domain.Report, error)
}

// DashboardService is the inbound contract of the dashboard page.
type DashboardService interface {
	Load(ctx context.Context) (*domain.DashboardView, error)
	AddCrop(ctx context.Context, form domain.CropForm) (*domain.CropReceipt, error)
	Export(ctx context.Context, w io.Writer) error
}
