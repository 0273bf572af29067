package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/core/ports"
)

type sessionStoreFake struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newSessionStoreFake() *sessionStoreFake {
	return &sessionStoreFake{sessions: map[string]*domain.Session{}}
}

func (f *sessionStoreFake) Create(_ context.Context, session *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.ID] = session
	return nil
}

func (f *sessionStoreFake) Get(_ context.Context, id string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (f *sessionStoreFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *sessionStoreFake) SweepIdle(_ context.Context, idleBefore time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	removed := 0
	for id, session := range f.sessions {
		if session.TouchedAt().Before(idleBefore) {
			delete(f.sessions, id)
			removed++
		}
	}
	return removed
}

// detectorFake answers each call from its own channel so tests control resolution order.
type detectorFake struct {
	mu      sync.Mutex
	calls   int
	started chan int
	replies []chan detectReply
}

type detectReply struct {
	result *domain.DetectionResult
	err    error
}

func newDetectorFake(calls int) *detectorFake {
	f := &detectorFake{started: make(chan int, calls)}
	for i := 0; i < calls; i++ {
		f.replies = append(f.replies, make(chan detectReply, 1))
	}
	return f
}

func (f *detectorFake) Detect(ctx context.Context, _ domain.SelectedImage) (*domain.DetectionResult, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	f.mu.Unlock()
	if idx >= len(f.replies) {
		return nil, errors.New("unexpected detect call")
	}
	f.started <- idx
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case reply := <-f.replies[idx]:
		return reply.result, reply.err
	}
}

func (f *detectorFake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type previewFake struct {
	err error
}

func (f previewFake) Render(context.Context, domain.SelectedImage) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "data:image/jpeg;base64,AAAA", nil
}

type eventsFake struct {
	mu     sync.Mutex
	events []domain.DetectionEvent
	err    error
}

func (f *eventsFake) PublishDetectionCompleted(_ context.Context, event domain.DetectionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type observerFake struct {
	mu       sync.Mutex
	outcomes []string
}

func (f *observerFake) RecordDetection(outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

type reportStorageFake struct {
	savedKey  string
	savedBody string
	saveErr   error
}

func (f *reportStorageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *reportStorageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.savedBody)), nil
}

type dashboardSourceFake struct {
	stats      *domain.DashboardStats
	statsErr   error
	history    []domain.HistoryEntry
	historyErr error
}

func (f *dashboardSourceFake) Stats(context.Context) (*domain.DashboardStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	copyStats := *f.stats
	return &copyStats, nil
}

func (f *dashboardSourceFake) History(context.Context) ([]domain.HistoryEntry, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return append([]domain.HistoryEntry(nil), f.history...), nil
}

type cropRegistrarFake struct {
	form domain.CropForm
	err  error
}

func (f *cropRegistrarFake) AddCrop(_ context.Context, form domain.CropForm) (*domain.CropReceipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.form = form
	return &domain.CropReceipt{Success: true, CropID: 7}, nil
}

type exporterFake struct {
	data domain.DashboardExport
}

func (f *exporterFake) Export(_ context.Context, w io.Writer, data domain.DashboardExport) error {
	f.data = data
	_, err := w.Write([]byte("xlsx"))
	return err
}

func imageUpload(mimeType string, size int) ports.ImageUpload {
	return ports.ImageUpload{
		Filename: "leaf.png",
		MimeType: mimeType,
		Body:     bytes.NewReader(make([]byte, size)),
	}
}

func sampleResult(name string, confidence float64) *domain.DetectionResult {
	return &domain.DetectionResult{
		DiseaseName: name,
		Confidence:  confidence,
		DiseaseInfo: domain.DiseaseInfo{
			Description:     "Fungal disease of leaves.",
			Symptoms:        "Dark concentric spots.",
			Severity:        "Medium - Treat soon",
			Treatment:       []string{"Apply chlorothalonil", "Remove infected leaves"},
			OrganicSolution: "Neem oil spray.",
			Prevention:      []string{"Rotate crops"},
		},
	}
}
