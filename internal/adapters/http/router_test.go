package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/kirillkom/cropguard/internal/config"
	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/core/ports"
	"github.com/kirillkom/cropguard/internal/observability/metrics"
)

type sessionServiceFake struct {
	detectErr error
	selectErr error
	reportErr error

	selected ports.ImageUpload
	body     []byte
}

func (f *sessionServiceFake) Create(context.Context) (*domain.SessionSnapshot, error) {
	return &domain.SessionSnapshot{ID: "s-1", State: domain.StateIdle}, nil
}

func (f *sessionServiceFake) Snapshot(_ context.Context, id string) (*domain.SessionSnapshot, error) {
	if id != "s-1" {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("id %s", id))
	}
	return &domain.SessionSnapshot{ID: id, State: domain.StateIdle}, nil
}

func (f *sessionServiceFake) Close(context.Context, string) error { return nil }

func (f *sessionServiceFake) SelectImage(_ context.Context, id string, upload ports.ImageUpload) (*domain.SessionSnapshot, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	f.selected = upload
	f.body, _ = io.ReadAll(upload.Body)
	return &domain.SessionSnapshot{ID: id, State: domain.StatePreviewing}, nil
}

func (f *sessionServiceFake) ClearImage(_ context.Context, id string) (*domain.SessionSnapshot, error) {
	return &domain.SessionSnapshot{ID: id, State: domain.StateIdle}, nil
}

func (f *sessionServiceFake) Detect(context.Context, string) (*domain.ResultView, error) {
	if f.detectErr != nil {
		return nil, f.detectErr
	}
	return &domain.ResultView{DisplayName: "Tomato - Early blight", ConfidenceText: "95.50%", ConfidenceTier: domain.ConfidenceHigh}, nil
}

func (f *sessionServiceFake) Report(context.Context, string) (*domain.Report, error) {
	if f.reportErr != nil {
		return nil, f.reportErr
	}
	return &domain.Report{Filename: "disease_report_1700000000123.txt", Content: "CROP DISEASE DETECTION REPORT\n"}, nil
}

type dashboardServiceFake struct {
	loadErr error
	form    domain.CropForm
}

func (f *dashboardServiceFake) Load(context.Context) (*domain.DashboardView, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return &domain.DashboardView{
		Summary: domain.StatsSummary{TotalDetections: 10, Healthy: 7, Infected: 3},
		History: []domain.HistoryRow{},
		Chart:   []domain.ChartSlice{},
	}, nil
}

func (f *dashboardServiceFake) AddCrop(_ context.Context, form domain.CropForm) (*domain.CropReceipt, error) {
	f.form = form
	return &domain.CropReceipt{Success: true, CropID: 5}, nil
}

func (f *dashboardServiceFake) Export(_ context.Context, w io.Writer) error {
	_, err := w.Write([]byte("PK"))
	return err
}

func newTestHandler(cfg config.Config, sessions ports.SessionService, dashboard ports.DashboardService) http.Handler {
	return NewRouter(cfg, sessions, dashboard, nil).Handler()
}

func decodeError(t *testing.T, body io.Reader) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func multipartImage(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write(data)
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestSessionLifecycleRoutes(t *testing.T) {
	handler := newTestHandler(config.Config{}, &sessionServiceFake{}, &dashboardServiceFake{})

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPost, "/v1/sessions", http.StatusCreated},
		{http.MethodGet, "/v1/sessions/s-1", http.StatusOK},
		{http.MethodGet, "/v1/sessions/missing", http.StatusNotFound},
		{http.MethodDelete, "/v1/sessions/s-1/image", http.StatusOK},
		{http.MethodPost, "/v1/sessions/s-1/detect", http.StatusOK},
		{http.MethodDelete, "/v1/sessions/s-1", http.StatusNoContent},
		{http.MethodPatch, "/v1/sessions/s-1", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != tc.want {
			t.Fatalf("%s %s expected %d, got %d", tc.method, tc.path, tc.want, res.Code)
		}
	}
}

func TestSelectImageStreamsMultipartPart(t *testing.T) {
	sessions := &sessionServiceFake{}
	handler := newTestHandler(config.Config{MaxUploadBytes: 1024}, sessions, &dashboardServiceFake{})

	body, contentType := multipartImage(t, "image", "leaf.png", "image/png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPut, "/v1/sessions/s-1/image", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if sessions.selected.Filename != "leaf.png" || sessions.selected.MimeType != "image/png" || string(sessions.body) != "png-bytes" {
		t.Fatalf("unexpected upload: %+v body=%q", sessions.selected, sessions.body)
	}
}

func TestSelectImageRequiresImageField(t *testing.T) {
	handler := newTestHandler(config.Config{}, &sessionServiceFake{}, &dashboardServiceFake{})

	body, contentType := multipartImage(t, "file", "leaf.png", "image/png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPut, "/v1/sessions/s-1/image", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if resp := decodeError(t, res.Body); resp.Code != "invalid_input" {
		t.Fatalf("expected invalid_input, got %+v", resp)
	}
}

func TestDomainErrorsMapToStatusAndCode(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"invalid type", domain.WrapError(domain.ErrInvalidType, "select image", errors.New("text/plain")), http.StatusBadRequest, "invalid_type"},
		{"too large", domain.WrapError(domain.ErrTooLarge, "select image", errors.New("20 MiB")), http.StatusBadRequest, "too_large"},
		{"no image", domain.WrapError(domain.ErrNoImageSelected, "detect", errors.New("empty")), http.StatusBadRequest, "no_image_selected"},
		{"stale", domain.WrapError(domain.ErrStaleResponse, "complete detect", errors.New("seq 1")), http.StatusConflict, "stale_response"},
		{"request failed", domain.WrapError(domain.ErrRequestFailed, "detect", errors.New("HTTP 500")), http.StatusBadGateway, "request_failed"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestHandler(config.Config{}, &sessionServiceFake{detectErr: tc.err}, &dashboardServiceFake{})
			req := httptest.NewRequest(http.MethodPost, "/v1/sessions/s-1/detect", nil)
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			if res.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, res.Code)
			}
			if resp := decodeError(t, res.Body); resp.Code != tc.wantBody {
				t.Fatalf("expected code %s, got %+v", tc.wantBody, resp)
			}
		})
	}
}

func TestRequestFailedUsesUserFacingMessage(t *testing.T) {
	err := domain.WrapError(domain.ErrRequestFailed, "detect", errors.New("dial tcp 10.0.0.1:5000: connection refused"))
	handler := newTestHandler(config.Config{}, &sessionServiceFake{detectErr: err}, &dashboardServiceFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/sessions/s-1/detect", nil))
	if resp := decodeError(t, res.Body); resp.Error != domain.DetectionFailedMessage {
		t.Fatalf("expected user-facing message, got %q", resp.Error)
	}
}

func TestReportDownload(t *testing.T) {
	handler := newTestHandler(config.Config{}, &sessionServiceFake{}, &dashboardServiceFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/sessions/s-1/report", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.HasPrefix(res.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("unexpected content type %q", res.Header().Get("Content-Type"))
	}
	if got := res.Header().Get("Content-Disposition"); got != `attachment; filename=disease_report_1700000000123.txt` {
		t.Fatalf("unexpected content disposition %q", got)
	}

	noResult := newTestHandler(config.Config{}, &sessionServiceFake{
		reportErr: domain.WrapError(domain.ErrNoResult, "report", errors.New("session s-1")),
	}, &dashboardServiceFake{})
	res = httptest.NewRecorder()
	noResult.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/sessions/s-1/report", nil))
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 without result, got %d", res.Code)
	}
}

func TestDashboardRoutes(t *testing.T) {
	dashboard := &dashboardServiceFake{}
	handler := newTestHandler(config.Config{}, &sessionServiceFake{}, dashboard)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var view domain.DashboardView
	if err := json.NewDecoder(res.Body).Decode(&view); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if view.Summary.Infected != 3 {
		t.Fatalf("unexpected summary: %+v", view.Summary)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/dashboard/export", nil))
	if res.Code != http.StatusOK || res.Header().Get("Content-Type") != xlsxMediaType {
		t.Fatalf("unexpected export response: %d %q", res.Code, res.Header().Get("Content-Type"))
	}

	payload := `{"crop_type": "Tomato", "location": " North field ", "planted_date": "2024-05-01", "area": 2.5, "notes": null}`
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/crops", strings.NewReader(payload)))
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	if dashboard.form["location"] != "North field" || dashboard.form["area"] != "2.5" {
		t.Fatalf("unexpected form: %v", dashboard.form)
	}
	if _, ok := dashboard.form["notes"]; ok {
		t.Fatalf("null fields must be dropped: %v", dashboard.form)
	}
}

func TestDashboardUnauthenticatedMapsTo401(t *testing.T) {
	dashboard := &dashboardServiceFake{loadErr: domain.WrapError(domain.ErrUnauthenticated, "load stats", errors.New("HTTP 401"))}
	handler := newTestHandler(config.Config{}, &sessionServiceFake{}, dashboard)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestMetricsRouteServesPrometheus(t *testing.T) {
	handler := NewRouter(config.Config{}, &sessionServiceFake{}, &dashboardServiceFake{}, metrics.NewHTTPServerMetrics(serviceName)).Handler()

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "cropguard_http_requests_total") {
		t.Fatalf("expected prometheus output, got %d", res.Code)
	}
}
