package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/cropguard/internal/config"
	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/core/ports"
	"github.com/kirillkom/cropguard/internal/observability/metrics"
)

const (
	serviceName   = "cropguard-api"
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxFormBytes  = 64 << 10
)

type Router struct {
	cfg       config.Config
	sessions  ports.SessionService
	dashboard ports.DashboardService
	metrics   *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	sessions ports.SessionService,
	dashboard ports.DashboardService,
	serverMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:       cfg,
		sessions:  sessions,
		dashboard: dashboard,
		metrics:   serverMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/sessions", rt.createSession)
	mux.HandleFunc("GET /v1/sessions/{id}", rt.getSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", rt.deleteSession)
	mux.HandleFunc("PUT /v1/sessions/{id}/image", rt.selectImage)
	mux.HandleFunc("DELETE /v1/sessions/{id}/image", rt.clearImage)
	mux.HandleFunc("POST /v1/sessions/{id}/detect", rt.detect)
	mux.HandleFunc("GET /v1/sessions/{id}/report", rt.report)

	mux.HandleFunc("GET /v1/dashboard", rt.getDashboard)
	mux.HandleFunc("GET /v1/dashboard/export", rt.exportDashboard)
	mux.HandleFunc("POST /v1/crops", rt.addCrop)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIOverloadWaitMS)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	snap, err := rt.sessions.Create(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := rt.sessions.Snapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (rt *Router) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := rt.sessions.Close(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// selectImage streams the multipart "image" part into the session so the
// size check sees the real byte count.
func (rt *Router) selectImage(w http.ResponseWriter, r *http.Request) {
	limit := int64(rt.cfg.MaxUploadBytes)
	if limit <= 0 {
		limit = domain.MaxImageBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, 2*limit+maxFormBytes)

	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "select image", fmt.Errorf("multipart body is required: %w", err)))
		return
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "select image", fmt.Errorf("read multipart body: %w", err)))
			return
		}
		if part.FormName() != "image" {
			_ = part.Close()
			continue
		}

		snap, err := rt.sessions.SelectImage(r.Context(), r.PathValue("id"), ports.ImageUpload{
			Filename: part.FileName(),
			MimeType: part.Header.Get("Content-Type"),
			Body:     part,
		})
		_ = part.Close()
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}
	writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "select image", fmt.Errorf("multipart field 'image' is required")))
}

func (rt *Router) clearImage(w http.ResponseWriter, r *http.Request) {
	snap, err := rt.sessions.ClearImage(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (rt *Router) detect(w http.ResponseWriter, r *http.Request) {
	view, err := rt.sessions.Detect(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) report(w http.ResponseWriter, r *http.Request) {
	report, err := rt.sessions.Report(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": report.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, report.Content)
}

func (rt *Router) getDashboard(w http.ResponseWriter, r *http.Request) {
	view, err := rt.dashboard.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) exportDashboard(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := rt.dashboard.Export(r.Context(), &buf); err != nil {
		writeError(w, r, err)
		return
	}
	filename := fmt.Sprintf("cropguard_dashboard_%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxMediaType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (rt *Router) addCrop(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes)).Decode(&raw); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "add crop", fmt.Errorf("invalid json: %w", err)))
		return
	}

	receipt, err := rt.dashboard.AddCrop(r.Context(), flattenForm(raw))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// flattenForm turns a JSON object into string form fields; nulls are dropped.
func flattenForm(raw map[string]any) domain.CropForm {
	form := make(domain.CropForm, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			form[key] = strings.TrimSpace(v)
		default:
			form[key] = fmt.Sprint(v)
		}
	}
	return form
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := mapError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}
