package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/core/ports"
)

const DefaultHistoryLimit = 5

type DashboardOptions struct {
	StatsPolicy   domain.FailurePolicy
	HistoryPolicy domain.FailurePolicy
	HistoryLimit  int
	Logger        *slog.Logger
}

type DashboardUseCase struct {
	source   ports.DashboardSource
	crops    ports.CropRegistrar
	exporter ports.DashboardExporter

	statsPolicy   domain.FailurePolicy
	historyPolicy domain.FailurePolicy
	historyLimit  int
	logger        *slog.Logger
	now           func() time.Time
}

func NewDashboardUseCase(
	source ports.DashboardSource,
	crops ports.CropRegistrar,
	exporter ports.DashboardExporter,
	opts DashboardOptions,
) *DashboardUseCase {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &DashboardUseCase{
		source:        source,
		crops:         crops,
		exporter:      exporter,
		statsPolicy:   normalizePolicy(opts.StatsPolicy),
		historyPolicy: normalizePolicy(opts.HistoryPolicy),
		historyLimit:  limit,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// LoadStats fetches fresh statistics. Under DegradeToEmpty a failed fetch
// yields zeroed stats and no error.
func (uc *DashboardUseCase) LoadStats(ctx context.Context) (*domain.DashboardStats, error) {
	stats, err := uc.source.Stats(ctx)
	if err != nil {
		if uc.statsPolicy == domain.SurfaceError {
			return nil, err
		}
		uc.logger.Warn("dashboard_stats_unavailable", "error", err)
		return emptyStats(), nil
	}
	if stats.DiseaseDistribution == nil {
		stats.DiseaseDistribution = map[string]int{}
	}
	return stats, nil
}

// LoadHistory returns at most limit entries in upstream order.
func (uc *DashboardUseCase) LoadHistory(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = uc.historyLimit
	}
	entries, err := uc.loadAllHistory(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (uc *DashboardUseCase) Load(ctx context.Context) (*domain.DashboardView, error) {
	stats, err := uc.LoadStats(ctx)
	if err != nil {
		return nil, err
	}
	history, err := uc.LoadHistory(ctx, uc.historyLimit)
	if err != nil {
		return nil, err
	}
	return &domain.DashboardView{
		Summary: Summarize(*stats),
		History: HistoryRows(history, uc.now()),
		Chart:   ChartSlices(stats.DiseaseDistribution),
	}, nil
}

// AddCrop checks the known form fields and forwards the whole form.
func (uc *DashboardUseCase) AddCrop(ctx context.Context, form domain.CropForm) (*domain.CropReceipt, error) {
	if strings.TrimSpace(form["crop_type"]) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "add crop", fmt.Errorf("crop_type is required"))
	}
	if planted := strings.TrimSpace(form["planted_date"]); planted != "" {
		if _, err := time.Parse("2006-01-02", planted); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "add crop", fmt.Errorf("planted_date must be YYYY-MM-DD: %w", err))
		}
	}
	receipt, err := uc.crops.AddCrop(ctx, form)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("crop_added", "crop_type", form["crop_type"], "crop_id", receipt.CropID)
	return receipt, nil
}

// Export writes stats and the full, uncapped history.
func (uc *DashboardUseCase) Export(ctx context.Context, w io.Writer) error {
	if uc.exporter == nil {
		return fmt.Errorf("dashboard exporter is not configured")
	}
	stats, err := uc.LoadStats(ctx)
	if err != nil {
		return err
	}
	history, err := uc.loadAllHistory(ctx)
	if err != nil {
		return err
	}
	return uc.exporter.Export(ctx, w, domain.DashboardExport{
		Summary: Summarize(*stats),
		Chart:   ChartSlices(stats.DiseaseDistribution),
		History: HistoryRows(history, uc.now()),
	})
}

func (uc *DashboardUseCase) loadAllHistory(ctx context.Context) ([]domain.HistoryEntry, error) {
	entries, err := uc.source.History(ctx)
	if err != nil {
		if uc.historyPolicy == domain.SurfaceError {
			return nil, err
		}
		uc.logger.Warn("dashboard_history_unavailable", "error", err)
		return []domain.HistoryEntry{}, nil
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, nil
}

// Summarize derives healthy/infected counts. Infected never drops below zero
// when the distribution sums past total_detections.
func Summarize(stats domain.DashboardStats) domain.StatsSummary {
	healthy := 0
	for code, count := range stats.DiseaseDistribution {
		if domain.IsHealthy(code) {
			healthy += count
		}
	}
	infected := stats.TotalDetections - healthy
	if infected < 0 {
		infected = 0
	}
	return domain.StatsSummary{
		TotalDetections: stats.TotalDetections,
		TotalCrops:      stats.TotalCrops,
		Healthy:         healthy,
		Infected:        infected,
	}
}

// ChartSlices feeds the distribution chart, ordered by label.
func ChartSlices(distribution map[string]int) []domain.ChartSlice {
	slices := make([]domain.ChartSlice, 0, len(distribution))
	for code, count := range distribution {
		slices = append(slices, domain.ChartSlice{
			Label: domain.DisplayName(code),
			Code:  code,
			Count: count,
		})
	}
	sort.Slice(slices, func(i, j int) bool {
		if slices[i].Label == slices[j].Label {
			return slices[i].Code < slices[j].Code
		}
		return slices[i].Label < slices[j].Label
	})
	return slices
}

func HistoryRows(entries []domain.HistoryEntry, now time.Time) []domain.HistoryRow {
	rows := make([]domain.HistoryRow, 0, len(entries))
	for _, entry := range entries {
		status := "warning"
		if domain.IsHealthy(entry.DiseaseName) {
			status = "success"
		}
		rows = append(rows, domain.HistoryRow{
			ID:             entry.ID,
			DisplayName:    domain.DisplayName(entry.DiseaseName),
			DiseaseCode:    entry.DiseaseName,
			Status:         status,
			Confidence:     entry.Confidence,
			ConfidenceText: formatPercent(entry.Confidence, 1),
			DetectedAt:     entry.DetectedAt,
			TimeAgo:        TimeAgo(now, entry.DetectedAt),
			ImageURL:       entry.ImageURL,
		})
	}
	return rows
}

var detectedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// TimeAgo renders a relative time for a backend timestamp. Naive timestamps
// are read as UTC; unparseable input is returned unchanged.
func TimeAgo(now time.Time, detectedAt string) string {
	var (
		at     time.Time
		parsed bool
	)
	for _, layout := range detectedAtLayouts {
		if t, err := time.Parse(layout, detectedAt); err == nil {
			at, parsed = t, true
			break
		}
	}
	if !parsed {
		return detectedAt
	}

	elapsed := now.Sub(at)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return plural(int(elapsed/time.Minute), "minute")
	case elapsed < 24*time.Hour:
		return plural(int(elapsed/time.Hour), "hour")
	case elapsed < 30*24*time.Hour:
		return plural(int(elapsed/(24*time.Hour)), "day")
	default:
		return at.Format("Jan 2, 2006")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

func emptyStats() *domain.DashboardStats {
	return &domain.DashboardStats{DiseaseDistribution: map[string]int{}}
}

func normalizePolicy(policy domain.FailurePolicy) domain.FailurePolicy {
	if policy == domain.SurfaceError {
		return domain.SurfaceError
	}
	return domain.DegradeToEmpty
}
