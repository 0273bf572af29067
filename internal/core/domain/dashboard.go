package domain

// DashboardStats is the payload of GET /api/stats.
type DashboardStats struct {
	TotalDetections     int            `json:"total_detections"`
	TotalCrops          int            `json:"total_crops"`
	DiseaseDistribution map[string]int `json:"disease_distribution"`
}

// HistoryEntry is one item of GET /api/detections/history.
type HistoryEntry struct {
	ID          int64   `json:"id"`
	DiseaseName string  `json:"disease_name"`
	Confidence  float64 `json:"confidence"`
	DetectedAt  string  `json:"detected_at"`
	ImageURL    string  `json:"image_url"`
}

type FailurePolicy string

const (
	DegradeToEmpty FailurePolicy = "degrade_to_empty"
	SurfaceError   FailurePolicy = "surface_error"
)

type StatsSummary struct {
	TotalDetections int `json:"total_detections"`
	TotalCrops      int `json:"total_crops"`
	Healthy         int `json:"healthy"`
	Infected        int `json:"infected"`
}

type HistoryRow struct {
	ID             int64   `json:"id"`
	DisplayName    string  `json:"display_name"`
	DiseaseCode    string  `json:"disease_code"`
	Status         string  `json:"status"`
	Confidence     float64 `json:"confidence"`
	ConfidenceText string  `json:"confidence_text"`
	DetectedAt     string  `json:"detected_at"`
	TimeAgo        string  `json:"time_ago"`
	ImageURL       string  `json:"image_url"`
}

type ChartSlice struct {
	Label string `json:"label"`
	Code  string `json:"code"`
	Count int    `json:"count"`
}

// DashboardView is everything the dashboard page renders in one load.
type DashboardView struct {
	Summary StatsSummary `json:"summary"`
	History []HistoryRow `json:"history"`
	Chart   []ChartSlice `json:"chart"`
}

// DashboardExport feeds spreadsheet exports; History is not capped.
type DashboardExport struct {
	Summary StatsSummary
	Chart   []ChartSlice
	History []HistoryRow
}

// CropForm holds flattened add-crop form fields (crop_type, location, planted_date).
type CropForm map[string]string

type CropReceipt struct {
	Success bool  `json:"success"`
	CropID  int64 `json:"crop_id,omitempty"`
}
