package domain

import "time"

// MaxImageBytes is the largest image accepted for detection (16 MiB).
const MaxImageBytes = 16 * 1024 * 1024

// SelectedImage is the image currently chosen for detection. It lives only in memory.
type SelectedImage struct {
	Filename string
	MimeType string
	Size     int64
	Data     []byte
}

type DiseaseInfo struct {
	Description     string   `json:"description"`
	Symptoms        string   `json:"symptoms"`
	Severity        string   `json:"severity"`
	Treatment       []string `json:"treatment"`
	OrganicSolution string   `json:"organic_solution"`
	Prevention      []string `json:"prevention"`
}

// DetectionResult is the inference payload returned by POST /api/detect.
type DetectionResult struct {
	DiseaseName    string      `json:"disease_name"`
	Confidence     float64     `json:"confidence"`
	DiseaseInfo    DiseaseInfo `json:"disease_info"`
	PredictionTime float64     `json:"prediction_time,omitempty"`
	DetectionID    int64       `json:"detection_id,omitempty"`
	ImageURL       string      `json:"image_url,omitempty"`
}

type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

type SeverityBucket string

const (
	SeverityLow    SeverityBucket = "low"
	SeverityMedium SeverityBucket = "medium"
	SeverityHigh   SeverityBucket = "high"
)

// ResultView is a DetectionResult mapped to display fields.
type ResultView struct {
	DisplayName     string         `json:"display_name"`
	DiseaseCode     string         `json:"disease_code"`
	Healthy         bool           `json:"healthy"`
	Confidence      float64        `json:"confidence"`
	ConfidenceText  string         `json:"confidence_text"`
	ConfidenceTier  ConfidenceTier `json:"confidence_tier"`
	Severity        string         `json:"severity"`
	SeverityBucket  SeverityBucket `json:"severity_bucket"`
	Description     string         `json:"description"`
	Symptoms        string         `json:"symptoms"`
	Treatment       []string       `json:"treatment"`
	OrganicSolution string         `json:"organic_solution"`
	Prevention      []string       `json:"prevention"`
	ImageURL        string         `json:"image_url,omitempty"`
}

// Report is a generated plain-text report ready for download.
type Report struct {
	Filename string
	Content  string
}

// DetectionEvent is published after a detection becomes the current result of a session.
type DetectionEvent struct {
	SessionID      string         `json:"session_id"`
	DetectionID    int64          `json:"detection_id,omitempty"`
	DiseaseName    string         `json:"disease_name"`
	Confidence     float64        `json:"confidence"`
	SeverityBucket SeverityBucket `json:"severity_bucket"`
	DetectedAt     time.Time      `json:"detected_at"`
}
