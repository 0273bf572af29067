package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	PolicyDegradeToEmpty = "degrade_to_empty"
	PolicySurfaceError   = "surface_error"
)

type Config struct {
	APIPort  string
	LogLevel string

	CropAPIURL           string
	CropAPICookie        string
	DetectTimeoutSeconds int
	FetchTimeoutSeconds  int
	BreakerEnabled       bool

	MaxUploadBytes int
	PreviewMaxSide int
	HistoryLimit   int

	StatsFailurePolicy   string
	HistoryFailurePolicy string

	SessionTTLMinutes int
	ReportDir         string

	NATSURL     string
	NATSSubject string

	APIRateLimitRPS   int
	APIRateLimitBurst int
	APIMaxInFlight    int
	APIOverloadWaitMS int
}

// Load reads .env (if present), then the optional YAML file named by
// CROPGUARD_CONFIG, then the process environment. Environment wins.
func Load() Config {
	_ = godotenv.Load()
	return load(newSource(os.Getenv("CROPGUARD_CONFIG")))
}

func load(src source) Config {
	return Config{
		APIPort:  src.env("API_PORT", "8080"),
		LogLevel: src.env("LOG_LEVEL", "info"),

		CropAPIURL:           src.env("CROPGUARD_API_URL", "http://localhost:5000"),
		CropAPICookie:        src.env("API_COOKIE", ""),
		DetectTimeoutSeconds: src.envInt("DETECT_TIMEOUT_SECONDS", 0),
		FetchTimeoutSeconds:  src.envInt("FETCH_TIMEOUT_SECONDS", 15),
		BreakerEnabled:       src.envBool("BREAKER_ENABLED", true),

		MaxUploadBytes: src.envInt("MAX_UPLOAD_BYTES", 16*1024*1024),
		PreviewMaxSide: src.envInt("PREVIEW_MAX_SIDE", 512),
		HistoryLimit:   src.envInt("HISTORY_LIMIT", 5),

		StatsFailurePolicy:   src.policy("STATS_FAILURE_POLICY"),
		HistoryFailurePolicy: src.policy("HISTORY_FAILURE_POLICY"),

		SessionTTLMinutes: src.envInt("SESSION_TTL_MINUTES", 30),
		ReportDir:         src.env("REPORT_DIR", ""),

		NATSURL:     src.env("NATS_URL", ""),
		NATSSubject: src.env("NATS_SUBJECT", "cropguard.detections"),

		APIRateLimitRPS:   src.envInt("API_RATE_LIMIT_RPS", 0),
		APIRateLimitBurst: src.envInt("API_RATE_LIMIT_BURST", 20),
		APIMaxInFlight:    src.envInt("API_MAX_IN_FLIGHT", 64),
		APIOverloadWaitMS: src.envInt("API_OVERLOAD_WAIT_MS", 250),
	}
}

type source struct {
	file map[string]string
}

func newSource(path string) source {
	src := source{file: map[string]string{}}
	if strings.TrimSpace(path) == "" {
		return src
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("config_file_unreadable", "path", path, "error", err)
		return src
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		slog.Warn("config_file_invalid", "path", path, "error", err)
		return src
	}
	for key, value := range values {
		if value == nil {
			continue
		}
		src.file[strings.ToUpper(key)] = fmt.Sprint(value)
	}
	return src
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s source) env(key, fallback string) string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (s source) envInt(key string, fallback int) int {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) envBool(key string, fallback bool) bool {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) policy(key string) string {
	switch strings.ToLower(strings.TrimSpace(s.lookup(key))) {
	case PolicySurfaceError:
		return PolicySurfaceError
	default:
		return PolicyDegradeToEmpty
	}
}
