package domain

import "strings"

// DisplayName turns a disease code such as "Tomato___Early_blight" into
// "Tomato - Early blight". It is the only place codes are normalized.
func DisplayName(code string) string {
	name := strings.ReplaceAll(code, "___", " - ")
	return strings.ReplaceAll(name, "_", " ")
}

func IsHealthy(code string) bool {
	return strings.Contains(code, "healthy")
}

// TierForConfidence buckets a percentage; lower bounds are inclusive.
func TierForConfidence(confidence float64) ConfidenceTier {
	switch {
	case confidence >= 90:
		return ConfidenceHigh
	case confidence >= 70:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// BucketForSeverity matches free-text severity such as "Medium - Progressive disease".
// Unmatched text is treated as high.
func BucketForSeverity(severity string) SeverityBucket {
	switch {
	case strings.Contains(severity, "None"), strings.Contains(severity, "Low"):
		return SeverityLow
	case strings.Contains(severity, "Medium"):
		return SeverityMedium
	default:
		return SeverityHigh
	}
}
