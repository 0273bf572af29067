package usecase

import (
	"fmt"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

// BuildResultView maps a detection result to the fields the result card shows.
func BuildResultView(result domain.DetectionResult) domain.ResultView {
	info := result.DiseaseInfo
	return domain.ResultView{
		DisplayName:     domain.DisplayName(result.DiseaseName),
		DiseaseCode:     result.DiseaseName,
		Healthy:         domain.IsHealthy(result.DiseaseName),
		Confidence:      result.Confidence,
		ConfidenceText:  formatPercent(result.Confidence, 2),
		ConfidenceTier:  domain.TierForConfidence(result.Confidence),
		Severity:        info.Severity,
		SeverityBucket:  domain.BucketForSeverity(info.Severity),
		Description:     info.Description,
		Symptoms:        info.Symptoms,
		Treatment:       nonNilStrings(info.Treatment),
		OrganicSolution: info.OrganicSolution,
		Prevention:      nonNilStrings(info.Prevention),
		ImageURL:        result.ImageURL,
	}
}

func formatPercent(value float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, value)
}

func nonNilStrings(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
