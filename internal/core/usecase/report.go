package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

const reportAppName = "CropGuard AI"

var reportRule = strings.Repeat("=", 50)

// BuildReport renders the downloadable plain-text report. The output depends
// only on its arguments.
func BuildReport(result domain.DetectionResult, date time.Time) string {
	info := result.DiseaseInfo
	var b strings.Builder

	b.WriteString("CROP DISEASE DETECTION REPORT\n")
	fmt.Fprintf(&b, "Generated by %s\n", reportAppName)
	fmt.Fprintf(&b, "Date: %s\n", formatReportDate(date))
	fmt.Fprintf(&b, "\n%s\n\n", reportRule)

	fmt.Fprintf(&b, "DISEASE IDENTIFIED: %s\n", domain.DisplayName(result.DiseaseName))
	fmt.Fprintf(&b, "Confidence Score: %s\n", formatPercent(result.Confidence, 2))
	fmt.Fprintf(&b, "Severity: %s\n\n", info.Severity)

	fmt.Fprintf(&b, "DESCRIPTION:\n%s\n\n", info.Description)
	fmt.Fprintf(&b, "SYMPTOMS:\n%s\n\n", info.Symptoms)

	b.WriteString("CHEMICAL TREATMENT:\n")
	writeNumbered(&b, info.Treatment)

	fmt.Fprintf(&b, "\nORGANIC SOLUTION:\n%s\n\n", info.OrganicSolution)

	b.WriteString("PREVENTION MEASURES:\n")
	writeNumbered(&b, info.Prevention)

	fmt.Fprintf(&b, "\n%s\n", reportRule)
	b.WriteString("\nDISCLAIMER:\n")
	b.WriteString("This is an AI-based preliminary diagnosis. Please consult\n")
	b.WriteString("agricultural experts for confirmation and detailed treatment plans.\n")

	return b.String()
}

// ReportFilename follows disease_report_<unix-millis>.txt.
func ReportFilename(at time.Time) string {
	return fmt.Sprintf("disease_report_%d.txt", at.UnixMilli())
}

func writeNumbered(b *strings.Builder, items []string) {
	for idx, item := range items {
		fmt.Fprintf(b, "%d. %s\n", idx+1, item)
	}
}

func formatReportDate(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", int(t.Month()), t.Day(), t.Year())
}
