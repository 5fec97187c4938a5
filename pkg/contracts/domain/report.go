package domain

import "strings"

// ReportFormat defines the format of a rendered report
type ReportFormat string

const (
	ReportFormatPDF   ReportFormat = "pdf"
	ReportFormatExcel ReportFormat = "xlsx"
	ReportFormatCSV   ReportFormat = "csv"
)

// ParseReportFormat normalises a user supplied format. The empty string
// selects PDF.
func ParseReportFormat(s string) (ReportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pdf":
		return ReportFormatPDF, nil
	case "xlsx", "excel":
		return ReportFormatExcel, nil
	case "csv":
		return ReportFormatCSV, nil
	}
	return "", NewValidationError("format", "unsupported report format %q", s)
}
