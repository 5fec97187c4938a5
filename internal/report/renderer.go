package report

import (
	"fmt"
	"sort"
	"strconv"

	"chemvis/pkg/contracts/domain"
)

// Title heads every rendered report
const Title = "Chemical Equipment Analysis Report"

// Renderer turns summaries into report documents
type Renderer struct {
	author string
}

// NewRenderer creates a renderer; author is written into document metadata
func NewRenderer(author string) *Renderer {
	return &Renderer{author: author}
}

// Render produces the report bytes for format
func (r *Renderer) Render(summary domain.DatasetSummary, format domain.ReportFormat) ([]byte, error) {
	switch format {
	case domain.ReportFormatPDF, "":
		return r.renderPDF(summary)
	case domain.ReportFormatExcel:
		return r.renderXLSX(summary)
	case domain.ReportFormatCSV:
		return r.renderCSV(summary)
	default:
		return nil, domain.NewValidationError("format", "unsupported report format %q", format)
	}
}

// ContentType returns the MIME type for format
func ContentType(format domain.ReportFormat) string {
	switch format {
	case domain.ReportFormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case domain.ReportFormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/pdf"
	}
}

// FileName returns the attachment name for a report
func FileName(summary domain.DatasetSummary, format domain.ReportFormat) string {
	if format == "" {
		format = domain.ReportFormatPDF
	}
	return fmt.Sprintf("report_%d.%s", summary.ID, format)
}

// field is one labelled line of the report body
type field struct {
	Name  string
	Value string
}

// summaryFields lists the body lines shared by every format
func summaryFields(s domain.DatasetSummary) []field {
	return []field{
		{"Filename", s.Label},
		{"Total Count", strconv.Itoa(s.TotalCount)},
		{"Avg Flowrate", formatFloat(s.AvgFlowrate)},
		{"Avg Pressure", formatFloat(s.AvgPressure)},
		{"Avg Temperature", formatFloat(s.AvgTemperature)},
	}
}

// distributionEntry is one equipment type and its count
type distributionEntry struct {
	Type  string
	Count int
}

func sortedDistribution(m map[string]int) []distributionEntry {
	out := make([]distributionEntry, 0, len(m))
	for k, v := range m {
		out = append(out, distributionEntry{Type: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
