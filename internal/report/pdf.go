package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"chemvis/pkg/contracts/domain"
)

func (r *Renderer) renderPDF(s domain.DatasetSummary) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(true)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(s.CreatedAt)
	pdf.SetModificationDate(s.CreatedAt)
	pdf.SetTitle(Title, true)
	if r.author != "" {
		pdf.SetAuthor(r.author, true)
	}

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, Title, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	for _, f := range summaryFields(s) {
		pdf.CellFormat(0, 8, tr(fmt.Sprintf("%s: %s", f.Name, f.Value)), "", 1, "L", false, 0, "")
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Type Distribution", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for _, e := range sortedDistribution(s.TypeDistribution) {
		pdf.CellFormat(0, 7, tr(fmt.Sprintf("%s: %d", e.Type, e.Count)), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
