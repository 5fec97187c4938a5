package report

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"chemvis/pkg/contracts/domain"
)

const (
	summarySheet      = "Summary"
	distributionSheet = "Distribution"
)

func (r *Renderer) renderXLSX(s domain.DatasetSummary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   Title,
		Creator: r.author,
		Created: s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}

	rows := [][]interface{}{
		{Title},
		{},
		{"Filename", s.Label},
		{"Total Count", s.TotalCount},
		{"Avg Flowrate", round2(s.AvgFlowrate)},
		{"Avg Pressure", round2(s.AvgPressure)},
		{"Avg Temperature", round2(s.AvgTemperature)},
	}
	if err := writeRows(f, summarySheet, rows); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "A1", bold); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 20); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}

	if _, err := f.NewSheet(distributionSheet); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	dist := [][]interface{}{{"Type", "Count"}}
	for _, e := range sortedDistribution(s.TypeDistribution) {
		dist = append(dist, []interface{}{e.Type, e.Count})
	}
	if err := writeRows(f, distributionSheet, dist); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(distributionSheet, "A1", "B1", bold); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
