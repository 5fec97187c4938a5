package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"chemvis/pkg/contracts/domain"
)

// renderCSV writes field,value rows followed by one type:<name> row per type
func (r *Renderer) renderCSV(s domain.DatasetSummary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := [][]string{{"field", "value"}}
	for _, f := range summaryFields(s) {
		records = append(records, []string{f.Name, f.Value})
	}
	for _, e := range sortedDistribution(s.TypeDistribution) {
		records = append(records, []string{"Type: " + e.Type, strconv.Itoa(e.Count)})
	}

	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("render csv: %w", err)
	}
	return buf.Bytes(), nil
}
