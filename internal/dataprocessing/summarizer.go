package dataprocessing

import (
	"chemvis/pkg/contracts/domain"
)

// Compute derives the dataset aggregates from parsed records.
// An empty input fails with domain.ErrEmptyDataset rather than producing
// undefined means.
func Compute(records []domain.EquipmentRecord) (domain.Aggregates, error) {
	if len(records) == 0 {
		return domain.Aggregates{}, domain.ErrEmptyDataset
	}

	var flow, pressure, temperature float64
	dist := make(map[string]int)
	for _, r := range records {
		flow += r.Flowrate
		pressure += r.Pressure
		temperature += r.Temperature
		dist[r.Type]++
	}

	n := float64(len(records))
	return domain.Aggregates{
		TotalCount:       len(records),
		AvgFlowrate:      flow / n,
		AvgPressure:      pressure / n,
		AvgTemperature:   temperature / n,
		TypeDistribution: dist,
	}, nil
}
