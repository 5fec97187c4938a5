package domain

import (
	"fmt"
	"time"
)

// LabelTimeLayout is the timestamp prefix used when building dataset labels
const LabelTimeLayout = "20060102_150405"

// EquipmentRecord is one parsed row of an uploaded telemetry file
type EquipmentRecord struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Flowrate    float64 `json:"flowrate"`
	Pressure    float64 `json:"pressure"`
	Temperature float64 `json:"temperature"`
}

// Aggregates holds the statistics computed from a set of equipment records
type Aggregates struct {
	TotalCount       int            `json:"total_count"`
	AvgFlowrate      float64        `json:"avg_flowrate"`
	AvgPressure      float64        `json:"avg_pressure"`
	AvgTemperature   float64        `json:"avg_temperature"`
	TypeDistribution map[string]int `json:"type_distribution"`
}

// DatasetSummary is the stored result of one upload. It is never mutated
// after the store has accepted it.
type DatasetSummary struct {
	ID        int64     `json:"id"`
	Label     string    `json:"label"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
	Aggregates
}

// DatasetListing is the history view of a summary
type DatasetListing struct {
	ID         int64     `json:"id"`
	Label      string    `json:"label"`
	Filename   string    `json:"filename"`
	CreatedAt  time.Time `json:"created_at"`
	TotalCount int       `json:"total_count"`
}

// NewDatasetSummary creates an unsaved summary for the given upload
func NewDatasetSummary(filename string, agg Aggregates) DatasetSummary {
	return DatasetSummary{Filename: filename, Aggregates: agg}
}

// Listing projects the summary onto its history fields
func (d DatasetSummary) Listing() DatasetListing {
	return DatasetListing{
		ID:         d.ID,
		Label:      d.Label,
		Filename:   d.Filename,
		CreatedAt:  d.CreatedAt,
		TotalCount: d.TotalCount,
	}
}

// Clone returns a deep copy so callers cannot reach into stored maps
func (d DatasetSummary) Clone() DatasetSummary {
	out := d
	if d.TypeDistribution != nil {
		out.TypeDistribution = make(map[string]int, len(d.TypeDistribution))
		for k, v := range d.TypeDistribution {
			out.TypeDistribution[k] = v
		}
	}
	return out
}

// FormatLabel builds the unique, human readable label of a stored summary.
func FormatLabel(createdAt time.Time, id int64, filename string) string {
	if filename == "" {
		filename = "dataset"
	}
	return fmt.Sprintf("%s_%d_%s", createdAt.UTC().Format(LabelTimeLayout), id, filename)
}
