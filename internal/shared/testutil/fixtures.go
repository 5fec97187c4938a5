package testutil

import (
	"fmt"
	"strings"
	"time"

	"chemvis/pkg/contracts/domain"
)

// PumpValveCSV is a two-row upload with known aggregates:
// count 2, flowrate 15, pressure 10, temperature 25, {Pump:1, Valve:1}
const PumpValveCSV = `Equipment Name,Type,Flowrate,Pressure,Temperature
P-101,Pump,10,5,20
V-201,Valve,20,15,30
`

// HeaderOnlyCSV has the required columns and no data rows
const HeaderOnlyCSV = "Equipment Name,Type,Flowrate,Pressure,Temperature\n"

// MissingPressureCSV lacks the Pressure column
const MissingPressureCSV = "Equipment Name,Type,Flowrate,Temperature\nP-101,Pump,10,20\n"

// FixedTime is the CreatedAt used by fixture summaries
var FixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// GenerateCSV builds an upload with n rows cycling through types
func GenerateCSV(n int, types ...string) string {
	if len(types) == 0 {
		types = []string{"Pump", "Valve", "Compressor"}
	}
	var b strings.Builder
	b.WriteString("Equipment Name,Type,Flowrate,Pressure,Temperature\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "EQ-%03d,%s,%d,%d,%d\n", i, types[i%len(types)], 100+i, 5, 90+i%10)
	}
	return b.String()
}

// PumpValveSummary returns the stored form of PumpValveCSV under id
func PumpValveSummary(id int64) domain.DatasetSummary {
	created := FixedTime.Add(time.Duration(id) * time.Minute)
	return domain.DatasetSummary{
		ID:        id,
		Label:     domain.FormatLabel(created, id, "pump_valve.csv"),
		Filename:  "pump_valve.csv",
		CreatedAt: created,
		Aggregates: domain.Aggregates{
			TotalCount:       2,
			AvgFlowrate:      15,
			AvgPressure:      10,
			AvgTemperature:   25,
			TypeDistribution: map[string]int{"Pump": 1, "Valve": 1},
		},
	}
}

// PumpValveRecords returns the parsed rows of PumpValveCSV
func PumpValveRecords() []domain.EquipmentRecord {
	return []domain.EquipmentRecord{
		{Name: "P-101", Type: "Pump", Flowrate: 10, Pressure: 5, Temperature: 20},
		{Name: "V-201", Type: "Valve", Flowrate: 20, Pressure: 15, Temperature: 30},
	}
}
