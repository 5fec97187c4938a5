// Package dataprocessing turns uploaded equipment telemetry into summary
// statistics. It has two halves:
//
//  1. Parser: reads CSV or Excel uploads into domain.EquipmentRecord values
//  2. Summarizer: computes count, means and the type distribution
//
// # Usage
//
//	records, err := dataprocessing.ParseUpload("plant.csv", file)
//	if err != nil {
//	    return err // *domain.ValidationError names the offending column
//	}
//	agg, err := dataprocessing.Compute(records)
//	if errors.Is(err, domain.ErrEmptyDataset) {
//	    ...
//	}
//
// # Columns
//
// Header names are matched case-insensitively after trimming. The required
// columns are Type, Flowrate, Pressure and Temperature; Name (or
// "Equipment Name") is optional. Extra columns are ignored.
//
// Compute is a pure function and safe for concurrent use.
package dataprocessing
