package dataprocessing

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"chemvis/pkg/contracts/domain"
)

// Column names as they appear in uploaded files
const (
	ColumnName        = "Name"
	ColumnType        = "Type"
	ColumnFlowrate    = "Flowrate"
	ColumnPressure    = "Pressure"
	ColumnTemperature = "Temperature"
)

// UnknownValue replaces blank Name and Type cells
const UnknownValue = "Unknown"

var requiredColumns = []string{ColumnType, ColumnFlowrate, ColumnPressure, ColumnTemperature}

// headerAliases maps normalised header text to the canonical column name
var headerAliases = map[string]string{
	"name":           ColumnName,
	"equipment name": ColumnName,
	"equipment":      ColumnName,
	"type":           ColumnType,
	"flowrate":       ColumnFlowrate,
	"flow rate":      ColumnFlowrate,
	"pressure":       ColumnPressure,
	"temperature":    ColumnTemperature,
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseUpload parses an uploaded file, choosing the format from its extension.
func ParseUpload(filename string, r io.Reader) ([]domain.EquipmentRecord, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return ParseCSV(r)
	case ".xlsx", ".xlsm":
		return ParseXLSX(r)
	default:
		return nil, domain.NewValidationError("file", "unsupported file type %q, expected .csv or .xlsx", filepath.Ext(filename))
	}
}

// ParseCSV reads a CSV document whose first non-blank line is the header.
func ParseCSV(r io.Reader) ([]domain.EquipmentRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, domain.NewValidationError("file", "malformed csv at line %d: %v", perr.Line, perr.Err)
		}
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return parseRows(rows)
}

// ParseXLSX reads the first worksheet of an Excel workbook.
func ParseXLSX(r io.Reader) ([]domain.EquipmentRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, domain.NewValidationError("file", "unreadable workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.NewValidationError("file", "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return parseRows(rows)
}

// parseRows maps a header row plus data rows onto equipment records
func parseRows(rows [][]string) ([]domain.EquipmentRecord, error) {
	start := firstNonBlank(rows)
	if start < 0 {
		return nil, domain.NewValidationError("file", "missing header row")
	}

	columns, err := resolveColumns(rows[start])
	if err != nil {
		return nil, err
	}

	records := make([]domain.EquipmentRecord, 0, len(rows)-start-1)
	for i := start + 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		// Line numbers are 1-based and count the header.
		line := i + 1

		rec := domain.EquipmentRecord{
			Name: cellOr(row, columns, ColumnName, UnknownValue),
			Type: cellOr(row, columns, ColumnType, UnknownValue),
		}
		if rec.Flowrate, err = numericCell(row, columns, ColumnFlowrate, line); err != nil {
			return nil, err
		}
		if rec.Pressure, err = numericCell(row, columns, ColumnPressure, line); err != nil {
			return nil, err
		}
		if rec.Temperature, err = numericCell(row, columns, ColumnTemperature, line); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func resolveColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.Join(strings.Fields(h), " "))
		if canonical, ok := headerAliases[key]; ok {
			if _, seen := columns[canonical]; !seen {
				columns[canonical] = i
			}
		}
	}
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			return nil, domain.NewValidationError(col, "required column is missing")
		}
	}
	return columns, nil
}

func cellOr(row []string, columns map[string]int, column, fallback string) string {
	idx, ok := columns[column]
	if !ok || idx >= len(row) {
		return fallback
	}
	if v := strings.TrimSpace(row[idx]); v != "" {
		return v
	}
	return fallback
}

func numericCell(row []string, columns map[string]int, column string, line int) (float64, error) {
	idx := columns[column]
	if idx >= len(row) || strings.TrimSpace(row[idx]) == "" {
		return 0, domain.NewValidationError(column, "row %d: value is empty", line)
	}
	raw := strings.ReplaceAll(strings.TrimSpace(row[idx]), ",", "")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, domain.NewValidationError(column, "row %d: %q is not a number", line, row[idx])
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, domain.NewValidationError(column, "row %d: %q is not a finite number", line, row[idx])
	}
	return v, nil
}

func firstNonBlank(rows [][]string) int {
	for i, row := range rows {
		if !isBlank(row) {
			return i
		}
	}
	return -1
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
