// Package api contains the HTTP API contract definitions for chemvis.
// Version v1 represents the current stable API version.
package api

import (
	"chemvis/pkg/contracts/domain"
)

// DefaultHistoryLimit is the number of datasets returned when no limit is given
const DefaultHistoryLimit = 5

// ListDatasetsRequest represents the query of GET /api/datasets
type ListDatasetsRequest struct {
	Limit int `json:"limit" query:"limit" validate:"min=1,max=50"`
}

// DatasetIDRequest represents a dataset id path parameter
type DatasetIDRequest struct {
	ID int64 `json:"id" param:"id" validate:"required,min=1"`
}

// ReportRequest represents the query of GET /api/datasets/{id}/report
type ReportRequest struct {
	DatasetIDRequest
	Format string `json:"format" query:"format" validate:"omitempty,oneof=pdf xlsx excel csv"`
}

// ListDatasetsResponse wraps the dataset history
type ListDatasetsResponse struct {
	Data  []domain.DatasetListing `json:"data"`
	Count int                     `json:"count"`
	Limit int                     `json:"limit"`
}

// StatsResponse carries only the aggregates of a dataset
type StatsResponse struct {
	domain.Aggregates
}
