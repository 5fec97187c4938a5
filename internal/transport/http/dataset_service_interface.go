package http

import (
	"context"
	"io"

	"chemvis/internal/services"
	"chemvis/pkg/contracts/domain"
)

// DatasetServiceInterface defines the dataset operations the handlers need
type DatasetServiceInterface interface {
	CreateSummary(ctx context.Context, filename string, r io.Reader) (domain.DatasetSummary, error)
	ListSummaries(ctx context.Context, limit int) ([]domain.DatasetListing, error)
	GetSummary(ctx context.Context, id int64) (domain.DatasetSummary, error)
	GetStats(ctx context.Context, id int64) (domain.Aggregates, error)
	GetEquipment(ctx context.Context, id int64) ([]domain.EquipmentRecord, error)
	GetReport(ctx context.Context, id int64, format string) (*services.RenderedReport, error)
}
