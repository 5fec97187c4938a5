package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"

	"chemvis/internal/dataprocessing"
	"chemvis/internal/infrastructure"
	"chemvis/internal/report"
	"chemvis/internal/storage"
	api "chemvis/pkg/contracts/api/v1"
	"chemvis/pkg/contracts/domain"
	"chemvis/pkg/contracts/events"
)

// EventPublisher delivers history events to subscribers
type EventPublisher interface {
	Publish(ctx context.Context, event events.DatasetEvent) error
}

// ReportRenderer turns a stored summary into a document
type ReportRenderer interface {
	Render(summary domain.DatasetSummary, format domain.ReportFormat) ([]byte, error)
}

// RenderedReport is a report ready to be written to a response
type RenderedReport struct {
	Format      domain.ReportFormat
	ContentType string
	FileName    string
	Content     []byte
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, events.DatasetEvent) error { return nil }

// DatasetService owns the upload pipeline and the read side of the history
type DatasetService struct {
	store     storage.Store
	renderer  ReportRenderer
	publisher EventPublisher
	metrics   *infrastructure.DatasetMetrics
	tracer    trace.Tracer
	logger    *slog.Logger

	// collapses concurrent renders of the same report
	reports singleflight.Group
}

// NewDatasetService creates the dataset service. publisher, metrics and
// tracer may be nil.
func NewDatasetService(
	store storage.Store,
	renderer ReportRenderer,
	publisher EventPublisher,
	metrics *infrastructure.DatasetMetrics,
	tracer trace.Tracer,
	logger *slog.Logger,
) *DatasetService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if metrics == nil {
		metrics = infrastructure.NoopDatasetMetrics()
	}
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer(infrastructure.MeterName)
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	return &DatasetService{
		store:     store,
		renderer:  renderer,
		publisher: publisher,
		metrics:   metrics,
		tracer:    tracer,
		logger:    infrastructure.WithComponent(logger, "dataset_service"),
	}
}

// CreateSummary parses an uploaded file, computes its aggregates and stores
// the result. Nothing is stored when parsing or computing fails.
func (s *DatasetService) CreateSummary(ctx context.Context, filename string, r io.Reader) (domain.DatasetSummary, error) {
	ctx, span := s.tracer.Start(ctx, "dataset.create",
		trace.WithAttributes(attribute.String("dataset.filename", filename)))
	defer span.End()

	start := time.Now()
	filename = cleanFilename(filename)

	records, err := dataprocessing.ParseUpload(filename, r)
	if err != nil {
		return domain.DatasetSummary{}, s.reject(ctx, filename, "parse", err)
	}

	agg, err := dataprocessing.Compute(records)
	if err != nil {
		return domain.DatasetSummary{}, s.reject(ctx, filename, "compute", err)
	}

	res, err := s.store.Insert(ctx, domain.NewDatasetSummary(filename, agg), records)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return domain.DatasetSummary{}, fmt.Errorf("failed to store dataset summary: %w", err)
	}

	stored := res.Summary
	span.SetAttributes(
		attribute.Int64("dataset.id", stored.ID),
		attribute.Int("dataset.rows", stored.TotalCount),
		attribute.Int("dataset.evicted", len(res.Evicted)),
	)

	s.metrics.DatasetsCreated.Add(ctx, 1)
	s.metrics.UploadRows.Record(ctx, int64(stored.TotalCount))
	s.metrics.UploadDuration.Record(ctx, time.Since(start).Seconds())
	if len(res.Evicted) > 0 {
		s.metrics.DatasetsEvicted.Add(ctx, int64(len(res.Evicted)))
	}

	s.logger.InfoContext(ctx, "dataset summary stored",
		slog.Int64("dataset_id", stored.ID),
		slog.String("label", stored.Label),
		slog.Int("total_count", stored.TotalCount),
		slog.Any("evicted", res.Evicted),
		slog.Duration("duration", time.Since(start)))

	s.publish(ctx, events.NewDatasetCreated(stored, infrastructure.GetTraceID(ctx)))
	for _, id := range res.Evicted {
		s.publish(ctx, events.NewDatasetEvicted(id, infrastructure.GetTraceID(ctx)))
	}

	return stored, nil
}

func (s *DatasetService) reject(ctx context.Context, filename, stage string, err error) error {
	reason := "invalid"
	if errors.Is(err, domain.ErrEmptyDataset) {
		reason = "empty"
	}
	s.metrics.UploadsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	infrastructure.RecordError(ctx, err, trace.WithAttributes(attribute.String("reason", reason)))

	s.logger.WarnContext(ctx, "upload rejected",
		slog.String("filename", filename),
		slog.String("stage", stage),
		slog.String("error", err.Error()))
	return err
}

// publish delivers an event. Failures never undo the insert.
func (s *DatasetService) publish(ctx context.Context, event events.DatasetEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish dataset event",
			slog.String("type", string(event.Type)),
			slog.Int64("dataset_id", event.DatasetID),
			slog.String("error", err.Error()))
		return
	}
	infrastructure.AddSpanEvent(ctx, string(event.Type), attribute.Int64("dataset.id", event.DatasetID))
}

// ListSummaries returns up to limit history entries, newest first. A
// non-positive limit selects the default.
func (s *DatasetService) ListSummaries(ctx context.Context, limit int) ([]domain.DatasetListing, error) {
	if limit <= 0 {
		limit = api.DefaultHistoryLimit
	}

	summaries, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}

	listings := make([]domain.DatasetListing, 0, len(summaries))
	for _, summary := range summaries {
		listings = append(listings, summary.Listing())
	}
	return listings, nil
}

// GetSummary returns a retained summary or a *domain.NotFoundError
func (s *DatasetService) GetSummary(ctx context.Context, id int64) (domain.DatasetSummary, error) {
	summary, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.DatasetSummary{}, err
	}
	return summary, nil
}

// GetEquipment returns the parsed rows of a retained summary in upload order
func (s *DatasetService) GetEquipment(ctx context.Context, id int64) ([]domain.EquipmentRecord, error) {
	return s.store.Equipment(ctx, id)
}

// GetStats returns only the aggregates of a retained summary
func (s *DatasetService) GetStats(ctx context.Context, id int64) (domain.Aggregates, error) {
	summary, err := s.GetSummary(ctx, id)
	if err != nil {
		return domain.Aggregates{}, err
	}
	return summary.Aggregates, nil
}

// GetReport renders the report of a retained summary. The format is checked
// before the store is consulted; the empty string selects PDF.
func (s *DatasetService) GetReport(ctx context.Context, id int64, format string) (*RenderedReport, error) {
	reportFormat, err := domain.ParseReportFormat(format)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "dataset.report",
		trace.WithAttributes(
			attribute.Int64("dataset.id", id),
			attribute.String("report.format", string(reportFormat)),
		))
	defer span.End()

	summary, err := s.store.Get(ctx, id)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	start := time.Now()
	key := fmt.Sprintf("%d:%s", id, reportFormat)
	v, err, shared := s.reports.Do(key, func() (interface{}, error) {
		return s.renderer.Render(summary, reportFormat)
	})
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to render %s report for dataset %d: %w", reportFormat, id, err)
	}

	attrs := metric.WithAttributes(attribute.String("format", string(reportFormat)))
	s.metrics.ReportsRendered.Add(ctx, 1, attrs)
	s.metrics.ReportDuration.Record(ctx, time.Since(start).Seconds(), attrs)

	s.logger.DebugContext(ctx, "report rendered",
		slog.Int64("dataset_id", id),
		slog.String("format", string(reportFormat)),
		slog.Bool("shared", shared))

	return &RenderedReport{
		Format:      reportFormat,
		ContentType: report.ContentType(reportFormat),
		FileName:    report.FileName(summary, reportFormat),
		Content:     v.([]byte),
	}, nil
}

// cleanFilename strips any client side directories from an upload name
func cleanFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	base := path.Base(name)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
