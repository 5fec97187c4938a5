package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"chemvis/internal/report"
	"chemvis/internal/shared/testutil"
	"chemvis/internal/storage"
	"chemvis/pkg/contracts/domain"
	"chemvis/pkg/contracts/events"
)

// MockEventPublisher is a mock for the EventPublisher interface
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event events.DatasetEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockReportRenderer is a mock for the ReportRenderer interface
type MockReportRenderer struct {
	mock.Mock
}

func (m *MockReportRenderer) Render(summary domain.DatasetSummary, format domain.ReportFormat) ([]byte, error) {
	args := m.Called(summary, format)
	if b, ok := args.Get(0).([]byte); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

// countingRenderer blocks until released so concurrent calls overlap
type countingRenderer struct {
	calls   atomic.Int32
	release chan struct{}
}

func (r *countingRenderer) Render(summary domain.DatasetSummary, format domain.ReportFormat) ([]byte, error) {
	r.calls.Add(1)
	<-r.release
	return []byte(fmt.Sprintf("report-%d-%s", summary.ID, format)), nil
}

func newTestService(t *testing.T, store storage.Store, renderer ReportRenderer, publisher EventPublisher) *DatasetService {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewDatasetService(store, renderer, publisher, nil, nil, logger)
}

func TestDatasetService_CreateSummary(t *testing.T) {
	publisher := new(MockEventPublisher)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e events.DatasetEvent) bool {
		return e.Type == events.MessageTypeDatasetCreated && e.DatasetID == 1
	})).Return(nil).Once()

	store := storage.NewMemoryStore(5)
	svc := newTestService(t, store, report.NewRenderer("test"), publisher)

	summary, err := svc.CreateSummary(context.Background(), "uploads/pump_valve.csv", strings.NewReader(testutil.PumpValveCSV))
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.ID)
	assert.Equal(t, "pump_valve.csv", summary.Filename)
	assert.True(t, strings.HasSuffix(summary.Label, "_1_pump_valve.csv"), summary.Label)
	assert.Equal(t, 2, summary.TotalCount)
	assert.InDelta(t, 15.0, summary.AvgFlowrate, 1e-9)
	assert.InDelta(t, 10.0, summary.AvgPressure, 1e-9)
	assert.InDelta(t, 25.0, summary.AvgTemperature, 1e-9)
	assert.Equal(t, map[string]int{"Pump": 1, "Valve": 1}, summary.TypeDistribution)

	stored, err := svc.GetSummary(context.Background(), summary.ID)
	require.NoError(t, err)
	assert.Equal(t, summary, stored)

	publisher.AssertExpectations(t)
}

func TestDatasetService_CreateSummaryRejects(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		body     string
		check    func(t *testing.T, err error)
	}{
		{
			name:     "missing column",
			filename: "plant.csv",
			body:     testutil.MissingPressureCSV,
			check: func(t *testing.T, err error) {
				var ve *domain.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "Pressure", ve.Field)
			},
		},
		{
			name:     "header only",
			filename: "plant.csv",
			body:     testutil.HeaderOnlyCSV,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrEmptyDataset)
			},
		},
		{
			name:     "unsupported extension",
			filename: "plant.json",
			body:     `{}`,
			check: func(t *testing.T, err error) {
				var ve *domain.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "file", ve.Field)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher := new(MockEventPublisher)
			store := storage.NewMemoryStore(5)
			svc := newTestService(t, store, report.NewRenderer("test"), publisher)

			_, err := svc.CreateSummary(context.Background(), tt.filename, strings.NewReader(tt.body))
			require.Error(t, err)
			tt.check(t, err)

			count, err := store.Count(context.Background())
			require.NoError(t, err)
			assert.Zero(t, count, "rejected uploads must not be stored")
			publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		})
	}
}

func TestDatasetService_EvictionPublishesEvents(t *testing.T) {
	publisher := new(MockEventPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(t, storage.NewMemoryStore(2), report.NewRenderer("test"), publisher)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateSummary(ctx, fmt.Sprintf("run%d.csv", i), strings.NewReader(testutil.PumpValveCSV))
		require.NoError(t, err)
	}

	publisher.AssertNumberOfCalls(t, "Publish", 4)
	publisher.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(e events.DatasetEvent) bool {
		return e.Type == events.MessageTypeDatasetEvicted && e.DatasetID == 1
	}))

	listings, err := svc.ListSummaries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, int64(3), listings[0].ID)
	assert.Equal(t, int64(2), listings[1].ID)

	_, err = svc.GetSummary(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDatasetService_PublishFailureKeepsSummary(t *testing.T) {
	publisher := new(MockEventPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("hub stopped"))

	store := storage.NewMemoryStore(5)
	logger, logs := testutil.NewTestLogger(t)
	svc := NewDatasetService(store, report.NewRenderer("test"), publisher, nil, nil, logger)

	summary, err := svc.CreateSummary(context.Background(), "plant.csv", strings.NewReader(testutil.PumpValveCSV))
	require.NoError(t, err)

	_, err = store.Get(context.Background(), summary.ID)
	assert.NoError(t, err)
	assert.True(t, logs.ContainsMessage("failed to publish dataset event"))
}

func TestDatasetService_ListSummaries(t *testing.T) {
	svc := newTestService(t, storage.NewMemoryStore(5), report.NewRenderer("test"), nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.CreateSummary(ctx, "plant.csv", strings.NewReader(testutil.GenerateCSV(i+1)))
		require.NoError(t, err)
	}

	listings, err := svc.ListSummaries(ctx, 3)
	require.NoError(t, err)
	require.Len(t, listings, 3)
	assert.Equal(t, []int64{5, 4, 3}, []int64{listings[0].ID, listings[1].ID, listings[2].ID})
	assert.Equal(t, 5, listings[0].TotalCount)
}

func TestDatasetService_GetStats(t *testing.T) {
	svc := newTestService(t, storage.NewMemoryStore(5), report.NewRenderer("test"), nil)
	ctx := context.Background()

	summary, err := svc.CreateSummary(ctx, "plant.csv", strings.NewReader(testutil.PumpValveCSV))
	require.NoError(t, err)

	stats, err := svc.GetStats(ctx, summary.ID)
	require.NoError(t, err)
	assert.Equal(t, summary.Aggregates, stats)

	_, err = svc.GetStats(ctx, 42)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(42), nf.ID)
}

func TestDatasetService_GetEquipment(t *testing.T) {
	svc := newTestService(t, storage.NewMemoryStore(1), report.NewRenderer("test"), nil)
	ctx := context.Background()

	first, err := svc.CreateSummary(ctx, "plant.csv", strings.NewReader(testutil.PumpValveCSV))
	require.NoError(t, err)

	rows, err := svc.GetEquipment(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, testutil.PumpValveRecords(), rows)

	second, err := svc.CreateSummary(ctx, "plant.csv", strings.NewReader(testutil.GenerateCSV(3)))
	require.NoError(t, err)

	_, err = svc.GetEquipment(ctx, first.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rows, err = svc.GetEquipment(ctx, second.ID)
	require.NoError(t, err)
	assert.Len(t, rows, second.TotalCount)
}

func TestDatasetService_GetReport(t *testing.T) {
	store := storage.NewMemoryStore(5)
	renderer := new(MockReportRenderer)
	svc := newTestService(t, store, renderer, nil)
	ctx := context.Background()

	summary, err := svc.CreateSummary(ctx, "plant.csv", strings.NewReader(testutil.PumpValveCSV))
	require.NoError(t, err)

	renderer.On("Render", summary, domain.ReportFormatPDF).Return([]byte("%PDF-1.3"), nil).Once()
	renderer.On("Render", summary, domain.ReportFormatExcel).Return(nil, errors.New("disk full")).Once()

	t.Run("default format is pdf", func(t *testing.T) {
		rep, err := svc.GetReport(ctx, summary.ID, "")
		require.NoError(t, err)
		assert.Equal(t, domain.ReportFormatPDF, rep.Format)
		assert.Equal(t, "application/pdf", rep.ContentType)
		assert.Equal(t, fmt.Sprintf("report_%d.pdf", summary.ID), rep.FileName)
		assert.Equal(t, []byte("%PDF-1.3"), rep.Content)
	})

	t.Run("render failure is wrapped", func(t *testing.T) {
		_, err := svc.GetReport(ctx, summary.ID, "excel")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("unknown format checked before lookup", func(t *testing.T) {
		_, err := svc.GetReport(ctx, 999, "docx")
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "format", ve.Field)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := svc.GetReport(ctx, 999, "pdf")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	renderer.AssertExpectations(t)
}

func TestDatasetService_GetReportCollapsesConcurrentRenders(t *testing.T) {
	store := storage.NewMemoryStore(5)
	renderer := &countingRenderer{release: make(chan struct{})}
	svc := newTestService(t, store, renderer, nil)
	ctx := context.Background()

	summary, err := svc.CreateSummary(ctx, "plant.csv", strings.NewReader(testutil.PumpValveCSV))
	require.NoError(t, err)

	const callers = 8
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
		results = make(chan []byte, callers)
	)
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			rep, err := svc.GetReport(ctx, summary.ID, "csv")
			if assert.NoError(t, err) {
				results <- rep.Content
			}
		}()
	}

	started.Wait()
	require.Eventually(t, func() bool { return renderer.calls.Load() >= 1 }, 5*time.Second, time.Millisecond)
	// Give the remaining callers time to join the in-flight render
	time.Sleep(50 * time.Millisecond)
	close(renderer.release)
	wg.Wait()
	close(results)

	for content := range results {
		assert.Equal(t, fmt.Sprintf("report-%d-csv", summary.ID), string(content))
	}
	assert.Less(t, renderer.calls.Load(), int32(callers))
}

func TestCleanFilename(t *testing.T) {
	tests := map[string]string{
		"plant.csv":                "plant.csv",
		"/tmp/uploads/plant.csv":   "plant.csv",
		`C:\Users\op\plant.xlsx`:   "plant.xlsx",
		"  spaced.csv ":            "spaced.csv",
		"":                         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, cleanFilename(in), in)
	}
}

func TestDatasetService_RejectedUploadMarksSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	logger, _ := testutil.NewTestLogger(t)
	store := storage.NewMemoryStore(5)
	svc := NewDatasetService(store, report.NewRenderer("test"), nil, nil, tp.Tracer("test"), logger)

	_, err := svc.CreateSummary(context.Background(), "nan.csv",
		strings.NewReader("Type,Flowrate,Pressure,Temperature\nPump,NaN,2,3\n"))
	require.Error(t, err)
	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "dataset.create", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}
