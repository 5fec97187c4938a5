package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "chemvis/internal/errors"
	"chemvis/internal/services"
	"chemvis/internal/shared/testutil"
	api "chemvis/pkg/contracts/api/v1"
	"chemvis/pkg/contracts/domain"
)

// MockDatasetService is a mock implementation of DatasetServiceInterface
type MockDatasetService struct {
	mock.Mock
}

func (m *MockDatasetService) CreateSummary(ctx context.Context, filename string, r io.Reader) (domain.DatasetSummary, error) {
	body, _ := io.ReadAll(r)
	args := m.Called(filename, string(body))
	return args.Get(0).(domain.DatasetSummary), args.Error(1)
}

func (m *MockDatasetService) ListSummaries(ctx context.Context, limit int) ([]domain.DatasetListing, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DatasetListing), args.Error(1)
}

func (m *MockDatasetService) GetSummary(ctx context.Context, id int64) (domain.DatasetSummary, error) {
	args := m.Called(id)
	return args.Get(0).(domain.DatasetSummary), args.Error(1)
}

func (m *MockDatasetService) GetStats(ctx context.Context, id int64) (domain.Aggregates, error) {
	args := m.Called(id)
	return args.Get(0).(domain.Aggregates), args.Error(1)
}

func (m *MockDatasetService) GetEquipment(ctx context.Context, id int64) ([]domain.EquipmentRecord, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.EquipmentRecord), args.Error(1)
}

func (m *MockDatasetService) GetReport(ctx context.Context, id int64, format string) (*services.RenderedReport, error) {
	args := m.Called(id, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RenderedReport), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestRouter(svc DatasetServiceInterface, maxUpload int64) http.Handler {
	logger := testLogger()
	h := NewDatasetHandler(svc, maxUpload, logger, apierrors.NewErrorHandler(logger, false))

	r := chi.NewRouter()
	r.Use(chimw.StripSlashes)
	r.Route("/api", func(r chi.Router) {
		r.Mount("/datasets", h.Routes())
		h.LegacyRoutes(r)
	})
	return r
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func problemOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var p map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p), rec.Body.String())
	return p
}

func TestDatasetHandler_CreateSummary(t *testing.T) {
	summary := testutil.PumpValveSummary(1)

	tests := []struct {
		name           string
		path           string
		setupMock      func(*MockDatasetService)
		body           func(t *testing.T) (io.Reader, string)
		expectedStatus int
		check          func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{
			name: "created",
			path: "/api/datasets",
			setupMock: func(m *MockDatasetService) {
				m.On("CreateSummary", "pump_valve.csv", testutil.PumpValveCSV).Return(summary, nil)
			},
			body: func(t *testing.T) (io.Reader, string) {
				return multipartBody(t, "file", "pump_valve.csv", testutil.PumpValveCSV)
			},
			expectedStatus: http.StatusCreated,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var got domain.DatasetSummary
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, summary.ID, got.ID)
				assert.Equal(t, summary.Label, got.Label)
				assert.Equal(t, 2, got.TotalCount)
				assert.Equal(t, "/api/datasets/1", rec.Header().Get("Location"))
			},
		},
		{
			name: "legacy path",
			path: "/api/upload/",
			setupMock: func(m *MockDatasetService) {
				m.On("CreateSummary", "pump_valve.csv", testutil.PumpValveCSV).Return(summary, nil)
			},
			body: func(t *testing.T) (io.Reader, string) {
				return multipartBody(t, "file", "pump_valve.csv", testutil.PumpValveCSV)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:      "missing file field",
			path:      "/api/datasets",
			setupMock: func(m *MockDatasetService) {},
			body: func(t *testing.T) (io.Reader, string) {
				return multipartBody(t, "upload", "pump_valve.csv", testutil.PumpValveCSV)
			},
			expectedStatus: http.StatusBadRequest,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, "MISSING_FILE", problemOf(t, rec)["error_code"])
			},
		},
		{
			name:      "not multipart",
			path:      "/api/datasets",
			setupMock: func(m *MockDatasetService) {},
			body: func(t *testing.T) (io.Reader, string) {
				return strings.NewReader(`{"file":"x"}`), "application/json"
			},
			expectedStatus: http.StatusUnsupportedMediaType,
		},
		{
			name: "validation error carries field",
			path: "/api/datasets",
			setupMock: func(m *MockDatasetService) {
				m.On("CreateSummary", "plant.csv", testutil.MissingPressureCSV).
					Return(domain.DatasetSummary{}, domain.NewValidationError("Pressure", "missing required column"))
			},
			body: func(t *testing.T) (io.Reader, string) {
				return multipartBody(t, "file", "plant.csv", testutil.MissingPressureCSV)
			},
			expectedStatus: http.StatusBadRequest,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				p := problemOf(t, rec)
				assert.Equal(t, "Pressure", p["field"])
				assert.Equal(t, apierrors.TypeDatasetInvalid, p["type"])
			},
		},
		{
			name: "empty dataset",
			path: "/api/datasets",
			setupMock: func(m *MockDatasetService) {
				m.On("CreateSummary", "plant.csv", testutil.HeaderOnlyCSV).
					Return(domain.DatasetSummary{}, domain.ErrEmptyDataset)
			},
			body: func(t *testing.T) (io.Reader, string) {
				return multipartBody(t, "file", "plant.csv", testutil.HeaderOnlyCSV)
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDatasetService)
			tt.setupMock(svc)

			body, contentType := tt.body(t)
			req := httptest.NewRequest(http.MethodPost, tt.path, body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			newTestRouter(svc, 0).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			if tt.check != nil {
				tt.check(t, rec)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestDatasetHandler_UploadRejectsNonMultipartOnEveryPath(t *testing.T) {
	for _, path := range []string{"/api/datasets", "/api/datasets/upload", "/api/upload", "/api/upload/"} {
		t.Run(path, func(t *testing.T) {
			svc := new(MockDatasetService)
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"file":"x"}`))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			newTestRouter(svc, 0).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code, rec.Body.String())
			problem := problemOf(t, rec)
			assert.Equal(t, apierrors.TypeValidation, problem["type"])
			assert.Equal(t, "UNSUPPORTED_MEDIA_TYPE", problem["error_code"])
			svc.AssertNotCalled(t, "CreateSummary", mock.Anything, mock.Anything)
		})
	}
}

func TestDatasetHandler_UploadTooLarge(t *testing.T) {
	svc := new(MockDatasetService)
	body, contentType := multipartBody(t, "file", "big.csv", testutil.GenerateCSV(200))

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	newTestRouter(svc, 512).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, apierrors.TypePayloadTooLarge, problemOf(t, rec)["type"])
	svc.AssertNotCalled(t, "CreateSummary", mock.Anything, mock.Anything)
}

func TestDatasetHandler_ListSummaries(t *testing.T) {
	listings := []domain.DatasetListing{
		testutil.PumpValveSummary(3).Listing(),
		testutil.PumpValveSummary(2).Listing(),
	}

	tests := []struct {
		name           string
		query          string
		setupMock      func(*MockDatasetService)
		expectedStatus int
		expectedLimit  int
	}{
		{
			name:           "default limit",
			query:          "",
			setupMock:      func(m *MockDatasetService) { m.On("ListSummaries", 5).Return(listings, nil) },
			expectedStatus: http.StatusOK,
			expectedLimit:  5,
		},
		{
			name:           "explicit limit",
			query:          "?limit=2",
			setupMock:      func(m *MockDatasetService) { m.On("ListSummaries", 2).Return(listings, nil) },
			expectedStatus: http.StatusOK,
			expectedLimit:  2,
		},
		{
			name:           "limit above range",
			query:          "?limit=51",
			setupMock:      func(m *MockDatasetService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "limit zero",
			query:          "?limit=0",
			setupMock:      func(m *MockDatasetService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "limit not a number",
			query:          "?limit=five",
			setupMock:      func(m *MockDatasetService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "store failure",
			query: "",
			setupMock: func(m *MockDatasetService) {
				m.On("ListSummaries", 5).Return(nil, errors.New("connection reset"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDatasetService)
			tt.setupMock(svc)

			rec := httptest.NewRecorder()
			newTestRouter(svc, 0).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/datasets"+tt.query, nil))

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			if tt.expectedStatus == http.StatusOK {
				var resp api.ListDatasetsResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, 2, resp.Count)
				assert.Equal(t, tt.expectedLimit, resp.Limit)
				assert.Equal(t, int64(3), resp.Data[0].ID)
			} else {
				assert.Equal(t, float64(tt.expectedStatus), problemOf(t, rec)["status"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestDatasetHandler_LegacyHistory(t *testing.T) {
	svc := new(MockDatasetService)
	svc.On("ListSummaries", 5).Return([]domain.DatasetListing{testutil.PumpValveSummary(1).Listing()}, nil)

	rec := httptest.NewRecorder()
	newTestRouter(svc, 0).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var listings []domain.DatasetListing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listings))
	require.Len(t, listings, 1)
	assert.Equal(t, int64(1), listings[0].ID)
}

func TestDatasetHandler_GetSummary(t *testing.T) {
	summary := testutil.PumpValveSummary(4)

	tests := []struct {
		name           string
		path           string
		setupMock      func(*MockDatasetService)
		expectedStatus int
	}{
		{
			name:           "found",
			path:           "/api/datasets/4",
			setupMock:      func(m *MockDatasetService) { m.On("GetSummary", int64(4)).Return(summary, nil) },
			expectedStatus: http.StatusOK,
		},
		{
			name: "evicted",
			path: "/api/datasets/1",
			setupMock: func(m *MockDatasetService) {
				m.On("GetSummary", int64(1)).Return(domain.DatasetSummary{}, &domain.NotFoundError{ID: 1})
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "non numeric id",
			path:           "/api/datasets/abc",
			setupMock:      func(m *MockDatasetService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "zero id",
			path:           "/api/datasets/0",
			setupMock:      func(m *MockDatasetService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDatasetService)
			tt.setupMock(svc)

			rec := httptest.NewRecorder()
			newTestRouter(svc, 0).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			switch tt.expectedStatus {
			case http.StatusOK:
				var got domain.DatasetSummary
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, summary.TypeDistribution, got.TypeDistribution)
			case http.StatusNotFound:
				p := problemOf(t, rec)
				assert.Equal(t, apierrors.TypeDatasetNotFound, p["type"])
				assert.Equal(t, float64(1), p["dataset_id"])
			case http.StatusBadRequest:
				assert.Equal(t, "id", problemOf(t, rec)["field"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestDatasetHandler_GetStats(t *testing.T) {
	summary := testutil.PumpValveSummary(2)

	for _, path := range []string{"/api/datasets/2/stats", "/api/stats/2/"} {
		t.Run(path, func(t *testing.T) {
			svc := new(MockDatasetService)
			svc.On("GetStats", int64(2)).Return(summary.Aggregates, nil)

			rec := httptest.NewRecorder()
			newTestRouter(svc, 0).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			var got map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, float64(2), got["total_count"])
			assert.Equal(t, float64(15), got["avg_flowrate"])
			assert.NotContains(t, got, "label")
		})
	}
}

func TestDatasetHandler_GetEquipment(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		setupMock      func(*MockDatasetService)
		expectedStatus int
		expectedRows   []domain.EquipmentRecord
	}{
		{
			name:           "rows in upload order",
			path:           "/api/datasets/2/equipment",
			setupMock:      func(m *MockDatasetService) { m.On("GetEquipment", int64(2)).Return(testutil.PumpValveRecords(), nil) },
			expectedStatus: http.StatusOK,
			expectedRows:   testutil.PumpValveRecords(),
		},
		{
			name:           "empty dataset encodes as array",
			path:           "/api/datasets/3/equipment",
			setupMock:      func(m *MockDatasetService) { m.On("GetEquipment", int64(3)).Return([]domain.EquipmentRecord{}, nil) },
			expectedStatus: http.StatusOK,
			expectedRows:   []domain.EquipmentRecord{},
		},
		{
			name: "evicted",
			path: "/api/datasets/1/equipment",
			setupMock: func(m *MockDatasetService) {
				m.On("GetEquipment", int64(1)).Return(nil, &domain.NotFoundError{ID: 1})
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "bad id",
			path:           "/api/datasets/0/equipment",
			setupMock:      func(m *MockDatasetService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDatasetService)
			tt.setupMock(svc)

			rec := httptest.NewRecorder()
			newTestRouter(svc, 0).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			if tt.expectedRows != nil {
				var got []domain.EquipmentRecord
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, tt.expectedRows, got)
				assert.Equal(t, "[", rec.Body.String()[:1])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestDatasetHandler_GetReport(t *testing.T) {
	pdf := &services.RenderedReport{
		Format:      domain.ReportFormatPDF,
		ContentType: "application/pdf",
		FileName:    "report_3.pdf",
		Content:     []byte("%PDF-1.3 test"),
	}

	t.Run("pdf download", func(t *testing.T) {
		svc := new(MockDatasetService)
		svc.On("GetReport", int64(3), "").Return(pdf, nil)

		rec := httptest.NewRecorder()
		newTestRouter(svc, 0).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/datasets/3/report", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="report_3.pdf"`, rec.Header().Get("Content-Disposition"))
		assert.Equal(t, pdf.Content, rec.Body.Bytes())
	})

	t.Run("legacy path with format", func(t *testing.T) {
		svc := new(MockDatasetService)
		svc.On("GetReport", int64(3), "xlsx").Return(pdf, nil)

		rec := httptest.NewRecorder()
		newTestRouter(svc, 0).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report/3/?format=XLSX", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("unknown format", func(t *testing.T) {
		svc := new(MockDatasetService)

		rec := httptest.NewRecorder()
		newTestRouter(svc, 0).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/datasets/3/report?format=docx", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "format", problemOf(t, rec)["field"])
		svc.AssertNotCalled(t, "GetReport", mock.Anything, mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockDatasetService)
		svc.On("GetReport", int64(9), "pdf").Return(nil, &domain.NotFoundError{ID: 9})

		rec := httptest.NewRecorder()
		newTestRouter(svc, 0).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/datasets/9/report?format=pdf", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
