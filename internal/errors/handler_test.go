package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chemvis/internal/shared/testutil"
	"chemvis/pkg/contracts/domain"
)

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantField  string
	}{
		{
			name:       "dataset validation error",
			err:        domain.NewValidationError("Pressure", "required column is missing"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeDatasetInvalid,
			wantField:  "Pressure",
		},
		{
			name:       "wrapped validation error",
			err:        fmt.Errorf("parse upload: %w", domain.NewValidationError("Flowrate", "row 2: \"x\" is not a number")),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeDatasetInvalid,
			wantField:  "Flowrate",
		},
		{
			name:       "empty dataset",
			err:        fmt.Errorf("compute: %w", domain.ErrEmptyDataset),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeDatasetEmpty,
		},
		{
			name:       "not found",
			err:        &domain.NotFoundError{ID: 9},
			wantStatus: http.StatusNotFound,
			wantType:   TypeDatasetNotFound,
		},
		{
			name:       "duplicate id",
			err:        domain.ErrDuplicateID,
			wantStatus: http.StatusConflict,
			wantType:   TypeConflict,
		},
		{
			name:       "body too large",
			err:        fmt.Errorf("read upload: %w", &http.MaxBytesError{Limit: 1024}),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantType:   TypePayloadTooLarge,
		},
		{
			name:       "api validation error",
			err:        ErrValidation("limit", "must be between 1 and 50"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantField:  "limit",
		},
		{
			name:       "deadline exceeded",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "unknown error",
			err:        fmt.Errorf("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, false)

			req := httptest.NewRequest(http.MethodGet, "/api/datasets/9", nil)
			rec := httptest.NewRecorder()
			h.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var problem ProblemDetails
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, "/api/datasets/9", problem.Instance)
			assert.Contains(t, problem.Extensions, "trace_id")
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, problem.Extension("field"))
			}
		})
	}
}

func TestErrorHandler_NilError(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Zero(t, rec.Body.Len())
	assert.Zero(t, len(handler.GetRecords()))
}

func TestErrorHandler_LogLevels(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)
	req := httptest.NewRequest(http.MethodGet, "/api/datasets/1", nil)

	h.HandleError(httptest.NewRecorder(), req, &domain.NotFoundError{ID: 1})
	h.HandleError(httptest.NewRecorder(), req, fmt.Errorf("boom"))

	assert.Len(t, handler.GetRecordsByLevel(slogWarn), 1)
	assert.Len(t, handler.GetRecordsByLevel(slogError), 1)
	assert.True(t, handler.ContainsAttr("component", "error_handler"))
}

func TestErrorHandler_StackOnlyForServerErrors(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, true)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	rec := httptest.NewRecorder()
	h.HandleError(rec, req, fmt.Errorf("boom"))
	var problem ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Contains(t, problem.Extensions, "stack")

	rec = httptest.NewRecorder()
	h.HandleError(rec, req, domain.ErrEmptyDataset)
	problem = ProblemDetails{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.NotContains(t, problem.Extensions, "stack")
}

func TestErrorHandler_NotFoundAndMethod(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/datasets", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "DELETE")
}

func TestRecoveryMiddleware(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})

	rec := httptest.NewRecorder()
	RecoveryMiddleware(h)(panicking).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, handler.ContainsMessage("panic recovered"))
}
