package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"chemvis/internal/config"
	apierrors "chemvis/internal/errors"
	"chemvis/internal/infrastructure"
	cmw "chemvis/internal/middleware"
	api "chemvis/pkg/contracts/api/v1"
)

type contextKey string

const datasetIDKey contextKey = "dataset_id"

// multipartMemory is the part of an upload held in memory before spilling to disk
const multipartMemory = 1 << 20

// DatasetHandler handles dataset HTTP requests with RFC 7807 errors
type DatasetHandler struct {
	service        DatasetServiceInterface
	validator      *cmw.RequestValidator
	maxUploadBytes int64
	logger         *slog.Logger
	errorHandler   *apierrors.ErrorHandler
}

// NewDatasetHandler creates a new dataset handler. maxUploadBytes <= 0 selects
// the default limit.
func NewDatasetHandler(service DatasetServiceInterface, maxUploadBytes int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DatasetHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = config.DefaultMaxUploadBytes
	}
	return &DatasetHandler{
		service:        service,
		validator:      cmw.NewRequestValidator(logger),
		maxUploadBytes: maxUploadBytes,
		logger:         infrastructure.WithComponent(logger, "dataset_handler"),
		errorHandler:   errorHandler,
	}
}

// Routes returns the /api/datasets routes
func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(h.multipartOnly()).Post("/", h.CreateSummary)
	r.With(h.multipartOnly()).Post("/upload", h.CreateSummary)
	r.Get("/", h.ListSummaries)

	r.Route("/{id}", func(r chi.Router) {
		r.Use(h.DatasetCtx)
		r.Get("/", h.GetSummary)
		r.Get("/stats", h.GetStats)
		r.Get("/equipment", h.GetEquipment)
		r.Get("/report", h.GetReport)
	})

	return r
}

// LegacyRoutes mounts the original Django paths onto r. Trailing slashes are
// removed by the router before matching.
func (h *DatasetHandler) LegacyRoutes(r chi.Router) {
	r.With(h.multipartOnly()).Post("/upload", h.CreateSummary)
	r.Get("/history", h.LegacyHistory)
	r.With(h.DatasetCtx).Get("/stats/{id}", h.GetStats)
	r.With(h.DatasetCtx).Get("/report/{id}", h.GetReport)
}

func (h *DatasetHandler) multipartOnly() func(http.Handler) http.Handler {
	return cmw.ContentTypeValidator(h.errorHandler, "multipart/form-data")
}

// DatasetCtx parses and validates the {id} path parameter
func (h *DatasetHandler) DatasetCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "id")
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("id", fmt.Sprintf("id must be a positive integer, got %q", raw)))
			return
		}
		if err := h.validator.ValidateStruct(api.DatasetIDRequest{ID: id}); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), datasetIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func datasetID(r *http.Request) int64 {
	id, _ := r.Context().Value(datasetIDKey).(int64)
	return id
}

// CreateSummary handles POST /api/datasets
func (h *DatasetHandler) CreateSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.ContentLength > h.maxUploadBytes {
		h.errorHandler.HandleError(w, r, &http.MaxBytesError{Limit: h.maxUploadBytes})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.errorHandler.HandleError(w, r, maxBytesErr)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			h.errorHandler.HandleError(w, r, apierrors.ErrMissingFile)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	h.logger.InfoContext(ctx, "dataset upload received",
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("filename", header.Filename),
		slog.Int64("size", header.Size),
	)

	summary, err := h.service.CreateSummary(ctx, header.Filename, file)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/datasets/%d", summary.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, summary)
}

// ListSummaries handles GET /api/datasets
func (h *DatasetHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}

	listings, err := h.service.ListSummaries(r.Context(), limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, api.ListDatasetsResponse{
		Data:  listings,
		Count: len(listings),
		Limit: limit,
	})
}

// LegacyHistory handles GET /api/history/ and answers with a bare array
func (h *DatasetHandler) LegacyHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}

	listings, err := h.service.ListSummaries(r.Context(), limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, listings)
}

func (h *DatasetHandler) parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit, err := cmw.QueryInt(r, "limit", api.DefaultHistoryLimit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return 0, false
	}
	if err := h.validator.ValidateStruct(api.ListDatasetsRequest{Limit: limit}); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return 0, false
	}
	return limit, true
}

// GetSummary handles GET /api/datasets/{id}
func (h *DatasetHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetSummary(r.Context(), datasetID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, summary)
}

// GetStats handles GET /api/datasets/{id}/stats
func (h *DatasetHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context(), datasetID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.StatsResponse{Aggregates: stats})
}

// GetEquipment handles GET /api/datasets/{id}/equipment and answers with a
// bare array of the uploaded rows
func (h *DatasetHandler) GetEquipment(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.GetEquipment(r.Context(), datasetID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, records)
}

// GetReport handles GET /api/datasets/{id}/report
func (h *DatasetHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))

	if err := h.validator.ValidateStruct(api.ReportRequest{
		DatasetIDRequest: api.DatasetIDRequest{ID: datasetID(r)},
		Format:           format,
	}); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	rep, err := h.service.GetReport(ctx, datasetID(r), format)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", rep.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rep.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(rep.Content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(rep.Content); err != nil {
		h.logger.WarnContext(ctx, "failed to write report",
			slog.String("request_id", middleware.GetReqID(ctx)),
			slog.String("error", err.Error()))
	}
}
