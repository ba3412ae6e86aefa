package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"gsc-dashboard/internal/errors"
	"gsc-dashboard/internal/ingest"
	"gsc-dashboard/internal/models"
	"gsc-dashboard/internal/observability"
	"gsc-dashboard/internal/services"
)

const (
	sessionCookie    = "gsc_session"
	defaultRowLimit  = 100
	multipartMemory  = 8 << 20
	cacheControlNone = "no-store"
)

type APIHandlers struct {
	sessions *services.Store
	logger   *slog.Logger
}

func NewAPIHandlers(sessions *services.Store, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		sessions: sessions,
		logger:   logger,
	}
}

// session binds the request to its Analytics via the session cookie,
// setting a fresh cookie when the session is new or expired.
func (h *APIHandlers) session(w http.ResponseWriter, r *http.Request) *services.Analytics {
	var current string
	if c, err := r.Cookie(sessionCookie); err == nil {
		current = c.Value
	}

	id, analytics := h.sessions.GetOrCreate(current)
	if id != current {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return analytics
}

// UploadResult reports the outcome of one file in an upload request. A
// file that fails validation never blocks the others.
type UploadResult struct {
	Source  string                 `json:"source"`
	OK      bool                   `json:"ok"`
	Dataset *models.DatasetSummary `json:"dataset,omitempty"`
	Error   *errors.AppError       `json:"error,omitempty"`
}

func (h *APIHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())
	analytics := h.session(w, r)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "could not parse upload"), requestID)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		errors.WriteError(w, h.logger, errors.BadRequest("no files in upload"), requestID)
		return
	}

	results := make([]UploadResult, 0, len(files))
	for _, fh := range files {
		result := UploadResult{Source: fh.Filename}

		f, err := fh.Open()
		if err != nil {
			result.Error = errors.InternalWrap(err, "could not open uploaded file")
			results = append(results, result)
			continue
		}

		ds, err := ingest.Load(r.Context(), f, fh.Filename)
		f.Close()
		if err != nil {
			result.Error = asAppError(err)
			results = append(results, result)
			continue
		}

		if err := analytics.AddDataset(ds); err != nil {
			result.Error = asAppError(err)
			results = append(results, result)
			continue
		}

		summary := ds.Summary()
		result.OK = true
		result.Dataset = &summary
		results = append(results, result)

		h.logger.Info("file ingested",
			"source", fh.Filename,
			"label", ds.Label,
			"rows", len(ds.Records),
			"skipped", ds.SkippedRows,
			"request_id", requestID,
		)
	}

	errors.WriteSuccess(w, results)
}

func (h *APIHandlers) HandleDatasets(w http.ResponseWriter, r *http.Request) {
	analytics := h.session(w, r)
	errors.WriteSuccessWithHeaders(w, analytics.Datasets(), map[string]string{
		"Cache-Control": cacheControlNone,
	})
}

func (h *APIHandlers) HandleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())
	analytics := h.session(w, r)

	label := r.PathValue("label")
	if !analytics.RemoveDataset(label) {
		errors.WriteError(w, h.logger, errors.NotFound("no dataset labeled "+strconv.Quote(label)), requestID)
		return
	}
	errors.WriteSuccess(w, map[string]string{"removed": label})
}

func (h *APIHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())
	analytics := h.session(w, r)

	stats, err := analytics.Overview(r.URL.Query().Get("dataset"))
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}
	errors.WriteSuccess(w, stats)
}

func (h *APIHandlers) HandleKeywords(w http.ResponseWriter, r *http.Request) {
	h.handleAggregate(w, r, services.GroupByQuery)
}

func (h *APIHandlers) HandleDomains(w http.ResponseWriter, r *http.Request) {
	h.handleAggregate(w, r, services.GroupByDomain)
}

func (h *APIHandlers) handleAggregate(w http.ResponseWriter, r *http.Request, groupBy string) {
	requestID := observability.GetRequestID(r.Context())
	analytics := h.session(w, r)
	q := r.URL.Query()

	rows, err := analytics.Aggregate(q.Get("dataset"), groupBy)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	rows = services.FilterRows(rows, q.Get("filter"))
	rows = services.LimitRows(rows, queryLimit(q.Get("limit")))
	errors.WriteSuccess(w, rows)
}

func (h *APIHandlers) HandleCompare(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())
	analytics := h.session(w, r)
	q := r.URL.Query()

	rows, err := analytics.Compare(q.Get("a"), q.Get("b"), q.Get("by"))
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	rows = services.FilterComparison(rows, q.Get("filter"))
	rows = services.LimitRows(rows, queryLimit(q.Get("limit")))
	errors.WriteSuccess(w, rows)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	analytics := h.session(w, r)

	stats := analytics.Stats()
	stats["active_sessions"] = h.sessions.Len()
	errors.WriteSuccess(w, stats)
}

func queryLimit(s string) int {
	if s == "" {
		return defaultRowLimit
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultRowLimit
	}
	return n
}

func asAppError(err error) *errors.AppError {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr
	}
	return errors.InternalWrap(err, "unexpected error")
}
