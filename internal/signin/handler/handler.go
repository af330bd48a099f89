package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"signinguard/internal/signin/models"
	dErrors "signinguard/pkg/domain-errors"
	"signinguard/pkg/platform/httputil"
	"signinguard/pkg/requestcontext"
)

// Service defines the sign-in operations exposed over HTTP.
type Service interface {
	CheckAttempt(ctx context.Context, req models.EvaluateRequest) (*models.CheckResult, error)
	RecordSuccess(ctx context.Context, req models.RecordRequest) (*models.Record, error)
	ListSignIns(ctx context.Context, subjectID string, page models.Page) (*models.SignInListResponse, error)
}

// Handler wires sign-in endpoints to the sign-in service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the identity-provider endpoints. Callers wrap the router
// with service-token authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/signins/evaluate", h.HandleEvaluate)
	r.Post("/signins", h.HandleRecord)
}

// RegisterAdmin mounts the administrator endpoints.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/users/{subjectID}/signins", h.HandleList)
}

// HandleEvaluate handles POST /v1/signins/evaluate.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[models.EvaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.CheckAttempt(ctx, *req)
	if err != nil {
		h.logger.ErrorContext(ctx, "sign-in evaluation failed",
			"request_id", requestID,
			"subject_id", req.SubjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "sign-in evaluated",
		"request_id", requestID,
		"subject_id", req.SubjectID,
		"impossible_travel", result.Flagged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleRecord handles POST /v1/signins.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RecordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.RecordSuccess(ctx, *req)
	if err != nil {
		h.logger.ErrorContext(ctx, "sign-in record failed",
			"request_id", requestID,
			"subject_id", req.SubjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, record)
}

// HandleList handles GET /admin/users/{subjectID}/signins.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	page, err := parsePage(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp, err := h.service.ListSignIns(ctx, chi.URLParam(r, "subjectID"), page)
	if err != nil {
		h.logger.ErrorContext(ctx, "sign-in listing failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func parsePage(r *http.Request) (models.Page, error) {
	var page models.Page
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return page, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer")
		}
		page.Size = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, dErrors.New(dErrors.CodeBadRequest, "offset must be a non-negative integer")
		}
		page.Offset = n
	}
	return page, nil
}
