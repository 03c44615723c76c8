package audit

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks QueryService

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"enrollment/internal/platform/metrics"
	dErrors "enrollment/pkg/domain-errors"
	audit "enrollment/pkg/platform/audit"
	"enrollment/pkg/platform/httputil"
	"enrollment/pkg/platform/middleware/auth"
	"enrollment/pkg/requestcontext"
)

// RoleAdmin is the role allowed to read the audit trail.
const RoleAdmin = "ADMIN"

// QueryService defines the read operations exposed over HTTP.
type QueryService interface {
	ListAll(ctx context.Context) ([]audit.Record, error)
	ListByEventType(ctx context.Context, eventType string) ([]audit.Record, error)
	ListByUserID(ctx context.Context, userID int64) ([]audit.Record, error)
	ListByUserEmail(ctx context.Context, email string) ([]audit.Record, error)
	ListByTimeRange(ctx context.Context, start, end time.Time) ([]audit.Record, error)
}

// Handler handles audit query endpoints.
type Handler struct {
	service QueryService
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHandler(service QueryService, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		metrics: metrics,
	}
}

// Register mounts the audit routes. The caller installs the authentication
// gate upstream; every route here additionally requires the ADMIN role.
func (h *Handler) Register(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		if h.metrics != nil {
			r.Use(h.metrics.LatencyMiddleware)
		}
		r.Use(auth.RequireRole(h.logger, RoleAdmin))
		r.Get("/", h.handleListAll)
		r.Get("/event-type/{eventType}", h.handleListByEventType)
		r.Get("/user/{userId}", h.handleListByUserID)
		r.Get("/email/{email}", h.handleListByEmail)
		r.Get("/date-range", h.handleListByDateRange)
	})
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListAll(r.Context())
	h.respond(w, r, records, err)
}

func (h *Handler) handleListByEventType(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListByEventType(r.Context(), chi.URLParam(r, "eventType"))
	h.respond(w, r, records, err)
}

func (h *Handler) handleListByUserID(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		h.respond(w, r, nil, dErrors.New(dErrors.CodeBadRequest, "user id must be numeric"))
		return
	}
	records, err := h.service.ListByUserID(r.Context(), userID)
	h.respond(w, r, records, err)
}

func (h *Handler) handleListByEmail(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListByUserEmail(r.Context(), chi.URLParam(r, "email"))
	h.respond(w, r, records, err)
}

func (h *Handler) handleListByDateRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		h.respond(w, r, nil, dErrors.New(dErrors.CodeBadRequest, "start must be an RFC3339 timestamp"))
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		h.respond(w, r, nil, dErrors.New(dErrors.CodeBadRequest, "end must be an RFC3339 timestamp"))
		return
	}
	records, err := h.service.ListByTimeRange(r.Context(), start, end)
	h.respond(w, r, records, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, records []audit.Record, err error) {
	ctx := r.Context()
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) || !dErrors.Is(err) {
			h.logger.ErrorContext(ctx, "audit query failed",
				"path", r.URL.Path,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		} else {
			h.logger.WarnContext(ctx, "invalid audit query",
				"path", r.URL.Path,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}
