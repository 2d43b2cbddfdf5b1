package dashboard

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"tradegate/internal/platform/middleware"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
	"tradegate/pkg/platform/httputil"
)

const (
	defaultTimeSeriesWindow = 48 * time.Hour
	defaultTopErrorsWindow  = 24 * time.Hour
	defaultTopErrorsLimit   = 5
)

// TimeSeriesPointDTO is one hourly bucket on the wire.
type TimeSeriesPointDTO struct {
	Timestamp     string `json:"timestamp"`
	InboundCount  int    `json:"inboundCount"`
	OutboundCount int    `json:"outboundCount"`
}

type TimeSeriesResponse struct {
	Points []TimeSeriesPointDTO `json:"points"`
}

type ErrorCategoryDTO struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type TopErrorsResponse struct {
	Categories []ErrorCategoryDTO `json:"categories"`
}

type Handler struct {
	service *Service
	logger  *slog.Logger
	now     func() time.Time
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger, now: time.Now}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/dashboard/summary", h.HandleSummary)
	r.Get("/dashboard/timeseries", h.HandleTimeSeries)
	r.Get("/dashboard/errors/top", h.HandleTopErrors)
}

func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	partnerID, err := sessionPartner(r)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}

	summary, err := h.service.Summary(ctx, partnerID)
	if err != nil {
		h.logger.ErrorContext(ctx, "dashboard summary failed",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) HandleTimeSeries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	partnerID, err := sessionPartner(r)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}
	from, to, err := h.windowParams(r, defaultTimeSeriesWindow)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}

	points, err := h.service.TimeSeries(ctx, partnerID, from, to)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}

	response := TimeSeriesResponse{Points: make([]TimeSeriesPointDTO, 0, len(points))}
	for _, point := range points {
		response.Points = append(response.Points, TimeSeriesPointDTO{
			Timestamp:     point.Timestamp.Format(time.RFC3339),
			InboundCount:  point.InboundCount,
			OutboundCount: point.OutboundCount,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) HandleTopErrors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	partnerID, err := sessionPartner(r)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}
	from, to, err := h.windowParams(r, defaultTopErrorsWindow)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}
	top := defaultTopErrorsLimit
	if raw := r.URL.Query().Get("top"); raw != "" {
		top, err = strconv.Atoi(raw)
		if err != nil || top < 1 {
			httputil.WriteError(ctx, w, dErrors.New(dErrors.CodeValidation, "top must be a positive integer"))
			return
		}
	}

	categories, err := h.service.TopErrors(ctx, partnerID, from, to, top)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}

	response := TopErrorsResponse{Categories: make([]ErrorCategoryDTO, 0, len(categories))}
	for _, category := range categories {
		response.Categories = append(response.Categories, ErrorCategoryDTO{
			Category: category.Category,
			Count:    category.Count,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, response)
}

func sessionPartner(r *http.Request) (id.PartnerID, error) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		return id.PartnerID{}, dErrors.New(dErrors.CodeUnauthorized, "missing session")
	}
	return ident.PartnerID, nil
}

// windowParams reads optional from/to bounds, defaulting to a trailing window
// ending now.
func (h *Handler) windowParams(r *http.Request, window time.Duration) (from, to time.Time, err error) {
	q := r.URL.Query()
	now := h.now().UTC()

	to = now
	if raw := q.Get("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeValidation, "to must be RFC 3339")
		}
	}
	from = to.Add(-window)
	if raw := q.Get("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeValidation, "from must be RFC 3339")
		}
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeValidation, "from must not be after to")
	}
	return from, to, nil
}
