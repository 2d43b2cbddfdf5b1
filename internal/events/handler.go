package events

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"tradegate/internal/platform/middleware"
	domainerrors "tradegate/pkg/domain-errors"
	"tradegate/pkg/platform/httputil"
)

// Handler exposes the SSE stream endpoint.
type Handler struct {
	bus       *Bus
	heartbeat time.Duration
	logger    *slog.Logger
	metrics   *Metrics
}

func NewHandler(bus *Bus, heartbeat time.Duration, logger *slog.Logger, metrics *Metrics) *Handler {
	return &Handler{bus: bus, heartbeat: heartbeat, logger: logger, metrics: metrics}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/events/stream", h.HandleStream)
}

// HandleStream opens an SSE connection scoped to the caller's partner. The
// resume checkpoint comes from the Last-Event-ID header, with the lastEventId
// query parameter as a fallback for clients that cannot set headers; the
// header wins when both are present.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := middleware.GetIdentity(ctx)
	if identity == nil {
		httputil.WriteError(ctx, w, domainerrors.New(domainerrors.CodeUnauthorized, "missing session"))
		return
	}

	checkpoint, err := resumeCheckpoint(r)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}

	h.logger.InfoContext(ctx, "event stream opened",
		"partner_id", identity.PartnerID,
		"checkpoint", checkpoint,
	)

	session := NewStreamSession(h.bus, identity.PartnerID, checkpoint, h.heartbeat, h.logger, h.metrics)
	if err := session.Run(ctx, w); err != nil {
		// Headers are gone by the time a stream write fails; just log.
		h.logger.DebugContext(ctx, "event stream ended with error",
			"error", err,
			"partner_id", identity.PartnerID,
		)
	}
}

func resumeCheckpoint(r *http.Request) (uint64, error) {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("lastEventId")
	}
	if raw == "" {
		return 0, nil
	}
	checkpoint, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, domainerrors.New(domainerrors.CodeValidation, "last event id must be a non-negative integer")
	}
	return checkpoint, nil
}
