package files

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tradegate/internal/platform/middleware"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
	"tradegate/pkg/platform/httputil"
)

// ListItemDTO is the wire shape of one transfer in a listing.
type ListItemDTO struct {
	FileID      string `json:"fileId"`
	Direction   string `json:"direction"`
	DocType     string `json:"docType"`
	SizeBytes   int64  `json:"sizeBytes"`
	ReceivedAt  string `json:"receivedAt"`
	ProcessedAt string `json:"processedAt,omitempty"`
	Status      string `json:"status"`
	ErrorCode   string `json:"errorCode,omitempty"`
}

// DetailDTO extends the listing shape with diagnostic fields.
type DetailDTO struct {
	ListItemDTO
	PartnerID           string   `json:"partnerId"`
	CorrelationID       string   `json:"correlationId"`
	ErrorMessage        string   `json:"errorMessage,omitempty"`
	RetryCount          int      `json:"retryCount"`
	ProcessingLatencyMs *float64 `json:"processingLatencyMs,omitempty"`
}

// SearchService is what the HTTP layer needs from the files service.
type SearchService interface {
	Search(ctx context.Context, partnerID id.PartnerID, criteria SearchCriteria) ([]*TransferEvent, int, error)
	Get(ctx context.Context, partnerID id.PartnerID, fileID id.FileID) (*TransferEvent, error)
}

type Handler struct {
	service SearchService
	logger  *slog.Logger
}

func NewHandler(service SearchService, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/files", h.HandleSearch)
	r.Get("/files/{fileId}", h.HandleGet)
}

// HandleSearch lists the caller's transfers, newest first. Internal support
// may target another partner via the partnerId query parameter.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	partnerID, err := resolvePartner(r)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}

	criteria, err := parseSearchCriteria(r)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}

	transfers, total, err := h.service.Search(ctx, partnerID, criteria)
	if err != nil {
		h.logger.ErrorContext(ctx, "file search failed",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(ctx, w, err)
		return
	}

	items := make([]ListItemDTO, 0, len(transfers))
	for _, event := range transfers {
		items = append(items, toListItem(event))
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaged(items, criteria.Page, criteria.PageSize, total))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	partnerID, err := resolvePartner(r)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}

	fileID, err := id.ParseFileID(chi.URLParam(r, "fileId"))
	if err != nil {
		// Malformed ids are indistinguishable from unknown ones to callers.
		httputil.WriteError(ctx, w, ErrNotFound)
		return
	}

	event, err := h.service.Get(ctx, partnerID, fileID)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDetail(event))
}

func resolvePartner(r *http.Request) (id.PartnerID, error) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		return id.PartnerID{}, dErrors.New(dErrors.CodeUnauthorized, "missing session")
	}
	if ident.Role == id.RoleInternalSupport {
		if raw := r.URL.Query().Get("partnerId"); raw != "" {
			partnerID, err := id.ParsePartnerID(raw)
			if err != nil {
				return id.PartnerID{}, dErrors.New(dErrors.CodeValidation, "partnerId must be a uuid")
			}
			return partnerID, nil
		}
	}
	return ident.PartnerID, nil
}

func parseSearchCriteria(r *http.Request) (SearchCriteria, error) {
	q := r.URL.Query()

	var criteria SearchCriteria
	if raw := q.Get("direction"); raw != "" {
		direction := Direction(raw)
		if !direction.Valid() {
			return SearchCriteria{}, dErrors.New(dErrors.CodeValidation, "direction must be Inbound or Outbound")
		}
		criteria.Direction = direction
	}
	if raw := q.Get("status"); raw != "" {
		status := Status(raw)
		if !status.Valid() {
			return SearchCriteria{}, dErrors.New(dErrors.CodeValidation, "unknown status filter")
		}
		criteria.Status = status
	}
	criteria.DocType = q.Get("docType")

	var err error
	if criteria.DateFrom, err = parseTimeParam(q.Get("dateFrom"), "dateFrom"); err != nil {
		return SearchCriteria{}, err
	}
	if criteria.DateTo, err = parseTimeParam(q.Get("dateTo"), "dateTo"); err != nil {
		return SearchCriteria{}, err
	}
	if criteria.Page, criteria.PageSize, err = httputil.PageParams(r); err != nil {
		return SearchCriteria{}, err
	}
	return criteria, nil
}

func parseTimeParam(raw, name string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, name+" must be RFC 3339")
	}
	return t, nil
}

func toListItem(event *TransferEvent) ListItemDTO {
	item := ListItemDTO{
		FileID:     event.FileID.String(),
		Direction:  string(event.Direction),
		DocType:    event.DocType,
		SizeBytes:  event.SizeBytes,
		ReceivedAt: event.ReceivedAt.UTC().Format(time.RFC3339Nano),
		Status:     string(event.Status),
		ErrorCode:  event.ErrorCode,
	}
	if event.ProcessedAt != nil {
		item.ProcessedAt = event.ProcessedAt.UTC().Format(time.RFC3339Nano)
	}
	return item
}

func toDetail(event *TransferEvent) DetailDTO {
	return DetailDTO{
		ListItemDTO:         toListItem(event),
		PartnerID:           event.PartnerID.String(),
		CorrelationID:       event.CorrelationID,
		ErrorMessage:        event.ErrorMessage,
		RetryCount:          event.RetryCount,
		ProcessingLatencyMs: event.ProcessingLatencyMs(),
	}
}
