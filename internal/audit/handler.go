package audit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tradegate/internal/platform/middleware"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
	"tradegate/pkg/platform/httputil"
)

// RecordDTO is the wire shape of one audit record.
type RecordDTO struct {
	AuditID     string         `json:"auditId"`
	PartnerID   string         `json:"partnerId"`
	ActorUserID string         `json:"actorUserId"`
	ActorRole   string         `json:"actorRole"`
	Operation   string         `json:"operation"`
	Timestamp   string         `json:"timestamp"`
	Success     bool           `json:"success"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Handler exposes the audit search endpoint.
type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/audit", h.HandleSearch)
}

// HandleSearch lists audit records, newest first. Partner-scoped roles only
// ever see their own partner's trail; internal support may filter by any
// partner or search across all of them.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ident := middleware.GetIdentity(ctx)
	if ident == nil {
		httputil.WriteError(ctx, w, dErrors.New(dErrors.CodeUnauthorized, "missing session"))
		return
	}
	if ident.Role == id.RolePartnerUser {
		httputil.WriteError(ctx, w, dErrors.New(dErrors.CodeForbidden, "audit access requires an elevated role"))
		return
	}

	criteria, err := parseCriteria(r, ident)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}

	records, total, err := h.store.Search(ctx, criteria)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit search failed",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(ctx, w, err)
		return
	}

	items := make([]RecordDTO, 0, len(records))
	for _, rec := range records {
		items = append(items, toDTO(rec))
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaged(items, criteria.Page, criteria.PageSize, total))
}

func parseCriteria(r *http.Request, ident *middleware.Identity) (SearchCriteria, error) {
	q := r.URL.Query()

	criteria := SearchCriteria{PartnerID: ident.PartnerID}
	if ident.Role == id.RoleInternalSupport {
		criteria.PartnerID = id.PartnerID{}
		if raw := q.Get("partnerId"); raw != "" {
			partnerID, err := id.ParsePartnerID(raw)
			if err != nil {
				return SearchCriteria{}, dErrors.New(dErrors.CodeValidation, "partnerId must be a uuid")
			}
			criteria.PartnerID = partnerID
		}
	}

	if raw := q.Get("operation"); raw != "" {
		op := Operation(raw)
		if !op.Valid() {
			return SearchCriteria{}, dErrors.New(dErrors.CodeValidation, "unknown operation filter")
		}
		criteria.Operation = op
	}

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

func toDTO(rec *Record) RecordDTO {
	return RecordDTO{
		AuditID:     rec.ID.String(),
		PartnerID:   rec.PartnerID.String(),
		ActorUserID: rec.ActorUserID,
		ActorRole:   rec.ActorRole.String(),
		Operation:   string(rec.Operation),
		Timestamp:   rec.Timestamp.UTC().Format(time.RFC3339Nano),
		Success:     rec.Success,
		Metadata:    rec.Metadata,
	}
}
