package sftp

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tradegate/internal/platform/middleware"
	dErrors "tradegate/pkg/domain-errors"
	"tradegate/pkg/platform/httputil"
)

// RotateRequest selects the rotation mode and, for manual mode, the password.
type RotateRequest struct {
	Mode        string `json:"mode"`
	NewPassword string `json:"newPassword,omitempty"`
}

func (r *RotateRequest) Validate() error {
	if r.Mode == "" {
		return dErrors.New(dErrors.CodeValidation, "mode is required")
	}
	return nil
}

// RotateResponse returns the cleartext password exactly once.
type RotateResponse struct {
	Password string    `json:"password"`
	Metadata *Metadata `json:"metadata"`
}

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/sftp/credential/metadata", h.HandleMetadata)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireElevated(h.logger))
		r.Post("/sftp/credential/rotate", h.HandleRotate)
	})
}

func (h *Handler) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ident := middleware.GetIdentity(ctx)
	if ident == nil {
		httputil.WriteError(ctx, w, dErrors.New(dErrors.CodeUnauthorized, "missing session"))
		return
	}

	meta, err := h.service.Metadata(ctx, ident.PartnerID)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, meta)
}

func (h *Handler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident := middleware.GetIdentity(ctx)

	req, ok := httputil.DecodeAndPrepare[RotateRequest](w, r, h.logger, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	password, meta, _, err := h.service.Rotate(ctx, ident.PartnerID,
		Actor{UserID: ident.UserID, Role: ident.Role}, req.Mode, req.NewPassword)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RotateResponse{Password: password, Metadata: meta})
}
