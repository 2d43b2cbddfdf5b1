package auth

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

// LoginRequest declares the demo identity to establish a session for.
type LoginRequest struct {
	UserID    string `json:"userId"`
	PartnerID string `json:"partnerId"`
	Role      string `json:"role"`
}

func (r *LoginRequest) Validate() error {
	if r.UserID == "" {
		return dErrors.New(dErrors.CodeValidation, "userId is required")
	}
	if r.PartnerID == "" {
		return dErrors.New(dErrors.CodeValidation, "partnerId is required")
	}
	return nil
}

// LoginResponse returns the session token and its scope.
type LoginResponse struct {
	SessionToken string `json:"sessionToken"`
	UserID       string `json:"userId"`
	PartnerID    string `json:"partnerId"`
	Role         string `json:"role"`
	ExpiresAt    string `json:"expiresAt"`
}

// Handler exposes login and logout. Login is the only unauthenticated
// endpoint besides health and version.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the endpoints that do not require a session.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
}

// RegisterProtected mounts the endpoints that require a session.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/auth/logout", h.HandleLogout)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	partnerID, err := id.ParsePartnerID(req.PartnerID)
	if err != nil {
		httputil.WriteError(ctx, w, dErrors.New(dErrors.CodeValidation, "partnerId must be a uuid"))
		return
	}

	session, err := h.service.Login(ctx, LoginCommand{
		UserID:    req.UserID,
		PartnerID: partnerID,
		Role:      id.Role(req.Role),
	}, r.UserAgent())
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		SessionToken: session.Token,
		UserID:       session.UserID,
		PartnerID:    session.PartnerID.String(),
		Role:         session.Role.String(),
		ExpiresAt:    session.ExpiresAt.UTC().Format(time.RFC3339Nano),
	})
}

// HandleLogout revokes the presented session token.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := r.Header.Get("X-Session-Token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		httputil.WriteError(ctx, w, dErrors.New(dErrors.CodeUnauthorized, "missing session token"))
		return
	}

	if err := h.service.Logout(ctx, token); err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
