package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tradegate/internal/audit"
	"tradegate/internal/keys/models"
	"tradegate/internal/keys/service"
	"tradegate/internal/platform/middleware"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
	"tradegate/pkg/platform/httputil"
)

// Service defines the key lifecycle operations the handler exposes.
// Returns domain objects, not HTTP response DTOs.
type Service interface {
	List(ctx context.Context, partnerID id.PartnerID) ([]*models.Key, error)
	Upload(ctx context.Context, partnerID id.PartnerID, actor service.Actor, cmd service.UploadKeyCommand) (*models.Key, *audit.Record, error)
	Generate(ctx context.Context, partnerID id.PartnerID, actor service.Actor, cmd service.GenerateKeyCommand) (*service.GeneratedKey, *audit.Record, error)
	Promote(ctx context.Context, partnerID id.PartnerID, keyID id.KeyID, actor service.Actor) (*audit.Record, error)
	Revoke(ctx context.Context, partnerID id.PartnerID, keyID id.KeyID, actor service.Actor, reason string) (*audit.Record, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/keys", h.HandleList)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireElevated(h.logger))
		r.Post("/keys/upload", h.HandleUpload)
		r.Post("/keys/generate", h.HandleGenerate)
		r.Post("/keys/{keyId}/revoke", h.HandleRevoke)
		r.Post("/keys/{keyId}/promote", h.HandlePromote)
	})
}

// HandleList returns the caller's keys, newest first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ident := middleware.GetIdentity(ctx)
	if ident == nil {
		httputil.WriteError(ctx, w, dErrors.New(dErrors.CodeUnauthorized, "missing session"))
		return
	}

	keys, err := h.service.List(ctx, ident.PartnerID)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}

	out := make([]KeySummary, 0, len(keys))
	for _, k := range keys {
		out = append(out, toSummary(k))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleUpload registers an externally produced public key.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident := middleware.GetIdentity(ctx)

	req, ok := httputil.DecodeAndPrepare[UploadKeyRequest](w, r, h.logger, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	cmd, err := req.toCommand()
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}

	key, _, err := h.service.Upload(ctx, ident.PartnerID, actorOf(ident), cmd)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSummary(key))
}

// HandleGenerate creates a key pair and returns the private half once.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident := middleware.GetIdentity(ctx)

	req, ok := httputil.DecodeAndPrepare[GenerateKeyRequest](w, r, h.logger, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	cmd, err := req.toCommand()
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}

	generated, _, err := h.service.Generate(ctx, ident.PartnerID, actorOf(ident), cmd)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, GenerateKeyResponse{
		PrivateKeyArmored: generated.PrivateKeyArmored,
		Key:               toSummary(generated.Key),
	})
}

// HandleRevoke revokes a key, triggering failover promotion when it was
// primary.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident := middleware.GetIdentity(ctx)

	keyID, err := id.ParseKeyID(chi.URLParam(r, "keyId"))
	if err != nil {
		httputil.WriteError(ctx, w, dErrors.New(dErrors.CodeNotFound, "key not found"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[RevokeKeyRequest](w, r, h.logger, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	rec, err := h.service.Revoke(ctx, ident.PartnerID, keyID, actorOf(ident), req.Reason)
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MutationResponse{Success: true, AuditID: rec.ID.String()})
}

// HandlePromote makes a key the primary. Promoting the current primary is a
// no-op acknowledged without a new audit record.
func (h *Handler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident := middleware.GetIdentity(ctx)

	keyID, err := id.ParseKeyID(chi.URLParam(r, "keyId"))
	if err != nil {
		httputil.WriteError(ctx, w, dErrors.New(dErrors.CodeNotFound, "key not found"))
		return
	}

	rec, err := h.service.Promote(ctx, ident.PartnerID, keyID, actorOf(ident))
	if err != nil {
		httputil.WriteError(ctx, w, err)
		return
	}
	if rec == nil {
		httputil.WriteJSON(w, http.StatusOK, MutationResponse{Success: true, Message: "key is already primary"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MutationResponse{Success: true, AuditID: rec.ID.String()})
}

func actorOf(ident *middleware.Identity) service.Actor {
	return service.Actor{UserID: ident.UserID, Role: ident.Role}
}

func toSummary(k *models.Key) KeySummary {
	summary := KeySummary{
		KeyID:       k.ID.String(),
		Fingerprint: k.Fingerprint,
		Algorithm:   k.Algorithm,
		KeySize:     k.KeySize,
		CreatedAt:   k.CreatedAt.UTC().Format(time.RFC3339Nano),
		ValidFrom:   k.ValidFrom.UTC().Format(time.RFC3339Nano),
		Status:      string(k.Status),
		IsPrimary:   k.IsPrimary,
	}
	if k.ValidTo != nil {
		v := k.ValidTo.UTC().Format(time.RFC3339Nano)
		summary.ValidTo = &v
	}
	return summary
}
