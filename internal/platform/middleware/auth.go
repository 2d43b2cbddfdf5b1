package middleware

import (
	"context"
	"log/slog"
	"net/http"

	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
	"tradegate/pkg/platform/httputil"
)

// Identity is the resolved caller: who they are, which partner they act for,
// and what they may do.
type Identity struct {
	UserID    string
	PartnerID id.PartnerID
	Role      id.Role
}

// Authenticator resolves a session token into an identity.
type Authenticator interface {
	Resolve(ctx context.Context, token string) (*Identity, error)
}

type identityKey struct{}

// GetIdentity retrieves the authenticated identity from the context.
// Returns nil when the request did not pass through RequireSession.
func GetIdentity(ctx context.Context) *Identity {
	if ident, ok := ctx.Value(identityKey{}).(*Identity); ok {
		return ident
	}
	return nil
}

// WithIdentity returns a context carrying the identity, as RequireSession
// would have stored it.
func WithIdentity(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, ident)
}

// RequireSession resolves the caller's session token and stores the identity in
// the request context. The token comes from the X-Session-Token header, with a
// `token` query parameter fallback for transports that cannot set headers
// (EventSource); the header takes precedence when both are present.
func RequireSession(auth Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := r.Header.Get("X-Session-Token")
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				httputil.WriteError(ctx, w, dErrors.New(dErrors.CodeUnauthorized, "missing session token"))
				return
			}

			ident, err := auth.Resolve(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "session resolution failed",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				httputil.WriteError(ctx, w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired session"))
				return
			}

			ctx = WithIdentity(ctx, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireElevated rejects callers whose role may not perform privileged writes.
// Must run after RequireSession.
func RequireElevated(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ident := GetIdentity(ctx)
			if ident == nil {
				httputil.WriteError(ctx, w, dErrors.New(dErrors.CodeUnauthorized, "missing session"))
				return
			}
			if !ident.Role.Elevated() {
				logger.WarnContext(ctx, "forbidden privileged operation",
					"role", ident.Role,
					"request_id", GetRequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(ctx, w, dErrors.New(dErrors.CodeForbidden, "elevated role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
