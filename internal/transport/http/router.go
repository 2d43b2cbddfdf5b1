// Package httptransport assembles the portal's HTTP surface: middleware
// stack, public endpoints, and the session-protected API groups.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradegate/internal/platform/health"
	"tradegate/internal/platform/middleware"
	"tradegate/pkg/platform/httputil"
)

// Registrar mounts a feature's routes on a router group.
type Registrar interface {
	Register(r chi.Router)
}

// AuthHandler is the session vertical's split surface: login is public,
// logout needs the session it terminates.
type AuthHandler interface {
	RegisterPublic(r chi.Router)
	RegisterProtected(r chi.Router)
}

// Components collects everything the router mounts. The stream handler is
// separate because it must not run under the request timeout.
type Components struct {
	Authenticator middleware.Authenticator
	Auth          AuthHandler
	Stream        Registrar
	Keys          Registrar
	Sftp          Registrar
	Files         Registrar
	Dashboard     Registrar
	Audit         Registrar
	Health        *health.Handler
}

// NewRouter wires the middleware stack and mounts all feature routers.
func NewRouter(c Components, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing("tradegate"))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.ContentTypeJSON)

	c.Health.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Get("/version", handleVersion)
		c.Auth.RegisterPublic(api)

		// Session-protected API. Request/response endpoints get a timeout;
		// the event stream stays open until the client disconnects.
		api.Group(func(protected chi.Router) {
			protected.Use(middleware.RequireSession(c.Authenticator, logger))

			c.Stream.Register(protected)

			protected.Group(func(timed chi.Router) {
				timed.Use(middleware.Timeout(30 * time.Second))

				c.Auth.RegisterProtected(timed)
				c.Keys.Register(timed)
				c.Sftp.Register(timed)
				c.Files.Register(timed)
				c.Dashboard.Register(timed)
				c.Audit.Register(timed)
			})
		})
	})

	return r
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"version": health.Version})
}
