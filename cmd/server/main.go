package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"tradegate/internal/audit"
	"tradegate/internal/auth"
	"tradegate/internal/dashboard"
	"tradegate/internal/events"
	"tradegate/internal/files"
	keyhandler "tradegate/internal/keys/handler"
	keymetrics "tradegate/internal/keys/metrics"
	keyservice "tradegate/internal/keys/service"
	keystore "tradegate/internal/keys/store"
	"tradegate/internal/platform/config"
	"tradegate/internal/platform/health"
	"tradegate/internal/platform/logger"
	"tradegate/internal/seeder"
	"tradegate/internal/sftp"
	httptransport "tradegate/internal/transport/http"
	id "tradegate/pkg/domain"
)

// main wires stores, services, and handlers together and owns the process
// lifecycle. Business logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing tradegate",
		"addr", cfg.Addr,
		"replay_buffer_cap", cfg.ReplayBufferCap,
		"heartbeat_interval", cfg.HeartbeatInterval,
	)

	// Stores.
	auditStore := audit.NewInMemoryStore(audit.WithLogger(log))
	keyStore := keystore.NewInMemoryKeyStore()
	sftpStore := sftp.NewStore()
	fileStore := files.NewInMemoryStore()

	// Event stream. Bus and stream handler share one metrics registration.
	streamMetrics := events.NewMetrics()
	bus := events.NewBus(cfg.ReplayBufferCap,
		events.WithLogger(log),
		events.WithMetrics(streamMetrics),
	)

	// Services.
	tokens := auth.NewTokenService(cfg.SessionSigningKey, cfg.SessionTTL)
	authService := auth.NewService(tokens, auditStore, auth.WithLogger(log))
	keyService := keyservice.New(keyStore, auditStore, bus,
		keyservice.WithLogger(log),
		keyservice.WithMetrics(keymetrics.New()),
	)
	sftpService := sftp.NewService(sftpStore, auditStore, sftp.WithLogger(log))
	fileService := files.NewService(fileStore, bus,
		files.WithLogger(log),
		files.WithMetrics(files.NewMetrics()),
	)
	dashboardService := dashboard.NewService(fileStore)

	if cfg.SeedDemoData {
		if err := seeder.New(keyService, sftpService, fileService, log).Run(context.Background()); err != nil {
			log.Error("demo data seeding failed", "error", err)
			os.Exit(1)
		}
	}

	// serverCtx bounds background workers AND every request context: open
	// event streams park on ctx.Done, so cancelling it on shutdown closes
	// them before the listener drains.
	serverCtx, stopServer := context.WithCancel(context.Background())
	defer stopServer()
	go authService.StartCleanup(serverCtx, time.Hour)
	go dashboard.NewMetricsTicker(dashboardService, bus, cfg.MetricsTickInterval, log).Run(serverCtx)

	healthHandler := health.New(os.Getenv("ENVIRONMENT"))
	// Session tokens gate every protected route; a failing issue/verify
	// roundtrip means no caller can reach anything behind the session check.
	healthHandler.RegisterCheck("session_tokens", func() error {
		token, _, _, err := tokens.Issue("readiness-check", id.NewPartnerID(), id.RolePartnerUser)
		if err != nil {
			return err
		}
		_, err = tokens.Verify(token)
		return err
	})
	healthHandler.RegisterGauge("streaming_partners", func() int64 {
		return int64(len(bus.ActivePartners()))
	})

	router := httptransport.NewRouter(httptransport.Components{
		Authenticator: authService,
		Auth:          auth.NewHandler(authService, log),
		Stream:        events.NewHandler(bus, cfg.HeartbeatInterval, log, streamMetrics),
		Keys:          keyhandler.New(keyService, log),
		Sftp:          sftp.NewHandler(sftpService, log),
		Files:         files.NewHandler(fileService, log),
		Dashboard:     dashboard.NewHandler(dashboardService, log),
		Audit:         audit.NewHandler(auditStore, log),
		Health:        healthHandler,
	}, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return serverCtx },
	}

	log.Info("starting http server", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")
	// Closes live event streams and stops workers so Shutdown can drain.
	stopServer()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
