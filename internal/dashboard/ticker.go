package dashboard

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tradegate/internal/events"
	id "tradegate/pkg/domain"
)

// DefaultTickInterval is how often live streams receive a fresh summary.
const DefaultTickInterval = 30 * time.Second

// tickerConcurrency bounds how many partner summaries are computed at once.
const tickerConcurrency = 8

// StreamBus is the slice of the event bus the ticker needs.
type StreamBus interface {
	ActivePartners() []id.PartnerID
	Publish(ctx context.Context, partnerID id.PartnerID, payload events.Payload) events.Envelope
}

// MetricsTicker periodically pushes a dashboard summary to every partner that
// currently holds a live stream subscription. Partners without subscribers
// cost nothing.
type MetricsTicker struct {
	service  *Service
	bus      StreamBus
	interval time.Duration
	logger   *slog.Logger
}

func NewMetricsTicker(service *Service, bus StreamBus, interval time.Duration, logger *slog.Logger) *MetricsTicker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &MetricsTicker{service: service, bus: bus, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (t *MetricsTicker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.InfoContext(ctx, "dashboard metrics ticker started", "interval", t.interval)
	for {
		select {
		case <-ctx.Done():
			t.logger.InfoContext(ctx, "dashboard metrics ticker stopped")
			return
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}

// Tick publishes one summary per active partner. A failed partner summary is
// logged and skipped; it never blocks the other partners.
func (t *MetricsTicker) Tick(ctx context.Context) {
	partners := t.bus.ActivePartners()
	if len(partners) == 0 {
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(tickerConcurrency)
	for _, partnerID := range partners {
		partnerID := partnerID
		g.Go(func() error {
			summary, err := t.service.Summary(ctx, partnerID)
			if err != nil {
				t.logger.ErrorContext(ctx, "dashboard summary failed",
					"partner_id", partnerID,
					"error", err,
				)
				return nil
			}
			t.bus.Publish(ctx, partnerID, events.DashboardMetricsTick{Summary: summary})
			return nil
		})
	}
	_ = g.Wait()
}
