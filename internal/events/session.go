package events

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	id "tradegate/pkg/domain"
)

// DefaultHeartbeatInterval is how often an idle stream emits a comment frame.
const DefaultHeartbeatInterval = 15 * time.Second

// StreamSession drives one SSE connection: replay above the client's
// checkpoint, then live delivery with heartbeats until the client goes away.
type StreamSession struct {
	bus        *Bus
	partnerID  id.PartnerID
	checkpoint uint64
	heartbeat  time.Duration
	logger     *slog.Logger
	metrics    *Metrics
}

func NewStreamSession(bus *Bus, partnerID id.PartnerID, checkpoint uint64, heartbeat time.Duration, logger *slog.Logger, metrics *Metrics) *StreamSession {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	return &StreamSession{
		bus:        bus,
		partnerID:  partnerID,
		checkpoint: checkpoint,
		heartbeat:  heartbeat,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run streams until ctx is cancelled or a write fails. The caller must not
// touch the ResponseWriter afterwards.
func (s *StreamSession) Run(ctx context.Context, w http.ResponseWriter) error {
	writer, err := newSSEWriter(w)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sub := s.bus.SubscribeFrom(s.partnerID, s.checkpoint)
	defer s.bus.Unsubscribe(sub)

	if s.metrics != nil {
		s.metrics.StreamOpened()
		defer s.metrics.StreamClosed()
	}

	// lastSeq is the highest sequence written so far. Anything at or below
	// it arriving on the live channel was already covered by replay.
	lastSeq := s.checkpoint

	replay := sub.Replay()
	if replay.GapDetected {
		if err := writer.WriteResync(replay.OldestRetained); err != nil {
			return err
		}
	}
	for _, env := range replay.Envelopes {
		if err := writer.WriteEnvelope(env); err != nil {
			return err
		}
		lastSeq = env.Seq
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-sub.Live():
			if !ok {
				return nil
			}
			if env.Seq <= lastSeq {
				continue
			}
			if err := writer.WriteEnvelope(env); err != nil {
				s.logDropped(ctx, err)
				return err
			}
			lastSeq = env.Seq
			ticker.Reset(s.heartbeat)
		case <-ticker.C:
			if err := writer.WriteHeartbeat(); err != nil {
				s.logDropped(ctx, err)
				return err
			}
		}
	}
}

func (s *StreamSession) logDropped(ctx context.Context, err error) {
	if s.logger == nil {
		return
	}
	s.logger.DebugContext(ctx, "event stream write failed, closing session",
		"error", err,
		"partner_id", s.partnerID,
	)
}
