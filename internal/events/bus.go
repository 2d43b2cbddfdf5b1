package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	id "tradegate/pkg/domain"
)

// subscriberQueueCap bounds each live subscriber's delivery queue. A slow
// consumer loses its oldest pending envelopes rather than blocking Publish.
const subscriberQueueCap = 64

// Subscription is one live feed attached to a partner's stream. Replay holds
// the buffered envelopes captured atomically with the subscription start.
type Subscription struct {
	partnerID id.PartnerID
	ch        chan Envelope
	replay    Replay
	closeOnce sync.Once
}

// Live returns the channel carrying envelopes published after the
// subscription began. The channel is closed on Unsubscribe.
func (s *Subscription) Live() <-chan Envelope { return s.ch }

// Replay returns the snapshot taken when the subscription was created.
func (s *Subscription) Replay() Replay { return s.replay }

// partnerStream is the per-partner serialization point: sequence allocation,
// buffer insert, and fan-out happen under its lock, as does subscribe, so a
// concurrent publish lands either in the replay snapshot or on the live
// channel, never both and never neither.
type partnerStream struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Bus publishes domain events to per-partner ordered streams with bounded
// replay. Streams are created lazily on first publish or subscribe and are
// never removed; an idle stream is a counter and an empty subscriber set.
type Bus struct {
	alloc  *SequenceAllocator
	buffer *ReplayBuffer

	mu      sync.RWMutex
	streams map[id.PartnerID]*partnerStream

	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// BusOption configures the Bus.
type BusOption func(*Bus)

func WithLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) { b.logger = logger }
}

func WithMetrics(m *Metrics) BusOption {
	return func(b *Bus) { b.metrics = m }
}

// WithClock overrides the envelope timestamp source, for tests.
func WithClock(now func() time.Time) BusOption {
	return func(b *Bus) { b.now = now }
}

func NewBus(bufferCap int, opts ...BusOption) *Bus {
	b := &Bus{
		alloc:   NewSequenceAllocator(),
		buffer:  NewReplayBuffer(bufferCap),
		streams: make(map[id.PartnerID]*partnerStream),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish assigns the next sequence for the partner, buffers the envelope,
// and delivers it to every live subscriber. It never blocks on a subscriber's
// transport and a full subscriber queue never fails the publish.
func (b *Bus) Publish(ctx context.Context, partnerID id.PartnerID, payload Payload) Envelope {
	stream := b.stream(partnerID)

	stream.mu.Lock()
	defer stream.mu.Unlock()

	env := Envelope{
		Seq:        b.alloc.Next(partnerID),
		Type:       payload.EventType(),
		OccurredAt: b.now().UTC(),
		Payload:    payload,
	}
	if err := b.buffer.Insert(partnerID, env); err != nil {
		// Unreachable while allocation and insert share the stream lock.
		if b.logger != nil {
			b.logger.ErrorContext(ctx, "replay buffer rejected envelope",
				"error", err,
				"partner_id", partnerID,
				"seq", env.Seq,
			)
		}
		return env
	}

	for sub := range stream.subs {
		b.deliver(sub, env)
	}

	if b.metrics != nil {
		b.metrics.EventPublished(string(env.Type))
	}
	return env
}

// deliver enqueues the envelope without blocking. When the subscriber's queue
// is full the oldest pending envelope is dropped to make room; the client
// recovers through its checkpoint on reconnect.
func (b *Bus) deliver(sub *Subscription, env Envelope) {
	select {
	case sub.ch <- env:
		return
	default:
	}

	select {
	case <-sub.ch:
		if b.metrics != nil {
			b.metrics.EnvelopeDropped()
		}
	default:
	}

	select {
	case sub.ch <- env:
	default:
		if b.metrics != nil {
			b.metrics.EnvelopeDropped()
		}
	}
}

// SubscribeFrom atomically snapshots the replay buffer above the checkpoint
// and registers a live subscription, so no event published concurrently with
// the call is duplicated or lost across the two views.
func (b *Bus) SubscribeFrom(partnerID id.PartnerID, checkpoint uint64) *Subscription {
	stream := b.stream(partnerID)

	stream.mu.Lock()
	defer stream.mu.Unlock()

	sub := &Subscription{
		partnerID: partnerID,
		ch:        make(chan Envelope, subscriberQueueCap),
		replay:    b.buffer.Query(partnerID, checkpoint),
	}
	stream.subs[sub] = struct{}{}

	if b.metrics != nil {
		b.metrics.SubscriberAdded()
	}
	return sub
}

// Unsubscribe detaches the subscription and closes its live channel.
// Idempotent: safe to call on an already-removed subscription.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	stream := b.stream(sub.partnerID)

	stream.mu.Lock()
	_, present := stream.subs[sub]
	delete(stream.subs, sub)
	stream.mu.Unlock()

	sub.closeOnce.Do(func() { close(sub.ch) })

	if present && b.metrics != nil {
		b.metrics.SubscriberRemoved()
	}
}

// stream returns the partner's stream, creating it lazily.
func (b *Bus) stream(partnerID id.PartnerID) *partnerStream {
	b.mu.RLock()
	s, ok := b.streams[partnerID]
	b.mu.RUnlock()
	if ok {
		return s
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok = b.streams[partnerID]; ok {
		return s
	}
	s = &partnerStream{subs: make(map[*Subscription]struct{})}
	b.streams[partnerID] = s
	return s
}

// ActivePartners returns the partners that currently have live subscribers.
// Used by periodic publishers to avoid ticking idle streams.
func (b *Bus) ActivePartners() []id.PartnerID {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var active []id.PartnerID
	for partnerID, stream := range b.streams {
		stream.mu.Lock()
		n := len(stream.subs)
		stream.mu.Unlock()
		if n > 0 {
			active = append(active, partnerID)
		}
	}
	return active
}
