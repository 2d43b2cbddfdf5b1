package events

import (
	"sync"

	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
)

// DefaultBufferCap is the per-partner envelope retention limit.
const DefaultBufferCap = 500

// Replay is the result of a checkpointed buffer query.
type Replay struct {
	Envelopes []Envelope
	// GapDetected is true when the checkpoint falls below the oldest retained
	// sequence, meaning events were evicted before they could be replayed.
	GapDetected bool
	// OldestRetained is the lowest sequence still buffered, zero when empty.
	OldestRetained uint64
}

// ReplayBuffer keeps the most recent envelopes per partner in sequence order.
// On overflow the oldest envelopes are evicted first. Callers must insert in
// increasing sequence order; out-of-order inserts are rejected, not reordered.
type ReplayBuffer struct {
	mu      sync.RWMutex
	cap     int
	buffers map[id.PartnerID][]Envelope
}

func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCap
	}
	return &ReplayBuffer{
		cap:     capacity,
		buffers: make(map[id.PartnerID][]Envelope),
	}
}

// Insert appends an envelope to the partner's buffer, evicting the oldest
// entries past capacity.
func (b *ReplayBuffer) Insert(partnerID id.PartnerID, env Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf := b.buffers[partnerID]
	if n := len(buf); n > 0 && env.Seq <= buf[n-1].Seq {
		return dErrors.New(dErrors.CodeInvariantViolation, "envelope inserted out of sequence order")
	}

	buf = append(buf, env)
	if over := len(buf) - b.cap; over > 0 {
		// Copy the tail so evicted envelopes do not pin the backing array.
		kept := make([]Envelope, b.cap)
		copy(kept, buf[over:])
		buf = kept
	}
	b.buffers[partnerID] = buf
	return nil
}

// Query returns all retained envelopes with sequence greater than the
// checkpoint, oldest first. Checkpoint zero means "everything retained".
func (b *ReplayBuffer) Query(partnerID id.PartnerID, afterSeq uint64) Replay {
	b.mu.RLock()
	defer b.mu.RUnlock()

	buf := b.buffers[partnerID]
	if len(buf) == 0 {
		return Replay{}
	}

	oldest := buf[0].Seq
	res := Replay{
		OldestRetained: oldest,
		// A checkpoint below oldest-1 means envelopes between checkpoint and
		// the buffer head were evicted.
		GapDetected: afterSeq != 0 && afterSeq < oldest-1,
	}

	start := 0
	for start < len(buf) && buf[start].Seq <= afterSeq {
		start++
	}
	if start < len(buf) {
		res.Envelopes = append([]Envelope(nil), buf[start:]...)
	}
	return res
}

// Len reports the number of retained envelopes for the partner.
func (b *ReplayBuffer) Len(partnerID id.PartnerID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.buffers[partnerID])
}
