package events

import (
	"sync"

	id "tradegate/pkg/domain"
)

// SequenceAllocator hands out strictly increasing sequence numbers per partner.
// The first number for a partner is 1. Safe for concurrent callers.
type SequenceAllocator struct {
	mu   sync.Mutex
	next map[id.PartnerID]uint64
}

func NewSequenceAllocator() *SequenceAllocator {
	return &SequenceAllocator{next: make(map[id.PartnerID]uint64)}
}

// Next returns the next sequence number for the partner.
func (a *SequenceAllocator) Next(partnerID id.PartnerID) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next[partnerID]++
	return a.next[partnerID]
}

// Current returns the last allocated sequence for the partner, zero if none.
func (a *SequenceAllocator) Current(partnerID id.PartnerID) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next[partnerID]
}
