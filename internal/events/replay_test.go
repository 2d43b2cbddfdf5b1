package events

import (
	"fmt"
	"sync"
	"testing"

	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
)

func TestSequenceAllocatorStartsAtOne(t *testing.T) {
	alloc := NewSequenceAllocator()
	partnerA := id.NewPartnerID()
	partnerB := id.NewPartnerID()

	if got := alloc.Next(partnerA); got != 1 {
		t.Fatalf("first sequence = %d, want 1", got)
	}
	if got := alloc.Next(partnerA); got != 2 {
		t.Fatalf("second sequence = %d, want 2", got)
	}
	if got := alloc.Next(partnerB); got != 1 {
		t.Fatalf("other partner's first sequence = %d, want 1", got)
	}
	if got := alloc.Current(partnerA); got != 2 {
		t.Fatalf("Current = %d, want 2", got)
	}
}

func TestSequenceAllocatorConcurrent(t *testing.T) {
	alloc := NewSequenceAllocator()
	partnerID := id.NewPartnerID()

	const workers = 8
	const perWorker = 250

	var mu sync.Mutex
	seen := make(map[uint64]bool, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				seq := alloc.Next(partnerID)
				mu.Lock()
				if seen[seq] {
					t.Errorf("sequence %d allocated twice", seq)
				}
				seen[seq] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if got := alloc.Current(partnerID); got != workers*perWorker {
		t.Fatalf("Current = %d, want %d", got, workers*perWorker)
	}
}

func fillBuffer(t *testing.T, buf *ReplayBuffer, partnerID id.PartnerID, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		env := Envelope{
			Seq:     uint64(i),
			Type:    EventFileCreated,
			Payload: FileCreated{FileID: fmt.Sprintf("file-%d", i)},
		}
		if err := buf.Insert(partnerID, env); err != nil {
			t.Fatalf("insert seq %d: %v", i, err)
		}
	}
}

func TestReplayBufferEvictsOldest(t *testing.T) {
	buf := NewReplayBuffer(500)
	partnerID := id.NewPartnerID()

	fillBuffer(t, buf, partnerID, 510)

	replay := buf.Query(partnerID, 0)
	if len(replay.Envelopes) != 500 {
		t.Fatalf("retained %d envelopes, want 500", len(replay.Envelopes))
	}
	if replay.Envelopes[0].Seq != 11 {
		t.Fatalf("oldest retained seq = %d, want 11", replay.Envelopes[0].Seq)
	}
	if last := replay.Envelopes[len(replay.Envelopes)-1].Seq; last != 510 {
		t.Fatalf("newest retained seq = %d, want 510", last)
	}
	if replay.GapDetected {
		t.Fatal("fresh connect must not report a gap")
	}
}

func TestReplayBufferGapDetection(t *testing.T) {
	buf := NewReplayBuffer(500)
	partnerID := id.NewPartnerID()

	fillBuffer(t, buf, partnerID, 510)

	// Checkpoint 5 fell off the buffer: events 6..10 are unrecoverable.
	replay := buf.Query(partnerID, 5)
	if !replay.GapDetected {
		t.Fatal("expected gap for checkpoint below oldest retained")
	}
	if replay.OldestRetained != 11 {
		t.Fatalf("OldestRetained = %d, want 11", replay.OldestRetained)
	}
	if len(replay.Envelopes) != 500 {
		t.Fatalf("gap replay returned %d envelopes, want 500", len(replay.Envelopes))
	}

	// Checkpoint 10 is intact: the client saw everything that was evicted.
	replay = buf.Query(partnerID, 10)
	if replay.GapDetected {
		t.Fatal("checkpoint one below oldest retained is not a gap")
	}

	// Checkpoint at the head means nothing to replay.
	replay = buf.Query(partnerID, 510)
	if replay.GapDetected || len(replay.Envelopes) != 0 {
		t.Fatalf("up-to-date checkpoint: gap=%v envelopes=%d", replay.GapDetected, len(replay.Envelopes))
	}
}

func TestReplayBufferQueryUnknownPartner(t *testing.T) {
	buf := NewReplayBuffer(500)

	replay := buf.Query(id.NewPartnerID(), 0)
	if replay.GapDetected || len(replay.Envelopes) != 0 {
		t.Fatalf("unknown partner: gap=%v envelopes=%d", replay.GapDetected, len(replay.Envelopes))
	}
}

func TestReplayBufferRejectsNonIncreasingSequence(t *testing.T) {
	buf := NewReplayBuffer(500)
	partnerID := id.NewPartnerID()

	fillBuffer(t, buf, partnerID, 3)

	err := buf.Insert(partnerID, Envelope{Seq: 3, Type: EventKeyRevoked, Payload: KeyRevoked{}})
	if !dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		t.Fatalf("duplicate sequence: got %v, want invariant_violation", err)
	}

	err = buf.Insert(partnerID, Envelope{Seq: 2, Type: EventKeyRevoked, Payload: KeyRevoked{}})
	if !dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		t.Fatalf("regressing sequence: got %v, want invariant_violation", err)
	}
}
