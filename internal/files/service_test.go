package files

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"tradegate/internal/events"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
)

type publishedEvent struct {
	partnerID id.PartnerID
	payload   events.Payload
}

type recordingPublisher struct {
	published []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, partnerID id.PartnerID, payload events.Payload) events.Envelope {
	p.published = append(p.published, publishedEvent{partnerID: partnerID, payload: payload})
	return events.Envelope{Seq: uint64(len(p.published)), Type: payload.EventType(), Payload: payload}
}

func newTestService(t *testing.T) (*Service, *InMemoryStore, *recordingPublisher, *time.Time) {
	t.Helper()
	store := NewInMemoryStore()
	publisher := &recordingPublisher{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(store, publisher,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return now }),
	)
	return svc, store, publisher, &now
}

func TestRecordPublishesCreatedEvent(t *testing.T) {
	svc, store, publisher, _ := newTestService(t)
	partnerID := id.NewPartnerID()

	event, err := svc.Record(context.Background(), partnerID, RecordCommand{
		Direction:     DirectionInbound,
		DocType:       "INVOIC",
		SizeBytes:     2048,
		CorrelationID: "corr-1",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if event.FileID.IsNil() {
		t.Fatal("expected a minted file id")
	}
	if event.Status != StatusPending {
		t.Fatalf("status = %s, want Pending", event.Status)
	}

	stored, err := store.Find(context.Background(), partnerID, event.FileID)
	if err != nil {
		t.Fatalf("Find after Record: %v", err)
	}
	if stored.DocType != "INVOIC" || stored.SizeBytes != 2048 {
		t.Fatalf("stored transfer mismatch: %+v", stored)
	}

	if len(publisher.published) != 1 {
		t.Fatalf("published %d events, want 1", len(publisher.published))
	}
	created, ok := publisher.published[0].payload.(events.FileCreated)
	if !ok {
		t.Fatalf("payload type = %T, want FileCreated", publisher.published[0].payload)
	}
	if created.FileID != event.FileID.String() || created.Direction != "Inbound" || created.DocType != "INVOIC" {
		t.Fatalf("FileCreated payload mismatch: %+v", created)
	}
}

func TestRecordValidation(t *testing.T) {
	svc, _, publisher, _ := newTestService(t)
	partnerID := id.NewPartnerID()

	cases := []struct {
		name string
		cmd  RecordCommand
	}{
		{"bad direction", RecordCommand{Direction: "Sideways", DocType: "ORDERS"}},
		{"missing doc type", RecordCommand{Direction: DirectionInbound}},
		{"negative size", RecordCommand{Direction: DirectionInbound, DocType: "ORDERS", SizeBytes: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Record(context.Background(), partnerID, tc.cmd); !dErrors.HasCode(err, dErrors.CodeValidation) {
				t.Fatalf("err = %v, want VALIDATION", err)
			}
		})
	}
	if len(publisher.published) != 0 {
		t.Fatalf("rejected commands must not publish, got %d events", len(publisher.published))
	}
}

func TestRecordDuplicateFileID(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	partnerID := id.NewPartnerID()
	fileID := id.NewFileID()

	cmd := RecordCommand{FileID: fileID, Direction: DirectionOutbound, DocType: "DESADV"}
	if _, err := svc.Record(context.Background(), partnerID, cmd); err != nil {
		t.Fatalf("first Record: %v", err)
	}
	if _, err := svc.Record(context.Background(), partnerID, cmd); !dErrors.HasCode(err, dErrors.CodeConflict) {
		t.Fatalf("err = %v, want CONFLICT", err)
	}
}

func TestUpdateStatusLifecycle(t *testing.T) {
	svc, _, publisher, now := newTestService(t)
	partnerID := id.NewPartnerID()

	event, err := svc.Record(context.Background(), partnerID, RecordCommand{
		Direction: DirectionInbound,
		DocType:   "ORDERS",
		SizeBytes: 100,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	receivedAt := event.ReceivedAt

	if _, err := svc.UpdateStatus(context.Background(), partnerID, event.FileID, StatusUpdate{NewStatus: StatusProcessing}); err != nil {
		t.Fatalf("to Processing: %v", err)
	}

	*now = now.Add(3 * time.Second)
	updated, err := svc.UpdateStatus(context.Background(), partnerID, event.FileID, StatusUpdate{NewStatus: StatusSuccess})
	if err != nil {
		t.Fatalf("to Success: %v", err)
	}
	if updated.ProcessedAt == nil {
		t.Fatal("terminal transition must stamp ProcessedAt")
	}
	latency := updated.ProcessingLatencyMs()
	if latency == nil || *latency != updated.ProcessedAt.Sub(receivedAt).Seconds()*1000 {
		t.Fatalf("latency = %v", latency)
	}

	// created + 2 transitions
	if len(publisher.published) != 3 {
		t.Fatalf("published %d events, want 3", len(publisher.published))
	}
	change, ok := publisher.published[2].payload.(events.FileStatusChanged)
	if !ok {
		t.Fatalf("payload type = %T, want FileStatusChanged", publisher.published[2].payload)
	}
	if change.OldStatus != "Processing" || change.NewStatus != "Success" {
		t.Fatalf("FileStatusChanged mismatch: %+v", change)
	}
}

func TestUpdateStatusFailureCapturesError(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	partnerID := id.NewPartnerID()

	event, _ := svc.Record(context.Background(), partnerID, RecordCommand{
		Direction: DirectionInbound, DocType: "INVOIC", SizeBytes: 1,
	})

	updated, err := svc.UpdateStatus(context.Background(), partnerID, event.FileID, StatusUpdate{
		NewStatus:    StatusFailed,
		ErrorCode:    "ERR_PARSE",
		ErrorMessage: "segment count mismatch",
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.ErrorCode != "ERR_PARSE" || updated.ErrorMessage != "segment count mismatch" {
		t.Fatalf("error fields not captured: %+v", updated)
	}
	if updated.ProcessedAt == nil {
		t.Fatal("Failed is terminal and must stamp ProcessedAt")
	}
}

func TestUpdateStatusRejectsTerminalAndSame(t *testing.T) {
	svc, _, publisher, _ := newTestService(t)
	partnerID := id.NewPartnerID()

	event, _ := svc.Record(context.Background(), partnerID, RecordCommand{
		Direction: DirectionOutbound, DocType: "ORDERS", SizeBytes: 1,
	})

	if _, err := svc.UpdateStatus(context.Background(), partnerID, event.FileID, StatusUpdate{NewStatus: StatusPending}); !dErrors.HasCode(err, dErrors.CodeConflict) {
		t.Fatalf("same-status err = %v, want CONFLICT", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), partnerID, event.FileID, StatusUpdate{NewStatus: StatusSuccess}); err != nil {
		t.Fatalf("to Success: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), partnerID, event.FileID, StatusUpdate{NewStatus: StatusProcessing}); !dErrors.HasCode(err, dErrors.CodeConflict) {
		t.Fatalf("terminal err = %v, want CONFLICT", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), partnerID, id.NewFileID(), StatusUpdate{NewStatus: StatusProcessing}); !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("unknown file err = %v, want NOT_FOUND", err)
	}

	// created + one successful transition only
	if len(publisher.published) != 2 {
		t.Fatalf("published %d events, want 2", len(publisher.published))
	}
}

func TestUpdateStatusRetryIncrementsCount(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	partnerID := id.NewPartnerID()

	event, _ := svc.Record(context.Background(), partnerID, RecordCommand{
		Direction: DirectionInbound, DocType: "ORDERS", SizeBytes: 1,
	})

	if _, err := svc.UpdateStatus(context.Background(), partnerID, event.FileID, StatusUpdate{NewStatus: StatusProcessing}); err != nil {
		t.Fatalf("to Processing: %v", err)
	}
	updated, err := svc.UpdateStatus(context.Background(), partnerID, event.FileID, StatusUpdate{NewStatus: StatusPending})
	if err != nil {
		t.Fatalf("back to Pending: %v", err)
	}
	if updated.RetryCount != 1 {
		t.Fatalf("RetryCount = %d, want 1", updated.RetryCount)
	}
}

func TestSearchFiltersAndPages(t *testing.T) {
	svc, _, _, now := newTestService(t)
	partnerID := id.NewPartnerID()
	otherPartner := id.NewPartnerID()

	for i := 0; i < 5; i++ {
		*now = now.Add(time.Minute)
		direction := DirectionInbound
		if i%2 == 1 {
			direction = DirectionOutbound
		}
		if _, err := svc.Record(context.Background(), partnerID, RecordCommand{
			Direction: direction, DocType: "INVOIC", SizeBytes: int64(i),
		}); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}
	if _, err := svc.Record(context.Background(), otherPartner, RecordCommand{
		Direction: DirectionInbound, DocType: "INVOIC", SizeBytes: 7,
	}); err != nil {
		t.Fatalf("Record other partner: %v", err)
	}

	inbound, total, err := svc.Search(context.Background(), partnerID, SearchCriteria{Direction: DirectionInbound})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 3 || len(inbound) != 3 {
		t.Fatalf("inbound total = %d len = %d, want 3", total, len(inbound))
	}
	for i := 1; i < len(inbound); i++ {
		if inbound[i].ReceivedAt.After(inbound[i-1].ReceivedAt) {
			t.Fatal("results must be ordered newest first")
		}
	}

	page2, total, err := svc.Search(context.Background(), partnerID, SearchCriteria{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("Search page 2: %v", err)
	}
	if total != 5 || len(page2) != 2 {
		t.Fatalf("page 2 total = %d len = %d, want 5/2", total, len(page2))
	}
}

func TestGetScopedToPartner(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	partnerID := id.NewPartnerID()

	event, _ := svc.Record(context.Background(), partnerID, RecordCommand{
		Direction: DirectionInbound, DocType: "ORDERS", SizeBytes: 9,
	})

	if _, err := svc.Get(context.Background(), partnerID, event.FileID); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := svc.Get(context.Background(), id.NewPartnerID(), event.FileID); !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("cross-partner err = %v, want NOT_FOUND", err)
	}
}
