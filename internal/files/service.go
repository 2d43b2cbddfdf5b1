package files

import (
	"context"
	"log/slog"
	"time"

	"tradegate/internal/events"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
)

// EventPublisher pushes transfer lifecycle events onto the partner stream.
type EventPublisher interface {
	Publish(ctx context.Context, partnerID id.PartnerID, payload events.Payload) events.Envelope
}

// RecordCommand describes a newly observed transfer.
type RecordCommand struct {
	FileID        id.FileID // optional, minted when nil
	Direction     Direction
	DocType       string
	SizeBytes     int64
	CorrelationID string
	ReceivedAt    time.Time // optional, defaults to now
}

// Service owns transfer ingest and status transitions. Reads go straight to
// the store; writes publish stream events after the store accepts them.
type Service struct {
	store   Store
	events  EventPublisher
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, publisher EventPublisher, opts ...Option) *Service {
	s := &Service{
		store:  store,
		events: publisher,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record ingests a transfer observation in Pending state and announces it.
func (s *Service) Record(ctx context.Context, partnerID id.PartnerID, cmd RecordCommand) (*TransferEvent, error) {
	if partnerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "partner id is required")
	}
	if !cmd.Direction.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "direction must be Inbound or Outbound")
	}
	if cmd.DocType == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "docType is required")
	}
	if cmd.SizeBytes < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "sizeBytes must not be negative")
	}

	fileID := cmd.FileID
	if fileID.IsNil() {
		fileID = id.NewFileID()
	}
	receivedAt := cmd.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}
	event := &TransferEvent{
		FileID:        fileID,
		PartnerID:     partnerID,
		Direction:     cmd.Direction,
		DocType:       cmd.DocType,
		SizeBytes:     cmd.SizeBytes,
		ReceivedAt:    receivedAt.UTC(),
		Status:        StatusPending,
		CorrelationID: cmd.CorrelationID,
	}
	if err := s.store.Insert(ctx, event); err != nil {
		return nil, err
	}

	s.events.Publish(ctx, partnerID, events.FileCreated{
		FileID:    fileID.String(),
		Direction: string(cmd.Direction),
		DocType:   cmd.DocType,
	})
	if s.metrics != nil {
		s.metrics.IncrementRecorded(cmd.Direction)
	}
	s.logger.InfoContext(ctx, "transfer recorded",
		"partner_id", partnerID,
		"file_id", fileID,
		"direction", cmd.Direction,
		"doc_type", cmd.DocType,
	)
	return event, nil
}

// StatusUpdate drives one transition.
type StatusUpdate struct {
	NewStatus    Status
	ErrorCode    string
	ErrorMessage string
}

// UpdateStatus moves a transfer to a new status and announces the change.
// Terminal transfers reject further transitions; moving back to Pending
// counts as a retry.
func (s *Service) UpdateStatus(ctx context.Context, partnerID id.PartnerID, fileID id.FileID, update StatusUpdate) (*TransferEvent, error) {
	if !update.NewStatus.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown status")
	}

	var oldStatus Status
	updated, err := s.store.Update(ctx, partnerID, fileID, func(event *TransferEvent) error {
		if event.Status.Terminal() {
			return dErrors.New(dErrors.CodeConflict, "transfer already reached a terminal status")
		}
		if event.Status == update.NewStatus {
			return dErrors.New(dErrors.CodeConflict, "transfer is already in that status")
		}
		oldStatus = event.Status

		event.Status = update.NewStatus
		if update.NewStatus.Terminal() {
			processedAt := s.now().UTC()
			event.ProcessedAt = &processedAt
		}
		if update.NewStatus == StatusFailed {
			event.ErrorCode = update.ErrorCode
			event.ErrorMessage = update.ErrorMessage
		}
		if update.NewStatus == StatusPending {
			event.RetryCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, partnerID, events.FileStatusChanged{
		FileID:    fileID.String(),
		OldStatus: string(oldStatus),
		NewStatus: string(update.NewStatus),
	})
	if s.metrics != nil {
		s.metrics.IncrementTransition(update.NewStatus)
	}
	s.logger.InfoContext(ctx, "transfer status changed",
		"partner_id", partnerID,
		"file_id", fileID,
		"old_status", oldStatus,
		"new_status", update.NewStatus,
	)
	return updated, nil
}

// Search pages one partner's transfers, newest first.
func (s *Service) Search(ctx context.Context, partnerID id.PartnerID, criteria SearchCriteria) ([]*TransferEvent, int, error) {
	return s.store.Search(ctx, partnerID, criteria)
}

// Get returns one transfer, partner scoped.
func (s *Service) Get(ctx context.Context, partnerID id.PartnerID, fileID id.FileID) (*TransferEvent, error) {
	return s.store.Find(ctx, partnerID, fileID)
}
