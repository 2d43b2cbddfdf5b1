// Package files tracks file exchange observations per partner: ingest,
// status transitions, and the paged search the portal lists them through.
package files

import (
	"time"

	id "tradegate/pkg/domain"
)

// Direction of a transfer relative to the platform.
type Direction string

const (
	DirectionInbound  Direction = "Inbound"
	DirectionOutbound Direction = "Outbound"
)

func (d Direction) Valid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

// Status of a transfer. Success and Failed are terminal.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusSuccess    Status = "Success"
	StatusFailed     Status = "Failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// TransferEvent is one observed file exchange.
type TransferEvent struct {
	FileID        id.FileID
	PartnerID     id.PartnerID
	Direction     Direction
	DocType       string
	SizeBytes     int64
	ReceivedAt    time.Time
	ProcessedAt   *time.Time
	Status        Status
	CorrelationID string
	ErrorCode     string
	ErrorMessage  string
	RetryCount    int
}

// ProcessingLatencyMs is derived, not stored: nil until ProcessedAt is set.
func (e *TransferEvent) ProcessingLatencyMs() *float64 {
	if e.ProcessedAt == nil {
		return nil
	}
	ms := e.ProcessedAt.Sub(e.ReceivedAt).Seconds() * 1000
	return &ms
}

// Clone returns an independent copy so store internals never escape.
func (e *TransferEvent) Clone() *TransferEvent {
	clone := *e
	if e.ProcessedAt != nil {
		t := *e.ProcessedAt
		clone.ProcessedAt = &t
	}
	return &clone
}

// SearchCriteria narrows a partner's transfer listing. Zero values mean
// "no filter".
type SearchCriteria struct {
	Direction Direction
	Status    Status
	DocType   string
	DateFrom  time.Time
	DateTo    time.Time
	Page      int
	PageSize  int
}
