// Package events implements the per-partner ordered event stream: sequence
// allocation, bounded replay, live fan-out, and the SSE sessions that consume it.
package events

import "time"

// EventType identifies one shape in the closed payload union.
type EventType string

const (
	EventFileCreated          EventType = "file.created"
	EventFileStatusChanged    EventType = "file.statusChanged"
	EventKeyPromoted          EventType = "key.promoted"
	EventKeyRevoked           EventType = "key.revoked"
	EventDashboardMetricsTick EventType = "dashboard.metricsTick"

	// EventStreamResync is emitted by a session (never published to the bus)
	// when the requested checkpoint predates the oldest retained envelope.
	EventStreamResync EventType = "stream.resync"
)

// Payload is the closed union of event payload shapes. Each variant maps to
// exactly one EventType so serialization stays exhaustive and type-checked.
type Payload interface {
	EventType() EventType
}

// Envelope is the immutable, sequenced wrapper around one published event.
// Seq is unique and strictly increasing within a partner; there is no global
// ordering across partners.
type Envelope struct {
	Seq        uint64    `json:"seq"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    Payload   `json:"payload"`
}

// FileCreated announces a new file transfer observation.
type FileCreated struct {
	FileID    string `json:"fileId"`
	Direction string `json:"direction"`
	DocType   string `json:"docType"`
}

func (FileCreated) EventType() EventType { return EventFileCreated }

// FileStatusChanged announces a file transfer status transition.
type FileStatusChanged struct {
	FileID    string `json:"fileId"`
	OldStatus string `json:"oldStatus"`
	NewStatus string `json:"newStatus"`
}

func (FileStatusChanged) EventType() EventType { return EventFileStatusChanged }

// KeyPromoted announces that a key became the partner's primary key.
// PreviousPrimaryKeyID is empty when no key was primary before.
type KeyPromoted struct {
	KeyID                string `json:"keyId"`
	PreviousPrimaryKeyID string `json:"previousPrimaryKeyId,omitempty"`
}

func (KeyPromoted) EventType() EventType { return EventKeyPromoted }

// KeyRevoked announces a key revocation.
type KeyRevoked struct {
	KeyID string `json:"keyId"`
}

func (KeyRevoked) EventType() EventType { return EventKeyRevoked }

// MetricsSummary is the dashboard snapshot carried by metrics tick events.
type MetricsSummary struct {
	InboundFiles24h   int     `json:"inboundFiles24h"`
	OutboundFiles24h  int     `json:"outboundFiles24h"`
	SuccessRate       float64 `json:"successRate"`
	AvgProcessingMs   float64 `json:"avgProcessingTime"`
	OpenErrors        int     `json:"openErrors"`
	TotalBytes24h     int64   `json:"totalBytes24h"`
	AvgFileSizeBytes  float64 `json:"avgFileSizeBytes"`
	LargeFileCount24h int     `json:"largeFileCount24h"`
}

// DashboardMetricsTick carries a periodic dashboard summary.
type DashboardMetricsTick struct {
	Summary MetricsSummary `json:"summary"`
}

func (DashboardMetricsTick) EventType() EventType { return EventDashboardMetricsTick }

// StreamResync tells a reconnecting client that events were evicted before its
// checkpoint and a full resync is required. It carries no sequence number.
type StreamResync struct {
	OldestRetainedSequence uint64 `json:"oldestRetainedSequence"`
}

func (StreamResync) EventType() EventType { return EventStreamResync }
