// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "tradegate/pkg/domain-errors"
)

// Distinct ID types - the compiler prevents passing a KeyID where a PartnerID is expected.
type (
	PartnerID uuid.UUID
	KeyID     uuid.UUID
	FileID    uuid.UUID
	AuditID   uuid.UUID
	SessionID uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParsePartnerID(s string) (PartnerID, error) {
	id, err := parseUUID(s, "partner ID")
	return PartnerID(id), err
}

func ParseKeyID(s string) (KeyID, error) {
	id, err := parseUUID(s, "key ID")
	return KeyID(id), err
}

func ParseFileID(s string) (FileID, error) {
	id, err := parseUUID(s, "file ID")
	return FileID(id), err
}

func ParseAuditID(s string) (AuditID, error) {
	id, err := parseUUID(s, "audit ID")
	return AuditID(id), err
}

func ParseSessionID(s string) (SessionID, error) {
	id, err := parseUUID(s, "session ID")
	return SessionID(id), err
}

// String methods - for logging and wire formats.

func (id PartnerID) String() string { return uuid.UUID(id).String() }
func (id KeyID) String() string     { return uuid.UUID(id).String() }
func (id FileID) String() string    { return uuid.UUID(id).String() }
func (id AuditID) String() string   { return uuid.UUID(id).String() }
func (id SessionID) String() string { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id PartnerID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id KeyID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id FileID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id AuditID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewPartnerID and friends mint fresh identifiers.

func NewPartnerID() PartnerID { return PartnerID(uuid.New()) }
func NewKeyID() KeyID         { return KeyID(uuid.New()) }
func NewFileID() FileID       { return FileID(uuid.New()) }
func NewAuditID() AuditID     { return AuditID(uuid.New()) }
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// parseUUID is the shared validation logic.
// Nil UUIDs are allowed here; use IsNil() at the service layer so store lookups
// can return proper "not found" errors for consistency.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
