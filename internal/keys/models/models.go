package models

import (
	"time"

	id "tradegate/pkg/domain"
)

// Status is a key's lifecycle state as stored. Expiry is not a stored
// transition: a key whose ValidTo has passed stays Active in the store and
// reports Expired through EffectiveStatus.
type Status string

const (
	StatusPendingActivation Status = "PendingActivation"
	StatusActive            Status = "Active"
	StatusRevoked           Status = "Revoked"
	StatusExpired           Status = "Expired"
	StatusSuperseded        Status = "Superseded"
)

// Key is a partner's PGP public key record. Private material is never stored.
type Key struct {
	ID               id.KeyID
	PartnerID        id.PartnerID
	PublicKeyArmored string
	Fingerprint      string
	Algorithm        string
	KeySize          int
	CreatedAt        time.Time
	ValidFrom        time.Time
	ValidTo          *time.Time
	RevokedAt        *time.Time
	Status           Status
	IsPrimary        bool
}

// EffectiveStatus folds lazy expiry into the stored status.
func (k *Key) EffectiveStatus(now time.Time) Status {
	if k.Status == StatusActive && k.ValidTo != nil && now.After(*k.ValidTo) {
		return StatusExpired
	}
	return k.Status
}

// Usable reports whether the key can be promoted or serve as primary at now.
func (k *Key) Usable(now time.Time) bool {
	return k.EffectiveStatus(now) == StatusActive
}

// Clone returns a deep copy so store snapshots cannot be mutated by callers.
func (k *Key) Clone() *Key {
	dup := *k
	if k.ValidTo != nil {
		t := *k.ValidTo
		dup.ValidTo = &t
	}
	if k.RevokedAt != nil {
		t := *k.RevokedAt
		dup.RevokedAt = &t
	}
	return &dup
}
