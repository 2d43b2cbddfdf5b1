package store

import (
	"context"

	"tradegate/internal/keys/models"
	id "tradegate/pkg/domain"
)

// KeyStore persists partner PGP keys. Mutate is the single-writer
// serialization point per partner: fn sees a private working copy of the
// partner's key set and its changes become visible only when fn returns nil.
type KeyStore interface {
	Mutate(ctx context.Context, partnerID id.PartnerID, fn func(tx *Tx) error) error
	ListByPartner(ctx context.Context, partnerID id.PartnerID) ([]*models.Key, error)
	FindByID(ctx context.Context, partnerID id.PartnerID, keyID id.KeyID) (*models.Key, error)
}

// Tx is the working view handed to a Mutate callback. All reads and writes
// act on staged copies; nothing leaks to concurrent readers before commit.
type Tx struct {
	staged   map[id.KeyID]*models.Key
	onCommit []func()
}

// Keys returns every staged key, unordered.
func (t *Tx) Keys() []*models.Key {
	out := make([]*models.Key, 0, len(t.staged))
	for _, k := range t.staged {
		out = append(out, k)
	}
	return out
}

// Find returns the staged key with the given ID, or nil.
func (t *Tx) Find(keyID id.KeyID) *models.Key {
	return t.staged[keyID]
}

// FindByFingerprint returns the staged key with the fingerprint, or nil.
func (t *Tx) FindByFingerprint(fingerprint string) *models.Key {
	for _, k := range t.staged {
		if k.Fingerprint == fingerprint {
			return k
		}
	}
	return nil
}

// CurrentPrimary returns the staged primary key, or nil when none is set.
func (t *Tx) CurrentPrimary() *models.Key {
	for _, k := range t.staged {
		if k.IsPrimary {
			return k
		}
	}
	return nil
}

// Put stages a new or updated key.
func (t *Tx) Put(k *models.Key) {
	t.staged[k.ID] = k
}

// OnCommit registers fn to run after the staged state is committed, still
// under the partner's write lock. Used to publish events in transition order.
func (t *Tx) OnCommit(fn func()) {
	t.onCommit = append(t.onCommit, fn)
}
