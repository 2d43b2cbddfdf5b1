package store

import (
	"context"
	"sort"
	"sync"

	"tradegate/internal/keys/models"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
)

// ErrNotFound is returned when a key cannot be located in the caller's scope.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "key not found")

// InMemoryKeyStore stores keys in memory for the demo environment.
type InMemoryKeyStore struct {
	mu       sync.RWMutex
	partners map[id.PartnerID]*partnerKeys
}

type partnerKeys struct {
	mu   sync.Mutex
	keys map[id.KeyID]*models.Key
}

func NewInMemoryKeyStore() *InMemoryKeyStore {
	return &InMemoryKeyStore{partners: make(map[id.PartnerID]*partnerKeys)}
}

// Mutate runs fn against a deep copy of the partner's key set while holding
// that partner's write lock. The copy replaces the live set only when fn
// returns nil; commit hooks run before the lock is released so concurrent
// transitions publish their events in commit order.
func (s *InMemoryKeyStore) Mutate(ctx context.Context, partnerID id.PartnerID, fn func(tx *Tx) error) error {
	pk := s.partner(partnerID)

	pk.mu.Lock()
	defer pk.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransient, "key mutation cancelled")
	}

	tx := &Tx{staged: make(map[id.KeyID]*models.Key, len(pk.keys))}
	for keyID, k := range pk.keys {
		tx.staged[keyID] = k.Clone()
	}

	if err := fn(tx); err != nil {
		return err
	}

	pk.keys = tx.staged
	for _, hook := range tx.onCommit {
		hook()
	}
	return nil
}

func (s *InMemoryKeyStore) ListByPartner(_ context.Context, partnerID id.PartnerID) ([]*models.Key, error) {
	pk := s.partner(partnerID)

	pk.mu.Lock()
	defer pk.mu.Unlock()

	out := make([]*models.Key, 0, len(pk.keys))
	for _, k := range pk.keys {
		out = append(out, k.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryKeyStore) FindByID(_ context.Context, partnerID id.PartnerID, keyID id.KeyID) (*models.Key, error) {
	pk := s.partner(partnerID)

	pk.mu.Lock()
	defer pk.mu.Unlock()

	if k, ok := pk.keys[keyID]; ok {
		return k.Clone(), nil
	}
	return nil, ErrNotFound
}

func (s *InMemoryKeyStore) partner(partnerID id.PartnerID) *partnerKeys {
	s.mu.RLock()
	pk, ok := s.partners[partnerID]
	s.mu.RUnlock()
	if ok {
		return pk
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if pk, ok = s.partners[partnerID]; ok {
		return pk
	}
	pk = &partnerKeys{keys: make(map[id.KeyID]*models.Key)}
	s.partners[partnerID] = pk
	return pk
}
