package service

import (
	"context"
	"log/slog"
	"time"

	"tradegate/internal/audit"
	"tradegate/internal/events"
	keymetrics "tradegate/internal/keys/metrics"
	"tradegate/internal/keys/models"
	"tradegate/internal/keys/store"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
)

// AuditAppender persists audit records. An append failure aborts the key
// transition it belongs to.
type AuditAppender interface {
	Append(ctx context.Context, rec *audit.Record) error
}

// EventPublisher delivers domain events to a partner's stream.
type EventPublisher interface {
	Publish(ctx context.Context, partnerID id.PartnerID, payload events.Payload) events.Envelope
}

// Actor identifies who performed a key operation, for the audit trail.
type Actor struct {
	UserID string
	Role   id.Role
}

// UploadKeyCommand carries the validated input for Upload.
type UploadKeyCommand struct {
	PublicKeyArmored string
	ValidFrom        *time.Time
	ValidTo          *time.Time
	MakePrimary      bool
}

// GenerateKeyCommand carries the validated input for Generate.
type GenerateKeyCommand struct {
	ValidFrom   *time.Time
	ValidTo     *time.Time
	MakePrimary bool
}

// GeneratedKey pairs the one-time private material with the stored key.
type GeneratedKey struct {
	PrivateKeyArmored string
	Key               *models.Key
}

// Service owns the key lifecycle state machine. Every transition runs inside
// the store's per-partner transaction: state change, audit append, and event
// publication commit together or not at all.
type Service struct {
	store   store.KeyStore
	audit   AuditAppender
	events  EventPublisher
	logger  *slog.Logger
	metrics *keymetrics.Metrics
	now     func() time.Time
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *keymetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(keyStore store.KeyStore, auditAppender AuditAppender, publisher EventPublisher, opts ...Option) *Service {
	s := &Service{
		store:  keyStore,
		audit:  auditAppender,
		events: publisher,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the partner's keys, newest first, with expiry folded in.
func (s *Service) List(ctx context.Context, partnerID id.PartnerID) ([]*models.Key, error) {
	keys, err := s.store.ListByPartner(ctx, partnerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransient, "list keys")
	}
	now := s.now()
	for _, k := range keys {
		k.Status = k.EffectiveStatus(now)
	}
	return keys, nil
}

// Upload registers an externally produced public key. With MakePrimary the
// current primary is demoted in the same transaction, so no observer ever
// sees zero or two primaries.
func (s *Service) Upload(ctx context.Context, partnerID id.PartnerID, actor Actor, cmd UploadKeyCommand) (*models.Key, *audit.Record, error) {
	if err := checkArmor(cmd.PublicKeyArmored); err != nil {
		return nil, nil, err
	}

	now := s.now().UTC()
	validFrom, validTo, err := resolveValidity(cmd.ValidFrom, cmd.ValidTo, now)
	if err != nil {
		return nil, nil, err
	}

	key := &models.Key{
		ID:               id.NewKeyID(),
		PartnerID:        partnerID,
		PublicKeyArmored: cmd.PublicKeyArmored,
		Fingerprint:      fingerprint(cmd.PublicKeyArmored),
		Algorithm:        generatedAlgorithm,
		KeySize:          generatedKeySize,
		CreatedAt:        now,
		ValidFrom:        validFrom,
		ValidTo:          validTo,
		Status:           statusAt(validFrom, now),
	}

	rec, err := s.insertKey(ctx, partnerID, actor, key, cmd.MakePrimary, audit.OpKeyUpload)
	if err != nil {
		return nil, nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementUploaded()
	}
	return key, rec, nil
}

// Generate creates an RSA-4096 pair server-side. The private half is returned
// here and nowhere else; only the public key is stored.
func (s *Service) Generate(ctx context.Context, partnerID id.PartnerID, actor Actor, cmd GenerateKeyCommand) (*GeneratedKey, *audit.Record, error) {
	now := s.now().UTC()
	validFrom, validTo, err := resolveValidity(cmd.ValidFrom, cmd.ValidTo, now)
	if err != nil {
		return nil, nil, err
	}

	// Key generation is slow; do it before taking the partner's write lock.
	privateArmored, publicArmored, err := generateKeyPair()
	if err != nil {
		return nil, nil, err
	}

	key := &models.Key{
		ID:               id.NewKeyID(),
		PartnerID:        partnerID,
		PublicKeyArmored: publicArmored,
		Fingerprint:      fingerprint(publicArmored),
		Algorithm:        generatedAlgorithm,
		KeySize:          generatedKeySize,
		CreatedAt:        now,
		ValidFrom:        validFrom,
		ValidTo:          validTo,
		Status:           statusAt(validFrom, now),
	}

	rec, err := s.insertKey(ctx, partnerID, actor, key, cmd.MakePrimary, audit.OpKeyGenerate)
	if err != nil {
		return nil, nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementGenerated()
	}
	return &GeneratedKey{PrivateKeyArmored: privateArmored, Key: key}, rec, nil
}

func (s *Service) insertKey(ctx context.Context, partnerID id.PartnerID, actor Actor, key *models.Key, makePrimary bool, op audit.Operation) (*audit.Record, error) {
	if makePrimary && key.Status != models.StatusActive {
		return nil, dErrors.New(dErrors.CodeConflict, "a key pending activation cannot be made primary")
	}

	var rec *audit.Record
	err := s.store.Mutate(ctx, partnerID, func(tx *store.Tx) error {
		if existing := tx.FindByFingerprint(key.Fingerprint); existing != nil {
			return dErrors.New(dErrors.CodeConflict, "a key with this fingerprint already exists")
		}

		var previousPrimary *models.Key
		if makePrimary {
			if previousPrimary = tx.CurrentPrimary(); previousPrimary != nil {
				previousPrimary.IsPrimary = false
				tx.Put(previousPrimary)
			}
			key.IsPrimary = true
		}
		tx.Put(key)

		rec = s.newRecord(partnerID, actor, op, map[string]any{
			"keyId":       key.ID.String(),
			"fingerprint": key.Fingerprint,
		})
		if err := s.audit.Append(ctx, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTransient, "append audit record")
		}

		if makePrimary {
			promoted := events.KeyPromoted{KeyID: key.ID.String()}
			if previousPrimary != nil {
				promoted.PreviousPrimaryKeyID = previousPrimary.ID.String()
			}
			tx.OnCommit(func() { s.events.Publish(ctx, partnerID, promoted) })
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "key registered",
		"partner_id", partnerID,
		"key_id", key.ID,
		"operation", op,
		"primary", key.IsPrimary,
	)
	return rec, nil
}

// Promote makes an Active key the partner's primary. Promoting the key that
// is already primary is a no-op: nil record, no audit entry, no event.
func (s *Service) Promote(ctx context.Context, partnerID id.PartnerID, keyID id.KeyID, actor Actor) (*audit.Record, error) {
	var (
		rec  *audit.Record
		noop bool
	)
	err := s.store.Mutate(ctx, partnerID, func(tx *store.Tx) error {
		key := tx.Find(keyID)
		if key == nil {
			return store.ErrNotFound
		}
		if key.IsPrimary {
			noop = true
			return nil
		}
		if !key.Usable(s.now()) {
			return dErrors.New(dErrors.CodeConflict, "only active keys can be promoted to primary")
		}

		var previousPrimaryID string
		if current := tx.CurrentPrimary(); current != nil {
			current.IsPrimary = false
			tx.Put(current)
			previousPrimaryID = current.ID.String()
		}
		key.IsPrimary = true
		tx.Put(key)

		rec = s.newRecord(partnerID, actor, audit.OpKeyPromote, map[string]any{
			"keyId":                keyID.String(),
			"previousPrimaryKeyId": previousPrimaryID,
		})
		if err := s.audit.Append(ctx, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTransient, "append audit record")
		}

		tx.OnCommit(func() {
			s.events.Publish(ctx, partnerID, events.KeyPromoted{
				KeyID:                keyID.String(),
				PreviousPrimaryKeyID: previousPrimaryID,
			})
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if noop {
		return nil, nil
	}

	if s.metrics != nil {
		s.metrics.IncrementPromoted()
	}
	s.logger.InfoContext(ctx, "key promoted", "partner_id", partnerID, "key_id", keyID)
	return rec, nil
}

// Revoke terminates a key. Revoking the primary automatically promotes the
// newest-created usable non-primary key; when no candidate exists the partner
// is left without a primary, which is a valid state.
func (s *Service) Revoke(ctx context.Context, partnerID id.PartnerID, keyID id.KeyID, actor Actor, reason string) (*audit.Record, error) {
	var (
		rec      *audit.Record
		failover bool
	)
	err := s.store.Mutate(ctx, partnerID, func(tx *store.Tx) error {
		key := tx.Find(keyID)
		if key == nil {
			return store.ErrNotFound
		}
		if key.Status == models.StatusRevoked {
			return dErrors.New(dErrors.CodeConflict, "key is already revoked")
		}

		now := s.now().UTC()
		wasPrimary := key.IsPrimary
		key.Status = models.StatusRevoked
		key.RevokedAt = &now
		key.IsPrimary = false
		tx.Put(key)

		var failoverKey *models.Key
		if wasPrimary {
			if failoverKey = newestUsable(tx, now); failoverKey != nil {
				failoverKey.IsPrimary = true
				tx.Put(failoverKey)
				failover = true
			}
		}

		rec = s.newRecord(partnerID, actor, audit.OpKeyRevoke, map[string]any{
			"keyId":  keyID.String(),
			"reason": reason,
		})
		if err := s.audit.Append(ctx, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTransient, "append audit record")
		}

		tx.OnCommit(func() {
			s.events.Publish(ctx, partnerID, events.KeyRevoked{KeyID: keyID.String()})
			if failoverKey != nil {
				s.events.Publish(ctx, partnerID, events.KeyPromoted{
					KeyID:                failoverKey.ID.String(),
					PreviousPrimaryKeyID: keyID.String(),
				})
			}
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementRevoked()
		if failover {
			s.metrics.IncrementFailover()
		}
	}
	s.logger.InfoContext(ctx, "key revoked",
		"partner_id", partnerID,
		"key_id", keyID,
		"failover", failover,
	)
	return rec, nil
}

func (s *Service) newRecord(partnerID id.PartnerID, actor Actor, op audit.Operation, metadata map[string]any) *audit.Record {
	return &audit.Record{
		ID:          id.NewAuditID(),
		PartnerID:   partnerID,
		ActorUserID: actor.UserID,
		ActorRole:   actor.Role,
		Operation:   op,
		Timestamp:   s.now().UTC(),
		Success:     true,
		Metadata:    metadata,
	}
}

func newestUsable(tx *store.Tx, now time.Time) *models.Key {
	var newest *models.Key
	for _, k := range tx.Keys() {
		if k.IsPrimary || !k.Usable(now) {
			continue
		}
		if newest == nil || k.CreatedAt.After(newest.CreatedAt) {
			newest = k
		}
	}
	return newest
}

func resolveValidity(validFrom, validTo *time.Time, now time.Time) (time.Time, *time.Time, error) {
	from := now
	if validFrom != nil {
		from = validFrom.UTC()
	}
	if validTo != nil {
		to := validTo.UTC()
		if !to.After(from) {
			return time.Time{}, nil, dErrors.New(dErrors.CodeValidation, "validTo must be after validFrom")
		}
		return from, &to, nil
	}
	return from, nil, nil
}

func statusAt(validFrom, now time.Time) models.Status {
	if validFrom.After(now) {
		return models.StatusPendingActivation
	}
	return models.StatusActive
}
