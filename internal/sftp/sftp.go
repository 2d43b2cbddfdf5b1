// Package sftp manages partner transfer-channel credentials: password
// metadata and rotation. Passwords are stored only as bcrypt hashes; the
// cleartext leaves the process exactly once, in the rotation response.
package sftp

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tradegate/internal/audit"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
	"tradegate/pkg/secrets"
)

// RotationMethod records how the current password was set.
type RotationMethod string

const (
	RotationManual RotationMethod = "manual"
	RotationAuto   RotationMethod = "auto"
)

// Credential is a partner's stored SFTP credential state.
type Credential struct {
	PartnerID      id.PartnerID
	PasswordHash   string
	LastRotatedAt  *time.Time
	RotationMethod RotationMethod
}

// Metadata is the client-visible credential state: everything except the
// password itself.
type Metadata struct {
	LastRotatedAt  *string `json:"lastRotatedAt"`
	RotationMethod *string `json:"rotationMethod"`
}

// AuditAppender persists rotation records.
type AuditAppender interface {
	Append(ctx context.Context, rec *audit.Record) error
}

// Store keeps credentials in memory for the demo environment.
type Store struct {
	mu          sync.RWMutex
	credentials map[id.PartnerID]*Credential
}

func NewStore() *Store {
	return &Store{credentials: make(map[id.PartnerID]*Credential)}
}

func (s *Store) Find(_ context.Context, partnerID id.PartnerID) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cred, ok := s.credentials[partnerID]; ok {
		dup := *cred
		if cred.LastRotatedAt != nil {
			t := *cred.LastRotatedAt
			dup.LastRotatedAt = &t
		}
		return &dup, nil
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "no sftp credential for partner")
}

func (s *Store) Upsert(_ context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[cred.PartnerID] = cred
	return nil
}

// Service rotates and reports on SFTP credentials.
type Service struct {
	store  *Store
	audit  AuditAppender
	logger *slog.Logger
	now    func() time.Time
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store *Store, auditAppender AuditAppender, opts ...Option) *Service {
	s := &Service{
		store:  store,
		audit:  auditAppender,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Metadata returns the partner's credential state. A partner that never
// rotated gets empty metadata, not an error.
func (s *Service) Metadata(ctx context.Context, partnerID id.PartnerID) (*Metadata, error) {
	cred, err := s.store.Find(ctx, partnerID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return &Metadata{}, nil
		}
		return nil, err
	}
	return credMetadata(cred), nil
}

// Actor identifies who rotated the credential, for the audit trail.
type Actor struct {
	UserID string
	Role   id.Role
}

// Rotate replaces the partner's SFTP password. Manual mode validates the
// supplied password against the complexity rule; auto mode generates one.
// Either way the cleartext is returned once and only the hash is stored.
func (s *Service) Rotate(ctx context.Context, partnerID id.PartnerID, actor Actor, mode, newPassword string) (password string, meta *Metadata, rec *audit.Record, err error) {
	var method RotationMethod
	switch strings.ToLower(mode) {
	case string(RotationManual):
		if newPassword == "" {
			return "", nil, nil, dErrors.New(dErrors.CodeValidation, "newPassword is required for manual rotation")
		}
		if !secrets.ValidPassword(newPassword) {
			return "", nil, nil, dErrors.New(dErrors.CodeValidation, "password does not meet complexity requirements")
		}
		password = newPassword
		method = RotationManual
	case string(RotationAuto):
		password, err = secrets.GeneratePassword()
		if err != nil {
			return "", nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "generate password")
		}
		method = RotationAuto
	default:
		return "", nil, nil, dErrors.New(dErrors.CodeValidation, "mode must be 'manual' or 'auto'")
	}

	hash, err := secrets.Hash(password)
	if err != nil {
		return "", nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}

	now := s.now().UTC()
	cred := &Credential{
		PartnerID:      partnerID,
		PasswordHash:   hash,
		LastRotatedAt:  &now,
		RotationMethod: method,
	}

	rec = &audit.Record{
		ID:          id.NewAuditID(),
		PartnerID:   partnerID,
		ActorUserID: actor.UserID,
		ActorRole:   actor.Role,
		Operation:   audit.OpSftpPasswordChange,
		Timestamp:   now,
		Success:     true,
		Metadata:    map[string]any{"rotationMethod": string(method)},
	}
	if err := s.audit.Append(ctx, rec); err != nil {
		return "", nil, nil, dErrors.Wrap(err, dErrors.CodeTransient, "record rotation")
	}
	if err := s.store.Upsert(ctx, cred); err != nil {
		return "", nil, nil, dErrors.Wrap(err, dErrors.CodeTransient, "store credential")
	}

	s.logger.InfoContext(ctx, "sftp password rotated",
		"partner_id", partnerID,
		"method", method,
	)
	return password, credMetadata(cred), rec, nil
}

func credMetadata(cred *Credential) *Metadata {
	meta := &Metadata{}
	if cred.LastRotatedAt != nil {
		v := cred.LastRotatedAt.UTC().Format(time.RFC3339Nano)
		meta.LastRotatedAt = &v
	}
	if cred.RotationMethod != "" {
		v := string(cred.RotationMethod)
		meta.RotationMethod = &v
	}
	return meta
}
