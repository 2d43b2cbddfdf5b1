package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tradegate/internal/audit"
	"tradegate/internal/platform/middleware"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
)

// AuditAppender persists login and logout records.
type AuditAppender interface {
	Append(ctx context.Context, rec *audit.Record) error
}

// LoginCommand is the demo login input: the caller declares who they are.
// A real identity provider would replace this service wholesale.
type LoginCommand struct {
	UserID    string
	PartnerID id.PartnerID
	Role      id.Role
}

// Session is the issued session returned to the client.
type Session struct {
	Token     string
	UserID    string
	PartnerID id.PartnerID
	Role      id.Role
	ExpiresAt time.Time
}

// Service issues, resolves, and revokes session tokens. It satisfies
// middleware.Authenticator.
type Service struct {
	tokens *TokenService
	audit  AuditAppender
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.tokens.now = now
	}
}

func NewService(tokens *TokenService, auditAppender AuditAppender, opts ...Option) *Service {
	s := &Service{
		tokens:  tokens,
		audit:   auditAppender,
		logger:  slog.Default(),
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login validates the declared identity, issues a session token, and records
// the login with a device summary in the audit trail.
func (s *Service) Login(ctx context.Context, cmd LoginCommand, userAgent string) (*Session, error) {
	if cmd.UserID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "userId is required")
	}
	if cmd.PartnerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "partnerId is required")
	}
	if !cmd.Role.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "role must be PartnerUser, PartnerAdmin, or InternalSupport")
	}

	token, jti, expiresAt, err := s.tokens.Issue(cmd.UserID, cmd.PartnerID, cmd.Role)
	if err != nil {
		return nil, err
	}

	rec := &audit.Record{
		ID:          id.NewAuditID(),
		PartnerID:   cmd.PartnerID,
		ActorUserID: cmd.UserID,
		ActorRole:   cmd.Role,
		Operation:   audit.OpLogin,
		Timestamp:   s.now().UTC(),
		Success:     true,
		Metadata: map[string]any{
			"sessionId": jti,
			"device":    deviceSummary(userAgent),
		},
	}
	if err := s.audit.Append(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransient, "record login")
	}

	s.logger.InfoContext(ctx, "session issued",
		"user_id", cmd.UserID,
		"partner_id", cmd.PartnerID,
		"role", cmd.Role,
	)
	return &Session{
		Token:     token,
		UserID:    cmd.UserID,
		PartnerID: cmd.PartnerID,
		Role:      cmd.Role,
		ExpiresAt: expiresAt,
	}, nil
}

// Logout revokes the session token. Unknown or expired tokens are rejected
// rather than silently accepted.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.revoked[claims.ID] = claims.ExpiresAt.Time
	s.mu.Unlock()

	partnerID, err := id.ParsePartnerID(claims.PartnerID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "session carries malformed partner id")
	}

	rec := &audit.Record{
		ID:          id.NewAuditID(),
		PartnerID:   partnerID,
		ActorUserID: claims.UserID,
		ActorRole:   id.Role(claims.Role),
		Operation:   audit.OpLogout,
		Timestamp:   s.now().UTC(),
		Success:     true,
		Metadata:    map[string]any{"sessionId": claims.ID},
	}
	if err := s.audit.Append(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "logout not recorded", "error", err, "user_id", claims.UserID)
	}
	return nil
}

// Resolve validates a session token and returns the caller's identity.
// Implements middleware.Authenticator.
func (s *Service) Resolve(_ context.Context, token string) (*middleware.Identity, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, isRevoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if isRevoked {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session has been revoked")
	}

	partnerID, err := id.ParsePartnerID(claims.PartnerID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session carries malformed partner id")
	}
	role := id.Role(claims.Role)
	if !role.Valid() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session carries unknown role")
	}

	return &middleware.Identity{
		UserID:    claims.UserID,
		PartnerID: partnerID,
		Role:      role,
	}, nil
}

// PruneRevoked drops revocation entries for tokens that have expired anyway.
func (s *Service) PruneRevoked() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for jti, expiresAt := range s.revoked {
		if now.After(expiresAt) {
			delete(s.revoked, jti)
			pruned++
		}
	}
	return pruned
}

// StartCleanup prunes the revocation list on the given interval until ctx is
// cancelled.
func (s *Service) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.PruneRevoked(); n > 0 {
				s.logger.Debug("pruned revoked sessions", "count", n)
			}
		}
	}
}
