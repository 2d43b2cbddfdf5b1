package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
)

// SessionClaims are the JWT claims carried by a session token.
type SessionClaims struct {
	UserID    string `json:"userId"`
	PartnerID string `json:"partnerId"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies session tokens.
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

func NewTokenService(signingKey string, ttl time.Duration) *TokenService {
	return &TokenService{signingKey: []byte(signingKey), ttl: ttl, now: time.Now}
}

// Issue signs a session token. Returns the token, its jti, and the expiry.
func (s *TokenService) Issue(userID string, partnerID id.PartnerID, role id.Role) (token, jti string, expiresAt time.Time, err error) {
	now := s.now().UTC()
	expiresAt = now.Add(s.ttl)
	jti = uuid.NewString()

	claims := SessionClaims{
		UserID:    userID,
		PartnerID: partnerID.String(),
		Role:      role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Subject:   userID,
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "sign session token")
	}
	return token, jti, expiresAt, nil
}

// Verify parses and validates a session token's signature and expiry.
func (s *TokenService) Verify(token string) (*SessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid session token")
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	return claims, nil
}
