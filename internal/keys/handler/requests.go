package handler

import (
	"strings"
	"time"

	"tradegate/internal/keys/service"
	dErrors "tradegate/pkg/domain-errors"
)

// UploadKeyRequest registers an externally produced public key.
type UploadKeyRequest struct {
	PublicKeyArmored string `json:"publicKeyArmored"`
	ValidFrom        string `json:"validFrom,omitempty"`
	ValidTo          string `json:"validTo,omitempty"`
	MakePrimary      bool   `json:"makePrimary,omitempty"`
}

func (r *UploadKeyRequest) Normalize() {
	r.PublicKeyArmored = strings.TrimSpace(r.PublicKeyArmored)
}

func (r *UploadKeyRequest) Validate() error {
	if r.PublicKeyArmored == "" {
		return dErrors.New(dErrors.CodeValidation, "publicKeyArmored is required")
	}
	return nil
}

func (r *UploadKeyRequest) toCommand() (service.UploadKeyCommand, error) {
	validFrom, err := parseOptionalTime(r.ValidFrom, "validFrom")
	if err != nil {
		return service.UploadKeyCommand{}, err
	}
	validTo, err := parseOptionalTime(r.ValidTo, "validTo")
	if err != nil {
		return service.UploadKeyCommand{}, err
	}
	return service.UploadKeyCommand{
		PublicKeyArmored: r.PublicKeyArmored,
		ValidFrom:        validFrom,
		ValidTo:          validTo,
		MakePrimary:      r.MakePrimary,
	}, nil
}

// GenerateKeyRequest asks the server to create a key pair.
type GenerateKeyRequest struct {
	ValidFrom   string `json:"validFrom,omitempty"`
	ValidTo     string `json:"validTo,omitempty"`
	MakePrimary bool   `json:"makePrimary,omitempty"`
}

func (r *GenerateKeyRequest) toCommand() (service.GenerateKeyCommand, error) {
	validFrom, err := parseOptionalTime(r.ValidFrom, "validFrom")
	if err != nil {
		return service.GenerateKeyCommand{}, err
	}
	validTo, err := parseOptionalTime(r.ValidTo, "validTo")
	if err != nil {
		return service.GenerateKeyCommand{}, err
	}
	return service.GenerateKeyCommand{
		ValidFrom:   validFrom,
		ValidTo:     validTo,
		MakePrimary: r.MakePrimary,
	}, nil
}

// RevokeKeyRequest optionally documents why a key was revoked.
type RevokeKeyRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (r *RevokeKeyRequest) Normalize() {
	r.Reason = strings.TrimSpace(r.Reason)
}

// KeySummary is the wire shape of one key.
type KeySummary struct {
	KeyID       string  `json:"keyId"`
	Fingerprint string  `json:"fingerprint"`
	Algorithm   string  `json:"algorithm"`
	KeySize     int     `json:"keySize"`
	CreatedAt   string  `json:"createdAt"`
	ValidFrom   string  `json:"validFrom"`
	ValidTo     *string `json:"validTo,omitempty"`
	Status      string  `json:"status"`
	IsPrimary   bool    `json:"isPrimary"`
}

// GenerateKeyResponse carries the one-time private material with the summary.
type GenerateKeyResponse struct {
	PrivateKeyArmored string     `json:"privateKeyArmored"`
	Key               KeySummary `json:"key"`
}

// MutationResponse acknowledges revoke and promote calls.
type MutationResponse struct {
	Success bool   `json:"success"`
	AuditID string `json:"auditId,omitempty"`
	Message string `json:"message,omitempty"`
}

func parseOptionalTime(raw, name string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, name+" must be RFC 3339")
	}
	return &t, nil
}
