// Package seeder loads demo partners with keys, credentials, and transfer
// history so a fresh in-memory deployment has something to show.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"tradegate/internal/files"
	keyservice "tradegate/internal/keys/service"
	"tradegate/internal/sftp"
	id "tradegate/pkg/domain"
)

// Fixed partner ids so demo sessions can be minted against known partners.
var demoPartnerIDs = []string{
	"11111111-1111-1111-1111-111111111111",
	"22222222-2222-2222-2222-222222222222",
	"33333333-3333-3333-3333-333333333333",
}

var demoDocTypes = []string{"ORDERS", "INVOIC", "DESADV", "ORDRSP"}

var demoErrorCodes = []string{"ERR_PARSE", "ERR_ACK", "ERR_SIZE", "ERR_DUPLICATE"}

const transfersPerPartner = 40

// Seeder populates the in-memory stores through the regular services so the
// seeded state satisfies the same invariants as user-driven changes.
type Seeder struct {
	keys      *keyservice.Service
	sftp      *sftp.Service
	transfers *files.Service
	logger    *slog.Logger
	rand      *rand.Rand
	now       func() time.Time
}

func New(keys *keyservice.Service, credentials *sftp.Service, transfers *files.Service, logger *slog.Logger) *Seeder {
	return &Seeder{
		keys:      keys,
		sftp:      credentials,
		transfers: transfers,
		logger:    logger,
		rand:      rand.New(rand.NewSource(1)),
		now:       time.Now,
	}
}

// Run seeds every demo partner. Errors abort the whole seed; a half-seeded
// demo set is worse than none.
func (s *Seeder) Run(ctx context.Context) error {
	actor := keyservice.Actor{UserID: "seed", Role: id.RoleInternalSupport}

	for i, raw := range demoPartnerIDs {
		partnerID, err := id.ParsePartnerID(raw)
		if err != nil {
			return fmt.Errorf("demo partner id %q: %w", raw, err)
		}

		if err := s.seedKeys(ctx, partnerID, actor, i); err != nil {
			return fmt.Errorf("seed keys for %s: %w", partnerID, err)
		}
		if err := s.seedCredential(ctx, partnerID); err != nil {
			return fmt.Errorf("seed credential for %s: %w", partnerID, err)
		}
		if err := s.seedTransfers(ctx, partnerID); err != nil {
			return fmt.Errorf("seed transfers for %s: %w", partnerID, err)
		}
	}

	s.logger.InfoContext(ctx, "demo data seeded",
		"partners", len(demoPartnerIDs),
		"transfers_per_partner", transfersPerPartner,
	)
	return nil
}

// seedKeys uploads a primary key and a standby per partner.
func (s *Seeder) seedKeys(ctx context.Context, partnerID id.PartnerID, actor keyservice.Actor, ordinal int) error {
	primary := demoArmoredKey(fmt.Sprintf("primary-%d", ordinal))
	if _, _, err := s.keys.Upload(ctx, partnerID, actor, keyservice.UploadKeyCommand{
		PublicKeyArmored: primary,
		MakePrimary:      true,
	}); err != nil {
		return err
	}

	standby := demoArmoredKey(fmt.Sprintf("standby-%d", ordinal))
	_, _, err := s.keys.Upload(ctx, partnerID, actor, keyservice.UploadKeyCommand{
		PublicKeyArmored: standby,
	})
	return err
}

func (s *Seeder) seedCredential(ctx context.Context, partnerID id.PartnerID) error {
	actor := sftp.Actor{UserID: "seed", Role: id.RoleInternalSupport}
	_, _, _, err := s.sftp.Rotate(ctx, partnerID, actor, "auto", "")
	return err
}

// seedTransfers writes a 48h history with a mix of terminal and in-flight
// statuses so dashboards have material to aggregate.
func (s *Seeder) seedTransfers(ctx context.Context, partnerID id.PartnerID) error {
	for i := 0; i < transfersPerPartner; i++ {
		direction := files.DirectionInbound
		if s.rand.Float64() > 0.6 {
			direction = files.DirectionOutbound
		}

		event, err := s.transfers.Record(ctx, partnerID, files.RecordCommand{
			Direction:     direction,
			DocType:       demoDocTypes[s.rand.Intn(len(demoDocTypes))],
			SizeBytes:     int64(s.rand.Intn(20*1024*1024) + 512),
			CorrelationID: fmt.Sprintf("seed-%s-%d", partnerID, i),
			ReceivedAt:    s.now().Add(-time.Duration(s.rand.Intn(48*60)) * time.Minute),
		})
		if err != nil {
			return err
		}

		// Roughly: 70% success, 15% failed, rest stay pending or processing.
		roll := s.rand.Float64()
		var update *files.StatusUpdate
		switch {
		case roll < 0.70:
			update = &files.StatusUpdate{NewStatus: files.StatusSuccess}
		case roll < 0.85:
			update = &files.StatusUpdate{
				NewStatus:    files.StatusFailed,
				ErrorCode:    demoErrorCodes[s.rand.Intn(len(demoErrorCodes))],
				ErrorMessage: "seeded failure",
			}
		case roll < 0.95:
			update = &files.StatusUpdate{NewStatus: files.StatusProcessing}
		}
		if update == nil {
			continue
		}
		if _, err := s.transfers.UpdateStatus(ctx, partnerID, event.FileID, *update); err != nil {
			return err
		}
	}
	return nil
}

// demoArmoredKey fabricates a syntactically valid armored block. The portal
// only sanity-checks armor framing, so demo keys need no real key material.
func demoArmoredKey(label string) string {
	return fmt.Sprintf("-----BEGIN PGP PUBLIC KEY BLOCK-----\n\ndemo-key-material-%s\n-----END PGP PUBLIC KEY BLOCK-----", label)
}
