package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/mock/gomock"

	"tradegate/internal/audit"
	"tradegate/internal/events"
	"tradegate/internal/keys/models"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
)

var testActor = Actor{UserID: "admin-1", Role: id.RolePartnerAdmin}

func armoredKey(seed string) string {
	return fmt.Sprintf("-----BEGIN PGP PUBLIC KEY BLOCK-----\n%s\n-----END PGP PUBLIC KEY BLOCK-----", seed)
}

// uploadKey is a helper expecting the audit append to succeed; event
// expectations stay with the individual test.
func (s *ServiceSuite) uploadKey(partnerID id.PartnerID, seed string, makePrimary bool) *models.Key {
	s.T().Helper()
	s.mockAudit.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
	key, rec, err := s.service.Upload(context.Background(), partnerID, testActor, UploadKeyCommand{
		PublicKeyArmored: armoredKey(seed),
		MakePrimary:      makePrimary,
	})
	s.Require().NoError(err)
	s.Require().NotNil(rec)
	return key
}

func (s *ServiceSuite) primaryCount(partnerID id.PartnerID) int {
	s.T().Helper()
	keys, err := s.service.List(context.Background(), partnerID)
	s.Require().NoError(err)
	n := 0
	for _, k := range keys {
		if k.IsPrimary {
			s.Equal(models.StatusActive, k.Status, "primary key must be active")
			n++
		}
	}
	return n
}

func (s *ServiceSuite) TestUpload_Validation() {
	ctx := context.Background()
	partnerID := id.NewPartnerID()

	s.Run("Given malformed armor When upload Then validation error", func() {
		_, _, err := s.service.Upload(ctx, partnerID, testActor, UploadKeyCommand{
			PublicKeyArmored: "ssh-rsa AAAA not a pgp key",
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("Given validTo before validFrom When upload Then validation error", func() {
		past := s.now.Add(-time.Hour)
		_, _, err := s.service.Upload(ctx, partnerID, testActor, UploadKeyCommand{
			PublicKeyArmored: armoredKey("k"),
			ValidTo:          &past,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("Given duplicate fingerprint When upload Then conflict", func() {
		s.uploadKey(partnerID, "dup", false)
		_, _, err := s.service.Upload(ctx, partnerID, testActor, UploadKeyCommand{
			PublicKeyArmored: armoredKey("dup"),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestUpload_PendingActivation() {
	ctx := context.Background()
	partnerID := id.NewPartnerID()
	future := s.now.Add(24 * time.Hour)

	s.mockAudit.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
	key, _, err := s.service.Upload(ctx, partnerID, testActor, UploadKeyCommand{
		PublicKeyArmored: armoredKey("future"),
		ValidFrom:        &future,
	})
	s.Require().NoError(err)
	s.Equal(models.StatusPendingActivation, key.Status)

	s.Run("Given pending key When upload makePrimary Then conflict", func() {
		_, _, err := s.service.Upload(ctx, partnerID, testActor, UploadKeyCommand{
			PublicKeyArmored: armoredKey("future2"),
			ValidFrom:        &future,
			MakePrimary:      true,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

// Uploading A primary then B primary must leave exactly B primary and emit
// one key.promoted per promotion, each naming the demoted predecessor.
func (s *ServiceSuite) TestUpload_MakePrimaryDemotesPrevious() {
	partnerID := id.NewPartnerID()

	s.mockEvents.EXPECT().
		Publish(gomock.Any(), partnerID, gomock.AssignableToTypeOf(events.KeyPromoted{})).
		Return(events.Envelope{})
	keyA := s.uploadKey(partnerID, "a", true)

	s.advance(time.Minute)

	// The second promotion's payload depends on the generated key id, so
	// capture it instead of matching an exact value.
	var promoted events.KeyPromoted
	s.mockEvents.EXPECT().
		Publish(gomock.Any(), partnerID, gomock.AssignableToTypeOf(events.KeyPromoted{})).
		DoAndReturn(func(_ context.Context, _ id.PartnerID, payload events.Payload) events.Envelope {
			promoted = payload.(events.KeyPromoted)
			return events.Envelope{}
		})
	keyB := s.uploadKey(partnerID, "b", true)

	s.Equal(keyB.ID.String(), promoted.KeyID)
	s.Equal(keyA.ID.String(), promoted.PreviousPrimaryKeyID)

	keys, err := s.service.List(context.Background(), partnerID)
	s.Require().NoError(err)
	s.Len(keys, 2)
	for _, k := range keys {
		s.Equal(k.ID == keyB.ID, k.IsPrimary)
	}
	s.Equal(1, s.primaryCount(partnerID))
}

func (s *ServiceSuite) TestGenerate_PrivateMaterialNotStored() {
	ctx := context.Background()
	partnerID := id.NewPartnerID()

	s.mockAudit.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
	generated, rec, err := s.service.Generate(ctx, partnerID, testActor, GenerateKeyCommand{})
	s.Require().NoError(err)
	s.Require().NotNil(rec)
	s.Equal(audit.OpKeyGenerate, rec.Operation)

	s.Contains(generated.PrivateKeyArmored, "BEGIN PGP PRIVATE KEY BLOCK")
	s.Equal("RSA", generated.Key.Algorithm)
	s.Equal(4096, generated.Key.KeySize)

	keys, err := s.service.List(ctx, partnerID)
	s.Require().NoError(err)
	s.Require().Len(keys, 1)
	s.NotContains(keys[0].PublicKeyArmored, "PRIVATE")
	s.Equal(models.StatusActive, keys[0].Status)
}

func (s *ServiceSuite) TestPromote() {
	ctx := context.Background()
	partnerID := id.NewPartnerID()

	s.Run("Given unknown key When promote Then not found", func() {
		_, err := s.service.Promote(ctx, partnerID, id.NewKeyID(), testActor)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	keyA := s.uploadKey(partnerID, "a", false)
	s.advance(time.Minute)
	keyB := s.uploadKey(partnerID, "b", false)

	s.Run("Given another partner's session When promote Then not found", func() {
		_, err := s.service.Promote(ctx, id.NewPartnerID(), keyA.ID, testActor)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("Given non-primary active key When promote Then promoted and event published", func() {
		s.mockAudit.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
		s.mockEvents.EXPECT().
			Publish(gomock.Any(), partnerID, gomock.Eq(events.KeyPromoted{KeyID: keyA.ID.String()})).
			Return(events.Envelope{})

		rec, err := s.service.Promote(ctx, partnerID, keyA.ID, testActor)
		s.Require().NoError(err)
		s.Require().NotNil(rec)
		s.Equal(audit.OpKeyPromote, rec.Operation)
		s.Equal(1, s.primaryCount(partnerID))
	})

	s.Run("Given already-primary key When promote Then no-op without audit or event", func() {
		rec, err := s.service.Promote(ctx, partnerID, keyA.ID, testActor)
		s.Require().NoError(err)
		s.Nil(rec)
	})

	s.Run("Given a different active key When promote Then previous primary demoted", func() {
		s.mockAudit.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
		s.mockEvents.EXPECT().
			Publish(gomock.Any(), partnerID, gomock.Eq(events.KeyPromoted{
				KeyID:                keyB.ID.String(),
				PreviousPrimaryKeyID: keyA.ID.String(),
			})).
			Return(events.Envelope{})

		rec, err := s.service.Promote(ctx, partnerID, keyB.ID, testActor)
		s.Require().NoError(err)
		s.Require().NotNil(rec)
		s.Equal(1, s.primaryCount(partnerID))
	})

	s.Run("Given revoked key When promote Then conflict", func() {
		s.mockAudit.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
		s.mockEvents.EXPECT().
			Publish(gomock.Any(), partnerID, gomock.AssignableToTypeOf(events.KeyRevoked{})).
			Return(events.Envelope{})
		_, err := s.service.Revoke(ctx, partnerID, keyA.ID, testActor, "rotated out")
		s.Require().NoError(err)

		_, err = s.service.Promote(ctx, partnerID, keyA.ID, testActor)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestRevoke_FailoverPromotesNewest() {
	ctx := context.Background()
	partnerID := id.NewPartnerID()

	s.mockEvents.EXPECT().
		Publish(gomock.Any(), partnerID, gomock.AssignableToTypeOf(events.KeyPromoted{})).
		Return(events.Envelope{})
	keyA := s.uploadKey(partnerID, "a", true)
	s.advance(time.Minute)
	keyB := s.uploadKey(partnerID, "b", false)
	s.advance(time.Minute)
	keyC := s.uploadKey(partnerID, "c", false)

	// Revoking primary A fails over to C, the newest active non-primary.
	s.mockAudit.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
	revoked := s.mockEvents.EXPECT().
		Publish(gomock.Any(), partnerID, gomock.Eq(events.KeyRevoked{KeyID: keyA.ID.String()})).
		Return(events.Envelope{})
	s.mockEvents.EXPECT().
		Publish(gomock.Any(), partnerID, gomock.Eq(events.KeyPromoted{
			KeyID:                keyC.ID.String(),
			PreviousPrimaryKeyID: keyA.ID.String(),
		})).
		Return(events.Envelope{}).
		After(revoked)

	rec, err := s.service.Revoke(ctx, partnerID, keyA.ID, testActor, "compromised")
	s.Require().NoError(err)
	s.Equal(audit.OpKeyRevoke, rec.Operation)
	s.Equal("compromised", rec.Metadata["reason"])

	keys, err := s.service.List(ctx, partnerID)
	s.Require().NoError(err)
	for _, k := range keys {
		switch k.ID {
		case keyA.ID:
			s.Equal(models.StatusRevoked, k.Status)
			s.False(k.IsPrimary)
			s.NotNil(k.RevokedAt)
		case keyB.ID:
			s.False(k.IsPrimary)
		case keyC.ID:
			s.True(k.IsPrimary)
		}
	}

	s.Run("Given failover target When promote Then no-op", func() {
		rec, err := s.service.Promote(ctx, partnerID, keyC.ID, testActor)
		s.Require().NoError(err)
		s.Nil(rec)
	})
}

func (s *ServiceSuite) TestRevoke_Preconditions() {
	ctx := context.Background()
	partnerID := id.NewPartnerID()

	s.Run("Given unknown key When revoke Then not found", func() {
		_, err := s.service.Revoke(ctx, partnerID, id.NewKeyID(), testActor, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	key := s.uploadKey(partnerID, "only", false)
	s.mockAudit.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
	s.mockEvents.EXPECT().
		Publish(gomock.Any(), partnerID, gomock.AssignableToTypeOf(events.KeyRevoked{})).
		Return(events.Envelope{})
	_, err := s.service.Revoke(ctx, partnerID, key.ID, testActor, "")
	s.Require().NoError(err)

	s.Run("Given already revoked key When revoke Then conflict", func() {
		_, err := s.service.Revoke(ctx, partnerID, key.ID, testActor, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

// Revoking the last primary with no candidates leaves the partner without a
// primary, which is valid, not an error.
func (s *ServiceSuite) TestRevoke_NoFailoverCandidate() {
	ctx := context.Background()
	partnerID := id.NewPartnerID()

	s.mockEvents.EXPECT().
		Publish(gomock.Any(), partnerID, gomock.AssignableToTypeOf(events.KeyPromoted{})).
		Return(events.Envelope{})
	key := s.uploadKey(partnerID, "solo", true)

	s.mockAudit.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
	s.mockEvents.EXPECT().
		Publish(gomock.Any(), partnerID, gomock.Eq(events.KeyRevoked{KeyID: key.ID.String()})).
		Return(events.Envelope{})

	_, err := s.service.Revoke(ctx, partnerID, key.ID, testActor, "")
	s.Require().NoError(err)
	s.Equal(0, s.primaryCount(partnerID))
}

// An audit failure must abort the whole transition: no state change, no event.
func (s *ServiceSuite) TestRevoke_AuditFailureAborts() {
	ctx := context.Background()
	partnerID := id.NewPartnerID()

	s.mockEvents.EXPECT().
		Publish(gomock.Any(), partnerID, gomock.AssignableToTypeOf(events.KeyPromoted{})).
		Return(events.Envelope{})
	key := s.uploadKey(partnerID, "audited", true)

	s.mockAudit.EXPECT().
		Append(gomock.Any(), gomock.Any()).
		Return(dErrors.New(dErrors.CodeTransient, "audit sink down"))

	_, err := s.service.Revoke(ctx, partnerID, key.ID, testActor, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTransient))

	keys, listErr := s.service.List(ctx, partnerID)
	s.Require().NoError(listErr)
	s.Require().Len(keys, 1)
	s.Equal(models.StatusActive, keys[0].Status)
	s.True(keys[0].IsPrimary)
}

func (s *ServiceSuite) TestList_LazyExpiry() {
	ctx := context.Background()
	partnerID := id.NewPartnerID()

	soon := s.now.Add(time.Hour)
	s.mockAudit.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
	_, _, err := s.service.Upload(ctx, partnerID, testActor, UploadKeyCommand{
		PublicKeyArmored: armoredKey("expiring"),
		ValidTo:          &soon,
	})
	s.Require().NoError(err)

	keys, err := s.service.List(ctx, partnerID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, keys[0].Status)

	s.advance(2 * time.Hour)
	keys, err = s.service.List(ctx, partnerID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, keys[0].Status)

	s.Run("Given expired key When promote Then conflict", func() {
		_, err := s.service.Promote(ctx, partnerID, keys[0].ID, testActor)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}
