package sftp

import (
	"context"
	"testing"
	"time"

	"tradegate/internal/audit"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
	"tradegate/pkg/secrets"
)

type auditSink struct {
	records []*audit.Record
	err     error
}

func (a *auditSink) Append(_ context.Context, rec *audit.Record) error {
	if a.err != nil {
		return a.err
	}
	a.records = append(a.records, rec)
	return nil
}

var actor = Actor{UserID: "admin-1", Role: id.RolePartnerAdmin}

func TestMetadataBeforeFirstRotation(t *testing.T) {
	svc := NewService(NewStore(), &auditSink{})

	meta, err := svc.Metadata(context.Background(), id.NewPartnerID())
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.LastRotatedAt != nil || meta.RotationMethod != nil {
		t.Fatalf("expected empty metadata, got %+v", meta)
	}
}

func TestRotateManual(t *testing.T) {
	sink := &auditSink{}
	store := NewStore()
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	svc := NewService(store, sink, WithClock(func() time.Time { return now }))
	partnerID := id.NewPartnerID()

	const good = "Str0ng!Passw0rd#2026"
	password, meta, rec, err := svc.Rotate(context.Background(), partnerID, actor, "manual", good)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if password != good {
		t.Fatalf("password = %q", password)
	}
	if meta.RotationMethod == nil || *meta.RotationMethod != "manual" {
		t.Fatalf("metadata = %+v", meta)
	}
	if rec.Operation != audit.OpSftpPasswordChange {
		t.Fatalf("audit op = %s", rec.Operation)
	}

	cred, err := store.Find(context.Background(), partnerID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if cred.PasswordHash == good {
		t.Fatal("password stored in cleartext")
	}
	if err := secrets.Verify(good, cred.PasswordHash); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestRotateManualValidation(t *testing.T) {
	svc := NewService(NewStore(), &auditSink{})
	partnerID := id.NewPartnerID()

	cases := []struct {
		name, mode, password string
	}{
		{"missing password", "manual", ""},
		{"too short", "manual", "Ab1!short"},
		{"no special char", "manual", "Abcdefgh12345678xyz"},
		{"unknown mode", "rotate-now", "whatever"},
	}
	for _, tc := range cases {
		_, _, _, err := svc.Rotate(context.Background(), partnerID, actor, tc.mode, tc.password)
		if !dErrors.HasCode(err, dErrors.CodeValidation) {
			t.Fatalf("%s: got %v, want validation error", tc.name, err)
		}
	}
}

func TestRotateAuto(t *testing.T) {
	svc := NewService(NewStore(), &auditSink{})
	partnerID := id.NewPartnerID()

	password, meta, _, err := svc.Rotate(context.Background(), partnerID, actor, "auto", "")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if !secrets.ValidPassword(password) {
		t.Fatalf("generated password fails complexity rule: %q", password)
	}
	if meta.RotationMethod == nil || *meta.RotationMethod != "auto" {
		t.Fatalf("metadata = %+v", meta)
	}

	// A second rotation replaces the hash.
	again, _, _, err := svc.Rotate(context.Background(), partnerID, actor, "auto", "")
	if err != nil {
		t.Fatalf("second rotate: %v", err)
	}
	if again == password {
		t.Fatal("generated the same password twice")
	}
}

func TestRotateAbortsWhenAuditFails(t *testing.T) {
	store := NewStore()
	svc := NewService(store, &auditSink{err: dErrors.New(dErrors.CodeTransient, "sink down")})
	partnerID := id.NewPartnerID()

	_, _, _, err := svc.Rotate(context.Background(), partnerID, actor, "auto", "")
	if !dErrors.HasCode(err, dErrors.CodeTransient) {
		t.Fatalf("got %v, want transient", err)
	}
	if _, err := store.Find(context.Background(), partnerID); !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatal("credential stored despite audit failure")
	}
}
