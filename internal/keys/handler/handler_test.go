package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"tradegate/internal/audit"
	"tradegate/internal/keys/models"
	"tradegate/internal/keys/service"
	"tradegate/internal/platform/middleware"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
)

type stubService struct {
	keys       []*models.Key
	promoteRec *audit.Record
	revokeRec  *audit.Record
	err        error
	calls      int
}

func (s *stubService) List(_ context.Context, _ id.PartnerID) ([]*models.Key, error) {
	return s.keys, s.err
}

func (s *stubService) Upload(_ context.Context, partnerID id.PartnerID, _ service.Actor, _ service.UploadKeyCommand) (*models.Key, *audit.Record, error) {
	s.calls++
	if s.err != nil {
		return nil, nil, s.err
	}
	key := &models.Key{ID: id.NewKeyID(), PartnerID: partnerID, Status: models.StatusActive, CreatedAt: time.Now()}
	return key, &audit.Record{ID: id.NewAuditID()}, nil
}

func (s *stubService) Generate(_ context.Context, partnerID id.PartnerID, _ service.Actor, _ service.GenerateKeyCommand) (*service.GeneratedKey, *audit.Record, error) {
	s.calls++
	key := &models.Key{ID: id.NewKeyID(), PartnerID: partnerID, Status: models.StatusActive, CreatedAt: time.Now()}
	return &service.GeneratedKey{PrivateKeyArmored: "private", Key: key}, &audit.Record{ID: id.NewAuditID()}, nil
}

func (s *stubService) Promote(_ context.Context, _ id.PartnerID, _ id.KeyID, _ service.Actor) (*audit.Record, error) {
	s.calls++
	return s.promoteRec, s.err
}

func (s *stubService) Revoke(_ context.Context, _ id.PartnerID, _ id.KeyID, _ service.Actor, _ string) (*audit.Record, error) {
	s.calls++
	return s.revokeRec, s.err
}

func newRouter(svc Service) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(svc, logger).Register(r)
	return r
}

func doRequest(router chi.Router, method, target, body string, role id.Role) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ident := &middleware.Identity{UserID: "user-1", PartnerID: id.NewPartnerID(), Role: role}
	req = req.WithContext(middleware.WithIdentity(req.Context(), ident))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWritesRequireElevatedRole(t *testing.T) {
	stub := &stubService{}
	router := newRouter(stub)

	writes := []struct {
		method, target, body string
	}{
		{http.MethodPost, "/keys/upload", `{"publicKeyArmored":"x"}`},
		{http.MethodPost, "/keys/generate", `{}`},
		{http.MethodPost, "/keys/" + id.NewKeyID().String() + "/revoke", `{}`},
		{http.MethodPost, "/keys/" + id.NewKeyID().String() + "/promote", ""},
	}
	for _, w := range writes {
		rec := doRequest(router, w.method, w.target, w.body, id.RolePartnerUser)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s %s as PartnerUser: status=%d, want 403", w.method, w.target, rec.Code)
		}
	}
	if stub.calls != 0 {
		t.Fatalf("forbidden requests reached the service %d times", stub.calls)
	}
}

func TestListAllowedForAnyRole(t *testing.T) {
	now := time.Now().UTC()
	stub := &stubService{keys: []*models.Key{{
		ID:        id.NewKeyID(),
		Status:    models.StatusActive,
		CreatedAt: now,
		ValidFrom: now,
		IsPrimary: true,
	}}}
	router := newRouter(stub)

	rec := doRequest(router, http.MethodGet, "/keys", "", id.RolePartnerUser)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}

	var out []KeySummary
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || !out[0].IsPrimary || out[0].Status != "Active" {
		t.Fatalf("unexpected listing: %+v", out)
	}
}

func TestPromoteNoopResponse(t *testing.T) {
	router := newRouter(&stubService{promoteRec: nil})

	rec := doRequest(router, http.MethodPost, "/keys/"+id.NewKeyID().String()+"/promote", "", id.RolePartnerAdmin)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}

	var out MutationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Success || out.AuditID != "" || out.Message == "" {
		t.Fatalf("no-op promote response: %+v", out)
	}
}

func TestRevokeResponses(t *testing.T) {
	t.Run("success carries audit id", func(t *testing.T) {
		rec := &audit.Record{ID: id.NewAuditID()}
		router := newRouter(&stubService{revokeRec: rec})

		res := doRequest(router, http.MethodPost, "/keys/"+id.NewKeyID().String()+"/revoke", `{"reason":"rotated"}`, id.RolePartnerAdmin)
		if res.Code != http.StatusOK {
			t.Fatalf("status=%d, want 200", res.Code)
		}
		var out MutationResponse
		if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out.AuditID != rec.ID.String() {
			t.Fatalf("auditId=%q, want %q", out.AuditID, rec.ID)
		}
	})

	t.Run("conflict maps to 409", func(t *testing.T) {
		router := newRouter(&stubService{err: dErrors.New(dErrors.CodeConflict, "key is already revoked")})

		res := doRequest(router, http.MethodPost, "/keys/"+id.NewKeyID().String()+"/revoke", `{}`, id.RolePartnerAdmin)
		if res.Code != http.StatusConflict {
			t.Fatalf("status=%d, want 409", res.Code)
		}
		if !strings.Contains(res.Body.String(), "CONFLICT") {
			t.Fatalf("body: %s", res.Body.String())
		}
	})

	t.Run("malformed key id maps to 404", func(t *testing.T) {
		router := newRouter(&stubService{})

		res := doRequest(router, http.MethodPost, "/keys/not-a-uuid/revoke", `{}`, id.RolePartnerAdmin)
		if res.Code != http.StatusNotFound {
			t.Fatalf("status=%d, want 404", res.Code)
		}
	})
}
