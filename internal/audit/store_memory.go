package audit

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
)

// InMemoryStore stores audit records in memory for the demo environment.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []*Record
	logger  *slog.Logger
}

type StoreOption func(*InMemoryStore)

// WithLogger makes the store emit one audit log line per appended record, so
// the trail is reconstructable from logs even though the store is volatile.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *InMemoryStore) { s.logger = logger }
}

func NewInMemoryStore(opts ...StoreOption) *InMemoryStore {
	s := &InMemoryStore{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Append(ctx context.Context, rec *Record) error {
	if rec.ID.IsNil() || rec.PartnerID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "audit record missing identifiers")
	}
	if !rec.Operation.Valid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown audit operation")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	s.records = append(s.records, cloneRecord(rec))
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.InfoContext(ctx, "audit record appended",
			"log_type", "audit",
			"audit_id", rec.ID,
			"partner_id", rec.PartnerID,
			"operation", rec.Operation,
			"actor_user_id", rec.ActorUserID,
			"success", rec.Success,
		)
	}
	return nil
}

func (s *InMemoryStore) Search(_ context.Context, criteria SearchCriteria) ([]*Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Record
	for _, rec := range s.records {
		if !criteria.PartnerID.IsNil() && rec.PartnerID != criteria.PartnerID {
			continue
		}
		if criteria.Operation != "" && rec.Operation != criteria.Operation {
			continue
		}
		if !criteria.DateFrom.IsZero() && rec.Timestamp.Before(criteria.DateFrom) {
			continue
		}
		if !criteria.DateTo.IsZero() && rec.Timestamp.After(criteria.DateTo) {
			continue
		}
		matched = append(matched, rec)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := len(matched)
	page := criteria.Page
	if page < 1 {
		page = 1
	}
	pageSize := criteria.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	start := (page - 1) * pageSize
	if start >= total {
		return []*Record{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	out := make([]*Record, 0, end-start)
	for _, rec := range matched[start:end] {
		out = append(out, cloneRecord(rec))
	}
	return out, total, nil
}

func (s *InMemoryStore) ListByPartner(_ context.Context, partnerID id.PartnerID) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, rec := range s.records {
		if rec.PartnerID == partnerID {
			out = append(out, cloneRecord(rec))
		}
	}
	return out, nil
}

func cloneRecord(rec *Record) *Record {
	dup := *rec
	if rec.Metadata != nil {
		dup.Metadata = make(map[string]any, len(rec.Metadata))
		for k, v := range rec.Metadata {
			dup.Metadata[k] = v
		}
	}
	return &dup
}
