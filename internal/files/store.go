package files

import (
	"context"
	"sort"
	"sync"

	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
)

// ErrNotFound is returned when a file id does not exist for the partner.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "file not found")

// Store persists transfer events. Reads return clones.
type Store interface {
	Insert(ctx context.Context, event *TransferEvent) error
	Update(ctx context.Context, partnerID id.PartnerID, fileID id.FileID, apply func(*TransferEvent) error) (*TransferEvent, error)
	Find(ctx context.Context, partnerID id.PartnerID, fileID id.FileID) (*TransferEvent, error)
	Search(ctx context.Context, partnerID id.PartnerID, criteria SearchCriteria) ([]*TransferEvent, int, error)
	ListSince(ctx context.Context, partnerID id.PartnerID, criteria SearchCriteria) ([]*TransferEvent, error)
	Partners(ctx context.Context) ([]id.PartnerID, error)
}

// InMemoryStore keeps transfer events per partner behind a RWMutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	byFile   map[id.PartnerID]map[id.FileID]*TransferEvent
	received map[id.PartnerID][]id.FileID // insertion order, resorted on read
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byFile:   make(map[id.PartnerID]map[id.FileID]*TransferEvent),
		received: make(map[id.PartnerID][]id.FileID),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, event *TransferEvent) error {
	if event.FileID.IsNil() || event.PartnerID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "file and partner ids are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	partner := s.byFile[event.PartnerID]
	if partner == nil {
		partner = make(map[id.FileID]*TransferEvent)
		s.byFile[event.PartnerID] = partner
	}
	if _, exists := partner[event.FileID]; exists {
		return dErrors.New(dErrors.CodeConflict, "file id already recorded")
	}
	partner[event.FileID] = event.Clone()
	s.received[event.PartnerID] = append(s.received[event.PartnerID], event.FileID)
	return nil
}

// Update applies fn to a copy of the stored event and commits it only when fn
// returns nil, so callers can validate transitions without partial writes.
func (s *InMemoryStore) Update(_ context.Context, partnerID id.PartnerID, fileID id.FileID, apply func(*TransferEvent) error) (*TransferEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byFile[partnerID][fileID]
	if !ok {
		return nil, ErrNotFound
	}
	staged := current.Clone()
	if err := apply(staged); err != nil {
		return nil, err
	}
	s.byFile[partnerID][fileID] = staged
	return staged.Clone(), nil
}

func (s *InMemoryStore) Find(_ context.Context, partnerID id.PartnerID, fileID id.FileID) (*TransferEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.byFile[partnerID][fileID]
	if !ok {
		return nil, ErrNotFound
	}
	return event.Clone(), nil
}

// Search filters one partner's transfers and pages the result newest first.
func (s *InMemoryStore) Search(ctx context.Context, partnerID id.PartnerID, criteria SearchCriteria) ([]*TransferEvent, int, error) {
	matched, err := s.ListSince(ctx, partnerID, criteria)
	if err != nil {
		return nil, 0, err
	}

	total := len(matched)
	page, pageSize := criteria.Page, criteria.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	start := (page - 1) * pageSize
	if start >= total {
		return []*TransferEvent{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// ListSince returns every matching transfer, newest first, unpaged. The
// dashboard aggregations consume this directly.
func (s *InMemoryStore) ListSince(_ context.Context, partnerID id.PartnerID, criteria SearchCriteria) ([]*TransferEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*TransferEvent
	for _, event := range s.byFile[partnerID] {
		if !matches(event, criteria) {
			continue
		}
		matched = append(matched, event.Clone())
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ReceivedAt.After(matched[j].ReceivedAt)
	})
	return matched, nil
}

func (s *InMemoryStore) Partners(_ context.Context) ([]id.PartnerID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	partners := make([]id.PartnerID, 0, len(s.byFile))
	for partnerID := range s.byFile {
		partners = append(partners, partnerID)
	}
	return partners, nil
}

func matches(event *TransferEvent, criteria SearchCriteria) bool {
	if criteria.Direction != "" && event.Direction != criteria.Direction {
		return false
	}
	if criteria.Status != "" && event.Status != criteria.Status {
		return false
	}
	if criteria.DocType != "" && event.DocType != criteria.DocType {
		return false
	}
	if !criteria.DateFrom.IsZero() && event.ReceivedAt.Before(criteria.DateFrom) {
		return false
	}
	if !criteria.DateTo.IsZero() && event.ReceivedAt.After(criteria.DateTo) {
		return false
	}
	return true
}
