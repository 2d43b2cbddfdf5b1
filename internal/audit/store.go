package audit

import (
	"context"

	id "tradegate/pkg/domain"
)

// Store is the append-only audit sink. Search returns records newest first
// along with the total match count before paging.
type Store interface {
	Append(ctx context.Context, rec *Record) error
	Search(ctx context.Context, criteria SearchCriteria) ([]*Record, int, error)
	ListByPartner(ctx context.Context, partnerID id.PartnerID) ([]*Record, error)
}
