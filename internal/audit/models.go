package audit

import (
	"time"

	id "tradegate/pkg/domain"
)

// Operation names the privileged action an audit record captures.
type Operation string

const (
	OpKeyUpload          Operation = "KeyUpload"
	OpKeyGenerate        Operation = "KeyGenerate"
	OpKeyRevoke          Operation = "KeyRevoke"
	OpKeyPromote         Operation = "KeyPromote"
	OpSftpPasswordChange Operation = "SftpPasswordChange"
	OpLogin              Operation = "Login"
	OpLogout             Operation = "Logout"
)

// Valid reports whether op is a known operation name.
func (op Operation) Valid() bool {
	switch op {
	case OpKeyUpload, OpKeyGenerate, OpKeyRevoke, OpKeyPromote, OpSftpPasswordChange, OpLogin, OpLogout:
		return true
	}
	return false
}

// Record is one append-only audit trail entry. Metadata carries
// operation-specific detail (key ids, fingerprints, rotation method).
type Record struct {
	ID          id.AuditID
	PartnerID   id.PartnerID
	ActorUserID string
	ActorRole   id.Role
	Operation   Operation
	Timestamp   time.Time
	Success     bool
	Metadata    map[string]any
}

// SearchCriteria filters an audit search. Zero values mean "no filter";
// Page is 1-based.
type SearchCriteria struct {
	PartnerID id.PartnerID
	Operation Operation
	DateFrom  time.Time
	DateTo    time.Time
	Page      int
	PageSize  int
}
