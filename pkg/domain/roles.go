package domain

// Role is the portal access level carried by a session.
type Role string

const (
	RolePartnerUser     Role = "PartnerUser"
	RolePartnerAdmin    Role = "PartnerAdmin"
	RoleInternalSupport Role = "InternalSupport"
)

// Valid reports whether the role is one of the known portal roles.
func (r Role) Valid() bool {
	switch r {
	case RolePartnerUser, RolePartnerAdmin, RoleInternalSupport:
		return true
	}
	return false
}

// Elevated reports whether the role may perform privileged writes
// (key and credential changes).
func (r Role) Elevated() bool {
	return r == RolePartnerAdmin
}

func (r Role) String() string { return string(r) }
