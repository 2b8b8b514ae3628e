package domain

import "strings"

type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleApprover     Role = "APROBADOR"
	RoleSupervisor   Role = "SUPERVISOR"
	RoleCollaborator Role = "COLABORADOR"
)

type Capability string

const (
	CapabilityView     Capability = "ver"
	CapabilityUpload   Capability = "subir"
	CapabilityReview   Capability = "revisar"
	CapabilityApprove  Capability = "aprobar"
	CapabilityUpdate   Capability = "actualizar"
	CapabilityActivity Capability = "bitacora"
	// CapabilityVerify covers disk reconciliation of the registry.
	CapabilityVerify    Capability = "verificar"
	CapabilityDashboard Capability = "dashboard"
)

// Actor identifies who triggers a workflow step. It is passed explicitly to
// every call; there is no ambient "current user".
type Actor struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
	Area string `json:"area,omitempty"`
}

func ParseRole(raw string) Role {
	return Role(strings.ToUpper(strings.TrimSpace(raw)))
}

// Can reports whether the role grants the capability.
func (a Actor) Can(c Capability) bool {
	switch a.Role {
	case RoleAdmin, RoleApprover:
		return true
	case RoleSupervisor:
		switch c {
		case CapabilityView, CapabilityReview, CapabilityActivity, CapabilityUpdate, CapabilityApprove,
			CapabilityVerify, CapabilityDashboard:
			return true
		}
	case RoleCollaborator:
		switch c {
		case CapabilityView, CapabilityUpload, CapabilityUpdate:
			return true
		}
	}
	return false
}

// CanEditAudit reports whether the actor may set nonconformance/audit fields.
func (a Actor) CanEditAudit() bool {
	return a.Role == RoleAdmin || a.Role == RoleApprover
}

// SeesAllAreas reports whether listings for the actor span every area.
// Other roles only see records of their own area.
func (a Actor) SeesAllAreas() bool {
	return a.Role == RoleAdmin || a.Role == RoleApprover
}
