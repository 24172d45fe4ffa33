package models

// Capability is a named permission an administrator may hold.
type Capability string

const (
	CapabilityFullAccess       Capability = "full_access"
	CapabilityAssignTechnician Capability = "assign_technician"
	CapabilityManageUsers      Capability = "manage_users"
	CapabilityViewReports      Capability = "view_reports"
)

var knownCapabilities = map[Capability]struct{}{
	CapabilityFullAccess:       {},
	CapabilityAssignTechnician: {},
	CapabilityManageUsers:      {},
	CapabilityViewReports:      {},
}

// IsKnownCapability reports whether name belongs to the closed capability set.
func IsKnownCapability(name string) bool {
	_, ok := knownCapabilities[Capability(name)]
	return ok
}

// FilterPermissions keeps only known capabilities, in first-seen order and
// without duplicates. Unknown values are dropped rather than rejected so that
// older or newer clients can send permission lists this server does not know.
func FilterPermissions(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, p := range in {
		if !IsKnownCapability(p) {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// HasPermission reports whether the administrator profile lists capability
// verbatim. It does not expand full_access; use Authorize for that.
func (a AdministratorProfile) HasPermission(capability Capability) bool {
	for _, p := range a.PermissionsList {
		if p == string(capability) {
			return true
		}
	}
	return false
}

// HasFullAccess reports whether u is an administrator holding full_access.
func (u *User) HasFullAccess() bool {
	if u == nil {
		return false
	}
	admin, ok := u.AsAdministrator()
	return ok && admin.HasPermission(CapabilityFullAccess)
}

// Authorize is the single capability check for administrative operations:
// the actor must be an administrator holding either full_access or the
// required capability.
func Authorize(actor *User, required Capability) bool {
	if actor == nil {
		return false
	}
	admin, ok := actor.AsAdministrator()
	if !ok {
		return false
	}
	return admin.HasPermission(CapabilityFullAccess) || admin.HasPermission(required)
}
