package shared

// Role is the coarse user role stored on users and permission rules.
type Role string

// Known roles.
const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleManager    Role = "MANAGER"
	RoleAgent      Role = "AGENT"
	RoleAccountant Role = "ACCOUNTANT"
)

// Roles lists every role in display order.
var Roles = []Role{RoleSuperAdmin, RoleAdmin, RoleManager, RoleAgent, RoleAccountant}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// UserStatus is the lifecycle state of a user account.
type UserStatus string

// Known user statuses.
const (
	StatusPending   UserStatus = "PENDING"
	StatusActive    UserStatus = "ACTIVE"
	StatusArchived  UserStatus = "ARCHIVED"
	StatusSuspended UserStatus = "SUSPENDED"
	StatusDeleted   UserStatus = "DELETED"
)

// EditableStatuses are the statuses an admin may assign through the users API.
var EditableStatuses = []UserStatus{StatusPending, StatusActive, StatusArchived, StatusSuspended}

// Valid reports whether s may be assigned by an admin.
func (s UserStatus) Valid() bool {
	for _, known := range EditableStatuses {
		if s == known {
			return true
		}
	}
	return false
}
