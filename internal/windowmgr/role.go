package windowmgr

// Role identifies one of the singleton window slots.
type Role string

const (
	RoleMain       Role = "main"
	RoleSettings   Role = "settings"
	RoleAuthPopup  Role = "authPopup"
	RoleQuickInput Role = "quickInput"
)

// Roles lists all window roles in stable order.
var Roles = []Role{RoleMain, RoleSettings, RoleAuthPopup, RoleQuickInput}

// ValidRole reports whether role is one of the known window roles.
func ValidRole(role Role) bool {
	switch role {
	case RoleMain, RoleSettings, RoleAuthPopup, RoleQuickInput:
		return true
	}
	return false
}
