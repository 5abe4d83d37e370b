package operator

import "time"

// Permission names a capability granted to a user.
type Permission string

const (
	// PermManage allows session-level operations: create, assign, start, complete, cancel.
	PermManage Permission = "inventory.manage"
	// PermExecute allows scanning and working on assigned tasks.
	PermExecute Permission = "inventory.execute"
)

// User is an entry in the organization's user directory.
type User struct {
	ID          string       `json:"id"`
	TenantID    string       `json:"tenant_id"`
	Name        string       `json:"name"`
	Email       string       `json:"email,omitempty"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Can reports whether the user holds perm. Managers can also execute.
func (u User) Can(perm Permission) bool {
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
		if p == PermManage && perm == PermExecute {
			return true
		}
	}
	return false
}
