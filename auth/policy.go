package auth

import "tasktrack/api"

// RequireRole allows continuation only when the identity holds one of the
// allowed roles. Pure function, no I/O.
func RequireRole(id api.Identity, allowed ...api.Role) error {
	for _, r := range allowed {
		if id.Role == r {
			return nil
		}
	}
	return api.ErrForbidden
}

// CanAccess reports whether the identity may act on a resource owned by
// ownerID: admins always, everyone else only on their own resources. The
// ownerID must come from the persisted record, never from a request body.
func CanAccess(id api.Identity, ownerID int) bool {
	return id.Role == api.RoleAdmin || id.UserID == ownerID
}
