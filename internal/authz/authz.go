// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package authz decides whether a user's role clears a method's bar.
// Roles form a strict order: admin > user > anonym. A method is allowed
// when the caller's rank is at least the required rank.
package authz

import "github.com/krre/ocean-backend/internal/model"

// Required resolves the effective role bar for a method. Methods that
// create public content declare anonymCreate; when the server runs with
// anonym_allowed enabled, their bar drops from user to anonym.
func Required(role model.Role, anonymCreate, anonymAllowed bool) model.Role {
	if anonymCreate && anonymAllowed {
		return model.RoleAnonym
	}
	return role
}

// Allowed reports whether a caller with the given role may invoke a
// method requiring the required role. Unknown roles rank below anonym
// and are never allowed.
func Allowed(caller, required model.Role) bool {
	callerRank := caller.Rank()
	if callerRank == 0 {
		return false
	}
	return callerRank >= required.Rank()
}
