// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model defines the domain types shared across Ocean's request
// handlers, the user cache, and the background services.
package model

// ID is the integer primary-key type used by every table.
type ID = int32

// Role is a user's privilege level. Roles are totally ordered:
// Admin > User > Anonym.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleUser   Role = "user"
	RoleAnonym Role = "anonym"
)

// Rank maps a role onto its privilege order. Unknown codes rank below
// Anonym so a corrupted group row can never widen access.
func (r Role) Rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleUser:
		return 2
	case RoleAnonym:
		return 1
	}
	return 0
}

// Valid reports whether r is one of the three known role codes.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser || r == RoleAnonym
}

// User is the request-scoped view of an account, resolved from the user
// cache before any handler runs. It is a value type: cache reads hand out
// copies, so a concurrent writer can never tear a handler's view.
type User struct {
	ID      ID
	Name    string
	Role    Role
	Blocked bool
}

// Mandela vote values, stored in votes.vote.
const (
	VoteYes  int16 = 0
	VoteNo   int16 = 1
	VoteFake int16 = 2
)

// Like values, stored in likes.value.
const (
	LikeValue    int16 = 0
	DislikeValue int16 = 1
)

// Forum topic types, stored in forum_topics.type.
const (
	CommonTopicType int16 = 0
	PollTopicType   int16 = 1
)

// Mandela title modes. Mode 0 renders the plain title; mode 1 renders
// "what: before / after".
const (
	TitleModePlain  int32 = 0
	TitleModeChange int32 = 1
)
