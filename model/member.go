package model

import (
	"time"

	"github.com/victorivanov/retrograde/snowflake"
)

type Member struct {
	GuildID  snowflake.ID `json:"guild_id"`
	User     User         `json:"user"`
	Nickname *string      `json:"nickname,omitempty"`
	JoinedAt time.Time    `json:"joined_at"`

	// Roles is the member's assigned role list, excluding the default role.
	// Snapshots carry the full Role objects so permission resolution never
	// has to reach back into a shared cache.
	Roles []Role `json:"roles,omitempty"`
}

// HighestRolePosition returns the position of the member's highest role, or
// -1 when the member holds no roles beyond the default one.
func (m Member) HighestRolePosition() int {
	highest := -1
	for _, r := range m.Roles {
		if r.Position > highest {
			highest = r.Position
		}
	}
	return highest
}

// HasRole reports whether the member holds the role with the given ID.
func (m Member) HasRole(id snowflake.ID) bool {
	for _, r := range m.Roles {
		if r.ID == id {
			return true
		}
	}
	return false
}
