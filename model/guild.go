// Package model defines the value objects the client caches and the
// permission resolver reads. All IDs marshal as strings on the wire.
package model

import (
	"time"

	"github.com/victorivanov/retrograde/snowflake"
)

type Guild struct {
	ID        snowflake.ID `json:"id"`
	Name      string       `json:"name"`
	IconHash  *string      `json:"icon_hash,omitempty"`
	OwnerID   snowflake.ID `json:"owner_id"`
	CreatedAt time.Time    `json:"created_at"`

	// Roles is the full role list of the guild, including the default
	// (@everyone) role. Populated from GUILD_CREATE and role events.
	Roles []Role `json:"roles,omitempty"`
}

// EveryoneRole returns the guild's default role. The zero Role is returned
// when the snapshot has no default role, which grants nothing.
func (g Guild) EveryoneRole() Role {
	for _, r := range g.Roles {
		if r.IsDefault {
			return r
		}
	}
	return Role{GuildID: g.ID}
}

// RoleByID returns the role with the given ID, or false when absent.
func (g Guild) RoleByID(id snowflake.ID) (Role, bool) {
	for _, r := range g.Roles {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}
