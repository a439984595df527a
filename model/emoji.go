package model

import "github.com/victorivanov/retrograde/snowflake"

type Emoji struct {
	ID       snowflake.ID `json:"id"`
	GuildID  snowflake.ID `json:"guild_id"`
	Name     string       `json:"name"`
	Animated bool         `json:"animated,omitempty"`

	// RoleIDs restricts the emoji to members holding at least one of these
	// roles. Empty means unrestricted.
	RoleIDs []snowflake.ID `json:"roles,omitempty"`
}

// Restricted reports whether the emoji has a role whitelist.
func (e Emoji) Restricted() bool {
	return len(e.RoleIDs) > 0
}
