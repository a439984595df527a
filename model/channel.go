package model

import "github.com/victorivanov/retrograde/snowflake"

type ChannelType int

const (
	ChannelTypeText     ChannelType = 0
	ChannelTypeVoice    ChannelType = 2
	ChannelTypeCategory ChannelType = 4
)

type Channel struct {
	ID       snowflake.ID  `json:"id"`
	GuildID  snowflake.ID  `json:"guild_id"`
	Name     string        `json:"name"`
	Type     ChannelType   `json:"type"`
	Position int           `json:"position"`
	Topic    *string       `json:"topic,omitempty"`
	ParentID *snowflake.ID `json:"parent_id,omitempty"`

	// Overwrites are the channel's permission overwrites, role and member.
	Overwrites []Overwrite `json:"permission_overwrites,omitempty"`
}

// OverwriteFor returns the overwrite targeting the given subject, or false
// when the channel has none for it.
func (c Channel) OverwriteFor(kind OverwriteType, targetID snowflake.ID) (Overwrite, bool) {
	for _, o := range c.Overwrites {
		if o.Type == kind && o.TargetID == targetID {
			return o, true
		}
	}
	return Overwrite{}, false
}
