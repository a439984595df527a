package model

import "github.com/victorivanov/retrograde/snowflake"

// OverwriteType distinguishes role overwrites from member overwrites.
type OverwriteType int

const (
	OverwriteRole   OverwriteType = 0
	OverwriteMember OverwriteType = 1
)

// Overwrite is a per-channel allow/deny bitmask pair for a role or a member.
// Allow and Deny are intended to be disjoint; the resolver tolerates overlap.
type Overwrite struct {
	ChannelID snowflake.ID  `json:"channel_id"`
	Type      OverwriteType `json:"type"`
	TargetID  snowflake.ID  `json:"id"`
	Allow     int64         `json:"allow,string"`
	Deny      int64         `json:"deny,string"`
}
