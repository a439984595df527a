package model

import (
	"time"

	"github.com/victorivanov/retrograde/snowflake"
)

type User struct {
	ID          snowflake.ID `json:"id"`
	Username    string       `json:"username"`
	DisplayName string       `json:"display_name"`
	AvatarHash  *string      `json:"avatar_hash,omitempty"`
	Bot         bool         `json:"bot,omitempty"`
	Premium     bool         `json:"premium,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
