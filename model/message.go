package model

import (
	"time"

	"github.com/victorivanov/retrograde/snowflake"
)

type Message struct {
	ID        snowflake.ID  `json:"id"`
	ChannelID snowflake.ID  `json:"channel_id"`
	AuthorID  snowflake.ID  `json:"author_id"`
	Content   string        `json:"content"`
	Nonce     *snowflake.ID `json:"nonce,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	EditedAt  *time.Time    `json:"edited_at,omitempty"`
}
