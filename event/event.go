// Package event turns raw gateway dispatches into typed callbacks.
package event

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/victorivanov/retrograde/gateway"
	"github.com/victorivanov/retrograde/model"
	"github.com/victorivanov/retrograde/snowflake"
)

// MessageCreate carries a MESSAGE_CREATE dispatch.
type MessageCreate struct {
	Message model.Message
}

// MessageUpdate carries a MESSAGE_UPDATE dispatch.
type MessageUpdate struct {
	Message model.Message
}

// MessageDelete carries a MESSAGE_DELETE dispatch.
type MessageDelete struct {
	ID        snowflake.ID `json:"id"`
	ChannelID snowflake.ID `json:"channel_id"`
	GuildID   snowflake.ID `json:"guild_id"`
}

// GuildCreate carries a GUILD_CREATE dispatch.
type GuildCreate struct {
	Guild model.Guild
}

// GuildUpdate carries a GUILD_UPDATE dispatch.
type GuildUpdate struct {
	Guild model.Guild
}

// GuildDelete carries a GUILD_DELETE dispatch.
type GuildDelete struct {
	ID snowflake.ID `json:"id"`
}

// ChannelCreate carries a CHANNEL_CREATE dispatch.
type ChannelCreate struct {
	Channel model.Channel
}

// ChannelUpdate carries a CHANNEL_UPDATE dispatch.
type ChannelUpdate struct {
	Channel model.Channel
}

// ChannelDelete carries a CHANNEL_DELETE dispatch.
type ChannelDelete struct {
	ID      snowflake.ID `json:"id"`
	GuildID snowflake.ID `json:"guild_id"`
}

// MemberAdd carries a GUILD_MEMBER_ADD dispatch.
type MemberAdd struct {
	GuildID snowflake.ID `json:"guild_id"`
	Member  model.Member `json:"member"`
}

// MemberUpdate carries a GUILD_MEMBER_UPDATE dispatch.
type MemberUpdate struct {
	GuildID snowflake.ID `json:"guild_id"`
	Member  model.Member `json:"member"`
}

// MemberRemove carries a GUILD_MEMBER_REMOVE dispatch.
type MemberRemove struct {
	GuildID snowflake.ID `json:"guild_id"`
	UserID  snowflake.ID `json:"user_id"`
}

// RoleCreate carries a GUILD_ROLE_CREATE dispatch.
type RoleCreate struct {
	GuildID snowflake.ID `json:"guild_id"`
	Role    model.Role   `json:"role"`
}

// RoleUpdate carries a GUILD_ROLE_UPDATE dispatch.
type RoleUpdate struct {
	GuildID snowflake.ID `json:"guild_id"`
	Role    model.Role   `json:"role"`
}

// RoleDelete carries a GUILD_ROLE_DELETE dispatch.
type RoleDelete struct {
	GuildID snowflake.ID `json:"guild_id"`
	RoleID  snowflake.ID `json:"role_id"`
}

// Ready carries the READY dispatch.
type Ready struct {
	SessionID string  `json:"session_id"`
	UserID    int64   `json:"user_id,string"`
	Guilds    []int64 `json:"guilds"`
}

// Raw carries any dispatch, decoded or not, with its event name.
type Raw struct {
	Event string
	Data  json.RawMessage
}

// Handler receives decoded events. Register it on a Bus; a type switch picks
// out the events it cares about.
type Handler func(evt any)

// Bus fans gateway dispatches out to registered handlers. A panicking
// handler is logged and skipped; it never takes the dispatch loop down.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: map[string]Handler{}}
}

// Subscribe registers a handler and returns its subscription ID.
func (b *Bus) Subscribe(h Handler) string {
	id := uuid.NewString()
	b.mu.Lock()
	b.handlers[id] = h
	b.mu.Unlock()
	return id
}

// Unsubscribe removes a handler by its subscription ID.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	delete(b.handlers, id)
	b.mu.Unlock()
}

// Dispatch decodes one gateway dispatch and delivers it to every handler.
// It is the gateway.DispatchFunc of a client session.
func (b *Bus) Dispatch(eventName string, data json.RawMessage) {
	evt := decode(eventName, data)

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		deliver(h, evt, eventName)
	}
}

func deliver(h Handler, evt any, eventName string) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("event: handler panic", "event", eventName, "panic", p)
		}
	}()
	h(evt)
}

// decode maps an event name to its typed payload. Unknown or undecodable
// events fall back to Raw.
func decode(eventName string, data json.RawMessage) any {
	switch eventName {
	case gateway.EventReady:
		return unmarshalOr[Ready](eventName, data)
	case gateway.EventMessageCreate:
		var m model.Message
		if err := json.Unmarshal(data, &m); err != nil {
			return rawFallback(eventName, data, err)
		}
		return MessageCreate{Message: m}
	case gateway.EventMessageUpdate:
		var m model.Message
		if err := json.Unmarshal(data, &m); err != nil {
			return rawFallback(eventName, data, err)
		}
		return MessageUpdate{Message: m}
	case gateway.EventMessageDelete:
		return unmarshalOr[MessageDelete](eventName, data)
	case gateway.EventGuildCreate:
		var g model.Guild
		if err := json.Unmarshal(data, &g); err != nil {
			return rawFallback(eventName, data, err)
		}
		return GuildCreate{Guild: g}
	case gateway.EventGuildUpdate:
		var g model.Guild
		if err := json.Unmarshal(data, &g); err != nil {
			return rawFallback(eventName, data, err)
		}
		return GuildUpdate{Guild: g}
	case gateway.EventGuildDelete:
		return unmarshalOr[GuildDelete](eventName, data)
	case gateway.EventChannelCreate:
		var ch model.Channel
		if err := json.Unmarshal(data, &ch); err != nil {
			return rawFallback(eventName, data, err)
		}
		return ChannelCreate{Channel: ch}
	case gateway.EventChannelUpdate:
		var ch model.Channel
		if err := json.Unmarshal(data, &ch); err != nil {
			return rawFallback(eventName, data, err)
		}
		return ChannelUpdate{Channel: ch}
	case gateway.EventChannelDelete:
		return unmarshalOr[ChannelDelete](eventName, data)
	case gateway.EventGuildMemberAdd:
		return unmarshalOr[MemberAdd](eventName, data)
	case gateway.EventGuildMemberUpdate:
		return unmarshalOr[MemberUpdate](eventName, data)
	case gateway.EventGuildMemberRemove:
		return unmarshalOr[MemberRemove](eventName, data)
	case gateway.EventGuildRoleCreate:
		return unmarshalOr[RoleCreate](eventName, data)
	case gateway.EventGuildRoleUpdate:
		return unmarshalOr[RoleUpdate](eventName, data)
	case gateway.EventGuildRoleDelete:
		return unmarshalOr[RoleDelete](eventName, data)
	default:
		return Raw{Event: eventName, Data: data}
	}
}

func unmarshalOr[T any](eventName string, data json.RawMessage) any {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return rawFallback(eventName, data, err)
	}
	return v
}

func rawFallback(eventName string, data json.RawMessage, err error) any {
	slog.Warn("event: undecodable payload", "event", eventName, "error", err)
	return Raw{Event: eventName, Data: data}
}
