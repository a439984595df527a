// Package state caches the entities seen over the gateway so permission
// resolution and lookups run locally.
package state

import (
	"sync"

	"github.com/victorivanov/retrograde/event"
	"github.com/victorivanov/retrograde/model"
	"github.com/victorivanov/retrograde/snowflake"
)

type memberKey struct {
	guildID snowflake.ID
	userID  snowflake.ID
}

// State is a thread-safe cache of guilds, channels, and members, kept
// current by feeding it gateway events. Accessors return copies; mutating a
// returned value never races the cache.
type State struct {
	mu       sync.RWMutex
	guilds   map[snowflake.ID]model.Guild
	channels map[snowflake.ID]model.Channel
	members  map[memberKey]model.Member
}

// New returns an empty cache.
func New() *State {
	return &State{
		guilds:   map[snowflake.ID]model.Guild{},
		channels: map[snowflake.ID]model.Channel{},
		members:  map[memberKey]model.Member{},
	}
}

// Apply feeds one decoded event into the cache. Wire it to an event.Bus:
//
//	bus.Subscribe(st.Apply)
func (s *State) Apply(evt any) {
	switch e := evt.(type) {
	case event.GuildCreate:
		s.putGuild(e.Guild)
	case event.GuildUpdate:
		s.putGuild(e.Guild)
	case event.GuildDelete:
		s.deleteGuild(e.ID)
	case event.ChannelCreate:
		s.putChannel(e.Channel)
	case event.ChannelUpdate:
		s.putChannel(e.Channel)
	case event.ChannelDelete:
		s.deleteChannel(e.ID)
	case event.MemberAdd:
		s.putMember(e.GuildID, e.Member)
	case event.MemberUpdate:
		s.putMember(e.GuildID, e.Member)
	case event.MemberRemove:
		s.deleteMember(e.GuildID, e.UserID)
	case event.RoleCreate:
		s.putRole(e.GuildID, e.Role)
	case event.RoleUpdate:
		s.putRole(e.GuildID, e.Role)
	case event.RoleDelete:
		s.deleteRole(e.GuildID, e.RoleID)
	}
}

// Guild returns a snapshot of the cached guild.
func (s *State) Guild(id snowflake.ID) (model.Guild, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.guilds[id]
	if ok {
		g.Roles = append([]model.Role(nil), g.Roles...)
	}
	return g, ok
}

// Channel returns a snapshot of the cached channel.
func (s *State) Channel(id snowflake.ID) (model.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[id]
	if ok {
		ch.Overwrites = append([]model.Overwrite(nil), ch.Overwrites...)
	}
	return ch, ok
}

// Member returns a snapshot of the cached member.
func (s *State) Member(guildID, userID snowflake.ID) (model.Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberKey{guildID, userID}]
	if ok {
		m.Roles = append([]model.Role(nil), m.Roles...)
	}
	return m, ok
}

// GuildChannels returns snapshots of the guild's cached channels.
func (s *State) GuildChannels(guildID snowflake.ID) []model.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Channel
	for _, ch := range s.channels {
		if ch.GuildID == guildID {
			ch.Overwrites = append([]model.Overwrite(nil), ch.Overwrites...)
			out = append(out, ch)
		}
	}
	return out
}

func (s *State) putGuild(g model.Guild) {
	s.mu.Lock()
	s.guilds[g.ID] = g
	s.mu.Unlock()
}

func (s *State) deleteGuild(id snowflake.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.guilds, id)
	for chID, ch := range s.channels {
		if ch.GuildID == id {
			delete(s.channels, chID)
		}
	}
	for key := range s.members {
		if key.guildID == id {
			delete(s.members, key)
		}
	}
}

func (s *State) putChannel(ch model.Channel) {
	s.mu.Lock()
	s.channels[ch.ID] = ch
	s.mu.Unlock()
}

func (s *State) deleteChannel(id snowflake.ID) {
	s.mu.Lock()
	delete(s.channels, id)
	s.mu.Unlock()
}

func (s *State) putMember(guildID snowflake.ID, m model.Member) {
	m.GuildID = guildID
	s.mu.Lock()
	s.members[memberKey{guildID, m.User.ID}] = m
	s.mu.Unlock()
}

func (s *State) deleteMember(guildID, userID snowflake.ID) {
	s.mu.Lock()
	delete(s.members, memberKey{guildID, userID})
	s.mu.Unlock()
}

// putRole upserts a role in its guild's role list and refreshes it on every
// cached member that holds it.
func (s *State) putRole(guildID snowflake.ID, role model.Role) {
	role.GuildID = guildID
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guilds[guildID]
	if ok {
		g.Roles = upsertRole(g.Roles, role)
		s.guilds[guildID] = g
	}
	for key, m := range s.members {
		if key.guildID != guildID || !hasRole(m.Roles, role.ID) {
			continue
		}
		m.Roles = upsertRole(m.Roles, role)
		s.members[key] = m
	}
}

func (s *State) deleteRole(guildID, roleID snowflake.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guilds[guildID]
	if ok {
		g.Roles = removeRole(g.Roles, roleID)
		s.guilds[guildID] = g
	}
	for key, m := range s.members {
		if key.guildID != guildID || !hasRole(m.Roles, roleID) {
			continue
		}
		m.Roles = removeRole(m.Roles, roleID)
		s.members[key] = m
	}
}

func upsertRole(roles []model.Role, role model.Role) []model.Role {
	out := append([]model.Role(nil), roles...)
	for i, r := range out {
		if r.ID == role.ID {
			out[i] = role
			return out
		}
	}
	return append(out, role)
}

func removeRole(roles []model.Role, roleID snowflake.ID) []model.Role {
	out := make([]model.Role, 0, len(roles))
	for _, r := range roles {
		if r.ID != roleID {
			out = append(out, r)
		}
	}
	return out
}

func hasRole(roles []model.Role, roleID snowflake.ID) bool {
	for _, r := range roles {
		if r.ID == roleID {
			return true
		}
	}
	return false
}
