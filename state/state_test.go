package state

import (
	"testing"

	"github.com/victorivanov/retrograde/event"
	"github.com/victorivanov/retrograde/model"
)

func TestStateGuildLifecycle(t *testing.T) {
	st := New()
	st.Apply(event.GuildCreate{Guild: model.Guild{ID: 1, Name: "home", OwnerID: 9}})

	g, ok := st.Guild(1)
	if !ok || g.Name != "home" {
		t.Fatalf("guild = %+v, ok = %v", g, ok)
	}

	st.Apply(event.GuildUpdate{Guild: model.Guild{ID: 1, Name: "renamed", OwnerID: 9}})
	g, _ = st.Guild(1)
	if g.Name != "renamed" {
		t.Errorf("name = %q", g.Name)
	}

	st.Apply(event.GuildDelete{ID: 1})
	if _, ok := st.Guild(1); ok {
		t.Error("guild should be gone")
	}
}

func TestStateGuildDeleteDropsChildren(t *testing.T) {
	st := New()
	st.Apply(event.GuildCreate{Guild: model.Guild{ID: 1}})
	st.Apply(event.ChannelCreate{Channel: model.Channel{ID: 10, GuildID: 1}})
	st.Apply(event.MemberAdd{GuildID: 1, Member: model.Member{User: model.User{ID: 7}}})

	st.Apply(event.GuildDelete{ID: 1})

	if _, ok := st.Channel(10); ok {
		t.Error("channel should be gone with its guild")
	}
	if _, ok := st.Member(1, 7); ok {
		t.Error("member should be gone with its guild")
	}
}

func TestStateRoleUpdatePropagatesToMembers(t *testing.T) {
	st := New()
	st.Apply(event.GuildCreate{Guild: model.Guild{ID: 1, Roles: []model.Role{{ID: 5, Name: "mod", Position: 2}}}})
	st.Apply(event.MemberAdd{GuildID: 1, Member: model.Member{
		User:  model.User{ID: 7},
		Roles: []model.Role{{ID: 5, Name: "mod", Position: 2}},
	}})

	st.Apply(event.RoleUpdate{GuildID: 1, Role: model.Role{ID: 5, Name: "moderator", Position: 3}})

	g, _ := st.Guild(1)
	if r, ok := g.RoleByID(5); !ok || r.Name != "moderator" || r.Position != 3 {
		t.Errorf("guild role = %+v", r)
	}
	m, _ := st.Member(1, 7)
	if len(m.Roles) != 1 || m.Roles[0].Position != 3 {
		t.Errorf("member roles = %+v", m.Roles)
	}
}

func TestStateRoleDelete(t *testing.T) {
	st := New()
	st.Apply(event.GuildCreate{Guild: model.Guild{ID: 1, Roles: []model.Role{{ID: 5}}}})
	st.Apply(event.MemberAdd{GuildID: 1, Member: model.Member{
		User:  model.User{ID: 7},
		Roles: []model.Role{{ID: 5}},
	}})

	st.Apply(event.RoleDelete{GuildID: 1, RoleID: 5})

	g, _ := st.Guild(1)
	if _, ok := g.RoleByID(5); ok {
		t.Error("role should be gone from guild")
	}
	m, _ := st.Member(1, 7)
	if m.HasRole(5) {
		t.Error("role should be gone from member")
	}
}

func TestStateSnapshotsAreCopies(t *testing.T) {
	st := New()
	st.Apply(event.GuildCreate{Guild: model.Guild{ID: 1, Roles: []model.Role{{ID: 5, Name: "mod"}}}})

	g, _ := st.Guild(1)
	g.Roles[0].Name = "mutated"

	fresh, _ := st.Guild(1)
	if fresh.Roles[0].Name != "mod" {
		t.Error("cache leaked a shared slice")
	}
}

func TestStateMemberKeyedPerGuild(t *testing.T) {
	st := New()
	st.Apply(event.MemberAdd{GuildID: 1, Member: model.Member{User: model.User{ID: 7}}})
	st.Apply(event.MemberAdd{GuildID: 2, Member: model.Member{User: model.User{ID: 7}}})

	st.Apply(event.MemberRemove{GuildID: 1, UserID: 7})

	if _, ok := st.Member(1, 7); ok {
		t.Error("member should be removed from guild 1")
	}
	if _, ok := st.Member(2, 7); !ok {
		t.Error("membership in guild 2 should survive")
	}
}
