package permission

import (
	"errors"
	"fmt"

	"github.com/victorivanov/retrograde/model"
	"github.com/victorivanov/retrograde/snowflake"
)

// ErrGuildMismatch is returned when a check mixes entities from different
// guilds. This is a caller contract violation, never a runtime condition,
// so it is reported synchronously and is not retryable.
var ErrGuildMismatch = errors.New("permission: entities belong to different guilds")

func sameGuild(want snowflake.ID, got ...snowflake.ID) error {
	for _, id := range got {
		if id != want {
			return fmt.Errorf("%w: expected guild %s, got %s", ErrGuildMismatch, want, id)
		}
	}
	return nil
}

// Effective computes a member's guild-level permissions.
//  1. The guild owner holds every permission.
//  2. Start with the default role permissions, OR in every assigned role.
//  3. Administrator anywhere in the cascade grants everything.
func Effective(guild model.Guild, member model.Member) (int64, error) {
	if err := sameGuild(guild.ID, member.GuildID); err != nil {
		return 0, err
	}
	if guild.OwnerID == member.User.ID {
		return All, nil
	}

	perms := guild.EveryoneRole().Permissions
	for _, r := range member.Roles {
		perms |= r.Permissions
	}

	if perms&Administrator.Raw() != 0 {
		return All, nil
	}
	return perms, nil
}

// EffectiveInChannel computes a member's permissions in a channel by
// applying the channel's overwrites on top of the guild-level base.
//
// Overwrite precedence, lowest to highest: the default-role overwrite, the
// union of the member's role overwrites (an allow from any role beats a deny
// from another), then the member-specific overwrite. The final mask drops
// every denied bit and forces every allowed bit, so an explicit allow always
// wins the last word. A result without ViewChannel collapses to zero: a
// channel the member cannot see grants nothing at all.
func EffectiveInChannel(guild model.Guild, channel model.Channel, member model.Member) (int64, error) {
	if err := sameGuild(guild.ID, channel.GuildID, member.GuildID); err != nil {
		return 0, err
	}
	if guild.OwnerID == member.User.ID {
		return AllChannel, nil
	}

	base, err := Effective(guild, member)
	if err != nil {
		return 0, err
	}
	if base&Administrator.Raw() != 0 {
		return AllChannel, nil
	}

	var allow, deny int64
	if o, ok := channel.OverwriteFor(model.OverwriteRole, guild.EveryoneRole().ID); ok {
		allow = o.Allow
		deny = o.Deny
	}

	var allowRole, denyRole int64
	for _, r := range member.Roles {
		if o, ok := channel.OverwriteFor(model.OverwriteRole, r.ID); ok {
			allowRole |= o.Allow
			denyRole |= o.Deny
		}
	}

	// Role decisions override the default-role baseline bit-for-bit, and an
	// allow from one role beats a deny from another.
	allow = (allow &^ denyRole) | allowRole
	deny = (deny &^ allowRole) | denyRole

	if o, ok := channel.OverwriteFor(model.OverwriteMember, member.User.ID); ok {
		allow = (allow &^ o.Deny) | o.Allow
		deny = (deny &^ o.Allow) | o.Deny
	}

	perms := apply(base, allow, deny)
	if perms&ViewChannel.Raw() == 0 {
		return 0, nil
	}
	return perms, nil
}

// EffectiveRoleInChannel computes a single role's permissions in a channel,
// considering only the default-role overwrite and the role's own overwrite.
func EffectiveRoleInChannel(guild model.Guild, channel model.Channel, role model.Role) (int64, error) {
	if err := sameGuild(guild.ID, channel.GuildID, role.GuildID); err != nil {
		return 0, err
	}

	base := guild.EveryoneRole().Permissions | role.Permissions
	if base&Administrator.Raw() != 0 {
		return AllChannel, nil
	}

	var allow, deny int64
	if o, ok := channel.OverwriteFor(model.OverwriteRole, guild.EveryoneRole().ID); ok {
		allow = o.Allow
		deny = o.Deny
	}
	if o, ok := channel.OverwriteFor(model.OverwriteRole, role.ID); ok {
		allow = (allow &^ o.Deny) | o.Allow
		deny = (deny &^ o.Allow) | o.Deny
	}

	perms := apply(base, allow, deny)
	if perms&ViewChannel.Raw() == 0 {
		return 0, nil
	}
	return perms, nil
}

// apply clears the denied bits, then forces the allowed bits.
func apply(base, allow, deny int64) int64 {
	return (base &^ deny) | allow
}

// CanInteract reports whether issuer outranks target. The owner outranks
// everyone; nobody but the owner outranks the owner; otherwise the issuer's
// highest role position must be strictly greater than the target's.
func CanInteract(guild model.Guild, issuer, target model.Member) (bool, error) {
	if err := sameGuild(guild.ID, issuer.GuildID, target.GuildID); err != nil {
		return false, err
	}
	if guild.OwnerID == issuer.User.ID {
		return true, nil
	}
	if guild.OwnerID == target.User.ID {
		return false, nil
	}
	return target.HighestRolePosition() < issuer.HighestRolePosition(), nil
}

// CanInteractRole reports whether issuer outranks the target role.
func CanInteractRole(guild model.Guild, issuer model.Member, target model.Role) (bool, error) {
	if err := sameGuild(guild.ID, issuer.GuildID, target.GuildID); err != nil {
		return false, err
	}
	if guild.OwnerID == issuer.User.ID {
		return true, nil
	}
	return target.Position < issuer.HighestRolePosition(), nil
}

// RoleCanInteract reports whether one role outranks another.
func RoleCanInteract(issuer, target model.Role) (bool, error) {
	if err := sameGuild(issuer.GuildID, target.GuildID); err != nil {
		return false, err
	}
	return target.Position < issuer.Position, nil
}

// CanUseEmoji reports whether a member may use an emoji. Animated emoji
// require premium, except for bots, which the upload UI never gates. A
// restricted emoji additionally requires one of its whitelisted roles.
func CanUseEmoji(member model.Member, emoji model.Emoji) (bool, error) {
	if err := sameGuild(member.GuildID, emoji.GuildID); err != nil {
		return false, err
	}
	if emoji.Animated && !member.User.Bot && !member.User.Premium {
		return false, nil
	}
	if !emoji.Restricted() {
		return true, nil
	}
	for _, id := range emoji.RoleIDs {
		if member.HasRole(id) {
			return true, nil
		}
	}
	return false, nil
}
