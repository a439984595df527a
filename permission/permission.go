// Package permission defines the Retrocast permission bits and computes
// effective permissions for members and roles at guild and channel scope.
package permission

import "strings"

// Permission identifies a single named permission. The value is an index
// into the definition table, not a bitmask; use Raw for the wire mask.
type Permission int

const (
	CreateInstantInvite Permission = iota
	KickMembers
	BanMembers
	Administrator
	ManageChannel
	ManageServer
	AddReactions
	ViewAuditLogs
	PrioritySpeaker
	ViewChannel
	ReadMessages // alias of ViewChannel at the same bit offset
	SendMessages
	SendTTSMessages
	ManageMessages
	EmbedLinks
	AttachFiles
	ReadMessageHistory
	MentionEveryone
	UseExternalEmoji
	VoiceConnect
	VoiceSpeak
	VoiceMuteOthers
	VoiceDeafenOthers
	VoiceMoveOthers
	VoiceUseVAD
	ChangeNickname
	ManageNicknames
	ManageRoles
	ManagePermissions // alias of ManageRoles at the same bit offset
	ManageWebhooks
	ManageEmotes

	// Unknown is the sentinel for undefined bits. Offset -1, raw 0.
	Unknown
)

type kind int

const (
	kindGeneral kind = iota
	kindText
	kindVoice
)

type def struct {
	offset  int
	name    string
	guild   bool
	channel bool
	kind    kind
}

// Offsets 10 and 28 are intentionally shared by two names each. The server
// treats them as one bit; the split names exist because the guild-scope and
// channel-scope UI label them differently. Reverse lookups over these bits
// are therefore ambiguous by construction.
var defs = [...]def{
	CreateInstantInvite: {0, "Create Instant Invite", true, true, kindGeneral},
	KickMembers:         {1, "Kick Members", true, false, kindGeneral},
	BanMembers:          {2, "Ban Members", true, false, kindGeneral},
	Administrator:       {3, "Administrator", true, false, kindGeneral},
	ManageChannel:       {4, "Manage Channels", true, true, kindGeneral},
	ManageServer:        {5, "Manage Server", true, false, kindGeneral},
	AddReactions:        {6, "Add Reactions", true, true, kindText},
	ViewAuditLogs:       {7, "View Audit Logs", true, false, kindGeneral},
	PrioritySpeaker:     {8, "Priority Speaker", true, true, kindVoice},
	ViewChannel:         {10, "View Channel", true, true, kindText},
	ReadMessages:        {10, "Read Messages", true, true, kindText},
	SendMessages:        {11, "Send Messages", true, true, kindText},
	SendTTSMessages:     {12, "Send TTS Messages", true, true, kindText},
	ManageMessages:      {13, "Manage Messages", true, true, kindText},
	EmbedLinks:          {14, "Embed Links", true, true, kindText},
	AttachFiles:         {15, "Attach Files", true, true, kindText},
	ReadMessageHistory:  {16, "Read Message History", true, true, kindText},
	MentionEveryone:     {17, "Mention Everyone", true, true, kindText},
	UseExternalEmoji:    {18, "Use External Emoji", true, true, kindText},
	VoiceConnect:        {20, "Connect", true, true, kindVoice},
	VoiceSpeak:          {21, "Speak", true, true, kindVoice},
	VoiceMuteOthers:     {22, "Mute Members", true, true, kindVoice},
	VoiceDeafenOthers:   {23, "Deafen Members", true, true, kindVoice},
	VoiceMoveOthers:     {24, "Move Members", true, true, kindVoice},
	VoiceUseVAD:         {25, "Use Voice Activity", true, true, kindVoice},
	ChangeNickname:      {26, "Change Nickname", true, false, kindGeneral},
	ManageNicknames:     {27, "Manage Nicknames", true, false, kindGeneral},
	ManageRoles:         {28, "Manage Roles", true, false, kindGeneral},
	ManagePermissions:   {28, "Manage Permissions", false, true, kindGeneral},
	ManageWebhooks:      {29, "Manage Webhooks", true, true, kindGeneral},
	ManageEmotes:        {30, "Manage Emotes", true, false, kindGeneral},
	Unknown:             {-1, "Unknown", false, false, kindGeneral},
}

// Aggregate masks, computed once from the definition table.
var (
	All        int64
	AllGuild   int64
	AllChannel int64
	AllText    int64
	AllVoice   int64
)

func init() {
	for p := CreateInstantInvite; p < Unknown; p++ {
		raw := p.Raw()
		All |= raw
		if defs[p].guild {
			AllGuild |= raw
		}
		if defs[p].channel {
			AllChannel |= raw
		}
		switch defs[p].kind {
		case kindText:
			AllText |= raw
		case kindVoice:
			AllVoice |= raw
		}
	}
}

// Offset returns the bit offset, or -1 for Unknown.
func (p Permission) Offset() int {
	if p < 0 || int(p) >= len(defs) {
		return -1
	}
	return defs[p].offset
}

// Raw returns the single-bit mask for this permission. Unknown contributes 0.
func (p Permission) Raw() int64 {
	off := p.Offset()
	if off < 0 {
		return 0
	}
	return 1 << off
}

// Name returns the display name.
func (p Permission) Name() string {
	if p < 0 || int(p) >= len(defs) {
		return defs[Unknown].name
	}
	return defs[p].name
}

// IsGuild reports whether the permission is meaningful at guild scope.
func (p Permission) IsGuild() bool {
	return int(p) < len(defs) && p >= 0 && defs[p].guild
}

// IsChannel reports whether the permission is meaningful at channel scope.
func (p Permission) IsChannel() bool {
	return int(p) < len(defs) && p >= 0 && defs[p].channel
}

// IsText reports whether the permission governs text channels.
func (p Permission) IsText() bool {
	return int(p) < len(defs) && p >= 0 && defs[p].kind == kindText
}

// IsVoice reports whether the permission governs voice channels.
func (p Permission) IsVoice() bool {
	return int(p) < len(defs) && p >= 0 && defs[p].kind == kindVoice
}

func (p Permission) String() string {
	return p.Name()
}

// Raw ORs together the raw masks of the given permissions. Unknown and
// out-of-range values contribute nothing.
func Raw(perms ...Permission) int64 {
	var raw int64
	for _, p := range perms {
		raw |= p.Raw()
	}
	return raw
}

// FromRaw returns every defined, non-sentinel permission whose bit is set in
// raw. Offset-aliased names are both returned when their shared bit is set.
func FromRaw(raw int64) []Permission {
	var perms []Permission
	for p := CreateInstantInvite; p < Unknown; p++ {
		if raw&p.Raw() != 0 {
			perms = append(perms, p)
		}
	}
	return perms
}

// FromOffset returns the first permission declared with the given bit
// offset, or Unknown if none matches. For the shared offsets this picks an
// arbitrary alias; callers needing a canonical name must not depend on
// declaration order.
func FromOffset(offset int) Permission {
	for p := CreateInstantInvite; p < Unknown; p++ {
		if defs[p].offset == offset {
			return p
		}
	}
	return Unknown
}

// Names renders a raw mask as a human-readable list, for logs.
func Names(raw int64) string {
	if raw == 0 {
		return "NONE"
	}
	var names []string
	for _, p := range FromRaw(raw) {
		names = append(names, p.Name())
	}
	if len(names) == 0 {
		return "UNKNOWN"
	}
	return strings.Join(names, " | ")
}
