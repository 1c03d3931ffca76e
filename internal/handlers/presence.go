package handlers

import (
	"github.com/bwmarrin/discordgo"
)

// Presence answers voice and permission questions from the gateway state
// cache, which discordgo keeps current from VOICE_STATE_UPDATE and
// GUILD_MEMBER events.
type Presence struct {
	s *discordgo.Session
}

func NewPresence(s *discordgo.Session) *Presence {
	return &Presence{s: s}
}

func (p *Presence) VoiceChannel(guildID, userID string) string {
	vs, err := p.s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

func (p *Presence) CanManageGuild(guildID, userID string) bool {
	g, err := p.s.State.Guild(guildID)
	if err != nil {
		return false
	}
	if g.OwnerID == userID {
		return true
	}
	m, err := p.s.State.Member(guildID, userID)
	if err != nil {
		if m, err = p.s.GuildMember(guildID, userID); err != nil {
			return false
		}
	}

	const manage = discordgo.PermissionAdministrator | discordgo.PermissionManageGuild
	// @everyone shares the guild's id
	roles := append([]string{guildID}, m.Roles...)
	for _, id := range roles {
		r, err := p.s.State.Role(guildID, id)
		if err != nil {
			continue
		}
		if r.Permissions&manage != 0 {
			return true
		}
	}
	return false
}
