package handlers

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/napstablook/internal/player"
	"github.com/sonroyaalmerol/napstablook/internal/tools"
)

func TestCommandDefinitions(t *testing.T) {
	cmds := commandDefinitions()

	byName := map[string]*discordgo.ApplicationCommand{}
	for _, c := range cmds {
		byName[c.Name] = c
	}
	for _, s := range tools.All() {
		if s.Slash == "" {
			continue
		}
		require.Contains(t, byName, s.Slash)
		assert.Len(t, byName[s.Slash].Options, len(s.Params), s.Slash)
	}

	play := byName["play"]
	require.NotNil(t, play)
	require.Len(t, play.Options, 1)
	assert.Equal(t, discordgo.ApplicationCommandOptionString, play.Options[0].Type)
	assert.True(t, play.Options[0].Autocomplete)
	assert.True(t, play.Options[0].Required)

	vol := byName["volume"]
	require.NotNil(t, vol)
	assert.Equal(t, discordgo.ApplicationCommandOptionInteger, vol.Options[0].Type)
	assert.False(t, vol.Options[0].Autocomplete)
}

func TestOptionArgs(t *testing.T) {
	args := optionArgs([]*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "query", Type: discordgo.ApplicationCommandOptionString, Value: "never gonna"},
		{Name: "volume", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(40)},
	})
	assert.Equal(t, map[string]any{"query": "never gonna", "volume": float64(40)}, args)
	assert.Empty(t, optionArgs(nil))
}

func TestUserIDOf(t *testing.T) {
	guild := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "u1"}, Roles: []string{"r1"}},
	}}
	assert.Equal(t, "u1", userIDOf(guild))
	assert.Equal(t, []string{"r1"}, rolesOf(guild))

	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{User: &discordgo.User{ID: "u2"}}}
	assert.Equal(t, "u2", userIDOf(dm))
	assert.Nil(t, rolesOf(dm))
}

func TestRender(t *testing.T) {
	content, embeds := render(player.Result{Success: true, Message: "Skipped."})
	assert.Equal(t, "Skipped.", content)
	assert.Nil(t, embeds)

	snap := player.Snapshot{Volume: 50}
	content, embeds = render(player.Result{Success: true, Message: "ok", Data: snap})
	assert.Empty(t, content)
	require.Len(t, embeds, 1)
	assert.Equal(t, "Nothing Playing", embeds[0].Title)

	content, embeds = render(player.Result{Success: false, Message: "Nothing is playing.", Data: snap})
	assert.Equal(t, "Nothing is playing.", content)
	assert.Nil(t, embeds)
}

func testSession(t *testing.T) *discordgo.Session {
	t.Helper()
	s := &discordgo.Session{State: discordgo.NewState()}
	require.NoError(t, s.State.GuildAdd(&discordgo.Guild{
		ID:      "g1",
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: "g1", Permissions: discordgo.PermissionSendMessages},
			{ID: "mods", Permissions: discordgo.PermissionManageGuild},
			{ID: "admins", Permissions: discordgo.PermissionAdministrator},
			{ID: "fans"},
		},
		Members: []*discordgo.Member{
			{User: &discordgo.User{ID: "owner"}},
			{User: &discordgo.User{ID: "mod"}, Roles: []string{"mods"}},
			{User: &discordgo.User{ID: "admin"}, Roles: []string{"fans", "admins"}},
			{User: &discordgo.User{ID: "fan"}, Roles: []string{"fans"}},
		},
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: "g1", UserID: "fan", ChannelID: "vc1"},
		},
	}))
	return s
}

func TestPresenceVoiceChannel(t *testing.T) {
	p := NewPresence(testSession(t))
	assert.Equal(t, "vc1", p.VoiceChannel("g1", "fan"))
	assert.Empty(t, p.VoiceChannel("g1", "mod"))
	assert.Empty(t, p.VoiceChannel("other", "fan"))
}

func TestPresenceCanManageGuild(t *testing.T) {
	p := NewPresence(testSession(t))
	assert.True(t, p.CanManageGuild("g1", "owner"))
	assert.True(t, p.CanManageGuild("g1", "mod"))
	assert.True(t, p.CanManageGuild("g1", "admin"))
	assert.False(t, p.CanManageGuild("g1", "fan"))
	assert.False(t, p.CanManageGuild("unknown", "owner"))
}

func TestHandleMessageWithoutAssistant(t *testing.T) {
	b := &Bot{}
	// no assistant configured: nothing is touched on the session
	assert.NotPanics(t, func() {
		b.handleMessage(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
			GuildID: "g1",
			Author:  &discordgo.User{ID: "u1"},
			Content: "hello",
		}})
	})
}
