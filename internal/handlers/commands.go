package handlers

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sonroyaalmerol/napstablook/internal/player"
	"github.com/sonroyaalmerol/napstablook/internal/tools"
	"github.com/sonroyaalmerol/napstablook/internal/ui"
)

// interaction tokens stay valid for 15 minutes
const interactionTTL = 14 * time.Minute

// commandDefinitions derives the slash commands from the tool table.
func commandDefinitions() []*discordgo.ApplicationCommand {
	var cmds []*discordgo.ApplicationCommand
	for _, s := range tools.All() {
		if s.Slash == "" {
			continue
		}
		cmd := &discordgo.ApplicationCommand{Name: s.Slash, Description: s.Description}
		for _, p := range s.Params {
			typ := discordgo.ApplicationCommandOptionString
			if p.Type == tools.ParamNumber {
				typ = discordgo.ApplicationCommandOptionInteger
			}
			cmd.Options = append(cmd.Options, &discordgo.ApplicationCommandOption{
				Name:         p.Name,
				Description:  p.Description,
				Type:         typ,
				Required:     p.Required,
				Autocomplete: p.Autocomplete,
			})
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

func (b *Bot) registerCommands(s *discordgo.Session, appID, guildID string) error {
	start := time.Now()
	cmds, err := s.ApplicationCommandBulkOverwrite(appID, guildID, commandDefinitions())
	if err != nil {
		return err
	}
	slog.Info("registered commands", "guildID", guildID, "count", len(cmds), "took", time.Since(start))
	return nil
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		slog.Debug("interaction: application command", "guildID", i.GuildID, "userID", userIDOf(i), "command", i.ApplicationCommandData().Name)
		b.handleCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		b.handleAutocomplete(s, i)
	default:
		slog.Debug("interaction: ignored type", "type", i.Type, "guildID", i.GuildID)
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	spec, ok := tools.LookupSlash(data.Name)
	if !ok {
		slog.Debug("unknown command", "name", data.Name, "guildID", i.GuildID)
		return
	}
	if i.GuildID == "" {
		b.reply(s, i, player.Result{Message: "commands only work inside a server"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), interactionTTL)
	defer cancel()

	call := tools.Call{
		Request: player.Request{GuildID: i.GuildID, UserID: userIDOf(i), TextChannelID: i.ChannelID},
		RoleIDs: rolesOf(i),
		Args:    optionArgs(data.Options),
	}
	if !spec.Deferred {
		b.reply(s, i, b.tools.DispatchSlash(ctx, data.Name, call))
		return
	}
	b.deferReply(s, i)
	b.editReply(s, i, b.tools.DispatchSlash(ctx, data.Name, call))
}

func (b *Bot) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	spec, ok := tools.LookupSlash(data.Name)
	if !ok || spec.Op != tools.OpPlay {
		return
	}

	var query string
	for _, opt := range data.Options {
		if opt.Focused {
			query = strings.TrimSpace(opt.StringValue())
			break
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	choices := b.suggest.Choices(ctx, query, 10)
	if choices == nil {
		choices = []*discordgo.ApplicationCommandOptionChoice{}
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}); err != nil {
		slog.Debug("autocomplete respond failed", "guildID", i.GuildID, "err", err)
	}
}

// render turns a result into message content or an embed.
func render(r player.Result) (string, []*discordgo.MessageEmbed) {
	if snap, ok := r.Data.(player.Snapshot); ok && r.Success {
		return "", []*discordgo.MessageEmbed{ui.NowPlayingEmbed(snap)}
	}
	return r.Message, nil
}

func (b *Bot) reply(s *discordgo.Session, i *discordgo.InteractionCreate, r player.Result) {
	content, embeds := render(r)
	var flags discordgo.MessageFlags
	if !r.Success {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Embeds:  embeds,
			Flags:   flags,
		},
	}); err != nil {
		slog.Warn("reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (b *Bot) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		slog.Warn("defer reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (b *Bot) editReply(s *discordgo.Session, i *discordgo.InteractionCreate, r player.Result) {
	content, embeds := render(r)
	edit := &discordgo.WebhookEdit{Content: &content}
	if embeds != nil {
		edit.Embeds = &embeds
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		slog.Warn("edit reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func optionArgs(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]any {
	args := make(map[string]any, len(opts))
	for _, o := range opts {
		args[o.Name] = o.Value
	}
	return args
}

func userIDOf(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func rolesOf(i *discordgo.InteractionCreate) []string {
	if i.Member == nil {
		return nil
	}
	return i.Member.Roles
}
