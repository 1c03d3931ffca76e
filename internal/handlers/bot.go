package handlers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"github.com/sonroyaalmerol/napstablook/internal/config"
	"github.com/sonroyaalmerol/napstablook/internal/player"
	"github.com/sonroyaalmerol/napstablook/internal/tools"
)

// guild command registrations run in parallel up to this limit
const registerConcurrency = 4

// Suggester feeds autocomplete for the play command.
type Suggester interface {
	Choices(ctx context.Context, query string, limit int) []*discordgo.ApplicationCommandOptionChoice
}

type Bot struct {
	cfg     *config.Config
	session *discordgo.Session
	gw      *player.Gateway
	tools   *tools.Adapter
	ai      Replier
	suggest Suggester

	restoreOnce sync.Once
}

// NewBot wires the gateway handlers. ai may be nil, which disables the
// chat channel.
func NewBot(cfg *config.Config, s *discordgo.Session, gw *player.Gateway, t *tools.Adapter, ai Replier, sg Suggester) *Bot {
	return &Bot{cfg: cfg, session: s, gw: gw, tools: t, ai: ai, suggest: sg}
}

func (b *Bot) Run(ctx context.Context) error {
	dg := b.session
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("connected", "user", s.State.User.Username, "guilds", len(r.Guilds))
		if err := s.UpdateListeningStatus(b.cfg.BotActivity); err != nil {
			slog.Warn("failed to set activity", "err", err)
		}
		b.registerAll(s, r.Guilds)

		b.restoreOnce.Do(func() {
			go func() {
				n := b.gw.Restore(ctx)
				slog.Info("restored persistent sessions", "count", n)
			}()
		})
	})

	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if b.cfg.RegisterCommandsOnBot {
			return
		}
		if err := b.registerCommands(s, s.State.User.ID, g.ID); err != nil {
			slog.Error("register guild commands on join", "guild", g.ID, "err", err)
		}
	})

	dg.AddHandler(b.handleInteraction)
	dg.AddHandler(b.handleMessage)

	// forced disconnects end the guild's session
	dg.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		if s.State.User == nil || vs.UserID != s.State.User.ID || vs.ChannelID != "" {
			return
		}
		var from string
		if vs.BeforeUpdate != nil {
			from = vs.BeforeUpdate.ChannelID
		}
		slog.Info("bot left voice", "guildID", vs.GuildID, "channelID", from)
		b.gw.VoiceLost(vs.GuildID, from)
	})

	if err := dg.Open(); err != nil {
		return err
	}
	defer dg.Close()

	<-ctx.Done()
	slog.Info("shutting down", "sessions", b.gw.Registry().Len())
	b.gw.Registry().Close()
	return nil
}

func (b *Bot) registerAll(s *discordgo.Session, guilds []*discordgo.Guild) {
	appID := s.State.User.ID
	if b.cfg.RegisterCommandsOnBot {
		if err := b.registerCommands(s, appID, ""); err != nil {
			slog.Error("register global commands", "err", err)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(registerConcurrency)
	for _, guild := range guilds {
		id := guild.ID
		g.Go(func() error {
			if err := b.registerCommands(s, appID, id); err != nil {
				slog.Error("register guild commands", "guild", id, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if _, err := s.ApplicationCommandBulkOverwrite(appID, "", []*discordgo.ApplicationCommand{}); err != nil {
		slog.Error("clear global commands", "err", err)
	} else {
		slog.Info("cleared global application commands")
	}
}
