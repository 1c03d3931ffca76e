package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sonroyaalmerol/napstablook/internal/assistant"
	"github.com/sonroyaalmerol/napstablook/internal/autocomplete"
	"github.com/sonroyaalmerol/napstablook/internal/cache"
	"github.com/sonroyaalmerol/napstablook/internal/compute"
	"github.com/sonroyaalmerol/napstablook/internal/config"
	"github.com/sonroyaalmerol/napstablook/internal/handlers"
	"github.com/sonroyaalmerol/napstablook/internal/minecraft"
	"github.com/sonroyaalmerol/napstablook/internal/player"
	"github.com/sonroyaalmerol/napstablook/internal/repository"
	"github.com/sonroyaalmerol/napstablook/internal/source"
	"github.com/sonroyaalmerol/napstablook/internal/sponsorblock"
	"github.com/sonroyaalmerol/napstablook/internal/spotify"
	"github.com/sonroyaalmerol/napstablook/internal/stream"
	"github.com/sonroyaalmerol/napstablook/internal/tools"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := repository.OpenDB(cfg.DataDir)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	repo := repository.NewRepo(db)

	rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Warn("redis unavailable, using database for chat history", "err", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}
	history := cache.NewConversation(rdb, repo, cfg.HistoryLimit, 24*time.Hour)

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Fatal(err)
	}

	ytdlp := stream.NewYTDLP(cfg.YouTubeCookiesPath)

	// interfaces stay nil rather than holding a nil *spotify.Client
	var (
		catalog source.Catalog
		suggest autocomplete.SpotifySuggester
	)
	if cfg.SpotifyEnabled() {
		sp := spotify.NewClientCredentials(cfg.SpotifyClientID, cfg.SpotifyClientSecret)
		catalog, suggest = sp, sp
	}

	var trim stream.Trimmer
	if cfg.SponsorBlockEnabled {
		trim = sponsorblock.NewTrimmer(cfg.SponsorBlockCooldown)
	}

	registry := player.NewRegistry(stream.NewVoice(dg, ytdlp, trim))
	gw := player.NewGateway(registry, source.New(ytdlp, catalog), handlers.NewPresence(dg), repo, player.Options{
		DefaultVolume:  cfg.DefaultVolume,
		SearchSource:   cfg.SearchSource,
		ResolveTimeout: cfg.ResolveTimeout,
	})

	mc := minecraft.New(minecraft.Config{
		Host:          cfg.MCHost,
		Port:          cfg.MCPort,
		StatusTimeout: time.Duration(cfg.MCStatusTimeoutMS) * time.Millisecond,
		RconHost:      cfg.RconHost,
		RconPort:      cfg.RconPort,
		RconPassword:  cfg.RconPassword,
		RconTimeout:   time.Duration(cfg.RconTimeoutMS) * time.Millisecond,
	})

	var ec2 tools.Compute
	mgr, err := compute.New(ctx, cfg.AWSRegion, cfg.EC2InstanceID, cfg.EC2StartTimeout)
	switch {
	case errors.Is(err, compute.ErrNotConfigured):
		slog.Info("EC2_INSTANCE_ID not set, server start/stop disabled")
	case err != nil:
		slog.Warn("aws unavailable, server start/stop disabled", "err", err)
	default:
		ec2 = mgr
	}

	adapter := tools.New(gw, mc, ec2, tools.ACL{
		DevIDs:  cfg.DevIDs,
		UserIDs: cfg.RconAllowedUserIDs,
		RoleIDs: cfg.RconAllowedRoleIDs,
	})

	var ai handlers.Replier
	if cfg.GeminiAPIKey != "" {
		a, err := assistant.New(ctx, cfg.GeminiAPIKey, history, adapter, assistant.Config{
			Model:         cfg.GeminiModel,
			Timeout:       cfg.AITimeout,
			RatePerMinute: cfg.AIRatePerMinute,
			HistoryLimit:  cfg.HistoryLimit,
		})
		if err != nil {
			log.Fatal(err)
		}
		ai = a
	} else {
		slog.Info("GEMINI_API_KEY not set, assistant disabled")
	}

	bot := handlers.NewBot(cfg, dg, gw, adapter, ai, autocomplete.New(suggest))
	if err := bot.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
