package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sonroyaalmerol/napstablook/internal/assistant"
	"github.com/sonroyaalmerol/napstablook/internal/utils"
)

const (
	messageCap   = 2000
	replyTimeout = 2 * time.Minute
)

// Replier is the assistant surface used for chat messages.
type Replier interface {
	Reply(ctx context.Context, m assistant.Message) (string, error)
}

func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if b.ai == nil || m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	content := strings.TrimSpace(m.Content)
	if content == "" || !b.isAIChannel(s, m.ChannelID) {
		return
	}

	_ = s.ChannelTyping(m.ChannelID)

	var roles []string
	if m.Member != nil {
		roles = m.Member.Roles
	}
	ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
	defer cancel()

	reply, err := b.ai.Reply(ctx, assistant.Message{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		RoleIDs:   roles,
		Content:   content,
	})
	switch {
	case errors.Is(err, assistant.ErrRateLimited):
		reply = assistant.RateLimitedReply
	case err != nil:
		slog.Warn("assistant reply failed", "guildID", m.GuildID, "userID", m.Author.ID, "err", err)
		reply = assistant.Apology
	}

	if _, err := s.ChannelMessageSendReply(m.ChannelID, utils.Truncate(reply, messageCap), m.Reference()); err != nil {
		slog.Warn("failed to send assistant reply", "guildID", m.GuildID, "channelID", m.ChannelID, "err", err)
	}
}

func (b *Bot) isAIChannel(s *discordgo.Session, channelID string) bool {
	ch, err := s.State.Channel(channelID)
	if err != nil {
		if ch, err = s.Channel(channelID); err != nil {
			return false
		}
	}
	return strings.EqualFold(ch.Name, b.cfg.AIChannel)
}
