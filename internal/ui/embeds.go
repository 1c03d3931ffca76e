package ui

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/sonroyaalmerol/napstablook/internal/player"
	"github.com/sonroyaalmerol/napstablook/internal/utils"
)

const (
	colorPlaying = 0x006400
	colorPaused  = 0x8B0000
	colorIdle    = 0x992222

	upNext = 5
)

func songLink(t player.Track) string {
	label := utils.EscapeMd(t.DisplayTitle() + " - " + t.DisplayAuthor())
	if t.URI == "" {
		return label
	}
	return fmt.Sprintf("[%s](%s)", label, t.URI)
}

// NowPlayingEmbed renders a session snapshot with a progress bar and the
// next few queued songs.
func NowPlayingEmbed(snap player.Snapshot) *discordgo.MessageEmbed {
	cur := snap.Current
	if cur == nil {
		return &discordgo.MessageEmbed{
			Title:       "Nothing Playing",
			Description: fmt.Sprintf("No playing song found. %s queued.", songs(len(snap.Queue))),
			Color:       colorIdle,
		}
	}

	button, title, color := "▶️", "Now Playing", colorPlaying
	if snap.Paused {
		button, title, color = "⏸️", "Paused", colorPaused
	}

	elapsed := "live"
	if !cur.IsStream {
		elapsed = fmt.Sprintf("%s/%s", utils.PrettyMillis(snap.PositionMs), utils.PrettyMillis(cur.DurationMs))
	}
	progress := 0.0
	if cur.DurationMs > 0 {
		progress = float64(snap.PositionMs) / float64(cur.DurationMs)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", songLink(*cur))
	if cur.RequesterID != "" {
		fmt.Fprintf(&b, "Requested by: <@%s>\n", cur.RequesterID)
	}
	fmt.Fprintf(&b, "\n%s %s `[ %s ]` 🔉 %d%%", button, ProgressBar(10, progress), elapsed, snap.Volume)

	if len(snap.Queue) > 0 {
		b.WriteString("\n\n**Up next:**\n")
		for i, t := range snap.Queue {
			if i == upNext {
				fmt.Fprintf(&b, "…and %s more\n", songs(len(snap.Queue)-upNext))
				break
			}
			fmt.Fprintf(&b, "`%d.` %s `[ %s ]`\n", i+1, songLink(t), t.DisplayDuration())
		}
	}

	flags := []string{}
	if snap.Autoplay {
		flags = append(flags, "autoplay")
	}
	if snap.Persistent.Enabled {
		flags = append(flags, "24/7")
	}
	mode := "-"
	if len(flags) > 0 {
		mode = strings.Join(flags, ", ")
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: b.String(),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "In queue", Value: songs(len(snap.Queue)), Inline: true},
			{Name: "Total length", Value: totalLength(snap.QueueDurationMs()), Inline: true},
			{Name: "Mode", Value: mode, Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Source: %s", cur.SourceName),
		},
	}
	if cur.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: cur.Thumbnail}
	}
	return embed
}

func songs(n int) string {
	switch n {
	case 0:
		return "-"
	case 1:
		return "1 song"
	}
	return fmt.Sprintf("%d songs", n)
}

func totalLength(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return utils.PrettyMillis(ms)
}
