package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/sonroyaalmerol/napstablook/internal/player"
	"github.com/sonroyaalmerol/napstablook/internal/repository"
	"github.com/sonroyaalmerol/napstablook/internal/tools"
)

// Apology is sent in place of a reply when anything goes wrong.
const Apology = "oh no... something went wrong... sorry..."

const systemPrompt = `you are napstablook, a shy but helpful discord bot. answer whatever the user asks, ` +
	`in the user's own language, using only lowercase letters. you remember earlier messages from each user. ` +
	`you have tools to control music in the user's voice channel (play, stop, skip, pause, resume, volume, ` +
	`shuffle, seek, previous song, 24/7 mode, now playing) and to check or administer the minecraft server. ` +
	`only call a tool when the user asks for that action. after a tool runs, tell the user what happened in a short sentence.`

var ErrRateLimited = errors.New("rate limited")

// RateLimitedReply is sent when a user writes faster than the limiter allows.
const RateLimitedReply = "slow down a little... i can only keep up with so many messages..."

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// History is the per-user conversation store.
type History interface {
	Append(ctx context.Context, userID, role, content string) error
	Recent(ctx context.Context, userID string, limit int) ([]repository.Turn, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, name string, c tools.Call) player.Result
}

type Config struct {
	Model         string
	Timeout       time.Duration
	RatePerMinute int
	HistoryLimit  int
}

// Message is one user message addressed to the assistant.
type Message struct {
	GuildID   string
	ChannelID string
	UserID    string
	RoleIDs   []string
	Content   string
}

type Assistant struct {
	gen     generator
	history History
	tools   Dispatcher
	cfg     Config
	config  *genai.GenerateContentConfig

	mu        sync.Mutex
	limiters  map[string]*userLimiter
	lastSweep time.Time
	now       func() time.Time
}

// a limiter idle this long has refilled its burst and can be recreated
const limiterIdle = 10 * time.Minute

type userLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// New connects to the Gemini API.
func New(ctx context.Context, apiKey string, history History, d Dispatcher, cfg Config) (*Assistant, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return newAssistant(client.Models, history, d, cfg), nil
}

func newAssistant(gen generator, history History, d Dispatcher, cfg Config) *Assistant {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	return &Assistant{
		gen:     gen,
		history: history,
		tools:   d,
		cfg:     cfg,
		config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Tools:             declarations(),
		},
		limiters: make(map[string]*userLimiter),
		now:      time.Now,
	}
}

func (a *Assistant) allow(userID string) bool {
	if a.cfg.RatePerMinute <= 0 {
		return true
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	l, ok := a.limiters[userID]
	if !ok {
		a.sweepLocked(now)
		l = &userLimiter{lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(a.cfg.RatePerMinute)), min(a.cfg.RatePerMinute, 3))}
		a.limiters[userID] = l
	}
	l.seen = now
	return l.lim.AllowN(now, 1)
}

// sweepLocked drops idle limiters, at most once per limiterIdle.
func (a *Assistant) sweepLocked(now time.Time) {
	if now.Sub(a.lastSweep) < limiterIdle {
		return
	}
	a.lastSweep = now
	for id, l := range a.limiters {
		if now.Sub(l.seen) >= limiterIdle {
			delete(a.limiters, id)
		}
	}
}

// Reply runs at most two model rounds: the first may request tool calls,
// which run synchronously, and the second turns their results into text.
func (a *Assistant) Reply(ctx context.Context, m Message) (string, error) {
	if !a.allow(m.UserID) {
		return "", ErrRateLimited
	}

	contents := a.load(ctx, m.UserID)
	contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))

	resp, err := a.generate(ctx, contents)
	if err != nil {
		return "", fmt.Errorf("first round: %w", err)
	}

	var results []player.Result
	if calls := resp.FunctionCalls(); len(calls) > 0 {
		contents = append(contents, modelTurn(resp, calls))

		parts := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			res := a.tools.Dispatch(ctx, call.Name, tools.Call{
				Request: player.Request{GuildID: m.GuildID, UserID: m.UserID, TextChannelID: m.ChannelID},
				RoleIDs: m.RoleIDs,
				Args:    call.Args,
			})
			slog.Info("assistant tool call", "name", call.Name, "guildID", m.GuildID, "userID", m.UserID, "success", res.Success)
			results = append(results, res)
			parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       call.ID,
				Name:     call.Name,
				Response: tools.AsMap(res),
			}})
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

		resp, err = a.generate(ctx, contents)
		if err != nil {
			return "", fmt.Errorf("second round: %w", err)
		}
		if extra := resp.FunctionCalls(); len(extra) > 0 {
			slog.Warn("ignoring tool calls in final round", "count", len(extra), "userID", m.UserID)
		}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		text = summarize(results)
	}
	if text == "" {
		return "", errors.New("empty model response")
	}

	a.remember(ctx, m.UserID, genai.RoleUser, m.Content)
	a.remember(ctx, m.UserID, genai.RoleModel, text)
	return text, nil
}

func (a *Assistant) generate(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	rctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	return a.gen.GenerateContent(rctx, a.cfg.Model, contents, a.config)
}

// load returns the user's recent turns as model contents, oldest first.
func (a *Assistant) load(ctx context.Context, userID string) []*genai.Content {
	turns, err := a.history.Recent(ctx, userID, a.cfg.HistoryLimit)
	if err != nil {
		slog.Warn("failed to load chat history", "userID", userID, "err", err)
		return nil
	}
	out := make([]*genai.Content, 0, len(turns)+3)
	for _, t := range turns {
		var role genai.Role = genai.RoleUser
		if t.Role == string(genai.RoleModel) {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(t.Content, role))
	}
	return out
}

func (a *Assistant) remember(ctx context.Context, userID string, role genai.Role, text string) {
	if err := a.history.Append(ctx, userID, string(role), text); err != nil {
		slog.Warn("failed to store chat turn", "userID", userID, "err", err)
	}
}

// modelTurn echoes the model's function-call turn back into the transcript.
func modelTurn(resp *genai.GenerateContentResponse, calls []*genai.FunctionCall) *genai.Content {
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		c := resp.Candidates[0].Content
		if c.Role == "" {
			c.Role = string(genai.RoleModel)
		}
		return c
	}
	parts := make([]*genai.Part, 0, len(calls))
	for _, call := range calls {
		parts = append(parts, &genai.Part{FunctionCall: call})
	}
	return genai.NewContentFromParts(parts, genai.RoleModel)
}

func summarize(results []player.Result) string {
	var msgs []string
	for _, r := range results {
		if r.Message != "" {
			msgs = append(msgs, strings.ToLower(r.Message))
		}
	}
	return strings.Join(msgs, "\n")
}
