package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sonroyaalmerol/napstablook/internal/repository"
)

const keyPrefix = "napstablook:chat:"

// the store keeps this many cache windows of history per user
const retainWindows = 5

// Store is the durable side of the conversation history.
type Store interface {
	AppendTurn(ctx context.Context, userID, role, content string) error
	RecentTurns(ctx context.Context, userID string, limit int) ([]repository.Turn, error)
	PruneTurns(ctx context.Context, userID string, keep int) (int64, error)
}

// Conversation keeps each user's recent turns in a redis list, newest at
// the head, in front of the durable store. Writes go to the store first.
type Conversation struct {
	rdb    *redis.Client
	store  Store
	maxLen int
	ttl    time.Duration
}

type cachedTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	At      int64  `json:"at"`
}

// NewConversation builds the cache. A nil rdb reads and writes the store directly.
func NewConversation(rdb *redis.Client, store Store, maxLen int, ttl time.Duration) *Conversation {
	if maxLen <= 0 {
		maxLen = 20
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Conversation{rdb: rdb, store: store, maxLen: maxLen, ttl: ttl}
}

func key(userID string) string { return keyPrefix + userID }

func (c *Conversation) Append(ctx context.Context, userID, role, content string) error {
	if err := c.store.AppendTurn(ctx, userID, role, content); err != nil {
		return err
	}
	if _, err := c.store.PruneTurns(ctx, userID, c.maxLen*retainWindows); err != nil {
		slog.Warn("chat history prune failed", "userID", userID, "err", err)
	}
	if c.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(cachedTurn{Role: role, Content: content, At: time.Now().UnixMilli()})
	if err != nil {
		return err
	}

	// LPUSHX leaves a cold key cold so a later read loads the full window.
	pipe := c.rdb.Pipeline()
	pipe.LPushX(ctx, key(userID), raw)
	pipe.LTrim(ctx, key(userID), 0, int64(c.maxLen-1))
	pipe.Expire(ctx, key(userID), c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("chat cache append failed", "userID", userID, "err", err)
		c.invalidate(ctx, userID)
	}
	return nil
}

// Recent returns up to limit turns, oldest first.
func (c *Conversation) Recent(ctx context.Context, userID string, limit int) ([]repository.Turn, error) {
	if limit <= 0 || limit > c.maxLen {
		limit = c.maxLen
	}
	if c.rdb == nil {
		return c.store.RecentTurns(ctx, userID, limit)
	}

	vals, err := c.rdb.LRange(ctx, key(userID), 0, int64(limit-1)).Result()
	if err != nil {
		slog.Warn("chat cache read failed", "userID", userID, "err", err)
		return c.store.RecentTurns(ctx, userID, limit)
	}
	if len(vals) > 0 {
		turns, err := decode(userID, vals)
		if err == nil {
			return turns, nil
		}
		slog.Warn("chat cache corrupt, reloading", "userID", userID, "err", err)
		c.invalidate(ctx, userID)
	}

	turns, err := c.store.RecentTurns(ctx, userID, c.maxLen)
	if err != nil {
		return nil, err
	}
	c.warm(ctx, userID, turns)
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

func (c *Conversation) warm(ctx context.Context, userID string, turns []repository.Turn) {
	if len(turns) == 0 {
		return
	}
	vals := make([]any, 0, len(turns))
	for _, t := range turns {
		raw, err := json.Marshal(cachedTurn{Role: t.Role, Content: t.Content, At: t.CreatedAt.UnixMilli()})
		if err != nil {
			return
		}
		vals = append(vals, raw)
	}
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key(userID))
	pipe.LPush(ctx, key(userID), vals...)
	pipe.LTrim(ctx, key(userID), 0, int64(c.maxLen-1))
	pipe.Expire(ctx, key(userID), c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("chat cache warm failed", "userID", userID, "err", err)
	}
}

func (c *Conversation) invalidate(ctx context.Context, userID string) {
	if err := c.rdb.Del(ctx, key(userID)).Err(); err != nil {
		slog.Warn("chat cache invalidate failed", "userID", userID, "err", err)
	}
}

// decode turns a newest-first list into oldest-first turns.
func decode(userID string, vals []string) ([]repository.Turn, error) {
	out := make([]repository.Turn, len(vals))
	for i, v := range vals {
		var ct cachedTurn
		if err := json.Unmarshal([]byte(v), &ct); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		out[len(vals)-1-i] = repository.Turn{
			UserID:    userID,
			Role:      ct.Role,
			Content:   ct.Content,
			CreatedAt: time.UnixMilli(ct.At),
		}
	}
	return out, nil
}
