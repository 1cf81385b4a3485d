package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"mimic-chat/backend/pkg/config"

	"github.com/redis/go-redis/v9"
)

const (
	onlineKeyFormat   = "presence:online:%s"
	lastSeenKeyFormat = "presence:lastseen:%s"

	// An online marker outlives the websocket ping period so a live
	// connection keeps refreshing it before it lapses.
	onlineTTL = 90 * time.Second
)

// Info is the presence data merged into user listings.
type Info struct {
	IsOnline bool
	LastSeen int64
}

// Store tracks per-user online state in Redis. All operations are
// best-effort: a missing or unreachable Redis degrades to "no presence
// data", never to a request failure. A nil *Store is valid and behaves as
// "presence disabled", since callers receive nil when the feature is off.
type Store struct {
	client *redis.Client
}

// NewStore creates a presence store from configuration.
func NewStore() *Store {
	cfg := config.Get()
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return &Store{client: client}
}

// Ping checks connectivity, used by the health checker.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// SetOnline marks a user online. Called on websocket connect and refreshed
// on every ping so the marker expires shortly after a dead connection.
func (s *Store) SetOnline(ctx context.Context, userID string) error {
	if s == nil {
		return nil
	}
	return s.client.Set(ctx, fmt.Sprintf(onlineKeyFormat, userID), "1", onlineTTL).Err()
}

// SetOffline clears the online marker and records the last-seen timestamp
// in milliseconds.
func (s *Store) SetOffline(ctx context.Context, userID string) error {
	if s == nil {
		return nil
	}
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	pipe := s.client.Pipeline()
	pipe.Del(ctx, fmt.Sprintf(onlineKeyFormat, userID))
	pipe.Set(ctx, fmt.Sprintf(lastSeenKeyFormat, userID), now, 0)
	_, err := pipe.Exec(ctx)
	return err
}

// Lookup fetches presence for a batch of users in one pipeline round trip.
// Users with no stored state come back zero-valued.
func (s *Store) Lookup(ctx context.Context, userIDs []string) (map[string]Info, error) {
	result := make(map[string]Info, len(userIDs))
	if s == nil || len(userIDs) == 0 {
		return result, nil
	}

	pipe := s.client.Pipeline()
	onlineCmds := make([]*redis.IntCmd, len(userIDs))
	lastSeenCmds := make([]*redis.StringCmd, len(userIDs))
	for i, id := range userIDs {
		onlineCmds[i] = pipe.Exists(ctx, fmt.Sprintf(onlineKeyFormat, id))
		lastSeenCmds[i] = pipe.Get(ctx, fmt.Sprintf(lastSeenKeyFormat, id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return result, err
	}

	for i, id := range userIDs {
		info := Info{IsOnline: onlineCmds[i].Val() > 0}
		if raw, err := lastSeenCmds[i].Result(); err == nil {
			if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
				info.LastSeen = ms
			}
		}
		result[id] = info
	}

	return result, nil
}
