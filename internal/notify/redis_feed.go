package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-appointments/pkg/logging"
)

const redisKeyPrefix = "clinic:notifications"

// RedisFeed stores every notification under its own key with a TTL equal to
// the dismissal delay. A per-session sorted set scored by expiry indexes them.
type RedisFeed struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
	logger *logging.Logger
}

// NewRedisFeed creates a Redis backed feed.
func NewRedisFeed(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisFeed {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisFeed{client: client, ttl: ttl, now: time.Now, logger: logger}
}

// WithClock overrides the time source used to score and filter entries.
func (f *RedisFeed) WithClock(now func() time.Time) *RedisFeed {
	if now != nil {
		f.now = now
	}
	return f
}

func indexKey(sessionID string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, sessionID)
}

func itemKey(sessionID, id string) string {
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, sessionID, id)
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// Show implements Presenter.
func (f *RedisFeed) Show(ctx context.Context, message string, severity Severity) (Notification, error) {
	if f.client == nil {
		return Notification{}, errors.New("notify: redis client not configured")
	}
	n, err := build(ctx, message, severity, f.now(), f.ttl)
	if err != nil {
		return Notification{}, err
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return Notification{}, fmt.Errorf("notify: encode notification: %w", err)
	}

	_, err = f.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, itemKey(n.SessionID, n.ID), payload, f.ttl)
		pipe.ZAdd(ctx, indexKey(n.SessionID), redis.Z{Score: score(n.ExpiresAt), Member: n.ID})
		pipe.Expire(ctx, indexKey(n.SessionID), f.ttl)
		return nil
	})
	if err != nil {
		return Notification{}, fmt.Errorf("notify: store notification: %w", err)
	}
	return n, nil
}

func (f *RedisFeed) Active(ctx context.Context, sessionID string) ([]Notification, error) {
	if f.client == nil {
		return nil, errors.New("notify: redis client not configured")
	}
	key := indexKey(sessionID)
	now := score(f.now())

	if err := f.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatFloat(now, 'f', 0, 64)).Err(); err != nil {
		return nil, fmt.Errorf("notify: prune notifications: %w", err)
	}
	ids, err := f.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "(" + strconv.FormatFloat(now, 'f', 0, 64),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("notify: list notifications: %w", err)
	}
	if len(ids) == 0 {
		return []Notification{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = itemKey(sessionID, id)
	}
	values, err := f.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("notify: load notifications: %w", err)
	}

	active := make([]Notification, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var n Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			f.logger.Warn("skipping malformed notification", "session_id", sessionID, "notification_id", ids[i], "error", err)
			continue
		}
		active = append(active, n)
	}
	return active, nil
}

func (f *RedisFeed) Dismiss(ctx context.Context, sessionID, id string) error {
	if f.client == nil {
		return errors.New("notify: redis client not configured")
	}
	var deleted *redis.IntCmd
	_, err := f.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, itemKey(sessionID, id))
		pipe.ZRem(ctx, indexKey(sessionID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("notify: dismiss notification: %w", err)
	}
	if deleted.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Feed = (*RedisFeed)(nil)
