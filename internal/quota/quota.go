// Package quota tracks each user's daily server-side AI usage in Redis.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDailyLimit is the number of server-side assessments per user per day.
const DefaultDailyLimit = 20

// Status describes a user's quota after a call.
type Status struct {
	Allowed bool
	Used    int
	Limit   int
	ResetAt time.Time
}

// Remaining returns the assessments left today.
func (s Status) Remaining() int {
	if s.Used >= s.Limit {
		return 0
	}
	return s.Limit - s.Used
}

// Tracker counts usage per user per UTC day.
type Tracker struct {
	rdb    *redis.Client
	limit  int
	prefix string
	now    func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(t *Tracker) { t.prefix = prefix }
}

// New creates a tracker. A limit of zero or less disables server-side AI.
func New(rdb *redis.Client, limit int, opts ...Option) *Tracker {
	t := &Tracker{rdb: rdb, limit: limit, prefix: "cv_editor:ai_quota", now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect parses redisURL and verifies the server is reachable.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis unreachable at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// window returns the key for userID and the end of the current day.
func (t *Tracker) window(userID string) (string, time.Time) {
	now := t.now().UTC()
	day := now.Format("2006-01-02")
	reset := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return fmt.Sprintf("%s:%s:%s", t.prefix, userID, day), reset
}

// Consume records one use. When the quota is exhausted the use is still
// counted and Allowed is false.
func (t *Tracker) Consume(ctx context.Context, userID string) (Status, error) {
	key, reset := t.window(userID)
	if t.limit <= 0 {
		return Status{Allowed: false, Limit: t.limit, ResetAt: reset}, nil
	}

	pipe := t.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, reset.Add(time.Hour))
	if _, err := pipe.Exec(ctx); err != nil {
		return Status{}, fmt.Errorf("failed to record AI usage: %w", err)
	}

	used := int(incr.Val())
	return Status{Allowed: used <= t.limit, Used: used, Limit: t.limit, ResetAt: reset}, nil
}

// Peek returns the status without recording a use.
func (t *Tracker) Peek(ctx context.Context, userID string) (Status, error) {
	key, reset := t.window(userID)
	if t.limit <= 0 {
		return Status{Allowed: false, Limit: t.limit, ResetAt: reset}, nil
	}
	used, err := t.rdb.Get(ctx, key).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Status{}, fmt.Errorf("failed to read AI usage: %w", err)
	}
	return Status{Allowed: used < t.limit, Used: used, Limit: t.limit, ResetAt: reset}, nil
}
