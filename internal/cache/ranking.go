package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"launchspace/internal/launch"

	"github.com/redis/go-redis/v9"
)

const rankingPrefix = "launchspace:ranking:"

// Ranking keeps computed week rankings in Redis. Failures are logged and
// treated as misses.
type Ranking struct {
	RDB *redis.Client
	TTL time.Duration
	Log *slog.Logger
}

func (c *Ranking) log() *slog.Logger {
	if c.Log == nil {
		return slog.Default()
	}
	return c.Log
}

func (c *Ranking) Get(ctx context.Context, launchWeek string) ([]launch.RankedSubmission, bool) {
	b, err := c.RDB.Get(ctx, rankingPrefix+launchWeek).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log().Warn("ranking cache get failed", "launch_week", launchWeek, "error", err)
		return nil, false
	}
	var ranked []launch.RankedSubmission
	if err := json.Unmarshal(b, &ranked); err != nil {
		c.log().Warn("ranking cache entry unreadable", "launch_week", launchWeek, "error", err)
		return nil, false
	}
	return ranked, true
}

func (c *Ranking) Set(ctx context.Context, launchWeek string, ranked []launch.RankedSubmission) {
	b, err := json.Marshal(ranked)
	if err != nil {
		c.log().Warn("ranking cache encode failed", "launch_week", launchWeek, "error", err)
		return
	}
	if err := c.RDB.Set(ctx, rankingPrefix+launchWeek, b, c.TTL).Err(); err != nil {
		c.log().Warn("ranking cache set failed", "launch_week", launchWeek, "error", err)
	}
}

func (c *Ranking) Invalidate(ctx context.Context, launchWeek string) {
	if err := c.RDB.Del(ctx, rankingPrefix+launchWeek).Err(); err != nil {
		c.log().Warn("ranking cache invalidate failed", "launch_week", launchWeek, "error", err)
	}
}
