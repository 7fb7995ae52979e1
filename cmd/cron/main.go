package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"launchspace/internal/cache"
	"launchspace/internal/config"
	"launchspace/internal/db"
	"launchspace/internal/jobs"
	"launchspace/internal/week"

	"github.com/go-redsync/redsync/v4"
	"github.com/robfig/cron/v3"
)

const winnersLock = "launchspace:cron:weekly-winners"

type scheduler struct {
	repo *jobs.Repo
	rs   *redsync.Redsync
	log  *slog.Logger
}

// enqueuePreviousWeek queues winner selection for the week that just ended.
// The queue dedupes per week, so overlapping runs are harmless.
func (s *scheduler) enqueuePreviousWeek(ctx context.Context) {
	if s.rs != nil {
		mutex := s.rs.NewMutex(winnersLock, redsync.WithExpiry(time.Minute), redsync.WithTries(1))
		if err := mutex.LockContext(ctx); err != nil {
			s.log.Info("weekly winners enqueue skipped, lock busy", "error", err)
			return
		}
		defer func() {
			if _, err := mutex.UnlockContext(ctx); err != nil {
				s.log.Warn("unlock failed", "error", err)
			}
		}()
	}

	now := time.Now()
	prev, err := week.Previous(week.ID(now))
	if err != nil {
		s.log.Error("previous week", "error", err)
		return
	}
	queued, err := s.repo.EnqueueWeeklyWinners(ctx, prev, now)
	if err != nil {
		s.log.Error("enqueue weekly winners failed", "launch_week", prev, "error", err)
		return
	}
	s.log.Info("weekly winners enqueue", "launch_week", prev, "queued", queued)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	gdb, err := db.Connect(cfg.DatabaseURL, db.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		log.Error("database connect failed", "error", err)
		os.Exit(1)
	}

	s := &scheduler{repo: &jobs.Repo{DB: gdb}, log: log}
	if cfg.RedisAddr != "" {
		rdb := cache.NewRedis(cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		s.rs = cache.NewRedsync(rdb)
	} else {
		log.Warn("REDIS_ADDR not set, running without a cross-instance lock")
	}

	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.enqueuePreviousWeek(ctx)
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(cfg.WinnersCron, run); err != nil {
		log.Error("bad WINNERS_CRON", "spec", cfg.WinnersCron, "error", err)
		os.Exit(1)
	}

	// catch up on a missed tick; the dedupe key makes this a no-op otherwise
	run()

	c.Start()
	log.Info("cron started", "winners", cfg.WinnersCron)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	<-c.Stop().Done()
	log.Info("cron stopped")
}
