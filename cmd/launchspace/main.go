package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"launchspace/internal/auth"
	"launchspace/internal/cache"
	"launchspace/internal/config"
	"launchspace/internal/db"
	httpx "launchspace/internal/http"
	"launchspace/internal/jobs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	gdb, err := db.Connect(cfg.DatabaseURL, db.PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		log.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}

	st := db.NewStore(gdb)
	svc := db.NewService(st, log)
	svc.StandardSlots = cfg.WeeklyStandardSlots

	if cfg.RedisAddr != "" {
		rdb := cache.NewRedis(cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		svc.Cache = &cache.Ranking{RDB: rdb, TTL: cfg.RankingCacheTTL, Log: log}
	}

	jwtSvc := auth.NewJWT(cfg.JWTSecret)
	r := httpx.NewRouter(httpx.Deps{
		Config:   cfg,
		JWT:      jwtSvc,
		Accounts: &auth.Accounts{Users: &db.Users{Store: st}, JWT: jwtSvc},
		Svc:      svc,
		Log:      log,
	})

	// worker
	worker := &jobs.Worker{ID: cfg.WorkerID, Queue: &jobs.Repo{DB: gdb}, Winners: svc, Log: log}

	ctx, cancel := context.WithCancel(context.Background())
	go worker.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", "error", err)
	}
}
