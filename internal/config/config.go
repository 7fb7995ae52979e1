package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret    string
	AdminUserIDs []uint64

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RankingCacheTTL time.Duration

	WeeklyStandardSlots int
	WinnersCron         string
	WorkerID            string

	LogLevel slog.Level
}

// IsAdmin reports whether id is listed in ADMIN_USER_IDS.
func (c Config) IsAdmin(id uint64) bool {
	for _, a := range c.AdminUserIDs {
		if a == id {
			return true
		}
	}
	return false
}

// Load reads .env (if present) and the environment. Every problem found is
// reported in the returned error.
func Load() (Config, error) {
	_ = godotenv.Load()

	var errs []error
	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          getenv("DATABASE_URL", ""),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",
		JWTSecret:            getenv("JWT_SECRET", ""),
		RedisAddr:            getenv("REDIS_ADDR", ""),
		RedisPassword:        getenv("REDIS_PASSWORD", ""),
		WinnersCron:          getenv("WINNERS_CRON", "0 5 0 * * *"),
		WorkerID:             getenv("WORKER_ID", defaultWorkerID()),
	}

	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("missing env: DATABASE_URL"))
	}
	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("missing env: JWT_SECRET"))
	}

	cfg.CORSAllowedOrigins = splitList(getenv("CORS_ALLOWED_ORIGINS", ""))

	for _, s := range splitList(getenv("ADMIN_USER_IDS", "")) {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("ADMIN_USER_IDS: bad id %q", s))
			continue
		}
		cfg.AdminUserIDs = append(cfg.AdminUserIDs, id)
	}

	var err error
	if cfg.RedisDB, err = strconv.Atoi(getenv("REDIS_DB", "0")); err != nil {
		errs = append(errs, fmt.Errorf("REDIS_DB: %w", err))
	}
	if cfg.WeeklyStandardSlots, err = strconv.Atoi(getenv("WEEKLY_STANDARD_SLOTS", "0")); err != nil || cfg.WeeklyStandardSlots < 0 {
		errs = append(errs, fmt.Errorf("WEEKLY_STANDARD_SLOTS: want a non-negative integer"))
	}
	if cfg.RankingCacheTTL, err = time.ParseDuration(getenv("RANKING_CACHE_TTL", "30s")); err != nil {
		errs = append(errs, fmt.Errorf("RANKING_CACHE_TTL: %w", err))
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	return cfg, errors.Join(errs...)
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "worker-1"
	}
	return host
}
