package db

import (
	"fmt"
	"time"

	"launchspace/internal/auth"
	"launchspace/internal/jobs"
	"launchspace/internal/launch"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func Connect(dsn string, pool PoolConfig) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		// unique violations come back as gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&launch.Submission{},
		&launch.Vote{},
		&auth.User{},
		&jobs.Job{},
	); err != nil {
		return err
	}

	// Category membership filter (GIN for text[])
	if err := gdb.Exec(`create index if not exists idx_submissions_categories on submissions using gin (categories);`).Error; err != nil {
		return err
	}

	// Votes die with their submission; only the two known vote types
	if err := gdb.Exec(`
do $$
begin
  if not exists (select 1 from pg_constraint where conname = 'fk_votes_submission') then
    alter table votes add constraint fk_votes_submission
      foreign key (submission_id) references submissions(id) on delete cascade;
  end if;
  if not exists (select 1 from pg_constraint where conname = 'chk_votes_type') then
    alter table votes add constraint chk_votes_type
      check (vote_type in ('upvote', 'downvote'));
  end if;
end $$;
`).Error; err != nil {
		return err
	}

	// One queued job per dedupe key
	if err := gdb.Exec(`
create unique index if not exists uq_jobs_dedupe
on jobs(dedupe_key)
where dedupe_key is not null;
`).Error; err != nil {
		return err
	}

	// Helpful indexes
	stmts := []string{
		`create index if not exists idx_submissions_rank on submissions(ranking_score desc, created_at desc);`,
		`create index if not exists idx_submissions_week_rank on submissions(launch_week, status, ranking_score desc, created_at desc);`,
		`create index if not exists idx_submissions_winners on submissions(launch_week, weekly_rank) where weekly_rank is not null;`,
		`create index if not exists idx_votes_submission_type on votes(submission_id, vote_type);`,
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
