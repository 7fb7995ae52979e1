package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	"launchspace/internal/launch"
)

// Queue is the part of Repo the worker drives.
type Queue interface {
	Claim(ctx context.Context, workerID string) (*Job, error)
	MarkDone(ctx context.Context, id uint64) error
	MarkFailed(ctx context.Context, id uint64, errMsg string) error
	RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error
}

type WinnerSelector interface {
	SelectWeeklyWinners(ctx context.Context, launchWeek string) ([]launch.RankedSubmission, error)
}

type Worker struct {
	ID      string
	Queue   Queue
	Winners WinnerSelector
	Log     *slog.Logger
	Now     func() time.Time

	// Interval between claim attempts; 800ms when zero.
	Interval time.Duration
}

func (w *Worker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 800 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce claims and handles at most one due job. It reports whether a job
// was found.
func (w *Worker) RunOnce(ctx context.Context) bool {
	job, err := w.Queue.Claim(ctx, w.ID)
	if err != nil {
		w.log().Error("worker claim failed", "worker", w.ID, "error", err)
		return false
	}
	if job == nil {
		return false
	}
	w.handle(ctx, job)
	return true
}

func (w *Worker) log() *slog.Logger {
	if w.Log == nil {
		return slog.Default()
	}
	return w.Log
}

func (w *Worker) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	switch job.Type {
	case TypeWeeklyWinners:
		w.handleWeeklyWinners(ctx, job)
	default:
		w.fail(ctx, job, "unknown job type")
	}
}

func (w *Worker) handleWeeklyWinners(ctx context.Context, job *Job) {
	var p weeklyWinnersPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil || p.LaunchWeek == "" {
		w.fail(ctx, job, "bad payload")
		return
	}

	winners, err := w.Winners.SelectWeeklyWinners(ctx, p.LaunchWeek)
	var verr *launch.ValidationError
	switch {
	case errors.As(err, &verr):
		w.fail(ctx, job, err.Error())
		return
	case err != nil:
		// includes a week that has not finished yet
		w.retry(ctx, job, err.Error())
		return
	}

	w.log().Info("weekly winners job done", "job_id", job.ID, "launch_week", p.LaunchWeek, "winners", len(winners))
	if err := w.Queue.MarkDone(ctx, job.ID); err != nil {
		w.log().Error("mark job done failed", "job_id", job.ID, "error", err)
	}
}

func (w *Worker) fail(ctx context.Context, job *Job, errMsg string) {
	w.log().Warn("job failed", "job_id", job.ID, "type", job.Type, "error", errMsg)
	if err := w.Queue.MarkFailed(ctx, job.ID, errMsg); err != nil {
		w.log().Error("mark job failed failed", "job_id", job.ID, "error", err)
	}
}

func (w *Worker) retry(ctx context.Context, job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		w.fail(ctx, job, errMsg)
		return
	}

	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	next := w.now().Add(time.Duration(sec) * time.Second)

	w.log().Info("job retry scheduled", "job_id", job.ID, "attempts", attempts, "run_at", next)
	if err := w.Queue.RetryLater(ctx, job.ID, attempts, next, errMsg); err != nil {
		w.log().Error("job retry failed", "job_id", job.ID, "error", err)
	}
}
