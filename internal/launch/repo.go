package launch

import (
	"context"
	"time"
)

// Transactor runs fn inside one storage transaction. Repository calls made
// with the ctx handed to fn join that transaction.
type Transactor interface {
	Exec(ctx context.Context, fn func(ctx context.Context) error) error
}

type Counter string

const (
	CounterViews  Counter = "views"
	CounterClicks Counter = "clicks"
)

type SubmissionRepo interface {
	// Create inserts s; a slug conflict is reported as ErrDuplicateSlug.
	Create(ctx context.Context, s *Submission) error
	SlugTaken(ctx context.Context, slug string) (bool, error)
	GetByID(ctx context.Context, id string) (*Submission, error)
	GetBySlug(ctx context.Context, slug string) (*Submission, error)
	// LockByID loads the row and holds it until the surrounding
	// transaction ends.
	LockByID(ctx context.Context, id string) (*Submission, error)
	List(ctx context.Context, f Filter, p Page) ([]Submission, int64, error)
	ListAll(ctx context.Context, f Filter) ([]Submission, error)
	CountWeekPlan(ctx context.Context, launchWeek string, plan Plan) (int64, error)
	// SaveDetails writes the owner editable columns of s.
	SaveDetails(ctx context.Context, s *Submission) error
	SetStatus(ctx context.Context, id string, status Status, at time.Time) error
	SetFeatured(ctx context.Context, id string, featured bool, at time.Time) error
	// Delete removes the submission together with its votes.
	Delete(ctx context.Context, id string) error
	Increment(ctx context.Context, id string, c Counter) error
	SetTally(ctx context.Context, id string, up, down int64, score float64, at time.Time) error
	ClearWinners(ctx context.Context, launchWeek string) error
	MarkWinner(ctx context.Context, id string, rank int, at time.Time) error
	Winners(ctx context.Context, launchWeek string) ([]Submission, error)
}

type VoteRepo interface {
	Get(ctx context.Context, userID uint64, submissionID string) (*Vote, error)
	Insert(ctx context.Context, v *Vote) error
	SetType(ctx context.Context, userID uint64, submissionID string, t VoteType, at time.Time) error
	Delete(ctx context.Context, userID uint64, submissionID string) (bool, error)
	Tally(ctx context.Context, submissionID string) (up, down int64, err error)
}

// UserCounter keeps the denormalised per-user submission count.
type UserCounter interface {
	IncrementSubmissionCount(ctx context.Context, userID uint64) error
}

// RankingCache holds computed week rankings. Implementations swallow
// their own errors; a miss just means recomputing.
type RankingCache interface {
	Get(ctx context.Context, launchWeek string) ([]RankedSubmission, bool)
	Set(ctx context.Context, launchWeek string, ranked []RankedSubmission)
	Invalidate(ctx context.Context, launchWeek string)
}
