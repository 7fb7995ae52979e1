package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"launchspace/internal/week"

	"github.com/google/uuid"
)

const (
	maxSlugAttempts = 1000
	maxQueueWeeks   = 52
)

// Service implements submissions, voting and the weekly competition on top
// of the repositories it is given.
type Service struct {
	Tx    Transactor
	Subs  SubmissionRepo
	Votes VoteRepo
	Users UserCounter
	Cache RankingCache
	Log   *slog.Logger
	Now   func() time.Time

	// StandardSlots caps standard-plan launches per week; 0 means no cap.
	StandardSlots int
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// CurrentWeek is the launch week new submissions land in by default.
func (s *Service) CurrentWeek() string {
	return week.ID(s.now())
}

// CreateSubmission validates in and stores a new pending submission owned by
// userID.
func (s *Service) CreateSubmission(ctx context.Context, in SubmissionInput, userID uint64) (*Submission, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	launchWeek := in.LaunchWeek
	if launchWeek == "" {
		var err error
		if launchWeek, err = s.assignWeek(ctx, in.Plan, now); err != nil {
			return nil, err
		}
	}

	sub := &Submission{
		ID:               uuid.NewString(),
		Name:             in.Name,
		ShortDescription: in.ShortDescription,
		FullDescription:  in.FullDescription,
		WebsiteURL:       in.WebsiteURL,
		LogoURL:          in.LogoURL,
		Categories:       in.Categories,
		Pricing:          in.Pricing,
		LaunchWeek:       launchWeek,
		SubmittedBy:      userID,
		Plan:             in.Plan,
		Status:           StatusPending,
		Backlink:         backlinkFor(in.Plan),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if in.Slug != "" {
		sub.Slug = in.Slug
		if err := s.Subs.Create(ctx, sub); err != nil {
			return nil, err
		}
		return sub, nil
	}

	base := Slugify(in.Name)
	for n := 0; n < maxSlugAttempts; n++ {
		candidate := slugCandidate(base, n)
		taken, err := s.Subs.SlugTaken(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}
		sub.Slug = candidate
		err = s.Subs.Create(ctx, sub)
		if errors.Is(err, ErrDuplicateSlug) {
			// lost a race for this candidate
			continue
		}
		if err != nil {
			return nil, err
		}
		return sub, nil
	}
	return nil, fmt.Errorf("no free slug for %q after %d attempts", base, maxSlugAttempts)
}

// assignWeek picks the launch week: the current one, or for capped standard
// launches the first week from now with a free slot.
func (s *Service) assignWeek(ctx context.Context, plan Plan, now time.Time) (string, error) {
	wk := week.ID(now)
	if s.StandardSlots <= 0 || plan != PlanStandard {
		return wk, nil
	}
	for i := 0; i < maxQueueWeeks; i++ {
		n, err := s.Subs.CountWeekPlan(ctx, wk, PlanStandard)
		if err != nil {
			return "", err
		}
		if n < int64(s.StandardSlots) {
			return wk, nil
		}
		if wk, err = week.Next(wk); err != nil {
			return "", err
		}
	}
	return "", &ValidationError{Fields: map[string]string{"launchWeek": "no free standard slot in the next year"}}
}

func backlinkFor(p Plan) Backlink {
	if p == PlanPremium || p == PlanSupport {
		return BacklinkDoFollow
	}
	return BacklinkNoFollow
}

func (s *Service) GetByID(ctx context.Context, id string) (*Submission, error) {
	return s.Subs.GetByID(ctx, id)
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (*Submission, error) {
	return s.Subs.GetBySlug(ctx, slug)
}

// ListSubmissions returns one page of submissions matching every filter,
// best ranked first.
func (s *Service) ListSubmissions(ctx context.Context, f Filter, p Page) (*SubmissionPage, error) {
	p = p.Normalize()
	items, total, err := s.Subs.List(ctx, f, p)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Submission{}
	}
	return &SubmissionPage{
		Items: items,
		Total: total,
		Page:  p.Page,
		Limit: p.Limit,
		Pages: pageCount(total, p.Limit),
	}, nil
}

// UpdateSubmission applies an owner edit.
func (s *Service) UpdateSubmission(ctx context.Context, id string, userID uint64, patch SubmissionPatch) (*Submission, error) {
	var out *Submission
	err := s.Tx.Exec(ctx, func(ctx context.Context) error {
		sub, err := s.Subs.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if sub.SubmittedBy != userID {
			return ErrForbidden
		}
		if sub.Status == StatusArchived || sub.Status == StatusRejected {
			return fmt.Errorf("%w: %s submissions cannot be edited", ErrIllegalState, sub.Status)
		}
		if patch.Empty() {
			out = sub
			return nil
		}
		if err := patch.Apply(sub); err != nil {
			return err
		}
		sub.UpdatedAt = s.now()
		if err := s.Subs.SaveDetails(ctx, sub); err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !patch.Empty() {
		s.invalidate(ctx, out.LaunchWeek)
	}
	return out, nil
}

// DeleteSubmission removes a pending or rejected submission owned by userID.
func (s *Service) DeleteSubmission(ctx context.Context, id string, userID uint64) error {
	return s.Tx.Exec(ctx, func(ctx context.Context) error {
		sub, err := s.Subs.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if sub.SubmittedBy != userID {
			return ErrForbidden
		}
		if sub.Status != StatusPending && sub.Status != StatusRejected {
			return fmt.Errorf("%w: %s submissions cannot be deleted", ErrIllegalState, sub.Status)
		}
		return s.Subs.Delete(ctx, id)
	})
}

func (s *Service) IncrementViews(ctx context.Context, id string) error {
	return s.Subs.Increment(ctx, id, CounterViews)
}

func (s *Service) IncrementClicks(ctx context.Context, id string) error {
	return s.Subs.Increment(ctx, id, CounterClicks)
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusLive, StatusRejected},
	StatusLive:     {StatusArchived},
}

func canTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SetStatus is the moderation transition of a submission.
func (s *Service) SetStatus(ctx context.Context, id string, to Status) (*Submission, error) {
	if !to.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"status": "unknown status"}}
	}
	var out *Submission
	err := s.Tx.Exec(ctx, func(ctx context.Context) error {
		sub, err := s.Subs.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if sub.Status == to {
			out = sub
			return nil
		}
		if !canTransition(sub.Status, to) {
			return fmt.Errorf("%w: cannot move from %s to %s", ErrIllegalState, sub.Status, to)
		}
		now := s.now()
		if err := s.Subs.SetStatus(ctx, id, to, now); err != nil {
			return err
		}
		sub.Status = to
		sub.UpdatedAt = now
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, out.LaunchWeek)
	s.log().Info("submission status changed", "submission_id", id, "status", to)
	return out, nil
}

func (s *Service) SetFeatured(ctx context.Context, id string, featured bool) (*Submission, error) {
	var out *Submission
	err := s.Tx.Exec(ctx, func(ctx context.Context) error {
		sub, err := s.Subs.LockByID(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		if err := s.Subs.SetFeatured(ctx, id, featured, now); err != nil {
			return err
		}
		sub.Featured = featured
		sub.UpdatedAt = now
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, out.LaunchWeek)
	return out, nil
}

// SubmitApp creates a submission for userID and bumps their submission
// counter. The counter is best effort.
func (s *Service) SubmitApp(ctx context.Context, in SubmissionInput, userID uint64) (*Submission, error) {
	sub, err := s.CreateSubmission(ctx, in, userID)
	if err != nil {
		return nil, err
	}
	if s.Users != nil {
		if err := s.Users.IncrementSubmissionCount(ctx, userID); err != nil {
			s.log().Warn("failed to bump submission count", "user_id", userID, "error", err)
		}
	}
	s.log().Info("submission created", "submission_id", sub.ID, "slug", sub.Slug, "launch_week", sub.LaunchWeek, "user_id", userID)
	return sub, nil
}

func (s *Service) invalidate(ctx context.Context, launchWeek string) {
	if s.Cache != nil && launchWeek != "" {
		s.Cache.Invalidate(ctx, launchWeek)
	}
}
