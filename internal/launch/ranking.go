package launch

import (
	"context"
	"fmt"

	"launchspace/internal/week"
)

const winnersPerWeek = 3

var rankedStatuses = []Status{StatusLive, StatusApproved}

// WeekRanking lists the live and approved submissions of launchWeek, best
// first, with 1-based ranks. Ties keep list order (newest first).
func (s *Service) WeekRanking(ctx context.Context, launchWeek string) ([]RankedSubmission, error) {
	if !week.Valid(launchWeek) {
		return nil, &ValidationError{Fields: map[string]string{"week": "must look like 2024-W07"}}
	}
	if s.Cache != nil {
		if ranked, ok := s.Cache.Get(ctx, launchWeek); ok {
			return ranked, nil
		}
	}

	subs, err := s.Subs.ListAll(ctx, Filter{Statuses: rankedStatuses, LaunchWeek: launchWeek})
	if err != nil {
		return nil, err
	}
	ranked := rank(subs)

	if s.Cache != nil {
		s.Cache.Set(ctx, launchWeek, ranked)
	}
	return ranked, nil
}

func (s *Service) CurrentWeekRanking(ctx context.Context) ([]RankedSubmission, error) {
	return s.WeekRanking(ctx, s.CurrentWeek())
}

// SelectWeeklyWinners marks the top three submissions of a finished week as
// winners and upgrades their backlink. Running it again re-derives the marks.
func (s *Service) SelectWeeklyWinners(ctx context.Context, launchWeek string) ([]RankedSubmission, error) {
	if !week.Valid(launchWeek) {
		return nil, &ValidationError{Fields: map[string]string{"week": "must look like 2024-W07"}}
	}
	if current := s.CurrentWeek(); !week.Before(launchWeek, current) {
		return nil, fmt.Errorf("%w: %s (current week %s)", ErrWeekNotComplete, launchWeek, current)
	}

	var winners []RankedSubmission
	err := s.Tx.Exec(ctx, func(ctx context.Context) error {
		if err := s.Subs.ClearWinners(ctx, launchWeek); err != nil {
			return err
		}
		subs, err := s.Subs.ListAll(ctx, Filter{Statuses: rankedStatuses, LaunchWeek: launchWeek})
		if err != nil {
			return err
		}
		if len(subs) > winnersPerWeek {
			subs = subs[:winnersPerWeek]
		}
		now := s.now()
		winners = rank(subs)
		for i := range winners {
			r := winners[i].Rank
			if err := s.Subs.MarkWinner(ctx, winners[i].ID, r, now); err != nil {
				return err
			}
			winners[i].WeeklyRank = &r
			winners[i].Backlink = BacklinkDoFollow
			winners[i].UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, launchWeek)
	s.log().Info("weekly winners selected", "launch_week", launchWeek, "count", len(winners))
	return winners, nil
}

// Winners returns the marked winners of launchWeek ordered by place.
func (s *Service) Winners(ctx context.Context, launchWeek string) ([]Submission, error) {
	if !week.Valid(launchWeek) {
		return nil, &ValidationError{Fields: map[string]string{"week": "must look like 2024-W07"}}
	}
	subs, err := s.Subs.Winners(ctx, launchWeek)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []Submission{}
	}
	return subs, nil
}

func rank(subs []Submission) []RankedSubmission {
	out := make([]RankedSubmission, len(subs))
	for i := range subs {
		out[i] = RankedSubmission{Rank: i + 1, Submission: subs[i]}
	}
	return out
}
