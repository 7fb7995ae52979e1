package launch

import (
	"context"
	"errors"
)

// CastVote records userID's vote on a live submission. Repeating the same
// vote is a no-op reported as VoteDuplicate; a different vote type replaces
// the old one. Every change recounts the tally from the votes table, all in
// one transaction that holds the submission row.
func (s *Service) CastVote(ctx context.Context, userID uint64, submissionID string, vt VoteType) (*VoteResult, error) {
	if !vt.Valid() {
		return nil, ErrInvalidVoteType
	}

	res := &VoteResult{SubmissionID: submissionID}
	var launchWeek string
	err := s.Tx.Exec(ctx, func(ctx context.Context) error {
		sub, err := s.Subs.LockByID(ctx, submissionID)
		if err != nil {
			return err
		}
		if sub.Status != StatusLive {
			return ErrNotVotable
		}
		launchWeek = sub.LaunchWeek

		existing, err := s.Votes.Get(ctx, userID, submissionID)
		switch {
		case errors.Is(err, ErrNotFound):
			now := s.now()
			if err := s.Votes.Insert(ctx, &Vote{
				UserID:       userID,
				SubmissionID: submissionID,
				VoteType:     vt,
				CreatedAt:    now,
				UpdatedAt:    now,
			}); err != nil {
				return err
			}
			res.Outcome = VoteCreated
		case err != nil:
			return err
		case existing.VoteType == vt:
			res.Outcome = VoteDuplicate
			res.Upvotes, res.Downvotes, res.RankingScore = sub.Upvotes, sub.Downvotes, sub.RankingScore
			return nil
		default:
			if err := s.Votes.SetType(ctx, userID, submissionID, vt, s.now()); err != nil {
				return err
			}
			res.Outcome = VoteChanged
		}
		return s.recount(ctx, submissionID, res)
	})
	if err != nil {
		return nil, err
	}

	res.UserVote = &vt
	if res.Outcome != VoteDuplicate {
		s.invalidate(ctx, launchWeek)
		s.log().Info("vote recorded", "submission_id", submissionID, "user_id", userID, "vote_type", vt, "outcome", res.Outcome)
	}
	return res, nil
}

// RetractVote removes userID's vote and recounts.
func (s *Service) RetractVote(ctx context.Context, userID uint64, submissionID string) (*VoteResult, error) {
	res := &VoteResult{SubmissionID: submissionID, Outcome: VoteRetracted}
	var launchWeek string
	err := s.Tx.Exec(ctx, func(ctx context.Context) error {
		sub, err := s.Subs.LockByID(ctx, submissionID)
		if err != nil {
			return err
		}
		if sub.Status != StatusLive {
			return ErrNotVotable
		}
		launchWeek = sub.LaunchWeek

		deleted, err := s.Votes.Delete(ctx, userID, submissionID)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrNotFound
		}
		return s.recount(ctx, submissionID, res)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, launchWeek)
	return res, nil
}

// VoteForApp casts a vote on the submission with the given slug.
func (s *Service) VoteForApp(ctx context.Context, userID uint64, slug string, vt VoteType) (*VoteResult, error) {
	if !vt.Valid() {
		return nil, ErrInvalidVoteType
	}
	sub, err := s.Subs.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.CastVote(ctx, userID, sub.ID, vt)
}

// UserVote returns userID's current vote on the submission, or nil.
func (s *Service) UserVote(ctx context.Context, userID uint64, submissionID string) (*VoteType, error) {
	v, err := s.Votes.Get(ctx, userID, submissionID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	vt := v.VoteType
	return &vt, nil
}

// Recount rebuilds one submission's tally from its votes.
func (s *Service) Recount(ctx context.Context, submissionID string) (*VoteResult, error) {
	res := &VoteResult{SubmissionID: submissionID}
	var launchWeek string
	err := s.Tx.Exec(ctx, func(ctx context.Context) error {
		sub, err := s.Subs.LockByID(ctx, submissionID)
		if err != nil {
			return err
		}
		launchWeek = sub.LaunchWeek
		return s.recount(ctx, submissionID, res)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, launchWeek)
	return res, nil
}

// recount must run inside the transaction holding the submission row.
func (s *Service) recount(ctx context.Context, submissionID string, res *VoteResult) error {
	up, down, err := s.Votes.Tally(ctx, submissionID)
	if err != nil {
		return err
	}
	score := Score(up, down)
	if err := s.Subs.SetTally(ctx, submissionID, up, down, score, s.now()); err != nil {
		return err
	}
	res.Upvotes, res.Downvotes, res.RankingScore = up, down, score
	return nil
}
