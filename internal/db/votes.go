package db

import (
	"context"
	"errors"
	"time"

	"launchspace/internal/launch"

	"gorm.io/gorm"
)

// Votes implements launch.VoteRepo. The (user_id, submission_id) primary
// key is what guarantees one vote per user and submission.
type Votes struct {
	*Store
}

func (r *Votes) Get(ctx context.Context, userID uint64, submissionID string) (*launch.Vote, error) {
	var v launch.Vote
	err := r.read(ctx, func(db *gorm.DB) error {
		return db.Where("user_id = ? AND submission_id = ?", userID, submissionID).First(&v).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, launch.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *Votes) Insert(ctx context.Context, v *launch.Vote) error {
	err := r.conn(ctx).Create(v).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return launch.ErrDuplicateVote
	}
	return err
}

func (r *Votes) SetType(ctx context.Context, userID uint64, submissionID string, t launch.VoteType, at time.Time) error {
	res := r.conn(ctx).Model(&launch.Vote{}).
		Where("user_id = ? AND submission_id = ?", userID, submissionID).
		Updates(map[string]any{"vote_type": t, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return launch.ErrNotFound
	}
	return nil
}

func (r *Votes) Delete(ctx context.Context, userID uint64, submissionID string) (bool, error) {
	res := r.conn(ctx).
		Where("user_id = ? AND submission_id = ?", userID, submissionID).
		Delete(&launch.Vote{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Tally counts the votes of a submission straight from the table.
func (r *Votes) Tally(ctx context.Context, submissionID string) (up, down int64, err error) {
	var row struct {
		Up   int64
		Down int64
	}
	err = r.conn(ctx).Raw(`
		select
			count(*) filter (where vote_type = ?) as up,
			count(*) filter (where vote_type = ?) as down
		from votes
		where submission_id = ?
	`, launch.Upvote, launch.Downvote, submissionID).Scan(&row).Error
	return row.Up, row.Down, err
}
