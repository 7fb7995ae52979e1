package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"launchspace/internal/launch"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const rankingOrder = "ranking_score desc, created_at desc, id asc"

// Submissions implements launch.SubmissionRepo on Postgres.
type Submissions struct {
	*Store
}

func (r *Submissions) Create(ctx context.Context, s *launch.Submission) error {
	err := r.conn(ctx).Create(s).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return launch.ErrDuplicateSlug
	}
	return err
}

func (r *Submissions) SlugTaken(ctx context.Context, slug string) (bool, error) {
	var n int64
	err := r.read(ctx, func(db *gorm.DB) error {
		return db.Model(&launch.Submission{}).Where("slug = ?", slug).Count(&n).Error
	})
	return n > 0, err
}

func (r *Submissions) GetByID(ctx context.Context, id string) (*launch.Submission, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Submissions) GetBySlug(ctx context.Context, slug string) (*launch.Submission, error) {
	return r.first(ctx, "slug = ?", slug)
}

func (r *Submissions) first(ctx context.Context, cond string, arg any) (*launch.Submission, error) {
	var s launch.Submission
	err := r.read(ctx, func(db *gorm.DB) error {
		return db.Where(cond, arg).First(&s).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, launch.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// LockByID selects the row FOR UPDATE; concurrent vote recounts on the same
// submission queue up behind it.
func (r *Submissions) LockByID(ctx context.Context, id string) (*launch.Submission, error) {
	var s launch.Submission
	err := r.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, launch.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Submissions) List(ctx context.Context, f launch.Filter, p launch.Page) ([]launch.Submission, int64, error) {
	var (
		total int64
		rows  []launch.Submission
	)
	err := r.read(ctx, func(db *gorm.DB) error {
		if err := filtered(db, f).Count(&total).Error; err != nil {
			return err
		}
		return filtered(db, f).
			Order(rankingOrder).
			Offset(p.Offset()).
			Limit(p.Limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *Submissions) ListAll(ctx context.Context, f launch.Filter) ([]launch.Submission, error) {
	var rows []launch.Submission
	err := r.read(ctx, func(db *gorm.DB) error {
		return filtered(db, f).Order(rankingOrder).Find(&rows).Error
	})
	return rows, err
}

func filtered(db *gorm.DB, f launch.Filter) *gorm.DB {
	q := db.Model(&launch.Submission{})
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.Category != "" {
		q = q.Where("? = any(categories)", strings.ToLower(f.Category))
	}
	if f.LaunchWeek != "" {
		q = q.Where("launch_week = ?", f.LaunchWeek)
	}
	if f.Featured != nil {
		q = q.Where("featured = ?", *f.Featured)
	}
	if f.SubmittedBy != 0 {
		q = q.Where("submitted_by = ?", f.SubmittedBy)
	}
	if f.Search != "" {
		pat := "%" + escapeLike(f.Search) + "%"
		q = q.Where(`(name ILIKE ? OR short_description ILIKE ?
			OR EXISTS (SELECT 1 FROM unnest(categories) AS c WHERE c ILIKE ?))`, pat, pat, pat)
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *Submissions) CountWeekPlan(ctx context.Context, launchWeek string, plan launch.Plan) (int64, error) {
	var n int64
	err := r.read(ctx, func(db *gorm.DB) error {
		return db.Model(&launch.Submission{}).
			Where("launch_week = ? AND plan = ? AND status <> ?", launchWeek, plan, launch.StatusRejected).
			Count(&n).Error
	})
	return n, err
}

func (r *Submissions) update(ctx context.Context, id string, fields map[string]any) error {
	res := r.conn(ctx).Model(&launch.Submission{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return launch.ErrNotFound
	}
	return nil
}

func (r *Submissions) SaveDetails(ctx context.Context, s *launch.Submission) error {
	return r.update(ctx, s.ID, map[string]any{
		"name":              s.Name,
		"short_description": s.ShortDescription,
		"full_description":  s.FullDescription,
		"website_url":       s.WebsiteURL,
		"logo_url":          s.LogoURL,
		"categories":        pq.StringArray(s.Categories),
		"pricing":           s.Pricing,
		"updated_at":        s.UpdatedAt,
	})
}

func (r *Submissions) SetStatus(ctx context.Context, id string, status launch.Status, at time.Time) error {
	return r.update(ctx, id, map[string]any{"status": status, "updated_at": at})
}

func (r *Submissions) SetFeatured(ctx context.Context, id string, featured bool, at time.Time) error {
	return r.update(ctx, id, map[string]any{"featured": featured, "updated_at": at})
}

// Delete removes the votes and then the submission in one transaction.
func (r *Submissions) Delete(ctx context.Context, id string) error {
	return r.Exec(ctx, func(ctx context.Context) error {
		tx := r.conn(ctx)
		if err := tx.Where("submission_id = ?", id).Delete(&launch.Vote{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&launch.Submission{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return launch.ErrNotFound
		}
		return nil
	})
}

// Increment bumps a counter in a single UPDATE, leaving updated_at alone.
func (r *Submissions) Increment(ctx context.Context, id string, c launch.Counter) error {
	if c != launch.CounterViews && c != launch.CounterClicks {
		return fmt.Errorf("unknown counter %q", c)
	}
	col := string(c)
	res := r.conn(ctx).Model(&launch.Submission{}).
		Where("id = ?", id).
		UpdateColumn(col, gorm.Expr(col+" + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return launch.ErrNotFound
	}
	return nil
}

// SetTally writes the recounted triple in one statement.
func (r *Submissions) SetTally(ctx context.Context, id string, up, down int64, score float64, at time.Time) error {
	return r.update(ctx, id, map[string]any{
		"upvotes":       up,
		"downvotes":     down,
		"ranking_score": score,
		"updated_at":    at,
	})
}

// ClearWinners drops the winner marks of a week; standard-plan submissions
// fall back to a nofollow backlink.
func (r *Submissions) ClearWinners(ctx context.Context, launchWeek string) error {
	return r.conn(ctx).Exec(`
update submissions
set weekly_rank = null,
    backlink = case when plan = ? then ? else backlink end
where launch_week = ? and weekly_rank is not null`,
		launch.PlanStandard, launch.BacklinkNoFollow, launchWeek).Error
}

func (r *Submissions) MarkWinner(ctx context.Context, id string, rank int, at time.Time) error {
	return r.update(ctx, id, map[string]any{
		"weekly_rank": rank,
		"backlink":    launch.BacklinkDoFollow,
		"updated_at":  at,
	})
}

func (r *Submissions) Winners(ctx context.Context, launchWeek string) ([]launch.Submission, error) {
	var rows []launch.Submission
	err := r.read(ctx, func(db *gorm.DB) error {
		return db.Where("launch_week = ? AND weekly_rank IS NOT NULL", launchWeek).
			Order("weekly_rank asc").
			Find(&rows).Error
	})
	return rows, err
}
