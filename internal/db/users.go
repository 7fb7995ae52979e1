package db

import (
	"context"
	"errors"

	"launchspace/internal/auth"

	"gorm.io/gorm"
)

// Users implements auth.Store and launch.UserCounter.
type Users struct {
	*Store
}

func (r *Users) CreateUser(ctx context.Context, u *auth.User) error {
	err := r.conn(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return auth.ErrEmailTaken
	}
	return err
}

func (r *Users) UserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *Users) UserByID(ctx context.Context, id uint64) (*auth.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Users) first(ctx context.Context, cond string, arg any) (*auth.User, error) {
	var u auth.User
	err := r.read(ctx, func(db *gorm.DB) error {
		return db.Where(cond, arg).First(&u).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// IncrementSubmissionCount keeps the denormalised counter on users.
func (r *Users) IncrementSubmissionCount(ctx context.Context, userID uint64) error {
	return r.conn(ctx).Model(&auth.User{}).
		Where("id = ?", userID).
		UpdateColumn("submission_count", gorm.Expr("submission_count + ?", 1)).Error
}
