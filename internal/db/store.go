package db

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type txKey struct{}

// Store is the shared gorm handle behind the repositories. Calls made with
// a context produced by Exec run on that transaction.
type Store struct {
	DB *gorm.DB

	// ReadAttempts and ReadBackoff control retries of transient read errors.
	ReadAttempts int
	ReadBackoff  time.Duration
}

func NewStore(gdb *gorm.DB) *Store {
	return &Store{DB: gdb, ReadAttempts: 3, ReadBackoff: 50 * time.Millisecond}
}

// Exec runs fn in a transaction, or inside the caller's one if ctx already
// carries it.
func (s *Store) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return s.DB.WithContext(ctx)
}

// read runs a query, retrying transient failures when it is not part of a
// transaction (a failed statement aborts the whole transaction anyway).
func (s *Store) read(ctx context.Context, fn func(db *gorm.DB) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(s.conn(ctx))
	}
	return retry(ctx, s.ReadAttempts, s.ReadBackoff, func() error {
		return fn(s.DB.WithContext(ctx))
	})
}
