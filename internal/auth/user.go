package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
)

type User struct {
	ID              uint64    `gorm:"primaryKey" json:"id"`
	Email           string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash    string    `gorm:"not null" json:"-"`
	SubmissionCount int64     `gorm:"not null;default:0" json:"submissionCount"`
	CreatedAt       time.Time `gorm:"not null;default:now()" json:"createdAt"`
}

var (
	ErrEmailTaken         = errors.New("email already used")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserNotFound       = errors.New("user not found")
)

const minPasswordLen = 8

// Store persists accounts.
type Store interface {
	// CreateUser inserts u and fills its id; a taken email is ErrEmailTaken.
	CreateUser(ctx context.Context, u *User) error
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByID(ctx context.Context, id uint64) (*User, error)
}

// Accounts registers and logs in users and hands out tokens.
type Accounts struct {
	Users Store
	JWT   *JWT
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func (a *Accounts) Register(ctx context.Context, email, password string) (string, *User, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || len(password) < minPasswordLen {
		return "", nil, ErrInvalidInput
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", nil, err
	}
	u := &User{Email: email, PasswordHash: hash}
	if err := a.Users.CreateUser(ctx, u); err != nil {
		return "", nil, err
	}

	token, err := a.JWT.Sign(u.ID)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (a *Accounts) Login(ctx context.Context, email, password string) (string, *User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", nil, ErrInvalidInput
	}

	u, err := a.Users.UserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if !ComparePassword(u.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := a.JWT.Sign(u.ID)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (a *Accounts) Me(ctx context.Context, id uint64) (*User, error) {
	return a.Users.UserByID(ctx, id)
}
