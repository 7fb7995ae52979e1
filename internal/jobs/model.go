package jobs

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TypeWeeklyWinners = "WEEKLY_WINNERS"

	StatusPending = "PENDING"
	StatusRunning = "RUNNING"
	StatusDone    = "DONE"
	StatusFailed  = "FAILED"
)

type Job struct {
	ID uint64 `gorm:"primaryKey"`

	Type    string         `gorm:"type:text;not null"` // WEEKLY_WINNERS
	Payload datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'::jsonb"`

	// DedupeKey is unique among jobs that carry one.
	DedupeKey *string `gorm:"type:text"`

	RunAt  time.Time `gorm:"index;not null"`
	Status string    `gorm:"index;not null;default:'PENDING'"` // PENDING/RUNNING/DONE/FAILED

	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:8"`

	LockedBy *string    `gorm:"type:text"`
	LockedAt *time.Time `gorm:"type:timestamptz"`

	LastError *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

type weeklyWinnersPayload struct {
	LaunchWeek string `json:"launch_week"`
}
