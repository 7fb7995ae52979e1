package launch

import (
	"time"

	"github.com/lib/pq"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusLive     Status = "live"
	StatusArchived Status = "archived"
	StatusRejected Status = "rejected"
)

type Plan string

const (
	PlanStandard Plan = "standard"
	PlanPremium  Plan = "premium"
	PlanSupport  Plan = "support"
)

type Pricing string

const (
	PricingFree     Pricing = "Free"
	PricingFreemium Pricing = "Freemium"
	PricingPaid     Pricing = "Paid"
)

type Backlink string

const (
	BacklinkNoFollow Backlink = "nofollow"
	BacklinkDoFollow Backlink = "dofollow"
)

type VoteType string

const (
	Upvote   VoteType = "upvote"
	Downvote VoteType = "downvote"
)

func (v VoteType) Valid() bool { return v == Upvote || v == Downvote }

// Submission is a launched project competing in its launch week.
// Upvotes, Downvotes and RankingScore are derived from the votes table and
// only ever written by a recount.
type Submission struct {
	ID               string         `gorm:"primaryKey;type:text" json:"id"`
	Slug             string         `gorm:"type:text;uniqueIndex;not null" json:"slug"`
	Name             string         `gorm:"type:text;not null" json:"name"`
	ShortDescription string         `gorm:"type:text;not null" json:"shortDescription"`
	FullDescription  string         `gorm:"type:text;not null;default:''" json:"fullDescription"`
	WebsiteURL       string         `gorm:"column:website_url;type:text;not null" json:"websiteUrl"`
	LogoURL          string         `gorm:"column:logo_url;type:text;not null;default:''" json:"logoUrl,omitempty"`
	Categories       pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"categories"`
	Pricing          Pricing        `gorm:"type:text;not null" json:"pricing"`
	LaunchWeek       string         `gorm:"type:text;index;not null" json:"launchWeek"`
	SubmittedBy      uint64         `gorm:"index;not null" json:"submittedBy"`
	Plan             Plan           `gorm:"type:text;not null;default:'standard'" json:"plan"`
	Status           Status         `gorm:"type:text;index;not null;default:'pending'" json:"status"`
	Upvotes          int64          `gorm:"not null;default:0" json:"upvotes"`
	Downvotes        int64          `gorm:"not null;default:0" json:"downvotes"`
	RankingScore     float64        `gorm:"not null;default:0" json:"rankingScore"`
	Featured         bool           `gorm:"not null;default:false" json:"featured"`
	Backlink         Backlink       `gorm:"type:text;not null;default:'nofollow'" json:"backlink"`
	WeeklyRank       *int           `json:"weeklyRank,omitempty"`
	Views            int64          `gorm:"not null;default:0" json:"views"`
	Clicks           int64          `gorm:"not null;default:0" json:"clicks"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"createdAt"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updatedAt"`
}

// Vote is the single vote a user holds on a submission.
type Vote struct {
	UserID       uint64    `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	SubmissionID string    `gorm:"primaryKey;type:text" json:"submissionId"`
	VoteType     VoteType  `gorm:"type:text;not null" json:"voteType"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"not null;default:now()" json:"updatedAt"`
}

// Score is the ranking score for a tally.
func Score(upvotes, downvotes int64) float64 {
	return float64(upvotes) - float64(downvotes)*0.5
}

// Filter narrows ListSubmissions. Zero values mean "no constraint".
type Filter struct {
	Statuses    []Status
	Category    string
	LaunchWeek  string
	Featured    *bool
	SubmittedBy uint64
	Search      string
}

type Page struct {
	Page  int
	Limit int
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Normalize clamps p into the accepted range.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

type SubmissionPage struct {
	Items []Submission `json:"items"`
	Total int64        `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Pages int          `json:"pages"`
}

func pageCount(total int64, limit int) int {
	if limit <= 0 || total == 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// RankedSubmission is a submission with its 1-based position in a week.
type RankedSubmission struct {
	Rank int `json:"rank"`
	Submission
}

type VoteOutcome string

const (
	VoteCreated   VoteOutcome = "created"
	VoteChanged   VoteOutcome = "changed"
	VoteDuplicate VoteOutcome = "duplicate"
	VoteRetracted VoteOutcome = "retracted"
)

// VoteResult reports what a vote operation did and the tally afterwards.
type VoteResult struct {
	Outcome      VoteOutcome `json:"outcome"`
	SubmissionID string      `json:"submissionId"`
	Upvotes      int64       `json:"upvotes"`
	Downvotes    int64       `json:"downvotes"`
	RankingScore float64     `json:"rankingScore"`
	UserVote     *VoteType   `json:"userVote"`
}
