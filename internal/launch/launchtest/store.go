// Package launchtest provides an in-memory implementation of the launch
// repositories for tests. Transactions hold a store-wide lock and roll back
// every change when fn fails.
package launchtest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"launchspace/internal/auth"
	"launchspace/internal/launch"
)

type voteKey struct {
	userID       uint64
	submissionID string
}

type txKey struct{}

type Store struct {
	mu    sync.Mutex
	subs  map[string]launch.Submission
	votes map[voteKey]launch.Vote
	users map[uint64]int64

	accounts map[uint64]auth.User

	// FailOn makes the named method return the error, e.g. "SetTally".
	FailOn map[string]error
}

func New() *Store {
	return &Store{
		subs:     map[string]launch.Submission{},
		votes:    map[voteKey]launch.Vote{},
		users:    map[uint64]int64{},
		accounts: map[uint64]auth.User{},
		FailOn:   map[string]error{},
	}
}

// Service returns a launch.Service wired to s.
func (s *Store) Service(now func() time.Time) *launch.Service {
	return &launch.Service{Tx: s, Subs: s, Votes: s.Votes(), Users: s, Now: now}
}

func (s *Store) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := make(map[string]launch.Submission, len(s.subs))
	for k, v := range s.subs {
		subs[k] = clone(v)
	}
	votes := make(map[voteKey]launch.Vote, len(s.votes))
	for k, v := range s.votes {
		votes[k] = v
	}

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.subs, s.votes = subs, votes
		return err
	}
	return nil
}

func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) fail(name string) error {
	if s.FailOn == nil {
		return nil
	}
	return s.FailOn[name]
}

func clone(sub launch.Submission) launch.Submission {
	if sub.Categories != nil {
		sub.Categories = append([]string(nil), sub.Categories...)
	}
	if sub.WeeklyRank != nil {
		r := *sub.WeeklyRank
		sub.WeeklyRank = &r
	}
	return sub
}

// Put stores sub as is, bypassing validation. Useful for fixtures.
func (s *Store) Put(sub launch.Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.ID] = clone(sub)
}

// VoteCount returns the number of stored vote rows for a submission.
func (s *Store) VoteCount(submissionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.votes {
		if k.submissionID == submissionID {
			n++
		}
	}
	return n
}

// SubmissionCount returns the counter kept for userID.
func (s *Store) SubmissionCount(userID uint64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userID]
}

func (s *Store) Create(ctx context.Context, sub *launch.Submission) error {
	defer s.lock(ctx)()
	if err := s.fail("Create"); err != nil {
		return err
	}
	for _, existing := range s.subs {
		if existing.Slug == sub.Slug {
			return launch.ErrDuplicateSlug
		}
	}
	s.subs[sub.ID] = clone(*sub)
	return nil
}

func (s *Store) SlugTaken(ctx context.Context, slug string) (bool, error) {
	defer s.lock(ctx)()
	for _, existing := range s.subs {
		if existing.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*launch.Submission, error) {
	defer s.lock(ctx)()
	if err := s.fail("GetByID"); err != nil {
		return nil, err
	}
	sub, ok := s.subs[id]
	if !ok {
		return nil, launch.ErrNotFound
	}
	out := clone(sub)
	return &out, nil
}

func (s *Store) GetBySlug(ctx context.Context, slug string) (*launch.Submission, error) {
	defer s.lock(ctx)()
	if err := s.fail("GetBySlug"); err != nil {
		return nil, err
	}
	for _, sub := range s.subs {
		if sub.Slug == slug {
			out := clone(sub)
			return &out, nil
		}
	}
	return nil, launch.ErrNotFound
}

func (s *Store) LockByID(ctx context.Context, id string) (*launch.Submission, error) {
	return s.GetByID(ctx, id)
}

func (s *Store) List(ctx context.Context, f launch.Filter, p launch.Page) ([]launch.Submission, int64, error) {
	all, err := s.ListAll(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	total := int64(len(all))
	start := p.Offset()
	if start >= len(all) {
		return []launch.Submission{}, total, nil
	}
	end := start + p.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (s *Store) ListAll(ctx context.Context, f launch.Filter) ([]launch.Submission, error) {
	defer s.lock(ctx)()
	if err := s.fail("List"); err != nil {
		return nil, err
	}
	out := []launch.Submission{}
	for _, sub := range s.subs {
		if matches(sub, f) {
			out = append(out, clone(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RankingScore != b.RankingScore {
			return a.RankingScore > b.RankingScore
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func matches(sub launch.Submission, f launch.Filter) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, st := range f.Statuses {
			if sub.Status == st {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.Category != "" && !containsFold(sub.Categories, f.Category) {
		return false
	}
	if f.LaunchWeek != "" && sub.LaunchWeek != f.LaunchWeek {
		return false
	}
	if f.Featured != nil && sub.Featured != *f.Featured {
		return false
	}
	if f.SubmittedBy != 0 && sub.SubmittedBy != f.SubmittedBy {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		hit := strings.Contains(strings.ToLower(sub.Name), q) ||
			strings.Contains(strings.ToLower(sub.ShortDescription), q)
		for _, c := range sub.Categories {
			if strings.Contains(strings.ToLower(c), q) {
				hit = true
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func containsFold(list []string, v string) bool {
	for _, c := range list {
		if strings.EqualFold(c, v) {
			return true
		}
	}
	return false
}

func (s *Store) CountWeekPlan(ctx context.Context, launchWeek string, plan launch.Plan) (int64, error) {
	defer s.lock(ctx)()
	var n int64
	for _, sub := range s.subs {
		if sub.LaunchWeek == launchWeek && sub.Plan == plan && sub.Status != launch.StatusRejected {
			n++
		}
	}
	return n, nil
}

func (s *Store) update(ctx context.Context, id string, fn func(*launch.Submission)) error {
	defer s.lock(ctx)()
	sub, ok := s.subs[id]
	if !ok {
		return launch.ErrNotFound
	}
	fn(&sub)
	s.subs[id] = sub
	return nil
}

func (s *Store) SaveDetails(ctx context.Context, sub *launch.Submission) error {
	if err := s.fail("SaveDetails"); err != nil {
		return err
	}
	in := clone(*sub)
	return s.update(ctx, sub.ID, func(cur *launch.Submission) {
		cur.Name = in.Name
		cur.ShortDescription = in.ShortDescription
		cur.FullDescription = in.FullDescription
		cur.WebsiteURL = in.WebsiteURL
		cur.LogoURL = in.LogoURL
		cur.Categories = in.Categories
		cur.Pricing = in.Pricing
		cur.UpdatedAt = in.UpdatedAt
	})
}

func (s *Store) SetStatus(ctx context.Context, id string, status launch.Status, at time.Time) error {
	return s.update(ctx, id, func(cur *launch.Submission) {
		cur.Status = status
		cur.UpdatedAt = at
	})
}

func (s *Store) SetFeatured(ctx context.Context, id string, featured bool, at time.Time) error {
	return s.update(ctx, id, func(cur *launch.Submission) {
		cur.Featured = featured
		cur.UpdatedAt = at
	})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	defer s.lock(ctx)()
	if err := s.fail("Delete"); err != nil {
		return err
	}
	if _, ok := s.subs[id]; !ok {
		return launch.ErrNotFound
	}
	for k := range s.votes {
		if k.submissionID == id {
			delete(s.votes, k)
		}
	}
	delete(s.subs, id)
	return nil
}

func (s *Store) Increment(ctx context.Context, id string, c launch.Counter) error {
	return s.update(ctx, id, func(cur *launch.Submission) {
		switch c {
		case launch.CounterViews:
			cur.Views++
		case launch.CounterClicks:
			cur.Clicks++
		}
	})
}

func (s *Store) SetTally(ctx context.Context, id string, up, down int64, score float64, at time.Time) error {
	if err := s.fail("SetTally"); err != nil {
		return err
	}
	return s.update(ctx, id, func(cur *launch.Submission) {
		cur.Upvotes, cur.Downvotes, cur.RankingScore = up, down, score
		cur.UpdatedAt = at
	})
}

func (s *Store) ClearWinners(ctx context.Context, launchWeek string) error {
	defer s.lock(ctx)()
	for id, sub := range s.subs {
		if sub.LaunchWeek == launchWeek && sub.WeeklyRank != nil {
			sub.WeeklyRank = nil
			if sub.Plan == launch.PlanStandard {
				sub.Backlink = launch.BacklinkNoFollow
			}
			s.subs[id] = sub
		}
	}
	return nil
}

func (s *Store) MarkWinner(ctx context.Context, id string, rank int, at time.Time) error {
	return s.update(ctx, id, func(cur *launch.Submission) {
		r := rank
		cur.WeeklyRank = &r
		cur.Backlink = launch.BacklinkDoFollow
		cur.UpdatedAt = at
	})
}

func (s *Store) Winners(ctx context.Context, launchWeek string) ([]launch.Submission, error) {
	defer s.lock(ctx)()
	var out []launch.Submission
	for _, sub := range s.subs {
		if sub.LaunchWeek == launchWeek && sub.WeeklyRank != nil {
			out = append(out, clone(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].WeeklyRank < *out[j].WeeklyRank })
	return out, nil
}

func (s *Store) IncrementSubmissionCount(ctx context.Context, userID uint64) error {
	defer s.lock(ctx)()
	if err := s.fail("IncrementSubmissionCount"); err != nil {
		return err
	}
	s.users[userID]++
	return nil
}

// Votes returns the vote repository backed by s.
func (s *Store) Votes() launch.VoteRepo { return votes{s} }

type votes struct{ s *Store }

func (r votes) Get(ctx context.Context, userID uint64, submissionID string) (*launch.Vote, error) {
	defer r.s.lock(ctx)()
	v, ok := r.s.votes[voteKey{userID, submissionID}]
	if !ok {
		return nil, launch.ErrNotFound
	}
	return &v, nil
}

func (r votes) Insert(ctx context.Context, v *launch.Vote) error {
	defer r.s.lock(ctx)()
	if err := r.s.fail("Insert"); err != nil {
		return err
	}
	k := voteKey{v.UserID, v.SubmissionID}
	if _, ok := r.s.votes[k]; ok {
		return launch.ErrDuplicateVote
	}
	r.s.votes[k] = *v
	return nil
}

func (r votes) SetType(ctx context.Context, userID uint64, submissionID string, t launch.VoteType, at time.Time) error {
	defer r.s.lock(ctx)()
	k := voteKey{userID, submissionID}
	v, ok := r.s.votes[k]
	if !ok {
		return launch.ErrNotFound
	}
	v.VoteType = t
	v.UpdatedAt = at
	r.s.votes[k] = v
	return nil
}

func (r votes) Delete(ctx context.Context, userID uint64, submissionID string) (bool, error) {
	defer r.s.lock(ctx)()
	k := voteKey{userID, submissionID}
	if _, ok := r.s.votes[k]; !ok {
		return false, nil
	}
	delete(r.s.votes, k)
	return true, nil
}

func (r votes) Tally(ctx context.Context, submissionID string) (up, down int64, err error) {
	defer r.s.lock(ctx)()
	if err := r.s.fail("Tally"); err != nil {
		return 0, 0, err
	}
	for k, v := range r.s.votes {
		if k.submissionID != submissionID {
			continue
		}
		switch v.VoteType {
		case launch.Upvote:
			up++
		case launch.Downvote:
			down++
		}
	}
	return up, down, nil
}

func (s *Store) CreateUser(ctx context.Context, u *auth.User) error {
	defer s.lock(ctx)()
	for _, a := range s.accounts {
		if a.Email == u.Email {
			return auth.ErrEmailTaken
		}
	}
	u.ID = uint64(len(s.accounts) + 1)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	s.accounts[u.ID] = *u
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*auth.User, error) {
	defer s.lock(ctx)()
	for _, a := range s.accounts {
		if a.Email == email {
			a.SubmissionCount = s.users[a.ID]
			return &a, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (s *Store) UserByID(ctx context.Context, id uint64) (*auth.User, error) {
	defer s.lock(ctx)()
	a, ok := s.accounts[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	a.SubmissionCount = s.users[id]
	return &a, nil
}
