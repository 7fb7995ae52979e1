package launch_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"launchspace/internal/launch"
	"launchspace/internal/launch/launchtest"
)

// 2024-03-05 falls in 2024-W10.
var fixedNow = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*launch.Service, *launchtest.Store) {
	t.Helper()
	store := launchtest.New()
	return store.Service(func() time.Time { return fixedNow }), store
}

func validInput(name string) launch.SubmissionInput {
	return launch.SubmissionInput{
		Name:             name,
		ShortDescription: "A tool that does useful things",
		WebsiteURL:       "https://example.com",
		Categories:       []string{"productivity"},
		Pricing:          launch.PricingFree,
	}
}

func submitLive(t *testing.T, svc *launch.Service, name string, owner uint64) *launch.Submission {
	t.Helper()
	ctx := context.Background()
	sub, err := svc.SubmitApp(ctx, validInput(name), owner)
	if err != nil {
		t.Fatalf("SubmitApp(%q): %v", name, err)
	}
	if _, err := svc.SetStatus(ctx, sub.ID, launch.StatusApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	live, err := svc.SetStatus(ctx, sub.ID, launch.StatusLive)
	if err != nil {
		t.Fatalf("go live: %v", err)
	}
	return live
}

func assertTally(t *testing.T, svc *launch.Service, id string, up, down int64, score float64) {
	t.Helper()
	sub, err := svc.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if sub.Upvotes != up || sub.Downvotes != down || sub.RankingScore != score {
		t.Errorf("tally = (%d, %d, %v), want (%d, %d, %v)",
			sub.Upvotes, sub.Downvotes, sub.RankingScore, up, down, score)
	}
}

func TestSlugGeneration(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	want := []string{"my-cool-app", "my-cool-app-1", "my-cool-app-2"}
	for _, w := range want {
		sub, err := svc.CreateSubmission(ctx, validInput("My Cool App!"), 1)
		if err != nil {
			t.Fatalf("CreateSubmission: %v", err)
		}
		if sub.Slug != w {
			t.Errorf("slug = %q, want %q", sub.Slug, w)
		}
	}
}

func TestCreateExplicitSlugTaken(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	in := validInput("Foo")
	in.Slug = "foo"
	if _, err := svc.CreateSubmission(ctx, in, 1); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.CreateSubmission(ctx, in, 2)
	if !errors.Is(err, launch.ErrDuplicateSlug) {
		t.Fatalf("expected ErrDuplicateSlug, got %v", err)
	}

	// an auto-generated slug resolves the same collision
	sub, err := svc.CreateSubmission(ctx, validInput("Foo"), 2)
	if err != nil {
		t.Fatalf("auto slug: %v", err)
	}
	if sub.Slug != "foo-1" {
		t.Errorf("slug = %q, want foo-1", sub.Slug)
	}
}

func TestCreateDefaults(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sub, err := svc.CreateSubmission(ctx, validInput("Foo"), 7)
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	if sub.ID == "" {
		t.Error("expected generated id")
	}
	if sub.LaunchWeek != "2024-W10" {
		t.Errorf("launchWeek = %q, want 2024-W10", sub.LaunchWeek)
	}
	if sub.Status != launch.StatusPending {
		t.Errorf("status = %q, want pending", sub.Status)
	}
	if sub.Plan != launch.PlanStandard || sub.Backlink != launch.BacklinkNoFollow {
		t.Errorf("plan/backlink = %q/%q", sub.Plan, sub.Backlink)
	}
	if sub.SubmittedBy != 7 {
		t.Errorf("submittedBy = %d", sub.SubmittedBy)
	}
	if !sub.CreatedAt.Equal(fixedNow) {
		t.Errorf("createdAt = %v", sub.CreatedAt)
	}

	in := validInput("Bar")
	in.Plan = launch.PlanPremium
	in.LaunchWeek = "2024-W12"
	sub, err = svc.CreateSubmission(ctx, in, 7)
	if err != nil {
		t.Fatalf("CreateSubmission premium: %v", err)
	}
	if sub.Backlink != launch.BacklinkDoFollow {
		t.Errorf("premium backlink = %q", sub.Backlink)
	}
	if sub.LaunchWeek != "2024-W12" {
		t.Errorf("explicit week not kept: %q", sub.LaunchWeek)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		edit  func(in *launch.SubmissionInput)
		field string
	}{
		{"missing name", func(in *launch.SubmissionInput) { in.Name = "  " }, "name"},
		{"short description too short", func(in *launch.SubmissionInput) { in.ShortDescription = "tiny" }, "shortDescription"},
		{"relative url", func(in *launch.SubmissionInput) { in.WebsiteURL = "/foo" }, "websiteUrl"},
		{"ftp url", func(in *launch.SubmissionInput) { in.WebsiteURL = "ftp://example.com" }, "websiteUrl"},
		{"no categories", func(in *launch.SubmissionInput) { in.Categories = nil }, "categories"},
		{"four categories", func(in *launch.SubmissionInput) { in.Categories = []string{"a", "b", "c", "d"} }, "categories"},
		{"bad pricing", func(in *launch.SubmissionInput) { in.Pricing = "Cheap" }, "pricing"},
		{"bad plan", func(in *launch.SubmissionInput) { in.Plan = "gold" }, "plan"},
		{"bad slug", func(in *launch.SubmissionInput) { in.Slug = "Not A Slug" }, "slug"},
		{"bad week", func(in *launch.SubmissionInput) { in.LaunchWeek = "2024-10" }, "launchWeek"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput("Valid Name")
			tt.edit(&in)
			_, err := svc.CreateSubmission(ctx, in, 1)
			var verr *launch.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := verr.Fields[tt.field]; !ok {
				t.Errorf("expected field %q in %v", tt.field, verr.Fields)
			}
		})
	}

	page, err := svc.ListSubmissions(ctx, launch.Filter{}, launch.Page{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 0 {
		t.Errorf("invalid input was stored: %d rows", page.Total)
	}
	if store.SubmissionCount(1) != 0 {
		t.Error("counter bumped on failure")
	}
}

func TestCreateDeduplicatesCategories(t *testing.T) {
	svc, _ := newService(t)
	in := validInput("Foo")
	in.Categories = []string{"AI", "ai ", "Dev Tools", "ai"}
	sub, err := svc.CreateSubmission(context.Background(), in, 1)
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	if len(sub.Categories) != 2 || sub.Categories[0] != "ai" || sub.Categories[1] != "dev tools" {
		t.Errorf("categories = %v", sub.Categories)
	}
}

func TestVotingScenario(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	const userA, userB, userC = 1, 2, 3

	in := validInput("Foo")
	sub, err := svc.SubmitApp(ctx, in, userA)
	if err != nil {
		t.Fatalf("SubmitApp: %v", err)
	}
	if sub.Slug != "foo" || sub.LaunchWeek != "2024-W10" {
		t.Fatalf("slug/week = %q/%q", sub.Slug, sub.LaunchWeek)
	}
	svc.SetStatus(ctx, sub.ID, launch.StatusApproved)
	svc.SetStatus(ctx, sub.ID, launch.StatusLive)

	res, err := svc.VoteForApp(ctx, userB, "foo", launch.Upvote)
	if err != nil {
		t.Fatalf("B upvote: %v", err)
	}
	if res.Outcome != launch.VoteCreated {
		t.Errorf("outcome = %q", res.Outcome)
	}
	assertTally(t, svc, sub.ID, 1, 0, 1)

	res, err = svc.VoteForApp(ctx, userB, "foo", launch.Downvote)
	if err != nil {
		t.Fatalf("B downvote: %v", err)
	}
	if res.Outcome != launch.VoteChanged {
		t.Errorf("outcome = %q", res.Outcome)
	}
	assertTally(t, svc, sub.ID, 0, 1, -0.5)

	res, err = svc.VoteForApp(ctx, userC, "foo", launch.Upvote)
	if err != nil {
		t.Fatalf("C upvote: %v", err)
	}
	if res.Upvotes != 1 || res.Downvotes != 1 || res.RankingScore != 0.5 {
		t.Errorf("result tally = %+v", res)
	}
	assertTally(t, svc, sub.ID, 1, 1, 0.5)
}

func TestDuplicateVoteIsNoop(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	sub := submitLive(t, svc, "Foo", 1)

	if _, err := svc.CastVote(ctx, 2, sub.ID, launch.Upvote); err != nil {
		t.Fatal(err)
	}
	before, _ := svc.GetByID(ctx, sub.ID)

	res, err := svc.CastVote(ctx, 2, sub.ID, launch.Upvote)
	if err != nil {
		t.Fatalf("repeat vote: %v", err)
	}
	if res.Outcome != launch.VoteDuplicate {
		t.Errorf("outcome = %q, want duplicate", res.Outcome)
	}
	if res.Upvotes != 1 || res.RankingScore != 1 {
		t.Errorf("duplicate result tally = %+v", res)
	}
	after, _ := svc.GetByID(ctx, sub.ID)
	if !after.UpdatedAt.Equal(before.UpdatedAt) || after.Upvotes != 1 {
		t.Error("duplicate vote rewrote the submission")
	}
	if n := store.VoteCount(sub.ID); n != 1 {
		t.Errorf("vote rows = %d, want 1", n)
	}
}

func TestChangingVoteMovesScoreByOneAndAHalf(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	sub := submitLive(t, svc, "Foo", 1)

	svc.CastVote(ctx, 5, sub.ID, launch.Upvote)
	svc.CastVote(ctx, 6, sub.ID, launch.Upvote)
	before, _ := svc.GetByID(ctx, sub.ID)

	if _, err := svc.CastVote(ctx, 5, sub.ID, launch.Downvote); err != nil {
		t.Fatal(err)
	}
	after, _ := svc.GetByID(ctx, sub.ID)
	if after.Upvotes != before.Upvotes-1 || after.Downvotes != before.Downvotes+1 {
		t.Errorf("tally moved from (%d,%d) to (%d,%d)", before.Upvotes, before.Downvotes, after.Upvotes, after.Downvotes)
	}
	if d := after.RankingScore - before.RankingScore; d != -1.5 {
		t.Errorf("score delta = %v, want -1.5", d)
	}
}

func TestVoteRequiresLiveSubmission(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	pending, _ := svc.CreateSubmission(ctx, validInput("Pending"), 1)
	approved, _ := svc.CreateSubmission(ctx, validInput("Approved"), 1)
	svc.SetStatus(ctx, approved.ID, launch.StatusApproved)
	rejected, _ := svc.CreateSubmission(ctx, validInput("Rejected"), 1)
	svc.SetStatus(ctx, rejected.ID, launch.StatusRejected)
	archived := submitLive(t, svc, "Archived", 1)
	svc.SetStatus(ctx, archived.ID, launch.StatusArchived)

	for _, id := range []string{pending.ID, approved.ID, rejected.ID, archived.ID} {
		_, err := svc.CastVote(ctx, 9, id, launch.Upvote)
		if !errors.Is(err, launch.ErrNotVotable) {
			t.Errorf("vote on %s: expected ErrNotVotable, got %v", id, err)
		}
		if store.VoteCount(id) != 0 {
			t.Errorf("vote row written for %s", id)
		}
	}
}

func TestVoteErrors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	sub := submitLive(t, svc, "Foo", 1)

	if _, err := svc.CastVote(ctx, 2, sub.ID, "sideways"); !errors.Is(err, launch.ErrInvalidVoteType) {
		t.Errorf("expected ErrInvalidVoteType, got %v", err)
	}
	if _, err := svc.CastVote(ctx, 2, "missing", launch.Upvote); !errors.Is(err, launch.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.VoteForApp(ctx, 2, "nope", launch.Upvote); !errors.Is(err, launch.ErrNotFound) {
		t.Errorf("expected ErrNotFound by slug, got %v", err)
	}
}

func TestRetractVote(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	sub := submitLive(t, svc, "Foo", 1)

	svc.CastVote(ctx, 2, sub.ID, launch.Upvote)
	svc.CastVote(ctx, 3, sub.ID, launch.Downvote)
	assertTally(t, svc, sub.ID, 1, 1, 0.5)

	res, err := svc.RetractVote(ctx, 3, sub.ID)
	if err != nil {
		t.Fatalf("RetractVote: %v", err)
	}
	if res.Outcome != launch.VoteRetracted || res.UserVote != nil {
		t.Errorf("result = %+v", res)
	}
	assertTally(t, svc, sub.ID, 1, 0, 1)
	if store.VoteCount(sub.ID) != 1 {
		t.Errorf("vote rows = %d", store.VoteCount(sub.ID))
	}

	if _, err := svc.RetractVote(ctx, 3, sub.ID); !errors.Is(err, launch.ErrNotFound) {
		t.Errorf("second retract: expected ErrNotFound, got %v", err)
	}

	vt, err := svc.UserVote(ctx, 3, sub.ID)
	if err != nil || vt != nil {
		t.Errorf("UserVote after retract = %v, %v", vt, err)
	}
	vt, err = svc.UserVote(ctx, 2, sub.ID)
	if err != nil || vt == nil || *vt != launch.Upvote {
		t.Errorf("UserVote = %v, %v", vt, err)
	}
}

func TestRecountFailureLeavesLastConsistentState(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	sub := submitLive(t, svc, "Foo", 1)
	svc.CastVote(ctx, 2, sub.ID, launch.Upvote)

	boom := errors.New("storage down")
	store.FailOn["SetTally"] = boom

	if _, err := svc.CastVote(ctx, 3, sub.ID, launch.Upvote); !errors.Is(err, boom) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if _, err := svc.CastVote(ctx, 2, sub.ID, launch.Downvote); !errors.Is(err, boom) {
		t.Fatalf("expected storage error, got %v", err)
	}

	delete(store.FailOn, "SetTally")
	assertTally(t, svc, sub.ID, 1, 0, 1)
	if store.VoteCount(sub.ID) != 1 {
		t.Errorf("vote rows = %d, want 1", store.VoteCount(sub.ID))
	}
	vt, _ := svc.UserVote(ctx, 2, sub.ID)
	if vt == nil || *vt != launch.Upvote {
		t.Errorf("vote type changed despite failed recount: %v", vt)
	}
}

func TestScoreMatchesVotesAfterRandomSequence(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	sub := submitLive(t, svc, "Foo", 1)

	rng := rand.New(rand.NewSource(42))
	held := map[uint64]launch.VoteType{}
	for i := 0; i < 300; i++ {
		user := uint64(rng.Intn(12) + 10)
		switch rng.Intn(3) {
		case 0:
			if _, err := svc.RetractVote(ctx, user, sub.ID); err == nil {
				delete(held, user)
			} else if !errors.Is(err, launch.ErrNotFound) {
				t.Fatal(err)
			}
		default:
			vt := launch.Upvote
			if rng.Intn(2) == 0 {
				vt = launch.Downvote
			}
			if _, err := svc.CastVote(ctx, user, sub.ID, vt); err != nil {
				t.Fatal(err)
			}
			held[user] = vt
		}

		var up, down int64
		for _, vt := range held {
			if vt == launch.Upvote {
				up++
			} else {
				down++
			}
		}
		got, _ := svc.GetByID(ctx, sub.ID)
		if got.Upvotes != up || got.Downvotes != down || got.RankingScore != launch.Score(up, down) {
			t.Fatalf("step %d: tally (%d,%d,%v), want (%d,%d,%v)",
				i, got.Upvotes, got.Downvotes, got.RankingScore, up, down, launch.Score(up, down))
		}
		if store.VoteCount(sub.ID) != len(held) {
			t.Fatalf("step %d: %d vote rows, want %d", i, store.VoteCount(sub.ID), len(held))
		}
	}
}

func TestConcurrentVotesKeepTallyConsistent(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	sub := submitLive(t, svc, "Foo", 1)

	var wg sync.WaitGroup
	for u := 0; u < 40; u++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			vt := launch.Upvote
			if user%4 == 0 {
				vt = launch.Downvote
			}
			// each voter hits the button twice
			svc.CastVote(ctx, user, sub.ID, vt)
			svc.CastVote(ctx, user, sub.ID, vt)
		}(uint64(100 + u))
	}
	wg.Wait()

	assertTally(t, svc, sub.ID, 30, 10, 25)
	if store.VoteCount(sub.ID) != 40 {
		t.Errorf("vote rows = %d, want 40", store.VoteCount(sub.ID))
	}
}

func TestDeleteSubmission(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	live := submitLive(t, svc, "Live One", 1)
	svc.CastVote(ctx, 2, live.ID, launch.Upvote)

	err := svc.DeleteSubmission(ctx, live.ID, 1)
	if !errors.Is(err, launch.ErrIllegalState) {
		t.Fatalf("expected ErrIllegalState, got %v", err)
	}
	got, err := svc.GetByID(ctx, live.ID)
	if err != nil || got.Status != launch.StatusLive || got.Upvotes != 1 {
		t.Errorf("live submission changed: %+v, %v", got, err)
	}

	pending, _ := svc.CreateSubmission(ctx, validInput("Pending One"), 1)
	if err := svc.DeleteSubmission(ctx, pending.ID, 2); !errors.Is(err, launch.ErrForbidden) {
		t.Errorf("non-owner delete: expected ErrForbidden, got %v", err)
	}
	if err := svc.DeleteSubmission(ctx, pending.ID, 1); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := svc.GetBySlug(ctx, pending.Slug); !errors.Is(err, launch.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	rejected, _ := svc.CreateSubmission(ctx, validInput("Rejected One"), 1)
	svc.SetStatus(ctx, rejected.ID, launch.StatusRejected)
	if err := svc.DeleteSubmission(ctx, rejected.ID, 1); err != nil {
		t.Errorf("delete rejected: %v", err)
	}
	if err := svc.DeleteSubmission(ctx, "missing", 1); !errors.Is(err, launch.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateSubmission(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	sub := submitLive(t, svc, "Foo", 1)
	svc.CastVote(ctx, 2, sub.ID, launch.Upvote)

	name := "Foo Deluxe"
	cats := []string{"AI", "Writing"}
	updated, err := svc.UpdateSubmission(ctx, sub.ID, 1, launch.SubmissionPatch{Name: &name, Categories: &cats})
	if err != nil {
		t.Fatalf("UpdateSubmission: %v", err)
	}
	if updated.Name != name || len(updated.Categories) != 2 || updated.Categories[0] != "ai" {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.Slug != "foo" {
		t.Errorf("slug changed to %q", updated.Slug)
	}
	assertTally(t, svc, sub.ID, 1, 0, 1)

	if _, err := svc.UpdateSubmission(ctx, sub.ID, 2, launch.SubmissionPatch{Name: &name}); !errors.Is(err, launch.ErrForbidden) {
		t.Errorf("non-owner: expected ErrForbidden, got %v", err)
	}

	bad := "x"
	_, err = svc.UpdateSubmission(ctx, sub.ID, 1, launch.SubmissionPatch{Name: &bad})
	var verr *launch.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	got, _ := svc.GetByID(ctx, sub.ID)
	if got.Name != name {
		t.Errorf("invalid patch was written: %q", got.Name)
	}

	svc.SetStatus(ctx, sub.ID, launch.StatusArchived)
	if _, err := svc.UpdateSubmission(ctx, sub.ID, 1, launch.SubmissionPatch{Name: &name}); !errors.Is(err, launch.ErrIllegalState) {
		t.Errorf("archived: expected ErrIllegalState, got %v", err)
	}
}

func TestSetStatusTransitions(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	sub, _ := svc.CreateSubmission(ctx, validInput("Foo"), 1)

	if _, err := svc.SetStatus(ctx, sub.ID, launch.StatusLive); !errors.Is(err, launch.ErrIllegalState) {
		t.Errorf("pending -> live: expected ErrIllegalState, got %v", err)
	}
	if _, err := svc.SetStatus(ctx, sub.ID, "launched"); err == nil {
		t.Error("unknown status accepted")
	}
	steps := []launch.Status{launch.StatusApproved, launch.StatusLive, launch.StatusArchived}
	for _, st := range steps {
		got, err := svc.SetStatus(ctx, sub.ID, st)
		if err != nil {
			t.Fatalf("-> %s: %v", st, err)
		}
		if got.Status != st {
			t.Errorf("status = %q, want %q", got.Status, st)
		}
	}
	if _, err := svc.SetStatus(ctx, sub.ID, launch.StatusLive); !errors.Is(err, launch.ErrIllegalState) {
		t.Errorf("archived -> live: expected ErrIllegalState, got %v", err)
	}
}

func TestSetFeatured(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	sub := submitLive(t, svc, "Foo", 1)

	got, err := svc.SetFeatured(ctx, sub.ID, true)
	if err != nil || !got.Featured {
		t.Fatalf("SetFeatured = %+v, %v", got, err)
	}
	featured := true
	page, _ := svc.ListSubmissions(ctx, launch.Filter{Featured: &featured}, launch.Page{})
	if page.Total != 1 {
		t.Errorf("featured filter total = %d", page.Total)
	}
}

func fixture(id, name, short string, cats []string, status launch.Status, score float64, created time.Time) launch.Submission {
	return launch.Submission{
		ID:               id,
		Slug:             id,
		Name:             name,
		ShortDescription: short,
		WebsiteURL:       "https://" + id + ".example.com",
		Categories:       cats,
		Pricing:          launch.PricingFree,
		LaunchWeek:       "2024-W10",
		SubmittedBy:      1,
		Plan:             launch.PlanStandard,
		Status:           status,
		RankingScore:     score,
		Backlink:         launch.BacklinkNoFollow,
		CreatedAt:        created,
		UpdatedAt:        created,
	}
}

func TestListSearch(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	t0 := fixedNow.Add(-time.Hour)

	store.Put(fixture("writer", "AI Writer", "Writes for you", []string{"writing"}, launch.StatusLive, 3, t0))
	store.Put(fixture("paint", "Paint Pro", "Draw pictures quickly", []string{"design"}, launch.StatusLive, 2, t0))
	store.Put(fixture("mail", "Mailbox", "Inbox zero", []string{"email"}, launch.StatusLive, 1, t0))
	store.Put(fixture("bot", "Chatter", "Talk to bots", []string{"Chat AI"}, launch.StatusLive, 0, t0))
	todo := fixture("todo", "Todo", "Lists and more", []string{"productivity"}, launch.StatusLive, 5, t0)
	todo.FullDescription = "Powered by AI under the hood"
	store.Put(todo)

	page, err := svc.ListSubmissions(ctx, launch.Filter{Search: "ai"}, launch.Page{})
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]bool{}
	for _, s := range page.Items {
		got[s.ID] = true
	}
	for _, id := range []string{"writer", "paint", "mail", "bot"} {
		if !got[id] {
			t.Errorf("expected %s in results", id)
		}
	}
	if got["todo"] {
		t.Error("todo matches \"ai\" only in its full description and must not be returned")
	}
	if page.Total != 4 {
		t.Errorf("total = %d, want 4", page.Total)
	}
	if page.Items[0].ID != "writer" {
		t.Errorf("first = %s, want writer (highest score)", page.Items[0].ID)
	}
}

func TestListFiltersOrderingAndPagination(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	t0 := fixedNow.Add(-time.Hour)

	for i := 0; i < 7; i++ {
		store.Put(fixture(fmt.Sprintf("app%d", i), fmt.Sprintf("App %d", i), "Some description", []string{"dev"},
			launch.StatusLive, float64(i%3), t0.Add(time.Duration(i)*time.Minute)))
	}
	other := fixture("old", "Old", "Some description", []string{"dev"}, launch.StatusLive, 10, t0)
	other.LaunchWeek = "2024-W09"
	store.Put(other)
	store.Put(fixture("pend", "Pending", "Some description", []string{"dev"}, launch.StatusPending, 10, t0))
	store.Put(fixture("misc", "Misc", "Some description", []string{"misc"}, launch.StatusLive, 10, t0))

	f := launch.Filter{
		Statuses:   []launch.Status{launch.StatusLive},
		Category:   "DEV",
		LaunchWeek: "2024-W10",
	}
	page, err := svc.ListSubmissions(ctx, f, launch.Page{Page: 1, Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 7 || page.Pages != 3 || len(page.Items) != 3 {
		t.Fatalf("total/pages/len = %d/%d/%d", page.Total, page.Pages, len(page.Items))
	}
	// scores: app2, app5 = 2; app1, app4 = 1; app0, app3, app6 = 0; newest first within a score
	want := []string{"app5", "app2", "app4"}
	for i, w := range want {
		if page.Items[i].ID != w {
			t.Errorf("item %d = %s, want %s", i, page.Items[i].ID, w)
		}
	}

	last, _ := svc.ListSubmissions(ctx, f, launch.Page{Page: 3, Limit: 3})
	if len(last.Items) != 1 || last.Items[0].ID != "app0" {
		t.Errorf("last page = %+v", last.Items)
	}
	beyond, _ := svc.ListSubmissions(ctx, f, launch.Page{Page: 9, Limit: 3})
	if len(beyond.Items) != 0 || beyond.Total != 7 {
		t.Errorf("beyond last page = %d items, total %d", len(beyond.Items), beyond.Total)
	}

	clamped, _ := svc.ListSubmissions(ctx, launch.Filter{}, launch.Page{Page: -1, Limit: 1000})
	if clamped.Page != 1 || clamped.Limit != launch.MaxLimit {
		t.Errorf("page not clamped: %d/%d", clamped.Page, clamped.Limit)
	}
}

func TestCurrentWeekRanking(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	t0 := fixedNow.Add(-time.Hour)

	store.Put(fixture("a", "A", "Some description", []string{"x"}, launch.StatusLive, 1, t0))
	store.Put(fixture("b", "B", "Some description", []string{"x"}, launch.StatusApproved, 4, t0))
	store.Put(fixture("c", "C", "Some description", []string{"x"}, launch.StatusLive, 1, t0.Add(time.Minute)))
	store.Put(fixture("d", "D", "Some description", []string{"x"}, launch.StatusPending, 9, t0))
	old := fixture("e", "E", "Some description", []string{"x"}, launch.StatusLive, 9, t0)
	old.LaunchWeek = "2024-W09"
	store.Put(old)

	ranked, err := svc.CurrentWeekRanking(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"b", "c", "a"}
	if len(ranked) != len(want) {
		t.Fatalf("ranked %d submissions, want %d", len(ranked), len(want))
	}
	for i, w := range want {
		if ranked[i].ID != w || ranked[i].Rank != i+1 {
			t.Errorf("position %d = %s (rank %d), want %s (rank %d)", i, ranked[i].ID, ranked[i].Rank, w, i+1)
		}
	}

	if _, err := svc.WeekRanking(ctx, "week ten"); err == nil {
		t.Error("malformed week accepted")
	}
}

type memCache struct {
	data        map[string][]launch.RankedSubmission
	invalidated []string
}

func (c *memCache) Get(_ context.Context, wk string) ([]launch.RankedSubmission, bool) {
	r, ok := c.data[wk]
	return r, ok
}

func (c *memCache) Set(_ context.Context, wk string, r []launch.RankedSubmission) {
	c.data[wk] = r
}

func (c *memCache) Invalidate(_ context.Context, wk string) {
	delete(c.data, wk)
	c.invalidated = append(c.invalidated, wk)
}

func TestRankingCacheInvalidatedByVotes(t *testing.T) {
	svc, _ := newService(t)
	cache := &memCache{data: map[string][]launch.RankedSubmission{}}
	svc.Cache = cache
	ctx := context.Background()

	a := submitLive(t, svc, "Alpha", 1)
	b := submitLive(t, svc, "Beta", 1)

	ranked, _ := svc.CurrentWeekRanking(ctx)
	if _, ok := cache.data["2024-W10"]; !ok {
		t.Fatal("ranking was not cached")
	}

	svc.CastVote(ctx, 2, a.ID, launch.Upvote)
	if _, ok := cache.data["2024-W10"]; ok {
		t.Fatal("vote did not invalidate the cached ranking")
	}
	ranked, _ = svc.CurrentWeekRanking(ctx)
	if ranked[0].ID != a.ID || ranked[1].ID != b.ID {
		t.Errorf("ranking after vote = %s, %s", ranked[0].ID, ranked[1].ID)
	}

	// a duplicate vote changes nothing and keeps the cache
	svc.CastVote(ctx, 2, a.ID, launch.Upvote)
	if _, ok := cache.data["2024-W10"]; !ok {
		t.Error("duplicate vote invalidated the cache")
	}
}

func TestRankingCacheInvalidatedByOwnerEdit(t *testing.T) {
	svc, _ := newService(t)
	cache := &memCache{data: map[string][]launch.RankedSubmission{}}
	svc.Cache = cache
	ctx := context.Background()

	a := submitLive(t, svc, "Alpha", 1)
	if _, err := svc.CurrentWeekRanking(ctx); err != nil {
		t.Fatal(err)
	}

	// an empty patch changes nothing and keeps the cache
	if _, err := svc.UpdateSubmission(ctx, a.ID, 1, launch.SubmissionPatch{}); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.data["2024-W10"]; !ok {
		t.Fatal("empty edit invalidated the cache")
	}

	name := "Alpha Renamed"
	if _, err := svc.UpdateSubmission(ctx, a.ID, 1, launch.SubmissionPatch{Name: &name}); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.data["2024-W10"]; ok {
		t.Fatal("owner edit did not invalidate the cached ranking")
	}
	ranked, err := svc.CurrentWeekRanking(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 1 || ranked[0].Name != name {
		t.Errorf("ranking after edit = %+v", ranked)
	}
}

func TestSelectWeeklyWinners(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	t0 := fixedNow.Add(-10 * 24 * time.Hour)

	for i, score := range []float64{5, 1, 7, 3, 3} {
		f := fixture(fmt.Sprintf("w%d", i), fmt.Sprintf("W%d", i), "Some description", []string{"x"}, launch.StatusLive, score, t0.Add(time.Duration(i)*time.Minute))
		f.LaunchWeek = "2024-W09"
		store.Put(f)
	}
	pending := fixture("p", "P", "Some description", []string{"x"}, launch.StatusPending, 100, t0)
	pending.LaunchWeek = "2024-W09"
	store.Put(pending)

	if _, err := svc.SelectWeeklyWinners(ctx, "2024-W10"); !errors.Is(err, launch.ErrWeekNotComplete) {
		t.Errorf("current week: expected ErrWeekNotComplete, got %v", err)
	}
	if _, err := svc.SelectWeeklyWinners(ctx, "2024-W11"); !errors.Is(err, launch.ErrWeekNotComplete) {
		t.Errorf("future week: expected ErrWeekNotComplete, got %v", err)
	}

	winners, err := svc.SelectWeeklyWinners(ctx, "2024-W09")
	if err != nil {
		t.Fatalf("SelectWeeklyWinners: %v", err)
	}
	// w3 and w4 tie on 3; w4 is newer
	want := []string{"w2", "w0", "w4"}
	if len(winners) != 3 {
		t.Fatalf("got %d winners", len(winners))
	}
	for i, w := range want {
		if winners[i].ID != w || *winners[i].WeeklyRank != i+1 || winners[i].Backlink != launch.BacklinkDoFollow {
			t.Errorf("winner %d = %+v, want %s", i, winners[i], w)
		}
	}

	stored, err := svc.Winners(ctx, "2024-W09")
	if err != nil || len(stored) != 3 || stored[0].ID != "w2" {
		t.Fatalf("Winners = %+v, %v", stored, err)
	}
	loser, _ := svc.GetByID(ctx, "w1")
	if loser.WeeklyRank != nil || loser.Backlink != launch.BacklinkNoFollow {
		t.Errorf("non-winner marked: %+v", loser)
	}

	// a late recount that changes the order is picked up by a rerun
	w1 := fixture("w1", "W1", "Some description", []string{"x"}, launch.StatusLive, 50, t0)
	w1.LaunchWeek = "2024-W09"
	store.Put(w1)
	if _, err := svc.SelectWeeklyWinners(ctx, "2024-W09"); err != nil {
		t.Fatal(err)
	}
	stored, _ = svc.Winners(ctx, "2024-W09")
	if len(stored) != 3 || stored[0].ID != "w1" || stored[2].ID != "w0" {
		t.Errorf("rerun winners = %v", ids(stored))
	}
	w4, _ := svc.GetByID(ctx, "w4")
	if w4.WeeklyRank != nil {
		t.Error("previous winner mark not cleared")
	}
}

func ids(subs []launch.Submission) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.ID
	}
	return out
}

func TestStandardSlotsQueueIntoLaterWeeks(t *testing.T) {
	svc, _ := newService(t)
	svc.StandardSlots = 2
	ctx := context.Background()

	var weeks []string
	for i := 0; i < 5; i++ {
		sub, err := svc.CreateSubmission(ctx, validInput(fmt.Sprintf("Standard %d", i)), 1)
		if err != nil {
			t.Fatal(err)
		}
		weeks = append(weeks, sub.LaunchWeek)
	}
	want := []string{"2024-W10", "2024-W10", "2024-W11", "2024-W11", "2024-W12"}
	for i := range want {
		if weeks[i] != want[i] {
			t.Errorf("submission %d week = %s, want %s", i, weeks[i], want[i])
		}
	}

	in := validInput("Premium")
	in.Plan = launch.PlanPremium
	sub, err := svc.CreateSubmission(ctx, in, 1)
	if err != nil {
		t.Fatal(err)
	}
	if sub.LaunchWeek != "2024-W10" {
		t.Errorf("premium week = %s, want current week", sub.LaunchWeek)
	}
}

func TestSubmitAppCounter(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	svc.SubmitApp(ctx, validInput("One"), 4)
	svc.SubmitApp(ctx, validInput("Two"), 4)
	if n := store.SubmissionCount(4); n != 2 {
		t.Errorf("submission count = %d, want 2", n)
	}

	store.FailOn["IncrementSubmissionCount"] = errors.New("users table locked")
	sub, err := svc.SubmitApp(ctx, validInput("Three"), 4)
	if err != nil || sub == nil {
		t.Fatalf("counter failure must not fail the submission: %v", err)
	}
	if n := store.SubmissionCount(4); n != 2 {
		t.Errorf("submission count = %d, want 2", n)
	}
}

func TestIncrementCounters(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	sub := submitLive(t, svc, "Foo", 1)

	for i := 0; i < 3; i++ {
		if err := svc.IncrementViews(ctx, sub.ID); err != nil {
			t.Fatal(err)
		}
	}
	svc.IncrementClicks(ctx, sub.ID)
	got, _ := svc.GetByID(ctx, sub.ID)
	if got.Views != 3 || got.Clicks != 1 {
		t.Errorf("views/clicks = %d/%d", got.Views, got.Clicks)
	}
	if err := svc.IncrementViews(ctx, "missing"); !errors.Is(err, launch.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
