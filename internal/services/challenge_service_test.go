package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/timelylabs/timely-backend/internal/domain"
)

// liveChallenge creates a challenge whose window is open at the fixture clock.
func (f *fixture) liveChallenge(t *testing.T) *domain.Challenge {
	t.Helper()
	ch, err := f.challenges.Create(context.Background(), "host", "Haiku Night", "haiku", "best of the evening",
		f.now.Add(-time.Hour), f.now.Add(time.Hour), 0, 0)
	if err != nil {
		t.Fatalf("create challenge: %v", err)
	}
	return ch
}

func TestChallengeCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.challenges.Create(ctx, "host", "Backwards", "haiku", "", f.now, f.now.Add(-time.Hour), 0, 0); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("inverted window err = %v", err)
	}
	if _, err := f.challenges.Create(ctx, "host", "  ", "haiku", "", f.now, f.now.Add(time.Hour), 0, 0); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("blank title err = %v", err)
	}

	// Unset rewards fall back to the defaults.
	ch := f.liveChallenge(t)
	if ch.Rewards.CurrencyPrize != 10 || ch.Rewards.BonusMinutes != 60 {
		t.Fatalf("default rewards = %+v", ch.Rewards)
	}
}

func TestChallengeSubmit_WindowRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ch := f.liveChallenge(t)
	entryID, err := f.challenges.Submit(ctx, ch.ID, "ada", "an entry")
	if err != nil || entryID == "" {
		t.Fatalf("submit: %q %v", entryID, err)
	}

	if _, err := f.challenges.Submit(ctx, "missing", "ada", "x"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("unknown challenge err = %v", err)
	}

	// Past the window, submissions are closed.
	f.advance(2 * time.Hour)
	if _, err := f.challenges.Submit(ctx, ch.ID, "ada", "late"); !errors.Is(err, ErrChallengeFinished) {
		t.Fatalf("late submit err = %v", err)
	}
}

func TestChallengeVote_CapAndLiveness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ch := f.liveChallenge(t)
	entryID, err := f.challenges.Submit(ctx, ch.ID, "ada", "an entry")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := f.challenges.Vote(ctx, ch.ID, "grace", "missing"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("unknown entry err = %v", err)
	}

	for i := 1; i <= 6; i++ {
		n, err := f.challenges.Vote(ctx, ch.ID, "grace", entryID)
		if err != nil || n != i {
			t.Fatalf("vote %d: n=%d err=%v", i, n, err)
		}
	}
	if _, err := f.challenges.Vote(ctx, ch.ID, "grace", entryID); !errors.Is(err, ErrVoteCapExceeded) {
		t.Fatalf("7th vote err = %v", err)
	}
	// Another voter has a fresh budget.
	if _, err := f.challenges.Vote(ctx, ch.ID, "linus", entryID); err != nil {
		t.Fatalf("second voter: %v", err)
	}

	d, err := f.challenges.Get(ctx, ch.ID, "grace")
	if err != nil || d.MyVotes != 6 {
		t.Fatalf("detail: %+v %v", d, err)
	}

	// Voting outside the window is rejected.
	f.advance(2 * time.Hour)
	if _, err := f.challenges.Vote(ctx, ch.ID, "linus", entryID); !errors.Is(err, ErrChallengeNotLive) {
		t.Fatalf("finished vote err = %v", err)
	}
}

func TestChallengeVote_ScheduledNotLive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ch, err := f.challenges.Create(ctx, "host", "Tomorrow", "haiku", "",
		f.now.Add(time.Hour), f.now.Add(2*time.Hour), 0, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// Scheduled challenges accept entries but not votes.
	entryID, err := f.challenges.Submit(ctx, ch.ID, "ada", "early bird")
	if err != nil {
		t.Fatalf("submit to scheduled: %v", err)
	}
	if _, err := f.challenges.Vote(ctx, ch.ID, "grace", entryID); !errors.Is(err, ErrChallengeNotLive) {
		t.Fatalf("scheduled vote err = %v", err)
	}
}

func TestFinalize_PaysPrizeOnceAndExtendsNewestPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.publish(t, "ada", "older post")
	f.advance(time.Minute)
	newest := f.publish(t, "ada", "newest post")

	ch := f.liveChallenge(t)
	entryID, err := f.challenges.Submit(ctx, ch.ID, "ada", "winning entry")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.challenges.Vote(ctx, ch.ID, "grace", entryID); err != nil {
		t.Fatalf("vote: %v", err)
	}

	before, err := f.posts.Get(ctx, newest)
	if err != nil {
		t.Fatalf("get newest: %v", err)
	}

	f.advance(2 * time.Hour)
	res, err := f.maint.Run(ctx)
	if err != nil || res.ChallengesFinalized != 1 {
		t.Fatalf("maintenance: %+v %v", res, err)
	}

	// Prize is a direct grant, untouched by the daily cap: 5 - 2 posts + 10.
	if got := f.balance(t, "ada"); got != 13 {
		t.Fatalf("winner balance = %d, want 13", got)
	}
	after, err := f.posts.Get(ctx, newest)
	if err != nil {
		t.Fatalf("get newest after: %v", err)
	}
	// 60 bonus minutes minus the 2h that elapsed since the first read.
	wantRemaining := before.RemainingSeconds + 60*60 - 2*3600
	if after.RemainingSeconds != wantRemaining {
		t.Fatalf("remaining after bonus = %d, want %d", after.RemainingSeconds, wantRemaining)
	}

	// Finalization never repeats.
	res, err = f.maint.Run(ctx)
	if err != nil || res.ChallengesFinalized != 0 {
		t.Fatalf("second pass: %+v %v", res, err)
	}
	if got := f.balance(t, "ada"); got != 13 {
		t.Fatalf("prize paid twice: %d", got)
	}
}

func TestFinalize_WinnerWithoutPostsSkipsBonus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ch := f.liveChallenge(t)
	entryID, err := f.challenges.Submit(ctx, ch.ID, "ada", "entry")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.challenges.Vote(ctx, ch.ID, "grace", entryID); err != nil {
		t.Fatalf("vote: %v", err)
	}

	f.advance(2 * time.Hour)
	res, err := f.maint.Run(ctx)
	if err != nil || res.ChallengesFinalized != 1 {
		t.Fatalf("maintenance: %+v %v", res, err)
	}
	if got := f.balance(t, "ada"); got != 15 {
		t.Fatalf("winner balance = %d, want 15 (prize, no post bonus)", got)
	}
}

func TestFinalize_NoEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.liveChallenge(t)
	f.advance(2 * time.Hour)

	res, err := f.maint.Run(ctx)
	if err != nil || res.ChallengesFinalized != 1 {
		t.Fatalf("empty challenge should still finalize: %+v %v", res, err)
	}
}

func TestChallengeList_StatusAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.challenges.Create(ctx, "host", "Later", "haiku", "", f.now.Add(time.Hour), f.now.Add(5*time.Hour), 0, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	f.liveChallenge(t)

	got, err := f.challenges.List(ctx)
	if err != nil || len(got) != 2 {
		t.Fatalf("List: %+v %v", got, err)
	}
	// Soonest-ending first.
	if got[0].Title != "Haiku Night" || got[0].Status != domain.ChallengeLive {
		t.Fatalf("first summary = %+v", got[0])
	}
	if got[1].Status != domain.ChallengeScheduled {
		t.Fatalf("second summary = %+v", got[1])
	}
}
