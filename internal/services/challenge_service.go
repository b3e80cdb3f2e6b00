// Package services – ChallengeService
//
// This file implements time-boxed community challenges: creation, entry
// submission, rate-limited voting, and the one-shot finalization pass that
// pays the winner's prize and grants a lifetime bonus to their newest post.
// A challenge's status is derived purely from its window and the clock; only
// the finalized flag is persisted, and it guards prize payout exactly once
// no matter how often the pass runs.
package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/timelylabs/timely-backend/internal/domain"
	"github.com/timelylabs/timely-backend/internal/store"
)

// ChallengeService provides challenge lifecycle operations.
type ChallengeService struct {
	// Ledger is the serialized document store.
	Ledger *store.Store
	// Econ holds the economy rule set.
	Econ domain.Economy
	// Now supplies the clock; tests override it.
	Now func() time.Time
}

// NewChallengeService constructs a ChallengeService with production defaults.
func NewChallengeService(ledger *store.Store, econ domain.Economy) *ChallengeService {
	return &ChallengeService{Ledger: ledger, Econ: econ, Now: time.Now}
}

func newChallengeID() string { return "ch_" + uuid.NewString()[:8] }
func newEntryID() string     { return "e_" + uuid.NewString()[:8] }

// Create stores a new challenge. The window must end after it starts; prize
// and bonus fall back to the defaults when unset.
func (s *ChallengeService) Create(ctx context.Context, creator, title, ctype, description string, startsAt, endsAt time.Time, prize, bonusMinutes int) (*domain.Challenge, error) {
	creator, err := normalizeUsername(creator)
	if err != nil {
		return nil, err
	}
	title = domain.Truncate(strings.TrimSpace(title), s.Econ.TitleMaxRunes)
	if title == "" {
		return nil, ErrEmptyContent
	}
	ctype = strings.TrimSpace(ctype)
	if ctype == "" {
		return nil, ErrEmptyContent
	}
	if !endsAt.After(startsAt) {
		return nil, ErrInvalidWindow
	}
	if prize <= 0 {
		prize = s.Econ.DefaultPrize
	}
	if bonusMinutes <= 0 {
		bonusMinutes = s.Econ.DefaultBonusMinutes
	}
	ch := &domain.Challenge{
		ID:          newChallengeID(),
		Type:        ctype,
		Title:       title,
		Description: domain.Truncate(strings.TrimSpace(description), s.Econ.DescMaxRunes),
		Creator:     creator,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		Rewards:     domain.Rewards{CurrencyPrize: prize, BonusMinutes: bonusMinutes},
		Entries:     []*domain.Entry{},
		VotesCast:   map[string]int{},
	}
	err = s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		ensureAccount(l, creator, s.Econ, s.Now())
		l.Challenges = append(l.Challenges, ch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Summary is the feed view of a challenge.
type Summary struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	StartsAt    time.Time              `json:"starts_at"`
	EndsAt      time.Time              `json:"ends_at"`
	Status      domain.ChallengeStatus `json:"status"`
}

// List returns summaries of all challenges, soonest-ending first.
func (s *ChallengeService) List(ctx context.Context) ([]Summary, error) {
	var out []Summary
	err := s.Ledger.View(ctx, func(l *domain.Ledger) error {
		now := s.Now()
		out = make([]Summary, 0, len(l.Challenges))
		for _, c := range l.Challenges {
			out = append(out, Summary{
				ID:          c.ID,
				Type:        c.Type,
				Title:       c.Title,
				Description: c.Description,
				StartsAt:    c.StartsAt,
				EndsAt:      c.EndsAt,
				Status:      c.Status(now),
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].EndsAt.Before(out[j].EndsAt) })
		return nil
	})
	return out, err
}

// Detail is the full view of a challenge for one viewer.
type Detail struct {
	domain.Challenge
	Status  domain.ChallengeStatus `json:"status"`
	MyVotes int                    `json:"my_votes"`
}

// Get returns a challenge with derived status and the viewer's used votes.
func (s *ChallengeService) Get(ctx context.Context, id, viewer string) (*Detail, error) {
	var out *Detail
	err := s.Ledger.View(ctx, func(l *domain.Ledger) error {
		c := l.Challenge(id)
		if c == nil {
			return ErrChallengeNotFound
		}
		out = &Detail{
			Challenge: *c,
			Status:    c.Status(s.Now()),
			MyVotes:   c.VotesCast[strings.TrimSpace(viewer)],
		}
		return nil
	})
	return out, err
}

// Submit appends an entry to a challenge that has not finished yet.
// Content is clipped to the entry limit.
func (s *ChallengeService) Submit(ctx context.Context, challengeID, author, content string) (entryID string, err error) {
	author, err = normalizeUsername(author)
	if err != nil {
		return "", err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	content = domain.Truncate(content, s.Econ.EntryMaxRunes)
	err = s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		now := s.Now()
		ensureAccount(l, author, s.Econ, now)
		c := l.Challenge(challengeID)
		if c == nil {
			return ErrChallengeNotFound
		}
		if c.Status(now) == domain.ChallengeFinished {
			return ErrChallengeFinished
		}
		e := &domain.Entry{
			ID:          newEntryID(),
			Author:      author,
			Content:     content,
			SubmittedAt: now,
		}
		c.Entries = append(c.Entries, e)
		entryID = e.ID
		return nil
	})
	return entryID, err
}

// Vote casts one vote for an entry of a live challenge. Each identity has a
// fixed per-challenge vote budget; the cap check precedes any mutation.
func (s *ChallengeService) Vote(ctx context.Context, challengeID, voter, entryID string) (votes int, err error) {
	voter, err = normalizeUsername(voter)
	if err != nil {
		return 0, err
	}
	err = s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		now := s.Now()
		ensureAccount(l, voter, s.Econ, now)
		c := l.Challenge(challengeID)
		if c == nil {
			return ErrChallengeNotFound
		}
		if c.Status(now) != domain.ChallengeLive {
			return ErrChallengeNotLive
		}
		if c.VotesCast == nil {
			c.VotesCast = map[string]int{}
		}
		if c.VotesCast[voter] >= s.Econ.VoteDailyCap {
			return ErrVoteCapExceeded
		}
		e := c.Entry(entryID)
		if e == nil {
			return ErrEntryNotFound
		}
		e.Votes++
		c.VotesCast[voter]++
		votes = e.Votes
		return nil
	})
	return votes, err
}

// finalizeDue pays out every finished, not-yet-finalized challenge. The
// winner's author gets the prize as a direct (uncapped) credit, and their
// most recent active post gets the time bonus without touching the author
// self-extension cap. Authors with no active posts silently skip the bonus.
// Returns the number of challenges finalized.
func finalizeDue(l *domain.Ledger, econ domain.Economy, now time.Time) int {
	finalized := 0
	for _, c := range l.Challenges {
		if c.Finalized || c.Status(now) != domain.ChallengeFinished {
			continue
		}
		c.Finalized = true
		finalized++

		winner := c.Winner()
		if winner == nil {
			continue
		}
		ensureAccount(l, winner.Author, econ, now).Balance += c.Rewards.CurrencyPrize

		var newest *domain.Post
		for _, p := range l.Posts {
			if p.Author != winner.Author {
				continue
			}
			if newest == nil || p.CreatedAt.After(newest.CreatedAt) {
				newest = p
			}
		}
		if newest != nil {
			extendUncapped(newest, time.Duration(c.Rewards.BonusMinutes)*time.Minute)
		}
	}
	return finalized
}
