// Package domain — challenge state machine.
//
// A challenge moves scheduled → live → finished purely as a function of time;
// nothing transitions explicitly. The only persisted, irreversible marker is
// the Finalized flag, set exactly once when prizes are paid so redundant
// finalization passes can never double-pay.
package domain

import "time"

// ChallengeStatus is the time-derived lifecycle state of a challenge.
type ChallengeStatus string

const (
	ChallengeScheduled ChallengeStatus = "scheduled"
	ChallengeLive      ChallengeStatus = "live"
	ChallengeFinished  ChallengeStatus = "finished"
)

// Rewards describes what a challenge pays its winner: a direct (uncapped)
// currency prize and a lifetime bonus applied to the winner's newest post.
type Rewards struct {
	CurrencyPrize int `json:"currency_prize"`
	BonusMinutes  int `json:"bonus_minutes"`
}

// Entry is one submission to a challenge. Entries are kept in submission
// order; the winner scan relies on that for deterministic tie-breaking.
type Entry struct {
	ID          string    `json:"id"`
	Author      string    `json:"author"`
	Content     string    `json:"content"`
	Votes       int       `json:"votes"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Challenge is a time-boxed community competition.
type Challenge struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Creator     string         `json:"creator"`
	StartsAt    time.Time      `json:"starts_at"`
	EndsAt      time.Time      `json:"ends_at"`
	Rewards     Rewards        `json:"rewards"`
	Entries     []*Entry       `json:"entries"`
	VotesCast   map[string]int `json:"votes_cast"`
	Finalized   bool           `json:"finalized"`
}

// Status derives the lifecycle state from the challenge window and now.
func (c *Challenge) Status(now time.Time) ChallengeStatus {
	switch {
	case now.Before(c.StartsAt):
		return ChallengeScheduled
	case now.After(c.EndsAt):
		return ChallengeFinished
	default:
		return ChallengeLive
	}
}

// Entry returns the entry with the given id, or nil.
func (c *Challenge) Entry(id string) *Entry {
	for _, e := range c.Entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Winner returns the entry with the strictly highest vote count. Ties go to
// the earliest submission because entries are scanned in submission order and
// only a strictly greater count displaces the current leader. Returns nil
// when there are no entries.
func (c *Challenge) Winner() *Entry {
	var best *Entry
	for _, e := range c.Entries {
		if best == nil || e.Votes > best.Votes {
			best = e
		}
	}
	return best
}
