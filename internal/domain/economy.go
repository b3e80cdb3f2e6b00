// Package domain — economy rules.
//
// Economy bundles every tunable constant of the token economy and implements
// the pure derivations over stored state: post statistics, certification,
// settlement payouts, and the daily period key. Keeping these as pure
// functions over the ledger avoids staleness bugs; nothing here writes to
// storage.
package domain

import (
	"math"
	"time"
	"unicode/utf8"
)

// Economy holds the tunable rules of the token economy. Zero values are not
// meaningful; use DefaultEconomy as the baseline and override via config.
type Economy struct {
	// Account economics.
	StartBalance int // tokens granted to a brand-new account
	DailyEarnCap int // max earned (non-purchase, non-prize) tokens per day
	DailyBonus   int // tokens for the once-a-day claim

	// Post lifecycle.
	PostCost             int // tokens debited on publish
	InitialLifeHours     int // lifetime of a fresh post
	ExtendHoursPerToken  int // hours added per token spent on extension
	AuthorExtendHoursCap int // max total hours an author may self-extend
	BoostStartMinutes    int // extra initial minutes from a start boost SKU

	// Community certification thresholds.
	CertLikes    int
	CertComments int
	CertExtHours int // non-author extension hours

	// Engagement rewards (throttled so growth stays sub-linear).
	LikeRewardEvery    int // credit the author on every Nth like
	CommentRewardEvery int // credit on every Nth non-author comment
	EngagementReward   int // tokens per triggered reward

	// Settlement (return on investment for supporters).
	PopularMinInvested   int     // total invested tokens to count as popular
	PopularMinSupporters int     // or this many distinct supporters
	PoolRate             float64 // share of total investment redistributed

	// Challenges.
	VoteDailyCap        int // votes one identity may cast per challenge
	DefaultPrize        int // prize when the creator did not set one
	DefaultBonusMinutes int // winner time bonus when not set

	// Input limits (runes).
	CommentMaxRunes int
	EntryMaxRunes   int
	TitleMaxRunes   int
	DescMaxRunes    int
	BioMaxRunes     int
}

// DefaultEconomy returns the production rule set.
func DefaultEconomy() Economy {
	return Economy{
		StartBalance: 5,
		DailyEarnCap: 5,
		DailyBonus:   1,

		PostCost:             1,
		InitialLifeHours:     24,
		ExtendHoursPerToken:  6,
		AuthorExtendHoursCap: 12,
		BoostStartMinutes:    30,

		CertLikes:    20,
		CertComments: 10,
		CertExtHours: 24,

		LikeRewardEvery:    5,
		CommentRewardEvery: 2,
		EngagementReward:   1,

		PopularMinInvested:   5,
		PopularMinSupporters: 3,
		PoolRate:             0.20,

		VoteDailyCap:        6,
		DefaultPrize:        10,
		DefaultBonusMinutes: 60,

		CommentMaxRunes: 300,
		EntryMaxRunes:   280,
		TitleMaxRunes:   120,
		DescMaxRunes:    280,
		BioMaxRunes:     160,
	}
}

// DayKey derives the daily-earn period key from a point in time. Stored keys
// that differ from the current one mark a stale window that must be reset.
func (Economy) DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ExtensionHours converts an extension amount in tokens to hours of life.
func (e Economy) ExtensionHours(tokens int) int {
	return tokens * e.ExtendHoursPerToken
}

// PostStats are the derived, never-persisted fields of a post.
type PostStats struct {
	LikeCount               int   `json:"like_count"`
	CommentCount            int   `json:"comment_count"`
	NonAuthorExtensionHours int   `json:"non_author_extension_hours"`
	Certified               bool  `json:"certified"`
	RemainingSeconds        int64 `json:"remaining_seconds"`
}

// Stats recomputes the derived fields of a post at the given time.
func (e Economy) Stats(p *Post, now time.Time) PostStats {
	extHours := 0
	for _, x := range p.Extensions {
		if x.By != p.Author {
			extHours += e.ExtensionHours(x.Amount)
		}
	}
	remaining := p.ExpiresAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	s := PostStats{
		LikeCount:               len(p.Likes),
		CommentCount:            len(p.Comments),
		NonAuthorExtensionHours: extHours,
		RemainingSeconds:        int64(remaining / time.Second),
	}
	s.Certified = s.LikeCount >= e.CertLikes ||
		s.CommentCount >= e.CertComments ||
		s.NonAuthorExtensionHours >= e.CertExtHours
	return s
}

// PostView pairs stored post fields with freshly derived stats for serving.
type PostView struct {
	*Post
	PostStats
}

// View builds a PostView for the given time.
func (e Economy) View(p *Post, now time.Time) PostView {
	return PostView{Post: p, PostStats: e.Stats(p, now)}
}

// Payouts computes the settlement distribution for an expiring post.
//
// Only non-author extensions count as investment. When the post is popular
// (total investment or distinct supporter count above threshold), a pool of
// round(total × PoolRate) tokens is split across supporters proportionally
// to their invested share, flooring each cut. The flooring residue is
// discarded, not rolled over. The returned map is empty for unpopular posts.
func (e Economy) Payouts(p *Post) map[string]int {
	invested := make(map[string]int)
	total := 0
	for _, x := range p.Extensions {
		if x.By == "" || x.Amount <= 0 || x.By == p.Author {
			continue
		}
		invested[x.By] += x.Amount
		total += x.Amount
	}
	out := make(map[string]int)
	if total <= 0 {
		return out
	}
	if total < e.PopularMinInvested && len(invested) < e.PopularMinSupporters {
		return out
	}
	pool := int(math.Round(float64(total) * e.PoolRate))
	for supporter, amount := range invested {
		out[supporter] = int(math.Floor(float64(pool) * float64(amount) / float64(total)))
	}
	return out
}

// Truncate clips s to at most max runes. Non-positive max leaves s intact.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
