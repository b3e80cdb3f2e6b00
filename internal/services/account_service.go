// Package services – AccountService
//
// This file implements the AccountService, which owns user accounts: lazy
// creation, the daily earning window, the once-a-day bonus, follow
// relationships, bookmarks, profiles, and derived achievements.
//
// awardCapped is the single choke point through which all earned
// (non-purchased) currency flows — like rewards, comment rewards, and the
// daily bonus all go through it, so the daily cap holds no matter how many
// qualifying events occur. Challenge prizes and settlement payouts bypass it
// on purpose: those are scarce, schedule-limited grants, not earned income.
package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/timelylabs/timely-backend/internal/domain"
	"github.com/timelylabs/timely-backend/internal/store"
)

// DefaultAvatarURL is assigned to newly created accounts.
const DefaultAvatarURL = "/assets/default-avatar.png"

// AccountService provides account-level operations. All methods serialize
// their read-modify-write cycle through the ledger store.
type AccountService struct {
	// Ledger is the serialized document store.
	Ledger *store.Store
	// Econ holds the economy rule set.
	Econ domain.Economy
	// Now supplies the clock; tests override it.
	Now func() time.Time
}

// NewAccountService constructs an AccountService with production defaults.
func NewAccountService(ledger *store.Store, econ domain.Economy) *AccountService {
	return &AccountService{Ledger: ledger, Econ: econ, Now: time.Now}
}

// ensureAccount returns the account for username, creating it with the
// starting balance on first reference and resetting a stale daily window.
func ensureAccount(l *domain.Ledger, username string, econ domain.Economy, now time.Time) *domain.Account {
	day := econ.DayKey(now)
	a, ok := l.Accounts[username]
	if !ok {
		a = &domain.Account{
			Username:  username,
			Balance:   econ.StartBalance,
			AvatarURL: DefaultAvatarURL,
			CreatedAt: now,
			Daily:     domain.DailyEarn{Day: day},
			Saved:     []string{},
			Followers: []string{},
			Following: []string{},
		}
		l.Accounts[username] = a
		return a
	}
	if a.Daily.Day != day {
		a.Daily = domain.DailyEarn{Day: day}
	}
	return a
}

// awardCapped credits amount to the account, clamped to the room left under
// the daily earn cap, and returns what was actually credited (possibly 0).
// Overflow is silently truncated, never an error.
func awardCapped(a *domain.Account, amount int, day string, cap int) int {
	if a.Daily.Day != day {
		a.Daily = domain.DailyEarn{Day: day}
	}
	room := cap - a.Daily.Earned
	if room < 0 {
		room = 0
	}
	add := amount
	if add > room {
		add = room
	}
	if add > 0 {
		a.Balance += add
		a.Daily.Earned += add
	}
	return add
}

// normalizeUsername trims an identity key and rejects empty ones.
func normalizeUsername(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", ErrInvalidUsername
	}
	return u, nil
}

// GetOrCreate returns the account for username, creating it on first use.
func (s *AccountService) GetOrCreate(ctx context.Context, username string) (*domain.Account, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}
	var out *domain.Account
	err = s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		out = ensureAccount(l, username, s.Econ, s.Now())
		return nil
	})
	return out, err
}

// ClaimDailyBonus awards the fixed daily bonus through the capped path.
// It fails with ErrBonusClaimed when the bonus was already taken today.
func (s *AccountService) ClaimDailyBonus(ctx context.Context, username string) (added int, acct *domain.Account, err error) {
	username, err = normalizeUsername(username)
	if err != nil {
		return 0, nil, err
	}
	err = s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		now := s.Now()
		a := ensureAccount(l, username, s.Econ, now)
		if a.Daily.Claimed {
			return ErrBonusClaimed
		}
		added = awardCapped(a, s.Econ.DailyBonus, s.Econ.DayKey(now), s.Econ.DailyEarnCap)
		a.Daily.Claimed = true
		acct = a
		return nil
	})
	return added, acct, err
}

// ToggleFollow flips the follow edge from username to target, keeping both
// accounts' follower/following sets symmetric within one ledger transaction.
func (s *AccountService) ToggleFollow(ctx context.Context, username, target string) (following bool, err error) {
	username, err = normalizeUsername(username)
	if err != nil {
		return false, err
	}
	target, err = normalizeUsername(target)
	if err != nil {
		return false, err
	}
	if username == target {
		return false, ErrSelfFollow
	}
	err = s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		now := s.Now()
		me := ensureAccount(l, username, s.Econ, now)
		other := ensureAccount(l, target, s.Econ, now)
		following = domain.ToggleFollow(me, other)
		return nil
	})
	return following, err
}

// UpdateBio trims and clips the account bio.
func (s *AccountService) UpdateBio(ctx context.Context, username, bio string) error {
	username, err := normalizeUsername(username)
	if err != nil {
		return err
	}
	bio = domain.Truncate(strings.TrimSpace(bio), s.Econ.BioMaxRunes)
	return s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		a := ensureAccount(l, username, s.Econ, s.Now())
		a.Bio = bio
		return nil
	})
}

// Profile is the public view of an account.
type Profile struct {
	Username       string    `json:"username"`
	AvatarURL      string    `json:"avatar_url"`
	Bio            string    `json:"bio"`
	CreatedAt      time.Time `json:"created_at"`
	FollowersCount int       `json:"followers_count"`
	FollowingCount int       `json:"following_count"`
	PostsCount     int       `json:"posts_count"`
	IsFollowing    bool      `json:"is_following"`
}

// GetProfile returns the public profile of target, including whether viewer
// follows them. PostsCount counts only active (unexpired) posts.
func (s *AccountService) GetProfile(ctx context.Context, target, viewer string) (*Profile, error) {
	target, err := normalizeUsername(target)
	if err != nil {
		return nil, err
	}
	viewer = strings.TrimSpace(viewer)
	var out *Profile
	err = s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		now := s.Now()
		settleAndPrune(l, s.Econ, now)
		a := ensureAccount(l, target, s.Econ, now)
		posts := 0
		for _, p := range l.Posts {
			if p.Author == target {
				posts++
			}
		}
		isFollowing := false
		if viewer != "" {
			isFollowing = ensureAccount(l, viewer, s.Econ, now).IsFollowing(target)
		}
		out = &Profile{
			Username:       target,
			AvatarURL:      a.AvatarURL,
			Bio:            a.Bio,
			CreatedAt:      a.CreatedAt,
			FollowersCount: len(a.Followers),
			FollowingCount: len(a.Following),
			PostsCount:     posts,
			IsFollowing:    isFollowing,
		}
		return nil
	})
	return out, err
}

// ToggleSaved flips the bookmark on postID and reports the new state.
func (s *AccountService) ToggleSaved(ctx context.Context, username, postID string) (saved bool, err error) {
	username, err = normalizeUsername(username)
	if err != nil {
		return false, err
	}
	err = s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		now := s.Now()
		settleAndPrune(l, s.Econ, now)
		a := ensureAccount(l, username, s.Econ, now)
		if l.Post(postID) == nil {
			return ErrPostNotFound
		}
		saved = a.ToggleSaved(postID)
		return nil
	})
	return saved, err
}

// ListSaved returns the user's bookmarked posts, newest first. Expired posts
// are filtered out unless includeExpired is set; bookmarks themselves are
// kept either way so an expired save can still be listed on demand.
func (s *AccountService) ListSaved(ctx context.Context, username string, includeExpired bool) ([]domain.PostView, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}
	var out []domain.PostView
	err = s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		now := s.Now()
		a := ensureAccount(l, username, s.Econ, now)
		saved := make(map[string]bool, len(a.Saved))
		for _, id := range a.Saved {
			saved[id] = true
		}
		out = make([]domain.PostView, 0, len(a.Saved))
		for _, p := range l.Posts {
			if !saved[p.ID] {
				continue
			}
			if !includeExpired && p.Expired(now) {
				continue
			}
			out = append(out, s.Econ.View(p, now))
		}
		sort.Slice(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
		return nil
	})
	return out, err
}

// Achievement is a derived badge-like marker; never persisted.
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"desc"`
}

// Achievements derives the account's achievements from current ledger state.
func (s *AccountService) Achievements(ctx context.Context, username string) ([]Achievement, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}
	out := []Achievement{}
	err = s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		a := ensureAccount(l, username, s.Econ, s.Now())
		if a.Balance >= 50 {
			out = append(out, Achievement{ID: "rich50", Title: "Saver 50", Description: "Reached a balance of 50 tokens"})
		}
		for _, p := range l.Posts {
			supported := false
			for _, x := range p.Extensions {
				if x.By == username && x.By != p.Author {
					supported = true
					break
				}
			}
			if supported {
				out = append(out, Achievement{ID: "invest1", Title: "First Support", Description: "Invested in another author's post"})
				break
			}
		}
		if a.HasBadge("Curator") {
			out = append(out, Achievement{ID: "curator", Title: "Curator", Description: "Recognized as a Curator"})
		}
		return nil
	})
	return out, err
}
