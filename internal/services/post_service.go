// Package services – PostService
//
// This file implements the content lifecycle: publishing (which costs
// tokens), paid lifetime extensions with the author self-extension cap,
// engagement (likes and comments with throttled author rewards), feeds, and
// the settlement sweep that redistributes supporter investment before
// removing expired posts.
//
// The sweep runs as a side effect of every path that touches the post
// collection, so callers never observe a post whose remaining time would
// compute to zero. It is idempotent by construction: payout and removal
// happen in the same pass, and a removed post cannot be settled again.
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

// boostStartSKU is the inventory token that grants extra initial lifetime.
const boostStartSKU = "start30"

// PostService provides post lifecycle and engagement operations.
type PostService struct {
	// Ledger is the serialized document store.
	Ledger *store.Store
	// Econ holds the economy rule set.
	Econ domain.Economy
	// Now supplies the clock; tests override it.
	Now func() time.Time
}

// NewPostService constructs a PostService with production defaults.
func NewPostService(ledger *store.Store, econ domain.Economy) *PostService {
	return &PostService{Ledger: ledger, Econ: econ, Now: time.Now}
}

// newPostID returns a fresh opaque post id.
func newPostID() string { return "p_" + uuid.NewString()[:8] }

// settleAndPrune settles and removes every expired post. For each one it
// computes the supporter payout (see Economy.Payouts) and credits supporters
// directly — investment return is not "earned" income, so the daily cap does
// not apply. Removal is unconditional whether or not the post was popular.
// Returns the number of posts removed.
func settleAndPrune(l *domain.Ledger, econ domain.Economy, now time.Time) int {
	keep := l.Posts[:0]
	removed := 0
	for _, p := range l.Posts {
		if !p.Expired(now) {
			keep = append(keep, p)
			continue
		}
		for supporter, payout := range econ.Payouts(p) {
			if payout > 0 {
				ensureAccount(l, supporter, econ, now).Balance += payout
			}
		}
		removed++
	}
	l.Posts = keep
	return removed
}

// Publish creates a post for author, debiting the publish cost. A start
// boost in the author's inventory is consumed for extra initial lifetime.
func (s *PostService) Publish(ctx context.Context, author, content, imageURL string) (view *domain.PostView, balance int, err error) {
	author, err = normalizeUsername(author)
	if err != nil {
		return nil, 0, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, 0, ErrEmptyContent
	}
	err = s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		now := s.Now()
		settleAndPrune(l, s.Econ, now)
		a := ensureAccount(l, author, s.Econ, now)
		if a.Balance < s.Econ.PostCost {
			return ErrInsufficientFunds
		}
		a.Balance -= s.Econ.PostCost

		life := time.Duration(s.Econ.InitialLifeHours) * time.Hour
		if consumeInventory(a, boostStartSKU) {
			life += time.Duration(s.Econ.BoostStartMinutes) * time.Minute
		}
		p := &domain.Post{
			ID:         newPostID(),
			Author:     author,
			Content:    content,
			ImageURL:   strings.TrimSpace(imageURL),
			CreatedAt:  now,
			ExpiresAt:  now.Add(life),
			Extensions: []domain.Extension{},
			Likes:      []string{},
			Comments:   []domain.Comment{},
		}
		l.Posts = append(l.Posts, p)
		v := s.Econ.View(p, now)
		view = &v
		balance = a.Balance
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return view, balance, nil
}

// consumeInventory removes one occurrence of sku and reports whether it was
// present.
func consumeInventory(a *domain.Account, sku string) bool {
	for i, v := range a.Inventory {
		if v == sku {
			a.Inventory = append(a.Inventory[:i], a.Inventory[i+1:]...)
			return true
		}
	}
	return false
}

// Extend spends tokens to push a post's expiry forward. Validation order:
// existence, expiry, amount, funds, then the author self-extension cap —
// all before any mutation, so a failed extend never partially applies.
func (s *PostService) Extend(ctx context.Context, postID, username string, amount int) (view *domain.PostView, balance int, err error) {
	username, err = normalizeUsername(username)
	if err != nil {
		return nil, 0, err
	}
	err = s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		now := s.Now()
		a := ensureAccount(l, username, s.Econ, now)
		p := l.Post(postID)
		if p == nil {
			return ErrPostNotFound
		}
		if p.Expired(now) {
			return ErrPostExpired
		}
		if amount <= 0 {
			return ErrInvalidAmount
		}
		if a.Balance < amount {
			return ErrInsufficientFunds
		}
		addHours := s.Econ.ExtensionHours(amount)
		if username == p.Author {
			selfHours := 0
			for _, x := range p.Extensions {
				if x.By == p.Author {
					selfHours += s.Econ.ExtensionHours(x.Amount)
				}
			}
			if selfHours+addHours > s.Econ.AuthorExtendHoursCap {
				return ErrAuthorCapExceeded
			}
		}

		a.Balance -= amount
		p.ExpiresAt = p.ExpiresAt.Add(time.Duration(addHours) * time.Hour)
		p.Extensions = append(p.Extensions, domain.Extension{By: username, Amount: amount, At: now})

		v := s.Econ.View(p, now)
		view = &v
		balance = a.Balance
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return view, balance, nil
}

// extendUncapped pushes a post's expiry forward without debiting anyone and
// without the author cap. Used by challenge finalization for the winner's
// time bonus, which is a reward grant, not a purchase.
func extendUncapped(p *domain.Post, bonus time.Duration) {
	p.ExpiresAt = p.ExpiresAt.Add(bonus)
}

// Like records a like by username. One like per identity per post; likes are
// never retracted. Every Nth like on the post credits the author through the
// capped earning path, so rewards grow sub-linearly with engagement.
func (s *PostService) Like(ctx context.Context, postID, username string) (likeCount int, err error) {
	username, err = normalizeUsername(username)
	if err != nil {
		return 0, err
	}
	err = s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		now := s.Now()
		settleAndPrune(l, s.Econ, now)
		ensureAccount(l, username, s.Econ, now)
		p := l.Post(postID)
		if p == nil {
			return ErrPostNotFound
		}
		if p.LikedBy(username) {
			return ErrAlreadyLiked
		}
		p.Likes = append(p.Likes, username)
		if username != p.Author && len(p.Likes)%s.Econ.LikeRewardEvery == 0 {
			author := ensureAccount(l, p.Author, s.Econ, now)
			awardCapped(author, s.Econ.EngagementReward, s.Econ.DayKey(now), s.Econ.DailyEarnCap)
		}
		likeCount = len(p.Likes)
		return nil
	})
	return likeCount, err
}

// Comment appends a comment (clipped to the max length). Every Nth
// non-author comment credits the post author through the capped path.
func (s *PostService) Comment(ctx context.Context, postID, username, text string) (commentCount int, err error) {
	username, err = normalizeUsername(username)
	if err != nil {
		return 0, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrEmptyContent
	}
	text = domain.Truncate(text, s.Econ.CommentMaxRunes)
	err = s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		now := s.Now()
		settleAndPrune(l, s.Econ, now)
		ensureAccount(l, username, s.Econ, now)
		p := l.Post(postID)
		if p == nil {
			return ErrPostNotFound
		}
		p.Comments = append(p.Comments, domain.Comment{By: username, Text: text, At: now})
		if username != p.Author {
			others := 0
			for _, cm := range p.Comments {
				if cm.By != p.Author {
					others++
				}
			}
			if others%s.Econ.CommentRewardEvery == 0 {
				author := ensureAccount(l, p.Author, s.Econ, now)
				awardCapped(author, s.Econ.EngagementReward, s.Econ.DayKey(now), s.Econ.DailyEarnCap)
			}
		}
		commentCount = len(p.Comments)
		return nil
	})
	return commentCount, err
}

// Get returns a single active post with derived stats.
func (s *PostService) Get(ctx context.Context, postID string) (*domain.PostView, error) {
	var view *domain.PostView
	err := s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		now := s.Now()
		settleAndPrune(l, s.Econ, now)
		p := l.Post(postID)
		if p == nil {
			return ErrPostNotFound
		}
		v := s.Econ.View(p, now)
		view = &v
		return nil
	})
	return view, err
}

// Comments returns the comment list of an active post.
func (s *PostService) Comments(ctx context.Context, postID string) ([]domain.Comment, error) {
	var out []domain.Comment
	err := s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		settleAndPrune(l, s.Econ, s.Now())
		p := l.Post(postID)
		if p == nil {
			return ErrPostNotFound
		}
		out = append([]domain.Comment{}, p.Comments...)
		return nil
	})
	return out, err
}

// ListActive returns all active posts, newest first.
func (s *PostService) ListActive(ctx context.Context) ([]domain.PostView, error) {
	return s.list(ctx, func(p *domain.Post) bool { return true }, byNewest)
}

// ListByAuthor returns the author's active posts, newest first.
func (s *PostService) ListByAuthor(ctx context.Context, author string) ([]domain.PostView, error) {
	author, err := normalizeUsername(author)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, func(p *domain.Post) bool { return p.Author == author }, byNewest)
}

// FollowingFeed returns active posts by the user and everyone they follow,
// ordered by remaining lifetime ascending — the ones closest to dying first,
// so supporters see where an extension matters most.
func (s *PostService) FollowingFeed(ctx context.Context, username string) ([]domain.PostView, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}
	var out []domain.PostView
	err = s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		now := s.Now()
		settleAndPrune(l, s.Econ, now)
		me := ensureAccount(l, username, s.Econ, now)
		authors := map[string]bool{username: true}
		for _, f := range me.Following {
			authors[f] = true
		}
		out = []domain.PostView{}
		for _, p := range l.Posts {
			if authors[p.Author] {
				out = append(out, s.Econ.View(p, now))
			}
		}
		sort.Slice(out, func(i, j int) bool {
			return out[i].RemainingSeconds < out[j].RemainingSeconds
		})
		return nil
	})
	return out, err
}

// byNewest orders views by creation time descending.
func byNewest(a, b domain.PostView) bool { return a.CreatedAt.After(b.CreatedAt) }

// list sweeps, filters, and sorts active posts.
func (s *PostService) list(ctx context.Context, match func(*domain.Post) bool, less func(a, b domain.PostView) bool) ([]domain.PostView, error) {
	var out []domain.PostView
	err := s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		now := s.Now()
		settleAndPrune(l, s.Econ, now)
		out = []domain.PostView{}
		for _, p := range l.Posts {
			if match(p) {
				out = append(out, s.Econ.View(p, now))
			}
		}
		sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
		return nil
	})
	return out, err
}
