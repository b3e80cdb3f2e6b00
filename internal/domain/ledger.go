// Package domain defines the ledger document and its entities: accounts,
// posts, challenges, and the shop catalog. The whole ledger is persisted as
// one JSON document and replaced atomically on every write, so these types
// carry JSON tags only; derived values (like counts, certification,
// remaining time) are never stored and are recomputed on read.
package domain

import "time"

// Ledger is the complete persisted state of the application. Every mutating
// operation loads it, applies a domain rule, and saves it back as a unit.
type Ledger struct {
	Accounts   map[string]*Account `json:"accounts"`
	Posts      []*Post             `json:"posts"`
	Challenges []*Challenge        `json:"challenges"`
	Shop       []ShopItem          `json:"shop"`
}

// NewLedger returns an empty ledger with all collections initialized.
func NewLedger() *Ledger {
	return &Ledger{
		Accounts:   make(map[string]*Account),
		Posts:      []*Post{},
		Challenges: []*Challenge{},
		Shop:       []ShopItem{},
	}
}

// Post returns the active post with the given id, or nil.
func (l *Ledger) Post(id string) *Post {
	for _, p := range l.Posts {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Challenge returns the challenge with the given id, or nil.
func (l *Ledger) Challenge(id string) *Challenge {
	for _, c := range l.Challenges {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// DailyEarn tracks how much capped currency an account has earned inside the
// current calendar day, plus whether the once-a-day bonus was claimed. The
// window resets whenever Day differs from the current period key.
type DailyEarn struct {
	Day     string `json:"day"`
	Earned  int    `json:"earned"`
	Claimed bool   `json:"claimed"`
}

// Account is a user of the token economy. Accounts are created lazily on
// first reference and never deleted. Balance must stay non-negative; any
// debit that would violate that is rejected before mutation.
type Account struct {
	Username  string    `json:"username"`
	Balance   int       `json:"balance"`
	Bio       string    `json:"bio"`
	AvatarURL string    `json:"avatar_url"`
	Theme     string    `json:"theme,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Daily     DailyEarn `json:"daily"`
	Saved     []string  `json:"saved"`
	Followers []string  `json:"followers"`
	Following []string  `json:"following"`
	Badges    []string  `json:"badges,omitempty"`
	Inventory []string  `json:"inventory,omitempty"`
}

// IsFollowing reports whether the account follows target.
func (a *Account) IsFollowing(target string) bool {
	return containsString(a.Following, target)
}

// HasBadge reports whether the account owns the given badge SKU.
func (a *Account) HasBadge(badge string) bool {
	return containsString(a.Badges, badge)
}

// ToggleSaved flips the bookmark state of postID and reports whether the
// post is saved afterwards.
func (a *Account) ToggleSaved(postID string) bool {
	if containsString(a.Saved, postID) {
		a.Saved = removeString(a.Saved, postID)
		return false
	}
	a.Saved = append(a.Saved, postID)
	return true
}

// ToggleFollow flips the follow edge between from and to, keeping the
// following/followers sets symmetric on both accounts. It reports whether
// from follows to afterwards.
func ToggleFollow(from, to *Account) bool {
	if from.IsFollowing(to.Username) {
		from.Following = removeString(from.Following, to.Username)
		to.Followers = removeString(to.Followers, from.Username)
		return false
	}
	from.Following = append(from.Following, to.Username)
	to.Followers = append(to.Followers, from.Username)
	return true
}

// Extension is one paid lifetime extension of a post. The list is an
// append-only audit trail; settlement reads it to compute supporter payouts.
type Extension struct {
	By     string    `json:"by"`
	Amount int       `json:"amount"`
	At     time.Time `json:"at"`
}

// Comment is a single comment on a post.
type Comment struct {
	By   string    `json:"by"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Post is an ephemeral content item. ExpiresAt only ever moves forward (via
// extensions); once it passes, the settlement sweep pays out supporters and
// removes the post, after which it is never served again.
type Post struct {
	ID         string      `json:"id"`
	Author     string      `json:"author"`
	Content    string      `json:"content"`
	ImageURL   string      `json:"image_url,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	ExpiresAt  time.Time   `json:"expires_at"`
	Extensions []Extension `json:"extensions"`
	Likes      []string    `json:"likes"`
	Comments   []Comment   `json:"comments"`
}

// Expired reports whether the post's lifetime has run out at now.
func (p *Post) Expired(now time.Time) bool {
	return !p.ExpiresAt.After(now)
}

// LikedBy reports whether the given user already liked the post.
func (p *Post) LikedBy(user string) bool {
	return containsString(p.Likes, user)
}

// ShopItem is a purchasable cosmetic, badge, or boost. Apply encodes the
// effect as "kind:value", e.g. "theme:ocean", "badge:Curator", "boost:start30".
type ShopItem struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Name        string `json:"name"`
	Description string `json:"desc"`
	Price       int    `json:"price"`
	Apply       string `json:"apply"`
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
