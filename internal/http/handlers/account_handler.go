// Account HTTP handlers.
//
// This file exposes REST endpoints for identities and the social graph:
//   - POST /login                      (get-or-create account, returns balance)
//   - GET  /balance                    (current balance + daily window)
//   - POST /daily-claim                (once-a-day bonus)
//   - GET  /profile/{username}         (public profile)
//   - PUT  /profile/bio                (update own bio)
//   - POST /follow                     (toggle follow edge)
//   - GET  /achievements/{username}    (derived achievements)
//   - POST /posts/{id}/save            (toggle bookmark)
//   - GET  /saved                      (bookmarked posts)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/timelylabs/timely-backend/internal/domain"
	"github.com/timelylabs/timely-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// AccountAPI defines account and social-graph operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type AccountAPI interface {
	// GetOrCreate returns the account for username, creating it on first use.
	GetOrCreate(ctx context.Context, username string) (*domain.Account, error)
	// ClaimDailyBonus awards the daily bonus once per UTC day.
	ClaimDailyBonus(ctx context.Context, username string) (int, *domain.Account, error)
	// ToggleFollow flips the follow edge from username to target.
	ToggleFollow(ctx context.Context, username, target string) (bool, error)
	// UpdateBio replaces the account bio.
	UpdateBio(ctx context.Context, username, bio string) error
	// GetProfile returns the public profile of target as seen by viewer.
	GetProfile(ctx context.Context, target, viewer string) (*services.Profile, error)
	// ToggleSaved flips the bookmark on a post.
	ToggleSaved(ctx context.Context, username, postID string) (bool, error)
	// ListSaved returns the user's bookmarked posts.
	ListSaved(ctx context.Context, username string, includeExpired bool) ([]domain.PostView, error)
	// Achievements derives the user's achievements from ledger state.
	Achievements(ctx context.Context, username string) ([]services.Achievement, error)
}

// PostAPI defines post lifecycle and engagement operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type PostAPI interface {
	// Publish creates a post, debiting the publish cost.
	Publish(ctx context.Context, author, content, imageURL string) (*domain.PostView, int, error)
	// Extend spends tokens to push a post's expiry forward.
	Extend(ctx context.Context, postID, username string, amount int) (*domain.PostView, int, error)
	// Like records one like per identity per post.
	Like(ctx context.Context, postID, username string) (int, error)
	// Comment appends a comment to an active post.
	Comment(ctx context.Context, postID, username, text string) (int, error)
	// Get returns a single active post.
	Get(ctx context.Context, postID string) (*domain.PostView, error)
	// Comments returns the comment list of an active post.
	Comments(ctx context.Context, postID string) ([]domain.Comment, error)
	// ListActive returns all active posts, newest first.
	ListActive(ctx context.Context) ([]domain.PostView, error)
	// ListByAuthor returns the author's active posts, newest first.
	ListByAuthor(ctx context.Context, author string) ([]domain.PostView, error)
	// FollowingFeed returns posts by the user and their follows, most
	// urgent (least remaining lifetime) first.
	FollowingFeed(ctx context.Context, username string) ([]domain.PostView, error)
}

// ChallengeAPI defines challenge lifecycle operations.
type ChallengeAPI interface {
	// Create stores a new time-boxed challenge.
	Create(ctx context.Context, creator, title, ctype, description string, startsAt, endsAt time.Time, prize, bonusMinutes int) (*domain.Challenge, error)
	// List returns challenge summaries, soonest-ending first.
	List(ctx context.Context) ([]services.Summary, error)
	// Get returns a challenge with derived status for one viewer.
	Get(ctx context.Context, id, viewer string) (*services.Detail, error)
	// Submit appends an entry to an unfinished challenge.
	Submit(ctx context.Context, challengeID, author, content string) (string, error)
	// Vote casts one vote for an entry of a live challenge.
	Vote(ctx context.Context, challengeID, voter, entryID string) (int, error)
}

// ShopAPI defines the item catalog and purchase operations.
type ShopAPI interface {
	// Items returns the current catalog.
	Items(ctx context.Context) ([]domain.ShopItem, error)
	// Buy debits the item price and applies its effect.
	Buy(ctx context.Context, username, itemID string) (bool, int, error)
}

// MaintenanceAPI runs the settlement and finalization pass.
type MaintenanceAPI interface {
	// Run executes one maintenance pass.
	Run(ctx context.Context) (services.Result, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for accounts, posts, challenges, the shop,
// and maintenance. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	accounts   AccountAPI
	posts      PostAPI
	challenges ChallengeAPI
	shop       ShopAPI
	maint      MaintenanceAPI

	// DB backs the idempotency records for unsafe endpoints; optional.
	DB *gorm.DB
	// IdemTTL bounds how long a recorded Idempotency-Key remains valid.
	IdemTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(accounts AccountAPI, posts PostAPI, challenges ChallengeAPI, shop ShopAPI, maint MaintenanceAPI) *Handlers {
	return &Handlers{
		accounts:   accounts,
		posts:      posts,
		challenges: challenges,
		shop:       shop,
		maint:      maint,
		IdemTTL:    24 * time.Hour,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// LoginRequest is the JSON payload for the demo login endpoint.
type LoginRequest struct {
	// Username is the identity to get or create.
	Username string `json:"username" binding:"required,min=1,max=64" example:"ada"`
}

// AccountResponse is the JSON envelope for an account snapshot.
type AccountResponse struct {
	Account *domain.Account `json:"account"`
}

// BalanceResponse reports the balance and the daily earning window.
type BalanceResponse struct {
	Username    string `json:"username"`
	Balance     int    `json:"balance"`
	EarnedToday int    `json:"earned_today"`
	Claimed     bool   `json:"claimed"`
}

// DailyClaimResponse reports the credited bonus (possibly clipped to zero by
// the daily cap) and the resulting balance.
type DailyClaimResponse struct {
	Added   int `json:"added"`
	Balance int `json:"balance"`
}

// UpdateBioRequest is the JSON payload for replacing the caller's bio.
type UpdateBioRequest struct {
	Bio string `json:"bio" example:"posts about orbital mechanics"`
}

// FollowRequest is the JSON payload for toggling a follow edge.
type FollowRequest struct {
	Target string `json:"target" binding:"required,min=1" example:"grace"`
}

// FollowResponse reports the resulting follow state.
type FollowResponse struct {
	Following bool `json:"following"`
}

// SavedResponse reports the resulting bookmark state.
type SavedResponse struct {
	Saved bool `json:"saved"`
}

//
// Handlers
//

// Login returns the caller's account, creating it with the starting balance
// on first use. There is no password in the demo identity model; the
// username is the identity.
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username required (1-64 chars)")
		return
	}
	a, err := h.accounts.GetOrCreate(c.Request.Context(), req.Username)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, AccountResponse{Account: a})
}

// Balance reports the caller's balance and daily earning window.
func (h *Handlers) Balance(c *gin.Context) {
	a, err := h.accounts.GetOrCreate(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, BalanceResponse{
		Username:    a.Username,
		Balance:     a.Balance,
		EarnedToday: a.Daily.Earned,
		Claimed:     a.Daily.Claimed,
	})
}

// DailyClaim awards the daily bonus. A second claim on the same UTC day
// returns 409. The credited amount may be zero when the daily earn cap is
// already exhausted; the claim still counts.
func (h *Handlers) DailyClaim(c *gin.Context) {
	added, a, err := h.accounts.ClaimDailyBonus(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, DailyClaimResponse{Added: added, Balance: a.Balance})
}

// Profile returns the public profile of the username in the path.
func (h *Handlers) Profile(c *gin.Context) {
	p, err := h.accounts.GetProfile(c.Request.Context(), c.Param("username"), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdateBio replaces the caller's bio. Over-long input is clipped, not
// rejected.
func (h *Handlers) UpdateBio(c *gin.Context) {
	var req UpdateBioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.accounts.UpdateBio(c.Request.Context(), userID(c), req.Bio); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// Follow toggles the follow edge from the caller to the target username.
func (h *Handlers) Follow(c *gin.Context) {
	var req FollowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "target required")
		return
	}
	following, err := h.accounts.ToggleFollow(c.Request.Context(), userID(c), req.Target)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, FollowResponse{Following: following})
}

// Achievements returns the derived achievements of the username in the path.
func (h *Handlers) Achievements(c *gin.Context) {
	list, err := h.accounts.Achievements(c.Request.Context(), c.Param("username"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"achievements": list})
}

// SavePost toggles the caller's bookmark on the post in the path.
func (h *Handlers) SavePost(c *gin.Context) {
	saved, err := h.accounts.ToggleSaved(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SavedResponse{Saved: saved})
}

// ListSaved returns the caller's bookmarked posts, newest first. Pass
// ?include_expired=1 to list bookmarks whose posts already expired.
func (h *Handlers) ListSaved(c *gin.Context) {
	includeExpired := false
	switch strings.ToLower(c.Query("include_expired")) {
	case "1", "true", "yes":
		includeExpired = true
	}
	posts, err := h.accounts.ListSaved(c.Request.Context(), userID(c), includeExpired)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"posts": posts})
}
