// Post HTTP handlers.
//
// This file exposes REST endpoints for the post lifecycle:
//   - POST /posts                      (publish, costs tokens)
//   - GET  /posts                      (active feed, newest first)
//   - GET  /posts/{id}                 (single post with derived stats)
//   - POST /posts/{id}/extend          (paid lifetime extension)
//   - POST /posts/{id}/like            (one like per identity)
//   - POST /posts/{id}/comments        (append comment)
//   - GET  /posts/{id}/comments        (comment list)
//   - GET  /users/{username}/posts     (author feed)
//   - GET  /feed/following             (follow graph feed, most urgent first)
//
// Idempotency:
// The token-spending endpoints (publish, extend) and like honor the
// Idempotency-Key header. A replay of a recorded key returns the current
// state of the affected post with `Idempotency-Replayed: true` instead of
// repeating the debit or the like.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timelylabs/timely-backend/internal/domain"
	"github.com/timelylabs/timely-backend/internal/store"
	"github.com/timelylabs/timely-backend/internal/utils"
)

//
// DTOs
//

// PublishRequest is the JSON payload for creating a post.
type PublishRequest struct {
	// Content is the post body. It must be non-empty after trimming.
	Content string `json:"content" binding:"required,min=1" example:"the ISS passes overhead in 4 minutes"`
	// ImageURL optionally attaches an image.
	ImageURL string `json:"image_url" example:"https://cdn.example.com/iss.jpg"`
}

// ExtendRequest is the JSON payload for a paid lifetime extension.
type ExtendRequest struct {
	// Amount is the number of tokens to spend (> 0).
	Amount int `json:"amount" binding:"required" example:"2"`
}

// CommentRequest is the JSON payload for appending a comment.
type CommentRequest struct {
	Text string `json:"text" binding:"required,min=1" example:"caught it, thanks!"`
}

// PostResponse wraps a post view and, where a debit happened, the caller's
// new balance.
type PostResponse struct {
	Post    any  `json:"post"`
	Balance *int `json:"balance,omitempty"`
}

// CountResponse reports a new collection size after a mutation.
type CountResponse struct {
	Count int `json:"count"`
}

//
// Idempotency helpers
//

// replayPost serves a recorded idempotent result by returning the current
// view of the post it produced. Reports whether the request was handled.
func (h *Handlers) replayPost(c *gin.Context, scope, key string) bool {
	if key == "" || h.DB == nil {
		return false
	}
	rec, err := store.GetIdempotency(c.Request.Context(), h.DB, userID(c), scope, key, time.Now().UTC())
	if err != nil || rec == nil {
		return false
	}
	view, err := h.posts.Get(c.Request.Context(), rec.ResultID)
	if err != nil {
		return false
	}
	c.Header("Idempotency-Replayed", "true")
	ok(c, rec.Status, PostResponse{Post: view})
	return true
}

// replayLike serves a recorded like with the same envelope as a fresh one:
// the post's current like count. Reports whether the request was handled.
func (h *Handlers) replayLike(c *gin.Context, postID, key string) bool {
	if key == "" || h.DB == nil {
		return false
	}
	rec, err := store.GetIdempotency(c.Request.Context(), h.DB, userID(c), "like:"+postID, key, time.Now().UTC())
	if err != nil || rec == nil {
		return false
	}
	view, err := h.posts.Get(c.Request.Context(), rec.ResultID)
	if err != nil {
		return false
	}
	c.Header("Idempotency-Replayed", "true")
	ok(c, rec.Status, CountResponse{Count: view.LikeCount})
	return true
}

// recordIdempotency persists the outcome of an unsafe operation, best effort.
func (h *Handlers) recordIdempotency(c *gin.Context, scope, key, resultID string, status int) {
	if key == "" || h.DB == nil {
		return
	}
	ttl := h.IdemTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_, _ = store.CreateIdempotency(c.Request.Context(), h.DB, userID(c), scope, key, resultID, status, ttl)
}

// idemKey reads the Idempotency-Key header directly; the validating
// middleware has already rejected malformed values by the time handlers run.
func idemKey(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader("Idempotency-Key"))
}

// clampLimit bounds the optional ?limit query param to a sane page size.
func clampLimit(c *gin.Context) int {
	const (
		defaultLimit = 50
		maxLimit     = 200
	)
	return utils.ClampLimit(c.Query("limit"), defaultLimit, maxLimit)
}

// capViews truncates a feed to the requested limit.
func capViews(posts []domain.PostView, limit int) []domain.PostView {
	if len(posts) > limit {
		return posts[:limit]
	}
	return posts
}

//
// Handlers
//

// PublishPost creates a post for the caller, debiting the publish cost. A
// start boost in the caller's inventory is consumed automatically.
func (h *Handlers) PublishPost(c *gin.Context) {
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	key := idemKey(c)
	if h.replayPost(c, "publish", key) {
		return
	}

	view, balance, err := h.posts.Publish(c.Request.Context(), userID(c), req.Content, req.ImageURL)
	if err != nil {
		failErr(c, err)
		return
	}
	h.recordIdempotency(c, "publish", key, view.ID, http.StatusCreated)
	ok(c, http.StatusCreated, PostResponse{Post: view, Balance: &balance})
}

// ListPosts returns active posts, newest first, capped by ?limit (default 50).
func (h *Handlers) ListPosts(c *gin.Context) {
	posts, err := h.posts.ListActive(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"posts": capViews(posts, clampLimit(c))})
}

// GetPost returns one active post with derived stats. Expired posts are
// settled on the way, so this endpoint never serves a dead post.
func (h *Handlers) GetPost(c *gin.Context) {
	view, err := h.posts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, PostResponse{Post: view})
}

// ExtendPost spends tokens to push the post's expiry forward. Authors are
// bounded by the self-extension cap; supporters are not.
func (h *Handlers) ExtendPost(c *gin.Context) {
	var req ExtendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "amount required")
		return
	}

	postID := c.Param("id")
	key := idemKey(c)
	if h.replayPost(c, "extend:"+postID, key) {
		return
	}

	view, balance, err := h.posts.Extend(c.Request.Context(), postID, userID(c), req.Amount)
	if err != nil {
		failErr(c, err)
		return
	}
	h.recordIdempotency(c, "extend:"+postID, key, view.ID, http.StatusOK)
	ok(c, http.StatusOK, PostResponse{Post: view, Balance: &balance})
}

// LikePost records one like by the caller. A second like returns 409; a
// recorded Idempotency-Key replay re-serves the current like count.
func (h *Handlers) LikePost(c *gin.Context) {
	postID := c.Param("id")
	key := idemKey(c)
	if h.replayLike(c, postID, key) {
		return
	}

	count, err := h.posts.Like(c.Request.Context(), postID, userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	h.recordIdempotency(c, "like:"+postID, key, postID, http.StatusOK)
	ok(c, http.StatusOK, CountResponse{Count: count})
}

// CommentPost appends a comment to the post. Over-long text is clipped.
func (h *Handlers) CommentPost(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	}
	count, err := h.posts.Comment(c.Request.Context(), c.Param("id"), userID(c), req.Text)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, CountResponse{Count: count})
}

// ListComments returns the comment list of an active post.
func (h *Handlers) ListComments(c *gin.Context) {
	comments, err := h.posts.Comments(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"comments": comments})
}

// UserPosts returns the active posts of the username in the path.
func (h *Handlers) UserPosts(c *gin.Context) {
	posts, err := h.posts.ListByAuthor(c.Request.Context(), c.Param("username"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"posts": posts})
}

// FollowingFeed returns posts by the caller and everyone they follow,
// ordered by remaining lifetime ascending, capped by ?limit.
func (h *Handlers) FollowingFeed(c *gin.Context) {
	posts, err := h.posts.FollowingFeed(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"posts": capViews(posts, clampLimit(c))})
}
