// Challenge HTTP handlers.
//
// This file exposes REST endpoints for time-boxed community challenges:
//   - POST /challenges                      (create)
//   - GET  /challenges                      (list summaries)
//   - GET  /challenges/{id}                 (detail with derived status)
//   - POST /challenges/{id}/entries         (submit an entry)
//   - POST /challenges/{id}/vote            (vote for an entry, capped)
//
// Votes honor the Idempotency-Key header: a replayed key acknowledges the
// recorded vote instead of casting another one.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timelylabs/timely-backend/internal/store"
)

//
// DTOs
//

// CreateChallengeRequest is the JSON payload for creating a challenge.
type CreateChallengeRequest struct {
	Title       string    `json:"title" binding:"required,min=1" example:"Best sunset shot"`
	Type        string    `json:"type" binding:"required,min=1" example:"photo"`
	Description string    `json:"description" example:"One entry per person, golden hour only"`
	StartsAt    time.Time `json:"starts_at" binding:"required"`
	EndsAt      time.Time `json:"ends_at" binding:"required"`
	// Prize overrides the default winner prize when > 0.
	Prize int `json:"prize" example:"10"`
	// BonusMinutes overrides the default lifetime bonus when > 0.
	BonusMinutes int `json:"bonus_minutes" example:"60"`
}

// SubmitEntryRequest is the JSON payload for submitting a challenge entry.
type SubmitEntryRequest struct {
	Content string `json:"content" binding:"required,min=1" example:"golden hour over the harbor"`
}

// SubmitEntryResponse returns the id of the stored entry.
type SubmitEntryResponse struct {
	EntryID string `json:"entry_id"`
}

// VoteRequest is the JSON payload for casting a vote.
type VoteRequest struct {
	EntryID string `json:"entry_id" binding:"required,min=1" example:"e_1a2b3c4d"`
}

// VoteResponse reports the entry's vote count after the cast.
type VoteResponse struct {
	EntryID string `json:"entry_id"`
	Votes   int    `json:"votes"`
}

//
// Handlers
//

// CreateChallenge stores a new challenge. The window must end after it
// starts; prize and bonus fall back to defaults when omitted.
func (h *Handlers) CreateChallenge(c *gin.Context) {
	var req CreateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title, type, starts_at and ends_at required")
		return
	}
	ch, err := h.challenges.Create(c.Request.Context(), userID(c),
		req.Title, req.Type, req.Description, req.StartsAt, req.EndsAt, req.Prize, req.BonusMinutes)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"challenge": ch})
}

// ListChallenges returns challenge summaries, soonest-ending first.
func (h *Handlers) ListChallenges(c *gin.Context) {
	list, err := h.challenges.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"challenges": list})
}

// GetChallenge returns one challenge with derived status and the caller's
// used votes.
func (h *Handlers) GetChallenge(c *gin.Context) {
	d, err := h.challenges.Get(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// SubmitEntry appends an entry to a challenge that has not finished.
func (h *Handlers) SubmitEntry(c *gin.Context) {
	var req SubmitEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	entryID, err := h.challenges.Submit(c.Request.Context(), c.Param("id"), userID(c), req.Content)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, SubmitEntryResponse{EntryID: entryID})
}

// Vote casts one vote for an entry of a live challenge. Each caller has a
// fixed vote budget per challenge. A replayed Idempotency-Key acknowledges
// the recorded vote without casting another.
func (h *Handlers) Vote(c *gin.Context) {
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "entry_id required")
		return
	}

	challengeID := c.Param("id")
	key := idemKey(c)
	if key != "" && h.DB != nil {
		rec, err := store.GetIdempotency(c.Request.Context(), h.DB, userID(c), "vote:"+challengeID, key, time.Now().UTC())
		if err == nil && rec != nil {
			// Same envelope as a fresh cast: the entry's current vote count.
			d, err := h.challenges.Get(c.Request.Context(), challengeID, userID(c))
			if err == nil {
				if e := d.Entry(rec.ResultID); e != nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, rec.Status, VoteResponse{EntryID: e.ID, Votes: e.Votes})
					return
				}
			}
		}
	}

	votes, err := h.challenges.Vote(c.Request.Context(), challengeID, userID(c), req.EntryID)
	if err != nil {
		failErr(c, err)
		return
	}
	h.recordIdempotency(c, "vote:"+challengeID, key, req.EntryID, http.StatusOK)
	ok(c, http.StatusOK, VoteResponse{EntryID: req.EntryID, Votes: votes})
}
