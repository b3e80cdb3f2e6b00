// Package services implements the business rules of the token economy:
// accounts and the daily earn cap, the post lifecycle (publish, extend,
// settle), engagement rewards, challenges, and the shop. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Account-related errors.
var (
	// ErrInvalidUsername is returned when an identity key is empty after
	// trimming.
	ErrInvalidUsername = errors.New("username required")

	// ErrSelfFollow is returned when an account tries to follow itself.
	ErrSelfFollow = errors.New("cannot follow yourself")

	// ErrBonusClaimed is returned when the daily bonus was already claimed
	// inside the current period.
	ErrBonusClaimed = errors.New("daily bonus already claimed")

	// ErrInsufficientFunds is returned when a debit would drive a balance
	// negative. Balances never go below zero; validation precedes mutation.
	ErrInsufficientFunds = errors.New("insufficient tokens")
)

// Post-related errors.
var (
	// ErrPostNotFound indicates the post does not exist or was already
	// settled and removed.
	ErrPostNotFound = errors.New("post not found")

	// ErrPostExpired is returned when an operation targets a post whose
	// lifetime already ran out.
	ErrPostExpired = errors.New("post expired")

	// ErrEmptyContent is returned when text input is empty after trimming.
	ErrEmptyContent = errors.New("content is empty")

	// ErrInvalidAmount is returned for non-positive extension amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrAuthorCapExceeded is returned when an author self-extension would
	// push their total self-extended hours past the cap.
	ErrAuthorCapExceeded = errors.New("author extension cap reached")

	// ErrAlreadyLiked enforces one like per identity per post.
	ErrAlreadyLiked = errors.New("already liked")
)

// Challenge-related errors.
var (
	// ErrChallengeNotFound indicates the challenge id is unresolved.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrInvalidWindow is returned when a challenge would end before it starts.
	ErrInvalidWindow = errors.New("challenge must end after it starts")

	// ErrChallengeFinished is returned when submitting to a finished challenge.
	ErrChallengeFinished = errors.New("challenge finished")

	// ErrChallengeNotLive is returned when voting outside the live window.
	ErrChallengeNotLive = errors.New("challenge not live")

	// ErrEntryNotFound indicates the entry id is unresolved.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrVoteCapExceeded is returned when a voter used up their votes.
	ErrVoteCapExceeded = errors.New("daily vote cap reached")
)

// Shop-related errors.
var (
	// ErrItemNotFound indicates the shop SKU is unknown.
	ErrItemNotFound = errors.New("item not found")
)
