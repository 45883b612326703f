package model

import "errors"

// Common errors used across the application
var (
	// User errors
	ErrUserNotFound = errors.New("user not found")

	// Ledger errors
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrReservationNotFound = errors.New("reservation not found")

	// Room errors
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomExists        = errors.New("room already exists")
	ErrRoomNotOpen       = errors.New("room is not open")
	ErrRoomNotActive     = errors.New("room is not active")
	ErrSelfJoinForbidden = errors.New("cannot join your own room")
	ErrInvalidWager      = errors.New("wager is below the minimum")

	// Game errors
	ErrNotYourTurn = errors.New("not this player's turn")

	// ErrConcurrentModification signals a version conflict on an
	// optimistic-concurrency update. Retryable.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrInvariantViolation reports state that should never occur, e.g. an
	// active room whose roll bound has already reached 1.
	ErrInvariantViolation = errors.New("game state invariant violated")
)
