package model

import "time"

// UserID uniquely identifies a user across the system
type UserID string

// InitialBalance is the wagering balance granted to a freshly created user.
const InitialBalance int64 = 1000

// User represents a participant with a wagering balance.
//
// Balance is only ever mutated through the ledger service; Online is only
// ever mutated by the session gateway's presence tracking.
type User struct {
	ID          UserID
	DisplayName string
	Balance     int64 // non-negative at all times
	Online      bool

	// Version is the optimistic-concurrency counter, bumped by storage on
	// every successful update.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
