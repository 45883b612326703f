package model

import "time"

// RoomID uniquely identifies a game room
type RoomID string

// RoomStatus represents the lifecycle phase of a room.
// Transitions are monotonic: open -> active -> closed.
type RoomStatus string

const (
	RoomStatusOpen   RoomStatus = "open"   // Waiting for an opponent
	RoomStatusActive RoomStatus = "active" // Game in progress
	RoomStatusClosed RoomStatus = "closed" // Settled, immutable
)

// MinWager is the smallest wager a room may be created with.
const MinWager int64 = 20

// RollEntry is one entry in a room's append-only roll log.
type RollEntry struct {
	Player   UserID
	Value    int64
	RolledAt time.Time
}

// Room represents a single death-roll game between two players.
//
// Each participant escrows Wager on entry; the winner takes 2x Wager when
// the room closes. CurrentMax is the exclusive upper bound for the next
// roll and is strictly decreasing across the roll log.
type Room struct {
	ID      RoomID
	Player1 UserID // creator, always set
	Player2 UserID // empty until joined
	Wager   int64

	Status        RoomStatus
	CurrentMax    int64
	CurrentPlayer UserID // who must act next; meaningless once closed
	Rolls         []RollEntry
	Winner        UserID // set only when Status is closed

	// Version is the optimistic-concurrency counter, bumped by storage on
	// every successful update.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPlayer reports whether the given user is a participant in the room.
func (r *Room) HasPlayer(id UserID) bool {
	return id != "" && (r.Player1 == id || r.Player2 == id)
}

// Opponent returns the other participant, or empty if id is not a
// participant or the room has no second player yet.
func (r *Room) Opponent(id UserID) UserID {
	switch id {
	case r.Player1:
		return r.Player2
	case r.Player2:
		return r.Player1
	default:
		return ""
	}
}

// LastRoll returns the most recent roll entry, or nil if none.
func (r *Room) LastRoll() *RollEntry {
	if len(r.Rolls) == 0 {
		return nil
	}
	return &r.Rolls[len(r.Rolls)-1]
}
