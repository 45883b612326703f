package model

import "time"

// ReservationID uniquely identifies an escrow reservation
type ReservationID string

// ReservationState tracks the lifecycle of escrowed funds.
type ReservationState string

const (
	// ReservationHeld means the amount has been debited and is escrowed
	// against the room.
	ReservationHeld ReservationState = "held"
	// ReservationSettled means the escrow was paid out when the room closed.
	ReservationSettled ReservationState = "settled"
	// ReservationReleased means the escrow was refunded to its owner.
	ReservationReleased ReservationState = "released"
)

// Reservation records funds debited from a user and held against a room.
//
// It is the durable half of the two-phase escrow path: the debit and the
// reservation are written before the dependent room transition commits, so
// a crash in between leaves a held reservation that the reconciliation
// sweep can refund.
type Reservation struct {
	ID     ReservationID
	RoomID RoomID
	UserID UserID
	Amount int64
	State  ReservationState

	// Version is the optimistic-concurrency counter, bumped by storage on
	// every successful update.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
