package storage

import (
	"context"
	"time"

	"github.com/rfglabs/deathroll/internal/model"
)

// RoomFilter narrows ListRooms results. Zero value matches everything.
type RoomFilter struct {
	Status model.RoomStatus
}

// Matches reports whether the room passes the filter.
func (f RoomFilter) Matches(r *model.Room) bool {
	return f.Status == "" || r.Status == f.Status
}

// Storage defines the interface for data persistence.
//
// UpdateUser, UpdateRoom and UpdateReservation are compare-and-swap
// operations: they succeed only if the stored Version equals the Version
// on the passed record, and bump Version by one on success. A mismatch
// returns model.ErrConcurrentModification. This is what serializes
// concurrent joins and rolls on the same room.
type Storage interface {
	// User operations
	SaveUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id model.UserID) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	ListUsers(ctx context.Context) ([]*model.User, error)

	// AdjustBalance atomically applies delta to the user's balance and
	// returns the new value. A delta that would take the balance negative
	// fails with model.ErrInsufficientFunds and leaves the balance
	// untouched. Linearizable with respect to concurrent adjustments on
	// the same user.
	AdjustBalance(ctx context.Context, id model.UserID, delta int64) (int64, error)

	// Room operations
	CreateRoom(ctx context.Context, room *model.Room) error
	GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error)
	UpdateRoom(ctx context.Context, room *model.Room) error
	ListRooms(ctx context.Context, filter RoomFilter) ([]*model.Room, error)
	PurgeRooms(ctx context.Context) (int, error)

	// Reservation operations
	SaveReservation(ctx context.Context, res *model.Reservation) error
	GetReservation(ctx context.Context, id model.ReservationID) (*model.Reservation, error)
	UpdateReservation(ctx context.Context, res *model.Reservation) error
	ReservationsForRoom(ctx context.Context, roomID model.RoomID) ([]*model.Reservation, error)
	HeldReservationsOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Reservation, error)
}
