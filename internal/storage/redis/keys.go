package redis

import (
	"fmt"

	"github.com/rfglabs/deathroll/internal/model"
)

// Key prefix for all game-related data
const keyPrefix = "droll"

// userKey returns the Redis key for a User
func userKey(id model.UserID) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, id)
}

// usersIndexKey returns the Redis key for the SET of all user ids
func usersIndexKey() string {
	return fmt.Sprintf("%s:idx:users", keyPrefix)
}

// roomKey returns the Redis key for a Room
func roomKey(id model.RoomID) string {
	return fmt.Sprintf("%s:room:%s", keyPrefix, id)
}

// roomsIndexKey returns the Redis key for the SET of all room ids
func roomsIndexKey() string {
	return fmt.Sprintf("%s:idx:rooms", keyPrefix)
}

// reservationKey returns the Redis key for a Reservation
func reservationKey(id model.ReservationID) string {
	return fmt.Sprintf("%s:resv:%s", keyPrefix, id)
}

// reservationsForRoomIndexKey returns the Redis key for the SET of
// reservation ids held against a room
func reservationsForRoomIndexKey(roomID model.RoomID) string {
	return fmt.Sprintf("%s:idx:resv_for_room:%s", keyPrefix, roomID)
}

// heldReservationsIndexKey returns the Redis key for the SET of
// reservation ids currently in the held state
func heldReservationsIndexKey() string {
	return fmt.Sprintf("%s:idx:resv_held", keyPrefix)
}
