package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	EventRoomCreated    EventType = "room_created"
	EventPlayerJoined   EventType = "player_joined"
	EventRollResult     EventType = "roll_result"
	EventRoomUpdate     EventType = "room_update"
	EventGameEnded      EventType = "game_ended"
	EventRoomsPurged    EventType = "rooms_purged"
	EventPlayerPresence EventType = "player_presence"
)

// Pub/sub topics. Per-room and per-user topics are built with the helpers
// below; TopicGlobal carries events every connected client should see.
const TopicGlobal = "global"

// RoomTopic returns the pub/sub topic for a single room.
func RoomTopic(id RoomID) string {
	return "room:" + string(id)
}

// UserTopic returns the pub/sub topic for a single user.
func UserTopic(id UserID) string {
	return "user:" + string(id)
}

// Event is the base structure for all events.
//
// Delivery is best-effort; every payload carries (or is reconstructible
// from) a full room snapshot so a client that missed events can
// resynchronize by polling the room endpoints.
type Event struct {
	Type      EventType
	Timestamp time.Time
	RoomID    RoomID // empty for non-room events
	UserID    UserID // the user who triggered or is affected
	Payload   any    // type-specific data
}

// RoomCreatedPayload contains data for room created events
type RoomCreatedPayload struct {
	Room Room
}

// RoomUpdatePayload carries a fresh room snapshot for list views
type RoomUpdatePayload struct {
	Room Room
}

// PlayerJoinedPayload contains data for player joined events
type PlayerJoinedPayload struct {
	Room   Room
	Joiner UserID
}

// RollResultPayload contains data for a non-terminal roll
type RollResultPayload struct {
	Room       Room
	Player     UserID
	Value      int64
	NextPlayer UserID
}

// GameEndedPayload contains data for terminal rolls
type GameEndedPayload struct {
	Room      Room
	Winner    UserID
	Loser     UserID
	FinalRoll int64
	Rolls     []RollEntry
}

// RoomsPurgedPayload contains data for administrative purges
type RoomsPurgedPayload struct {
	Count int
}

// PlayerPresencePayload contains data for presence changes
type PlayerPresencePayload struct {
	UserID UserID
	Online bool
}
