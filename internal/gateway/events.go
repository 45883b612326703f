package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rfglabs/deathroll/internal/api/response"
	"github.com/rfglabs/deathroll/internal/model"
	"github.com/rfglabs/deathroll/internal/services/game"
)

// envelope is the server-to-client wire frame.
type envelope struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Payload   any       `json:"payload,omitempty"`
}

type roomCreatedWire struct {
	Room response.Room `json:"room"`
}

type playerJoinedWire struct {
	Room   response.Room `json:"room"`
	Joiner string        `json:"joiner"`
}

type rollResultWire struct {
	Room       response.Room `json:"room"`
	Player     string        `json:"player"`
	Value      int64         `json:"value"`
	NextPlayer string        `json:"next_player"`
}

type gameEndedWire struct {
	Room      response.Room   `json:"room"`
	Winner    string          `json:"winner"`
	Loser     string          `json:"loser"`
	FinalRoll int64           `json:"final_roll"`
	Rolls     []response.Roll `json:"rolls"`
}

type roomsPurgedWire struct {
	Count int `json:"count"`
}

type presenceWire struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

type errorWire struct {
	Message string `json:"message"`
}

// encodeEvent converts a broker event into its wire frame.
func encodeEvent(event model.Event) ([]byte, error) {
	env := envelope{
		Type:      string(event.Type),
		Timestamp: event.Timestamp,
	}

	switch payload := event.Payload.(type) {
	case model.RoomCreatedPayload:
		env.Payload = roomCreatedWire{Room: response.RoomFromModel(&payload.Room)}
	case model.RoomUpdatePayload:
		env.Payload = roomCreatedWire{Room: response.RoomFromModel(&payload.Room)}
	case model.PlayerJoinedPayload:
		env.Payload = playerJoinedWire{
			Room:   response.RoomFromModel(&payload.Room),
			Joiner: string(payload.Joiner),
		}
	case model.RollResultPayload:
		env.Payload = rollResultWire{
			Room:       response.RoomFromModel(&payload.Room),
			Player:     string(payload.Player),
			Value:      payload.Value,
			NextPlayer: string(payload.NextPlayer),
		}
	case model.GameEndedPayload:
		room := response.RoomFromModel(&payload.Room)
		env.Payload = gameEndedWire{
			Room:      room,
			Winner:    string(payload.Winner),
			Loser:     string(payload.Loser),
			FinalRoll: payload.FinalRoll,
			Rolls:     room.Rolls,
		}
	case model.RoomsPurgedPayload:
		env.Payload = roomsPurgedWire{Count: payload.Count}
	case model.PlayerPresencePayload:
		env.Payload = presenceWire{
			UserID: string(payload.UserID),
			Online: payload.Online,
		}
	case nil:
	default:
		return nil, fmt.Errorf("unknown event payload %T", event.Payload)
	}

	return json.Marshal(env)
}

// encodeRollAck frames a direct roll acknowledgement for the actor.
func encodeRollAck(result *game.RollResult) []byte {
	data, _ := json.Marshal(envelope{
		Type:    "roll_ack",
		Payload: response.RollResultFromModel(result),
	})
	return data
}

// encodeError frames an error message for the client.
func encodeError(message string) []byte {
	data, _ := json.Marshal(envelope{
		Type:    "error",
		Payload: errorWire{Message: message},
	})
	return data
}
