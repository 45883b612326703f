package response

import (
	"time"

	"github.com/rfglabs/deathroll/internal/model"
	"github.com/rfglabs/deathroll/internal/services/game"
	"github.com/rfglabs/deathroll/internal/services/identity"
)

// User represents a user in API responses
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Balance     int64  `json:"balance"`
	Online      bool   `json:"online"`
}

// UserFromModel converts a model.User to a response User
func UserFromModel(u *model.User) User {
	return User{
		ID:          string(u.ID),
		DisplayName: u.DisplayName,
		Balance:     u.Balance,
		Online:      u.Online,
	}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	User         User   `json:"user"`
	SessionToken string `json:"session_token"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *identity.Session) AuthResponse {
	return AuthResponse{
		User:         UserFromModel(&s.User),
		SessionToken: s.Token,
	}
}

// Roll is one entry in a room's roll history
type Roll struct {
	Player   string    `json:"player"`
	Value    int64     `json:"value"`
	RolledAt time.Time `json:"rolled_at"`
}

// Room represents a room in API responses
type Room struct {
	ID            string    `json:"id"`
	Player1       string    `json:"player1"`
	Player2       string    `json:"player2,omitempty"`
	Wager         int64     `json:"wager"`
	Status        string    `json:"status"`
	CurrentMax    int64     `json:"current_max"`
	CurrentPlayer string    `json:"current_player,omitempty"`
	Rolls         []Roll    `json:"rolls"`
	Winner        string    `json:"winner,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RoomFromModel converts a model.Room to a response Room
func RoomFromModel(r *model.Room) Room {
	rolls := make([]Roll, len(r.Rolls))
	for i, entry := range r.Rolls {
		rolls[i] = Roll{
			Player:   string(entry.Player),
			Value:    entry.Value,
			RolledAt: entry.RolledAt,
		}
	}

	room := Room{
		ID:         string(r.ID),
		Player1:    string(r.Player1),
		Player2:    string(r.Player2),
		Wager:      r.Wager,
		Status:     string(r.Status),
		CurrentMax: r.CurrentMax,
		Rolls:      rolls,
		Winner:     string(r.Winner),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.Status != model.RoomStatusClosed {
		room.CurrentPlayer = string(r.CurrentPlayer)
	}
	return room
}

// RoomList is the response for room listing
type RoomList struct {
	Rooms []Room `json:"rooms"`
}

// RoomListFromModels converts a slice of rooms
func RoomListFromModels(rooms []*model.Room) RoomList {
	out := RoomList{Rooms: make([]Room, len(rooms))}
	for i, r := range rooms {
		out.Rooms[i] = RoomFromModel(r)
	}
	return out
}

// RollResult is the response for a roll
type RollResult struct {
	Room     Room  `json:"room"`
	Value    int64 `json:"value"`
	Terminal bool  `json:"terminal"`
}

// RollResultFromModel converts a game.RollResult
func RollResultFromModel(r *game.RollResult) RollResult {
	return RollResult{
		Room:     RoomFromModel(r.Room),
		Value:    r.Value,
		Terminal: r.Terminal,
	}
}

// PurgeResult is the response for an administrative purge
type PurgeResult struct {
	Purged int `json:"purged"`
}

// Balance is the response for a balance query
type Balance struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}
