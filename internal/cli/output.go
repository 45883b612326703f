package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case User:
		o.printUser(v)
	case AuthResult:
		o.printAuthResult(v)
	case Room:
		o.printRoom(v)
	case RoomList:
		o.printRoomList(v)
	case RollResult:
		o.printRollResult(v)
	case PurgeResult:
		fmt.Printf("Purged %d room(s)\n", v.Purged)
	case HealthResult:
		fmt.Printf("Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// User response type (matches API)
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Balance     int64  `json:"balance"`
	Online      bool   `json:"online"`
}

// AuthResult combines user and token
type AuthResult struct {
	User         User   `json:"user"`
	SessionToken string `json:"session_token"`
}

// Roll response type
type Roll struct {
	Player   string    `json:"player"`
	Value    int64     `json:"value"`
	RolledAt time.Time `json:"rolled_at"`
}

// Room response type
type Room struct {
	ID            string `json:"id"`
	Player1       string `json:"player1"`
	Player2       string `json:"player2,omitempty"`
	Wager         int64  `json:"wager"`
	Status        string `json:"status"`
	CurrentMax    int64  `json:"current_max"`
	CurrentPlayer string `json:"current_player,omitempty"`
	Rolls         []Roll `json:"rolls"`
	Winner        string `json:"winner,omitempty"`
}

// RoomList response type
type RoomList struct {
	Rooms []Room `json:"rooms"`
}

// RollResult response type
type RollResult struct {
	Room     Room  `json:"room"`
	Value    int64 `json:"value"`
	Terminal bool  `json:"terminal"`
}

// PurgeResult response type
type PurgeResult struct {
	Purged int `json:"purged"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printUser(u User) {
	onlineStr := "offline"
	if u.Online {
		onlineStr = "online"
	}
	fmt.Printf("User: %s (%s)\n", u.DisplayName, u.ID)
	fmt.Printf("Balance: %d\n", u.Balance)
	fmt.Printf("Presence: %s\n", onlineStr)
}

func (o *Output) printAuthResult(a AuthResult) {
	o.printUser(a.User)
	fmt.Printf("Token: %s\n", a.SessionToken)
}

func (o *Output) printRoom(r Room) {
	fmt.Printf("Room: %s\n", r.ID)
	fmt.Printf("Status: %s\n", r.Status)
	fmt.Printf("Wager: %d\n", r.Wager)
	fmt.Printf("Players: %s", r.Player1)
	if r.Player2 != "" {
		fmt.Printf(" vs %s", r.Player2)
	}
	fmt.Println()

	switch r.Status {
	case "closed":
		fmt.Printf("Winner: %s\n", r.Winner)
	default:
		fmt.Printf("Roll ceiling: %d\n", r.CurrentMax)
		if r.CurrentPlayer != "" {
			fmt.Printf("Next to roll: %s\n", r.CurrentPlayer)
		}
	}

	if len(r.Rolls) > 0 {
		fmt.Printf("Rolls (%d):\n", len(r.Rolls))
		for _, roll := range r.Rolls {
			fmt.Printf("  - %s rolled %d\n", roll.Player, roll.Value)
		}
	}
}

func (o *Output) printRoomList(l RoomList) {
	if len(l.Rooms) == 0 {
		fmt.Println("No rooms")
		return
	}
	for _, r := range l.Rooms {
		line := fmt.Sprintf("%s  %s  wager=%d  %s", r.ID, r.Status, r.Wager, r.Player1)
		if r.Player2 != "" {
			line += " vs " + r.Player2
		}
		if r.Winner != "" {
			line += "  winner=" + r.Winner
		}
		fmt.Println(line)
	}
}

func (o *Output) printRollResult(r RollResult) {
	fmt.Printf("Rolled: %d\n", r.Value)
	if r.Terminal {
		fmt.Println("Game over!")
		fmt.Printf("Winner: %s\n", r.Room.Winner)
		return
	}
	fmt.Printf("New ceiling: %d\n", r.Room.CurrentMax)
	fmt.Printf("Next to roll: %s\n", r.Room.CurrentPlayer)
}
