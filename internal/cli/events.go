package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "events [room-id]",
		Short: "Stream websocket events",
		Long: `Connect to the websocket endpoint and stream events in real-time.

With no arguments the stream carries global events plus events for rooms
you are playing in. Pass a room id to also spectate that room.

Events include:
  - room_created: A new room was opened
  - player_joined: A player joined a room
  - roll_result: A player rolled
  - room_update: Room state changed
  - game_ended: A game finished
  - rooms_purged: Rooms were purged
  - player_presence: A player connected or disconnected

Press Ctrl+C to disconnect.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID := ""
			if len(args) > 0 {
				roomID = args[0]
			}
			return streamEvents(roomID, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")

	return cmd
}

// WSEvent represents a received websocket event
type WSEvent struct {
	Time  time.Time       `json:"time"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type wsFrame struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func streamEvents(roomID string, jsonOutput bool) error {
	// Browsers cannot set headers on websocket connections so the server
	// accepts the token as a query parameter too.
	url := "ws" + strings.TrimPrefix(strings.TrimSuffix(cfg.ServerURL, "/"), "http") + "/api/v1/ws"
	if cfg.Token != "" {
		url += "?token=" + cfg.Token
	}

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connection failed: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if roomID != "" {
		sub := map[string]string{"type": "subscribe", "room_id": roomID}
		if err := conn.WriteJSON(sub); err != nil {
			return fmt.Errorf("subscribe failed: %w", err)
		}
	}

	if !jsonOutput {
		if roomID != "" {
			fmt.Printf("Connected, spectating room %s\n", roomID)
		} else {
			fmt.Println("Connected")
		}
	}

	// Handle interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
		case <-done:
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				if !jsonOutput {
					fmt.Println("\nDisconnected")
				}
				return nil
			}
			// Closing the conn on Ctrl+C surfaces as a read error
			if !jsonOutput {
				fmt.Println("\nDisconnected")
			}
			return nil
		}

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		printEvent(frame, jsonOutput)
	}
}

func printEvent(frame wsFrame, jsonOutput bool) {
	if jsonOutput {
		evt := WSEvent{
			Time:  frame.Timestamp,
			Event: frame.Type,
			Data:  frame.Payload,
		}
		jsonData, _ := json.Marshal(evt)
		fmt.Println(string(jsonData))
		return
	}

	timestamp := frame.Timestamp.Format("2006-01-02 15:04:05")
	// Truncate payload if it's too long for display
	displayData := string(frame.Payload)
	if len(displayData) > 100 {
		displayData = displayData[:100] + "..."
	}
	displayData = strings.ReplaceAll(displayData, "\n", " ")
	fmt.Printf("[%s] %s: %s\n", timestamp, frame.Type, displayData)
}
