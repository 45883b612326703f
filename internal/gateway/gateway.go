package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/rfglabs/deathroll/internal/api/middleware"
	"github.com/rfglabs/deathroll/internal/model"
	"github.com/rfglabs/deathroll/internal/pubsub"
	"github.com/rfglabs/deathroll/internal/services/game"
	"github.com/rfglabs/deathroll/internal/services/identity"
	"github.com/rfglabs/deathroll/internal/services/room"
	"github.com/rfglabs/deathroll/internal/storage"
)

// presenceRetries bounds the presence flag's compare-and-swap loop.
const presenceRetries = 3

// Config holds gateway behaviour settings.
type Config struct {
	// ForfeitOnDisconnect closes active rooms in the opponent's favor when
	// the current actor's last connection drops. Off by default: a dropped
	// connection usually reconnects, and the room waits.
	ForfeitOnDisconnect bool
}

// Gateway owns the websocket endpoint: authentication, the connection
// registry, presence, and the bridge from pubsub topics onto sockets.
type Gateway struct {
	registry *Registry
	storage  storage.Storage
	identity *identity.Service
	rooms    *room.Controller
	games    *game.Controller
	broker   pubsub.Broker
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a new Gateway
func New(
	store storage.Storage,
	identityService *identity.Service,
	roomController *room.Controller,
	gameController *game.Controller,
	broker pubsub.Broker,
	cfg Config,
	logger *slog.Logger,
) *Gateway {
	return &Gateway{
		registry: NewRegistry(),
		storage:  store,
		identity: identityService,
		rooms:    roomController,
		games:    gameController,
		broker:   broker,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "gateway")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Registry exposes the connection registry for inspection.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// HandleWS handles GET /api/v1/ws. The session token comes from the
// Authorization header, the session cookie, or a token query parameter
// (browser websocket clients cannot set headers).
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	session, err := g.identity.ValidateSession(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid session", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := newClient(g, conn, session.UserID)
	first := g.registry.Add(client)

	// Detached from the request context: the connection outlives it
	ctx := context.Background()

	if first {
		g.setPresence(ctx, client.userID, true)
	}

	client.subscribe(model.TopicGlobal)
	client.subscribe(model.UserTopic(client.userID))
	g.subscribeOccupiedRooms(ctx, client)

	client.logger.Info("websocket connected", slog.Bool("first_connection", first))

	go client.writePump()
	client.readPump(ctx)
}

// subscribeOccupiedRooms attaches the client to the topics of rooms the
// user is currently seated in.
func (g *Gateway) subscribeOccupiedRooms(ctx context.Context, client *Client) {
	rooms, err := g.rooms.ListRooms(ctx, storage.RoomFilter{})
	if err != nil {
		client.logger.Error("failed to list rooms for subscriptions", slog.String("error", err.Error()))
		return
	}
	for _, r := range rooms {
		if r.Status != model.RoomStatusClosed && r.HasPlayer(client.userID) {
			client.subscribe(model.RoomTopic(r.ID))
		}
	}
}

// handleMessage dispatches one client envelope.
func (g *Gateway) handleMessage(ctx context.Context, client *Client, msg clientMessage) {
	switch msg.Type {
	case "roll":
		roomID := model.RoomID(msg.RoomID)
		if roomID == "" {
			client.enqueue(encodeError("room_id is required"))
			return
		}
		result, err := g.games.Roll(ctx, roomID, client.userID)
		if err != nil {
			client.enqueue(encodeError(err.Error()))
			return
		}
		// The roll outcome also arrives via the room topic; the direct
		// ack carries it to the actor even if their subscription lags.
		client.enqueue(encodeRollAck(result))
	case "subscribe":
		roomID := model.RoomID(msg.RoomID)
		if roomID == "" {
			client.enqueue(encodeError("room_id is required"))
			return
		}
		if _, err := g.rooms.GetRoom(ctx, roomID); err != nil {
			client.enqueue(encodeError(err.Error()))
			return
		}
		client.subscribe(model.RoomTopic(roomID))
	default:
		client.enqueue(encodeError("unknown message type"))
	}
}

// disconnect tears the client down and flips presence off when the
// user's last connection is gone.
func (g *Gateway) disconnect(ctx context.Context, client *Client) {
	// The send channel is never closed; writePump exits on the write or
	// ping error that follows the connection close.
	client.teardown()
	last := g.registry.Remove(client)

	client.logger.Info("websocket disconnected", slog.Bool("last_connection", last))

	if !last {
		return
	}

	g.setPresence(ctx, client.userID, false)

	if g.cfg.ForfeitOnDisconnect {
		g.forfeitActiveRooms(ctx, client.userID)
	}
}

// setPresence updates the user's online flag and broadcasts the change.
func (g *Gateway) setPresence(ctx context.Context, userID model.UserID, online bool) {
	for attempt := 0; attempt < presenceRetries; attempt++ {
		user, err := g.storage.GetUser(ctx, userID)
		if err != nil {
			g.logger.Error("failed to load user for presence update",
				slog.String("user_id", string(userID)),
				slog.String("error", err.Error()))
			return
		}
		if user.Online == online {
			return
		}

		user.Online = online
		if err := g.storage.UpdateUser(ctx, user); err != nil {
			if errors.Is(err, model.ErrConcurrentModification) {
				continue
			}
			g.logger.Error("failed to update presence",
				slog.String("user_id", string(userID)),
				slog.String("error", err.Error()))
			return
		}

		g.broker.Publish(model.TopicGlobal, model.Event{
			Type:      model.EventPlayerPresence,
			Timestamp: user.UpdatedAt,
			UserID:    userID,
			Payload:   model.PlayerPresencePayload{UserID: userID, Online: online},
		})
		return
	}
}

// forfeitActiveRooms closes, in the opponent's favor, any active room
// where the departed user is the current actor.
func (g *Gateway) forfeitActiveRooms(ctx context.Context, userID model.UserID) {
	rooms, err := g.rooms.ListRooms(ctx, storage.RoomFilter{Status: model.RoomStatusActive})
	if err != nil {
		g.logger.Error("failed to list rooms for forfeit", slog.String("error", err.Error()))
		return
	}
	for _, r := range rooms {
		if r.CurrentPlayer != userID {
			continue
		}
		if _, err := g.games.Forfeit(ctx, r.ID, userID); err != nil {
			g.logger.Error("forfeit on disconnect failed",
				slog.String("room_id", string(r.ID)),
				slog.String("user_id", string(userID)),
				slog.String("error", err.Error()))
		}
	}
}
