package room

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rfglabs/deathroll/internal/dependencies/clock"
	"github.com/rfglabs/deathroll/internal/dependencies/random"
	"github.com/rfglabs/deathroll/internal/model"
	"github.com/rfglabs/deathroll/internal/pubsub"
	"github.com/rfglabs/deathroll/internal/services/ledger"
	"github.com/rfglabs/deathroll/internal/storage"
)

const roomIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Controller manages the room lifecycle: open rooms waiting for an
// opponent, activation on join, and bulk cleanup. Game turns are driven
// by the game controller once a room is active.
type Controller struct {
	storage storage.Storage
	ledger  *ledger.Service
	broker  pubsub.Broker
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
}

// NewController creates a new room Controller
func NewController(
	store storage.Storage,
	ledgerService *ledger.Service,
	broker pubsub.Broker,
	clk clock.Clock,
	rnd random.Random,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage: store,
		ledger:  ledgerService,
		broker:  broker,
		clock:   clk,
		random:  rnd,
		logger:  logger.With(slog.String("component", "room")),
	}
}

// CreateRoom opens a new room with the creator's wager held in escrow.
// The creator is seated as player 1; the room stays open until an
// opponent joins.
func (c *Controller) CreateRoom(ctx context.Context, creatorID model.UserID, wager int64) (*model.Room, error) {
	if wager < model.MinWager {
		return nil, model.ErrInvalidWager
	}
	if _, err := c.storage.GetUser(ctx, creatorID); err != nil {
		return nil, err
	}

	roomID := model.RoomID(c.random.String(12, roomIDAlphabet))

	res, err := c.ledger.Reserve(ctx, creatorID, roomID, wager)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	room := &model.Room{
		ID:            roomID,
		Player1:       creatorID,
		Wager:         wager,
		Status:        model.RoomStatusOpen,
		CurrentMax:    wager,
		CurrentPlayer: creatorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := c.storage.CreateRoom(ctx, room); err != nil {
		// Refund the escrow so the failed create costs the creator nothing
		if rerr := c.ledger.Release(ctx, res.ID); rerr != nil {
			c.logger.Error("failed to release escrow after room create failure",
				slog.String("room_id", string(roomID)),
				slog.String("reservation_id", string(res.ID)),
				slog.String("error", rerr.Error()))
		}
		return nil, err
	}

	c.logger.Info("room created",
		slog.String("room_id", string(roomID)),
		slog.String("creator_id", string(creatorID)),
		slog.Int64("wager", wager))

	c.publish(model.TopicGlobal, model.Event{
		Type:      model.EventRoomCreated,
		Timestamp: now,
		RoomID:    roomID,
		UserID:    creatorID,
		Payload:   model.RoomCreatedPayload{Room: *room},
	})

	return room, nil
}

// JoinRoom seats the joiner as player 2 and activates the room. The
// joiner's wager is escrowed before the seat is taken; if the seat race
// is lost the escrow is refunded. The first actor is chosen at random
// between the two players.
func (c *Controller) JoinRoom(ctx context.Context, roomID model.RoomID, joinerID model.UserID) (*model.Room, error) {
	room, err := c.storage.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status != model.RoomStatusOpen {
		return nil, model.ErrRoomNotOpen
	}
	if room.Player1 == joinerID {
		return nil, model.ErrSelfJoinForbidden
	}
	if _, err := c.storage.GetUser(ctx, joinerID); err != nil {
		return nil, err
	}

	res, err := c.ledger.Reserve(ctx, joinerID, roomID, room.Wager)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	room.Player2 = joinerID
	room.Status = model.RoomStatusActive
	if c.random.Intn(2) == 1 {
		room.CurrentPlayer = joinerID
	} else {
		room.CurrentPlayer = room.Player1
	}
	room.UpdatedAt = now

	if err := c.storage.UpdateRoom(ctx, room); err != nil {
		// Lost the seat, or the room changed underneath us. Refund and
		// report the room's actual state.
		if rerr := c.ledger.Release(ctx, res.ID); rerr != nil {
			c.logger.Error("failed to release escrow after join failure",
				slog.String("room_id", string(roomID)),
				slog.String("reservation_id", string(res.ID)),
				slog.String("error", rerr.Error()))
		}
		if errors.Is(err, model.ErrConcurrentModification) {
			return nil, model.ErrRoomNotOpen
		}
		return nil, err
	}

	c.logger.Info("player joined",
		slog.String("room_id", string(roomID)),
		slog.String("joiner_id", string(joinerID)),
		slog.String("first_player", string(room.CurrentPlayer)))

	event := model.Event{
		Type:      model.EventPlayerJoined,
		Timestamp: now,
		RoomID:    roomID,
		UserID:    joinerID,
		Payload:   model.PlayerJoinedPayload{Room: *room, Joiner: joinerID},
	}
	c.publish(model.TopicGlobal, event)
	c.publish(model.RoomTopic(roomID), event)

	return room, nil
}

// GetRoom retrieves a room by ID
func (c *Controller) GetRoom(ctx context.Context, roomID model.RoomID) (*model.Room, error) {
	return c.storage.GetRoom(ctx, roomID)
}

// ListRooms returns rooms matching the filter, newest first.
func (c *Controller) ListRooms(ctx context.Context, filter storage.RoomFilter) ([]*model.Room, error) {
	return c.storage.ListRooms(ctx, filter)
}

// PurgeRooms deletes every room and broadcasts the purge. Escrow still
// held against purged rooms is refunded by the abandoned-reservation
// sweep rather than inline.
func (c *Controller) PurgeRooms(ctx context.Context) (int, error) {
	count, err := c.storage.PurgeRooms(ctx)
	if err != nil {
		return 0, err
	}

	c.logger.Info("rooms purged", slog.Int("count", count))

	c.publish(model.TopicGlobal, model.Event{
		Type:      model.EventRoomsPurged,
		Timestamp: c.clock.Now(),
		Payload:   model.RoomsPurgedPayload{Count: count},
	})

	return count, nil
}

func (c *Controller) publish(topic string, event model.Event) {
	if c.broker != nil {
		c.broker.Publish(topic, event)
	}
}

// ControllerInterface defines the operations for room management
type ControllerInterface interface {
	CreateRoom(ctx context.Context, creatorID model.UserID, wager int64) (*model.Room, error)
	JoinRoom(ctx context.Context, roomID model.RoomID, joinerID model.UserID) (*model.Room, error)
	GetRoom(ctx context.Context, roomID model.RoomID) (*model.Room, error)
	ListRooms(ctx context.Context, filter storage.RoomFilter) ([]*model.Room, error)
	PurgeRooms(ctx context.Context) (int, error)
}

var _ ControllerInterface = (*Controller)(nil)
