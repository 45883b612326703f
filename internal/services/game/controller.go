package game

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

// maxRollRetries bounds the optimistic-concurrency retry loop in Roll.
// A legitimate caller only ever races purge or forfeit, so conflicts are
// rare and three attempts is plenty.
const maxRollRetries = 3

// RollResult is the outcome of a single roll.
type RollResult struct {
	Room     *model.Room
	Value    int64
	Terminal bool
}

// Controller drives the turn engine: validating whose turn it is,
// drawing rolls, shrinking the ceiling, and closing the room with a
// settlement when a 1 lands.
type Controller struct {
	storage storage.Storage
	ledger  *ledger.Service
	broker  pubsub.Broker
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
}

// NewController creates a new game Controller
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
		logger:  logger.With(slog.String("component", "game")),
	}
}

// Roll performs one roll for the actor. The roll value is uniform over
// [1, CurrentMax). A non-terminal roll becomes the new CurrentMax and
// passes the turn; a roll of 1 closes the room, names the opponent the
// winner, and settles the escrowed wagers.
//
// The load-validate-mutate cycle commits through a compare-and-swap
// update, so two racing rolls for the same room resolve to exactly one
// committed turn. The loser of the race re-reads and fails turn or
// status validation.
func (c *Controller) Roll(ctx context.Context, roomID model.RoomID, actorID model.UserID) (*RollResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxRollRetries; attempt++ {
		result, err := c.tryRoll(ctx, roomID, actorID)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, model.ErrConcurrentModification) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Controller) tryRoll(ctx context.Context, roomID model.RoomID, actorID model.UserID) (*RollResult, error) {
	room, err := c.storage.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if room.Status != model.RoomStatusActive {
		return nil, model.ErrRoomNotActive
	}
	if room.CurrentPlayer != actorID {
		return nil, model.ErrNotYourTurn
	}
	if room.CurrentMax <= 1 {
		// An active room always has CurrentMax >= MinWager > 1
		c.logger.Error("active room with degenerate ceiling",
			slog.String("room_id", string(roomID)),
			slog.Int64("current_max", room.CurrentMax))
		return nil, model.ErrInvariantViolation
	}

	value := 1 + int64(c.random.Intn(int(room.CurrentMax-1)))
	now := c.clock.Now()
	opponent := room.Opponent(actorID)

	room.Rolls = append(room.Rolls, model.RollEntry{
		Player:   actorID,
		Value:    value,
		RolledAt: now,
	})
	room.UpdatedAt = now

	terminal := value == 1
	if terminal {
		room.Status = model.RoomStatusClosed
		room.Winner = opponent
	} else {
		room.CurrentMax = value
		room.CurrentPlayer = opponent
	}

	if err := c.storage.UpdateRoom(ctx, room); err != nil {
		return nil, err
	}

	c.logger.Info("roll committed",
		slog.String("room_id", string(roomID)),
		slog.String("player_id", string(actorID)),
		slog.Int64("value", value),
		slog.Bool("terminal", terminal))

	if terminal {
		// The room closed with the winner recorded, so if this settle
		// fails the abandoned-reservation sweep re-drives it.
		if _, err := c.ledger.Settle(ctx, roomID, opponent); err != nil {
			c.logger.Error("settlement failed after terminal roll",
				slog.String("room_id", string(roomID)),
				slog.String("winner_id", string(opponent)),
				slog.String("error", err.Error()))
		}
		c.publishEnded(room, actorID)
	} else {
		c.publishRoll(room, actorID, value)
	}

	return &RollResult{Room: room, Value: value, Terminal: terminal}, nil
}

func (c *Controller) publishRoll(room *model.Room, actor model.UserID, value int64) {
	if c.broker == nil {
		return
	}
	event := model.Event{
		Type:      model.EventRollResult,
		Timestamp: room.UpdatedAt,
		RoomID:    room.ID,
		UserID:    actor,
		Payload: model.RollResultPayload{
			Room:       *room,
			Player:     actor,
			Value:      value,
			NextPlayer: room.CurrentPlayer,
		},
	}
	c.broker.Publish(model.RoomTopic(room.ID), event)
	c.broker.Publish(model.TopicGlobal, model.Event{
		Type:      model.EventRoomUpdate,
		Timestamp: room.UpdatedAt,
		RoomID:    room.ID,
		Payload:   model.RoomUpdatePayload{Room: *room},
	})
}

func (c *Controller) publishEnded(room *model.Room, loser model.UserID) {
	if c.broker == nil {
		return
	}
	// On a forfeit this is the last roll before the game was abandoned,
	// or 0 if nobody rolled
	var finalRoll int64
	if last := room.LastRoll(); last != nil {
		finalRoll = last.Value
	}
	event := model.Event{
		Type:      model.EventGameEnded,
		Timestamp: room.UpdatedAt,
		RoomID:    room.ID,
		UserID:    room.Winner,
		Payload: model.GameEndedPayload{
			Room:      *room,
			Winner:    room.Winner,
			Loser:     loser,
			FinalRoll: finalRoll,
			Rolls:     room.Rolls,
		},
	}
	c.broker.Publish(model.RoomTopic(room.ID), event)
	c.broker.Publish(model.TopicGlobal, event)
}

// Forfeit closes an active room in favor of the opponent of the
// forfeiting player. Used by the gateway when a disconnected player's
// room is configured to forfeit.
func (c *Controller) Forfeit(ctx context.Context, roomID model.RoomID, forfeiterID model.UserID) (*model.Room, error) {
	var lastErr error
	for attempt := 0; attempt < maxRollRetries; attempt++ {
		room, err := c.storage.GetRoom(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if room.Status != model.RoomStatusActive {
			return nil, model.ErrRoomNotActive
		}
		if !room.HasPlayer(forfeiterID) {
			return nil, model.ErrNotYourTurn
		}

		winner := room.Opponent(forfeiterID)
		room.Status = model.RoomStatusClosed
		room.Winner = winner
		room.UpdatedAt = c.clock.Now()

		if err := c.storage.UpdateRoom(ctx, room); err != nil {
			if errors.Is(err, model.ErrConcurrentModification) {
				lastErr = err
				continue
			}
			return nil, err
		}

		c.logger.Info("room forfeited",
			slog.String("room_id", string(roomID)),
			slog.String("forfeiter_id", string(forfeiterID)),
			slog.String("winner_id", string(winner)))

		if _, err := c.ledger.Settle(ctx, roomID, winner); err != nil {
			c.logger.Error("settlement failed after forfeit",
				slog.String("room_id", string(roomID)),
				slog.String("error", err.Error()))
		}
		c.publishEnded(room, forfeiterID)
		return room, nil
	}
	return nil, lastErr
}

// ControllerInterface defines the operations of the turn engine
type ControllerInterface interface {
	Roll(ctx context.Context, roomID model.RoomID, actorID model.UserID) (*RollResult, error)
	Forfeit(ctx context.Context, roomID model.RoomID, forfeiterID model.UserID) (*model.Room, error)
}

var _ ControllerInterface = (*Controller)(nil)
