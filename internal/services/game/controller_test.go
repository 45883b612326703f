package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rfglabs/deathroll/internal/dependencies/mocks"
	"github.com/rfglabs/deathroll/internal/model"
	"github.com/rfglabs/deathroll/internal/pubsub"
	"github.com/rfglabs/deathroll/internal/services/ledger"
	"github.com/rfglabs/deathroll/internal/services/room"
	"github.com/rfglabs/deathroll/internal/storage/memory"
	"github.com/rfglabs/deathroll/internal/testutil"
)

type GameControllerTestSuite struct {
	suite.Suite
	storage    *memory.Storage
	clock      *mocks.MockClock
	random     *mocks.MockRandom
	broker     *pubsub.MemoryBroker
	ledger     *ledger.Service
	rooms      *room.Controller
	controller *Controller
	ctx        context.Context
}

func TestGameControllerTestSuite(t *testing.T) {
	suite.Run(t, new(GameControllerTestSuite))
}

func (s *GameControllerTestSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.broker = pubsub.NewMemoryBroker(testutil.NopLogger())
	s.ledger = ledger.New(s.storage, s.clock, s.random, testutil.NopLogger())
	s.rooms = room.NewController(s.storage, s.ledger, s.broker, s.clock, s.random, testutil.NopLogger())
	s.controller = NewController(s.storage, s.ledger, s.broker, s.clock, s.random, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *GameControllerTestSuite) newUser(id model.UserID) {
	now := s.clock.Now()
	s.Require().NoError(s.storage.SaveUser(s.ctx, &model.User{
		ID:        id,
		Balance:   model.InitialBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func (s *GameControllerTestSuite) balance(id model.UserID) int64 {
	user, err := s.storage.GetUser(s.ctx, id)
	s.Require().NoError(err)
	return user.Balance
}

// activeRoom creates a wager-20 room between alice and bob with alice
// rolling first.
func (s *GameControllerTestSuite) activeRoom() model.RoomID {
	s.newUser("alice")
	s.newUser("bob")
	s.random.QueueString("room00000001", "resalice00000001", "resbob0000000001")
	s.random.QueueIntn(0) // creator first

	created, err := s.rooms.CreateRoom(s.ctx, "alice", 20)
	s.Require().NoError(err)
	_, err = s.rooms.JoinRoom(s.ctx, created.ID, "bob")
	s.Require().NoError(err)
	return created.ID
}

func (s *GameControllerTestSuite) TestNonTerminalRollShrinksCeilingAndPassesTurn() {
	roomID := s.activeRoom()
	s.random.QueueIntn(6) // value = 1 + 6 = 7, drawn from [0, 19)

	sub := s.broker.Subscribe(model.RoomTopic(roomID))
	defer sub.Close()

	result, err := s.controller.Roll(s.ctx, roomID, "alice")
	s.Require().NoError(err)

	s.Equal(int64(7), result.Value)
	s.False(result.Terminal)
	s.Equal(int64(7), result.Room.CurrentMax)
	s.Equal(model.UserID("bob"), result.Room.CurrentPlayer)
	s.Equal(model.RoomStatusActive, result.Room.Status)
	s.Require().Len(result.Room.Rolls, 1)
	s.Equal(model.UserID("alice"), result.Room.Rolls[0].Player)

	event := <-sub.C
	s.Equal(model.EventRollResult, event.Type)
	payload, ok := event.Payload.(model.RollResultPayload)
	s.Require().True(ok)
	s.Equal(int64(7), payload.Value)
	s.Equal(model.UserID("bob"), payload.NextPlayer)
}

func (s *GameControllerTestSuite) TestTerminalRollClosesRoomAndSettles() {
	roomID := s.activeRoom()
	s.random.QueueIntn(6) // alice rolls 7
	s.random.QueueIntn(0) // bob rolls 1 and loses

	sub := s.broker.Subscribe(model.RoomTopic(roomID))
	defer sub.Close()

	_, err := s.controller.Roll(s.ctx, roomID, "alice")
	s.Require().NoError(err)

	result, err := s.controller.Roll(s.ctx, roomID, "bob")
	s.Require().NoError(err)

	s.Equal(int64(1), result.Value)
	s.True(result.Terminal)
	s.Equal(model.RoomStatusClosed, result.Room.Status)
	s.Equal(model.UserID("alice"), result.Room.Winner)

	// Winner takes both wagers: 1000 - 20 + 40
	s.Equal(int64(1020), s.balance("alice"))
	s.Equal(int64(980), s.balance("bob"))

	<-sub.C // alice's roll
	event := <-sub.C
	s.Equal(model.EventGameEnded, event.Type)
	payload, ok := event.Payload.(model.GameEndedPayload)
	s.Require().True(ok)
	s.Equal(model.UserID("alice"), payload.Winner)
	s.Equal(model.UserID("bob"), payload.Loser)
	s.Equal(int64(1), payload.FinalRoll)
	s.Len(payload.Rolls, 2)
}

func (s *GameControllerTestSuite) TestRollOutOfTurn() {
	roomID := s.activeRoom()

	_, err := s.controller.Roll(s.ctx, roomID, "bob")
	s.Require().ErrorIs(err, model.ErrNotYourTurn)
}

func (s *GameControllerTestSuite) TestRollByNonParticipant() {
	roomID := s.activeRoom()
	s.newUser("carol")

	_, err := s.controller.Roll(s.ctx, roomID, "carol")
	s.Require().ErrorIs(err, model.ErrNotYourTurn)
}

func (s *GameControllerTestSuite) TestRollOnOpenRoom() {
	s.newUser("alice")
	s.random.QueueString("room00000001", "resalice00000001")

	created, err := s.rooms.CreateRoom(s.ctx, "alice", 20)
	s.Require().NoError(err)

	_, err = s.controller.Roll(s.ctx, created.ID, "alice")
	s.Require().ErrorIs(err, model.ErrRoomNotActive)
}

func (s *GameControllerTestSuite) TestRollOnClosedRoom() {
	roomID := s.activeRoom()
	s.random.QueueIntn(0) // alice rolls 1 immediately

	_, err := s.controller.Roll(s.ctx, roomID, "alice")
	s.Require().NoError(err)

	_, err = s.controller.Roll(s.ctx, roomID, "bob")
	s.Require().ErrorIs(err, model.ErrRoomNotActive)
}

func (s *GameControllerTestSuite) TestRollOnMissingRoom() {
	s.newUser("alice")

	_, err := s.controller.Roll(s.ctx, "nope", "alice")
	s.Require().ErrorIs(err, model.ErrRoomNotFound)
}

func (s *GameControllerTestSuite) TestCeilingStrictlyDecreases() {
	roomID := s.activeRoom()
	// alice 15, bob 9, alice 3, bob 2, alice 1
	s.random.QueueIntn(14, 8, 2, 1, 0)

	actors := []model.UserID{"alice", "bob", "alice", "bob", "alice"}
	values := []int64{15, 9, 3, 2, 1}
	for i, actor := range actors {
		result, err := s.controller.Roll(s.ctx, roomID, actor)
		s.Require().NoError(err)
		s.Equal(values[i], result.Value)
		if !result.Terminal {
			s.Equal(values[i], result.Room.CurrentMax)
		}
	}

	final, err := s.storage.GetRoom(s.ctx, roomID)
	s.Require().NoError(err)
	s.Equal(model.RoomStatusClosed, final.Status)
	s.Equal(model.UserID("bob"), final.Winner)
	s.Equal(int64(1020), s.balance("bob"))
	s.Equal(int64(980), s.balance("alice"))

	for i := 1; i < len(final.Rolls); i++ {
		s.Less(final.Rolls[i].Value, final.Rolls[i-1].Value)
	}
}

func (s *GameControllerTestSuite) TestForfeitClosesRoomForOpponent() {
	roomID := s.activeRoom()

	result, err := s.controller.Forfeit(s.ctx, roomID, "alice")
	s.Require().NoError(err)

	s.Equal(model.RoomStatusClosed, result.Status)
	s.Equal(model.UserID("bob"), result.Winner)
	s.Equal(int64(1020), s.balance("bob"))
	s.Equal(int64(980), s.balance("alice"))
}

func (s *GameControllerTestSuite) TestForfeitReportsLastRollBeforeAbandonment() {
	roomID := s.activeRoom()
	s.random.QueueIntn(6) // alice rolls 7

	sub := s.broker.Subscribe(model.RoomTopic(roomID))
	defer sub.Close()

	_, err := s.controller.Roll(s.ctx, roomID, "alice")
	s.Require().NoError(err)

	_, err = s.controller.Forfeit(s.ctx, roomID, "bob")
	s.Require().NoError(err)

	<-sub.C // alice's roll
	event := <-sub.C
	s.Equal(model.EventGameEnded, event.Type)
	payload, ok := event.Payload.(model.GameEndedPayload)
	s.Require().True(ok)
	s.Equal(model.UserID("alice"), payload.Winner)
	s.Equal(int64(7), payload.FinalRoll)
}

func (s *GameControllerTestSuite) TestForfeitWithNoRollsReportsZeroFinalRoll() {
	roomID := s.activeRoom()

	sub := s.broker.Subscribe(model.RoomTopic(roomID))
	defer sub.Close()

	_, err := s.controller.Forfeit(s.ctx, roomID, "alice")
	s.Require().NoError(err)

	event := <-sub.C
	payload, ok := event.Payload.(model.GameEndedPayload)
	s.Require().True(ok)
	s.Equal(int64(0), payload.FinalRoll)
}

func (s *GameControllerTestSuite) TestForfeitOnNonActiveRoom() {
	s.newUser("alice")
	s.random.QueueString("room00000001", "resalice00000001")

	created, err := s.rooms.CreateRoom(s.ctx, "alice", 20)
	s.Require().NoError(err)

	_, err = s.controller.Forfeit(s.ctx, created.ID, "alice")
	s.Require().ErrorIs(err, model.ErrRoomNotActive)
}

func (s *GameControllerTestSuite) TestForfeitByNonParticipant() {
	roomID := s.activeRoom()
	s.newUser("carol")

	_, err := s.controller.Forfeit(s.ctx, roomID, "carol")
	s.Require().ErrorIs(err, model.ErrNotYourTurn)
}
