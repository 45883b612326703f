package pubsub

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rfglabs/deathroll/internal/model"
	"github.com/rfglabs/deathroll/internal/testutil"
)

type MemoryBrokerTestSuite struct {
	suite.Suite
	broker *MemoryBroker
}

func TestMemoryBrokerTestSuite(t *testing.T) {
	suite.Run(t, new(MemoryBrokerTestSuite))
}

func (s *MemoryBrokerTestSuite) SetupTest() {
	s.broker = NewMemoryBroker(testutil.NopLogger())
}

func event(t model.EventType) model.Event {
	return model.Event{Type: t, Timestamp: time.Now()}
}

func (s *MemoryBrokerTestSuite) TestPublishReachesAllTopicSubscribers() {
	sub1 := s.broker.Subscribe(model.TopicGlobal)
	defer sub1.Close()
	sub2 := s.broker.Subscribe(model.TopicGlobal)
	defer sub2.Close()
	other := s.broker.Subscribe(model.RoomTopic("r1"))
	defer other.Close()

	s.broker.Publish(model.TopicGlobal, event(model.EventRoomCreated))

	s.Equal(model.EventRoomCreated, (<-sub1.C).Type)
	s.Equal(model.EventRoomCreated, (<-sub2.C).Type)

	select {
	case ev := <-other.C:
		s.Failf("unexpected delivery", "room subscriber received %s", ev.Type)
	default:
	}
}

func (s *MemoryBrokerTestSuite) TestPublishWithoutSubscribersIsNoop() {
	s.broker.Publish("room:empty", event(model.EventRoomUpdate))
	s.Equal(0, s.broker.SubscriberCount("room:empty"))
}

func (s *MemoryBrokerTestSuite) TestEventsArriveInPublishOrder() {
	sub := s.broker.Subscribe(model.RoomTopic("r1"))
	defer sub.Close()

	types := []model.EventType{
		model.EventPlayerJoined,
		model.EventRollResult,
		model.EventRollResult,
		model.EventGameEnded,
	}
	for _, t := range types {
		s.broker.Publish(model.RoomTopic("r1"), event(t))
	}
	for _, want := range types {
		s.Equal(want, (<-sub.C).Type)
	}
}

func (s *MemoryBrokerTestSuite) TestSlowSubscriberDropsInsteadOfBlocking() {
	sub := s.broker.Subscribe(model.TopicGlobal)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriptionBufferSize*2; i++ {
			s.broker.Publish(model.TopicGlobal, event(model.EventRoomUpdate))
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.Fail("publish blocked on a full subscriber")
	}

	// The buffer's worth is there; the overflow was dropped
	received := 0
	for {
		select {
		case <-sub.C:
			received++
		default:
			s.Equal(subscriptionBufferSize, received)
			return
		}
	}
}

func (s *MemoryBrokerTestSuite) TestCloseUnregisters() {
	sub := s.broker.Subscribe(model.TopicGlobal)
	s.Equal(1, s.broker.SubscriberCount(model.TopicGlobal))

	sub.Close()
	s.Equal(0, s.broker.SubscriberCount(model.TopicGlobal))

	// Idempotent
	sub.Close()
}

func (s *MemoryBrokerTestSuite) TestManyTopicsIsolated() {
	subs := make(map[string]*Subscription)
	for i := 0; i < 5; i++ {
		topic := model.RoomTopic(model.RoomID(fmt.Sprintf("r%d", i)))
		subs[topic] = s.broker.Subscribe(topic)
	}
	defer func() {
		for _, sub := range subs {
			sub.Close()
		}
	}()

	target := model.RoomTopic("r3")
	s.broker.Publish(target, event(model.EventRollResult))

	for topic, sub := range subs {
		select {
		case ev := <-sub.C:
			s.Equal(target, topic)
			s.Equal(model.EventRollResult, ev.Type)
		default:
			s.NotEqual(target, topic)
		}
	}
}
