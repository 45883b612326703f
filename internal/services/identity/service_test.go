package identity

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rfglabs/deathroll/internal/dependencies/mocks"
	"github.com/rfglabs/deathroll/internal/model"
	"github.com/rfglabs/deathroll/internal/storage/memory"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	random  *mocks.MockRandom
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.service = New(s.storage, s.clock, s.random, DefaultConfig())
	s.ctx = context.Background()
}

// CreateGuest tests

func (s *ServiceSuite) TestCreateGuestSucceeds() {
	s.random.QueueString("alice0000alice00")

	session, err := s.service.CreateGuest(s.ctx, "Alice")
	s.Require().NoError(err)

	s.NotEmpty(session.Token)
	s.Equal(model.UserID("u_alice0000alice00"), session.UserID)
	s.Equal("Alice", session.User.DisplayName)
	s.Equal(model.InitialBalance, session.User.Balance)
}

func (s *ServiceSuite) TestCreateGuestPersistsUser() {
	s.random.QueueString("alice0000alice00")

	session, _ := s.service.CreateGuest(s.ctx, "Alice")

	user, err := s.storage.GetUser(s.ctx, session.UserID)
	s.Require().NoError(err)
	s.Equal("Alice", user.DisplayName)
	s.Equal(model.InitialBalance, user.Balance)
}

func (s *ServiceSuite) TestCreateGuestSessionIsValid() {
	s.random.QueueString("alice0000alice00")

	session, _ := s.service.CreateGuest(s.ctx, "Alice")

	validated, err := s.service.ValidateSession(s.ctx, session.Token)
	s.Require().NoError(err)
	s.Equal(session.UserID, validated.UserID)
}

func (s *ServiceSuite) TestGuestTokensAreUnique() {
	s.random.QueueString("alice0000alice00", "bob00000000bob00")

	a, _ := s.service.CreateGuest(s.ctx, "Alice")
	b, _ := s.service.CreateGuest(s.ctx, "Bob")

	s.NotEqual(a.Token, b.Token)
}

// ValidateSession tests

func (s *ServiceSuite) TestValidateSessionRejectsUnknownToken() {
	_, err := s.service.ValidateSession(s.ctx, "nonsense")
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestValidateSessionRejectsExpiredToken() {
	s.random.QueueString("alice0000alice00")
	session, _ := s.service.CreateGuest(s.ctx, "Alice")

	s.clock.Advance(25 * time.Hour)

	_, err := s.service.ValidateSession(s.ctx, session.Token)
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestValidateSessionReturnsIndependentCopies() {
	s.random.QueueString("alice0000alice00")
	session, _ := s.service.CreateGuest(s.ctx, "Alice")

	first, err := s.service.ValidateSession(s.ctx, session.Token)
	s.Require().NoError(err)

	// Scribbling on one caller's session must not leak into another's
	first.User.Balance = -1
	first.User.DisplayName = "scribbled"

	second, err := s.service.ValidateSession(s.ctx, session.Token)
	s.Require().NoError(err)
	s.Equal(model.InitialBalance, second.User.Balance)
	s.Equal("Alice", second.User.DisplayName)
}

func (s *ServiceSuite) TestValidateSessionConcurrentRequestsSameToken() {
	s.random.QueueString("alice0000alice00")
	session, _ := s.service.CreateGuest(s.ctx, "Alice")

	const workers = 8
	const iterations = 50

	errCh := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				validated, err := s.service.ValidateSession(s.ctx, session.Token)
				if err != nil {
					errCh <- err
					return
				}
				// A torn user would show up as mismatched fields here,
				// and the race detector flags any shared write
				if validated.UserID != session.UserID ||
					validated.User.ID != session.UserID ||
					validated.User.Balance != model.InitialBalance {
					errCh <- fmt.Errorf("inconsistent session user: %+v", validated.User)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		s.Require().NoError(err)
	}
}

func (s *ServiceSuite) TestValidateSessionReloadsUser() {
	s.random.QueueString("alice0000alice00")
	session, _ := s.service.CreateGuest(s.ctx, "Alice")

	_, err := s.storage.AdjustBalance(s.ctx, session.UserID, -100)
	s.Require().NoError(err)

	validated, err := s.service.ValidateSession(s.ctx, session.Token)
	s.Require().NoError(err)
	s.Equal(model.InitialBalance-100, validated.User.Balance)
}

// RevokeSession tests

func (s *ServiceSuite) TestRevokeSessionInvalidatesToken() {
	s.random.QueueString("alice0000alice00")
	session, _ := s.service.CreateGuest(s.ctx, "Alice")

	s.service.RevokeSession(session.Token)

	_, err := s.service.ValidateSession(s.ctx, session.Token)
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestRevokeSessionIsIdempotent() {
	s.service.RevokeSession("never-issued")
}

// GetUser tests

func (s *ServiceSuite) TestGetUserNotFound() {
	_, err := s.service.GetUser(s.ctx, "u_nope")
	s.ErrorIs(err, model.ErrUserNotFound)
}
