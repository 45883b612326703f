package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rfglabs/deathroll/internal/dependencies/clock"
	"github.com/rfglabs/deathroll/internal/dependencies/random"
	"github.com/rfglabs/deathroll/internal/model"
	"github.com/rfglabs/deathroll/internal/storage"
)

const reservationIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Service owns all wagering-balance mutations. Balances are only ever
// changed through Debit/Credit (both atomic at the storage layer) and the
// escrow operations built on them.
//
// Escrow is two-phase: Reserve debits and records a held reservation
// before the dependent room transition commits; Release and Settle close
// the reservation out. A crash between the phases leaves a held
// reservation that SweepAbandoned refunds.
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
}

// New creates a new ledger Service
func New(store storage.Storage, clk clock.Clock, rnd random.Random, logger *slog.Logger) *Service {
	return &Service{
		storage: store,
		clock:   clk,
		random:  rnd,
		logger:  logger.With(slog.String("component", "ledger")),
	}
}

// Debit atomically decrements the user's balance.
// Fails with model.ErrInsufficientFunds if the balance is too low.
func (s *Service) Debit(ctx context.Context, userID model.UserID, amount int64) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("debit amount must be non-negative: %w", model.ErrInvariantViolation)
	}
	return s.storage.AdjustBalance(ctx, userID, -amount)
}

// Credit atomically increments the user's balance.
func (s *Service) Credit(ctx context.Context, userID model.UserID, amount int64) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("credit amount must be non-negative: %w", model.ErrInvariantViolation)
	}
	return s.storage.AdjustBalance(ctx, userID, amount)
}

// Balance returns the user's current balance.
func (s *Service) Balance(ctx context.Context, userID model.UserID) (int64, error) {
	user, err := s.storage.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// Reserve debits the amount from the user and records a held escrow
// reservation against the room. On debit failure no state changes; on
// reservation write failure the debit is compensated.
func (s *Service) Reserve(ctx context.Context, userID model.UserID, roomID model.RoomID, amount int64) (*model.Reservation, error) {
	if _, err := s.Debit(ctx, userID, amount); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	res := &model.Reservation{
		ID:        model.ReservationID("rv_" + s.random.String(16, reservationIDAlphabet)),
		RoomID:    roomID,
		UserID:    userID,
		Amount:    amount,
		State:     model.ReservationHeld,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.storage.SaveReservation(ctx, res); err != nil {
		// Compensate the debit so no funds are stranded
		if _, cerr := s.Credit(ctx, userID, amount); cerr != nil {
			s.logger.Error("failed to compensate debit after reservation failure",
				slog.String("user_id", string(userID)),
				slog.Int64("amount", amount),
				slog.String("error", cerr.Error()))
		}
		return nil, err
	}

	s.logger.Info("escrow reserved",
		slog.String("reservation_id", string(res.ID)),
		slog.String("room_id", string(roomID)),
		slog.String("user_id", string(userID)),
		slog.Int64("amount", amount))
	return res, nil
}

// Release refunds a held reservation to its owner. Releasing a
// reservation that is already settled or released is a no-op.
func (s *Service) Release(ctx context.Context, reservationID model.ReservationID) error {
	res, err := s.storage.GetReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if res.State != model.ReservationHeld {
		return nil
	}

	res.State = model.ReservationReleased
	res.UpdatedAt = s.clock.Now()
	if err := s.storage.UpdateReservation(ctx, res); err != nil {
		if errors.Is(err, model.ErrConcurrentModification) {
			// Someone else settled or released it first
			return nil
		}
		return err
	}

	if _, err := s.Credit(ctx, res.UserID, res.Amount); err != nil {
		return err
	}

	s.logger.Info("escrow released",
		slog.String("reservation_id", string(res.ID)),
		slog.String("user_id", string(res.UserID)),
		slog.Int64("amount", res.Amount))
	return nil
}

// Settle pays out all escrow held against the room to the winner. The
// reservation state transition guards exactly-once crediting: each held
// reservation is marked settled through a compare-and-swap before its
// amount is credited, so a concurrent or repeated Settle cannot pay twice.
func (s *Service) Settle(ctx context.Context, roomID model.RoomID, winnerID model.UserID) (int64, error) {
	reservations, err := s.storage.ReservationsForRoom(ctx, roomID)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, res := range reservations {
		if res.State != model.ReservationHeld {
			continue
		}
		res.State = model.ReservationSettled
		res.UpdatedAt = s.clock.Now()
		if err := s.storage.UpdateReservation(ctx, res); err != nil {
			if errors.Is(err, model.ErrConcurrentModification) {
				continue // lost the race, that leg is already handled
			}
			return total, err
		}
		if _, err := s.Credit(ctx, winnerID, res.Amount); err != nil {
			return total, err
		}
		total += res.Amount
	}

	if total > 0 {
		s.logger.Info("escrow settled",
			slog.String("room_id", string(roomID)),
			slog.String("winner_id", string(winnerID)),
			slog.Int64("total", total))
	}
	return total, nil
}

// SweepAbandoned is the reconciliation path for the two-phase escrow: it
// refunds held reservations older than the cutoff whose room transition
// never committed (room missing or closed without settling, or the room
// no longer references the reservation's user).
func (s *Service) SweepAbandoned(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-olderThan)
	held, err := s.storage.HeldReservationsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, res := range held {
		abandoned, err := s.reservationAbandoned(ctx, res)
		if err != nil {
			return swept, err
		}
		if !abandoned {
			continue
		}
		if err := s.Release(ctx, res.ID); err != nil {
			return swept, err
		}
		swept++
	}

	if swept > 0 {
		s.logger.Info("abandoned escrow swept", slog.Int("released", swept))
	}
	return swept, nil
}

func (s *Service) reservationAbandoned(ctx context.Context, res *model.Reservation) (bool, error) {
	room, err := s.storage.GetRoom(ctx, res.RoomID)
	if err != nil {
		if errors.Is(err, model.ErrRoomNotFound) {
			return true, nil
		}
		return false, err
	}

	switch room.Status {
	case model.RoomStatusClosed:
		// A closed room should have settled its escrow; a held reservation
		// means the settle never ran. The winner takes it, the loser's leg
		// is theirs by right only via Settle, so re-drive settlement.
		if room.Winner != "" {
			if _, err := s.Settle(ctx, room.ID, room.Winner); err != nil {
				return false, err
			}
			return false, nil
		}
		return true, nil
	default:
		// Open or active: abandoned only if the room does not actually
		// reference this user (the transition the debit was for never
		// committed)
		return !room.HasPlayer(res.UserID), nil
	}
}
