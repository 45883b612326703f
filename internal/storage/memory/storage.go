package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rfglabs/deathroll/internal/model"
	"github.com/rfglabs/deathroll/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
//
// Records are deep-copied on the way in and out so the compare-and-swap
// semantics are real: a caller holding a stale copy cannot mutate stored
// state behind the version counter's back.
type Storage struct {
	mu sync.RWMutex

	users        map[model.UserID]*model.User
	rooms        map[model.RoomID]*model.Room
	reservations map[model.ReservationID]*model.Reservation
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users:        make(map[model.UserID]*model.User),
		rooms:        make(map[model.RoomID]*model.Room),
		reservations: make(map[model.ReservationID]*model.Reservation),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func copyUser(u *model.User) *model.User {
	c := *u
	return &c
}

func copyRoom(r *model.Room) *model.Room {
	c := *r
	c.Rolls = make([]model.RollEntry, len(r.Rolls))
	copy(c.Rolls, r.Rolls)
	return &c
}

func copyReservation(r *model.Reservation) *model.Reservation {
	c := *r
	return &c
}

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return copyUser(user), nil
}

func (s *Storage) UpdateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[user.ID]
	if !ok {
		return model.ErrUserNotFound
	}
	if stored.Version != user.Version {
		return model.ErrConcurrentModification
	}
	user.Version++
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *Storage) AdjustBalance(ctx context.Context, id model.UserID, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return 0, model.ErrUserNotFound
	}
	next := user.Balance + delta
	if next < 0 {
		return 0, model.ErrInsufficientFunds
	}
	user.Balance = next
	user.Version++
	return next, nil
}

// Room operations

func (s *Storage) CreateRoom(ctx context.Context, room *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; ok {
		return model.ErrRoomExists
	}
	s.rooms[room.ID] = copyRoom(room)
	return nil
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return copyRoom(room), nil
}

func (s *Storage) UpdateRoom(ctx context.Context, room *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.rooms[room.ID]
	if !ok {
		return model.ErrRoomNotFound
	}
	if stored.Version != room.Version {
		return model.ErrConcurrentModification
	}
	room.Version++
	s.rooms[room.ID] = copyRoom(room)
	return nil
}

func (s *Storage) ListRooms(ctx context.Context, filter storage.RoomFilter) ([]*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]*model.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		if filter.Matches(r) {
			rooms = append(rooms, copyRoom(r))
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	return rooms, nil
}

func (s *Storage) PurgeRooms(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := len(s.rooms)
	s.rooms = make(map[model.RoomID]*model.Room)
	return count, nil
}

// Reservation operations

func (s *Storage) SaveReservation(ctx context.Context, res *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[res.ID] = copyReservation(res)
	return nil
}

func (s *Storage) GetReservation(ctx context.Context, id model.ReservationID) (*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.reservations[id]
	if !ok {
		return nil, model.ErrReservationNotFound
	}
	return copyReservation(res), nil
}

func (s *Storage) UpdateReservation(ctx context.Context, res *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.reservations[res.ID]
	if !ok {
		return model.ErrReservationNotFound
	}
	if stored.Version != res.Version {
		return model.ErrConcurrentModification
	}
	res.Version++
	s.reservations[res.ID] = copyReservation(res)
	return nil
}

func (s *Storage) ReservationsForRoom(ctx context.Context, roomID model.RoomID) ([]*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Reservation
	for _, r := range s.reservations {
		if r.RoomID == roomID {
			out = append(out, copyReservation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Storage) HeldReservationsOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Reservation
	for _, r := range s.reservations {
		if r.State == model.ReservationHeld && r.CreatedAt.Before(cutoff) {
			out = append(out, copyReservation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
