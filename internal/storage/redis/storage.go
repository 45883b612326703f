package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rfglabs/deathroll/internal/model"
	"github.com/rfglabs/deathroll/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
//
// Versioned records (users, rooms, reservations) are stored as JSON blobs
// and updated through WATCH/MULTI/EXEC transactions: the watch aborts the
// write if another client touched the key between read and write, which
// gives the compare-and-swap semantics the interface requires.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{client: client, cfg: cfg}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{client: client, cfg: cfg}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, userKey(user.ID), data, 0)
	pipe.SAdd(ctx, usersIndexKey(), string(user.ID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	data, err := s.client.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Storage) UpdateUser(ctx context.Context, user *model.User) error {
	key := userKey(user.ID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrUserNotFound
			}
			return err
		}

		var stored model.User
		if err := json.Unmarshal(data, &stored); err != nil {
			return err
		}
		if stored.Version != user.Version {
			return model.ErrConcurrentModification
		}

		user.Version++
		updated, err := json.Marshal(user)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		user.Version--
		return model.ErrConcurrentModification
	}
	return err
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	ids, err := s.client.SMembers(ctx, usersIndexKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.User{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userKey(model.UserID(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	users := make([]*model.User, 0, len(values))
	for _, val := range values {
		if val == nil {
			continue
		}
		var user model.User
		if err := json.Unmarshal([]byte(val.(string)), &user); err != nil {
			continue
		}
		users = append(users, &user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *Storage) AdjustBalance(ctx context.Context, id model.UserID, delta int64) (int64, error) {
	key := userKey(id)

	var newBalance int64
	for attempt := 0; attempt < s.cfg.CASAttempts; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return model.ErrUserNotFound
				}
				return err
			}

			var user model.User
			if err := json.Unmarshal(data, &user); err != nil {
				return err
			}

			next := user.Balance + delta
			if next < 0 {
				return model.ErrInsufficientFunds
			}
			user.Balance = next
			user.Version++
			newBalance = next

			updated, err := json.Marshal(&user)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, 0)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue // lost the race, re-read and retry
		}
		if err != nil {
			return 0, err
		}
		return newBalance, nil
	}
	return 0, model.ErrConcurrentModification
}

// Room operations

func (s *Storage) CreateRoom(ctx context.Context, room *model.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, roomKey(room.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrRoomExists
	}
	return s.client.SAdd(ctx, roomsIndexKey(), string(room.ID)).Err()
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	data, err := s.client.Get(ctx, roomKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrRoomNotFound
		}
		return nil, err
	}

	var room model.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Storage) UpdateRoom(ctx context.Context, room *model.Room) error {
	key := roomKey(room.ID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrRoomNotFound
			}
			return err
		}

		var stored model.Room
		if err := json.Unmarshal(data, &stored); err != nil {
			return err
		}
		if stored.Version != room.Version {
			return model.ErrConcurrentModification
		}

		room.Version++
		updated, err := json.Marshal(room)
		if err != nil {
			return err
		}

		var ttl time.Duration
		if room.Status == model.RoomStatusClosed {
			ttl = s.cfg.ClosedRoomTTL
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, ttl)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		room.Version--
		return model.ErrConcurrentModification
	}
	return err
}

func (s *Storage) ListRooms(ctx context.Context, filter storage.RoomFilter) ([]*model.Room, error) {
	ids, err := s.client.SMembers(ctx, roomsIndexKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Room{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = roomKey(model.RoomID(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	rooms := make([]*model.Room, 0, len(values))
	for _, val := range values {
		if val == nil {
			continue // room may have expired
		}
		var room model.Room
		if err := json.Unmarshal([]byte(val.(string)), &room); err != nil {
			continue
		}
		if filter.Matches(&room) {
			rooms = append(rooms, &room)
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	return rooms, nil
}

func (s *Storage) PurgeRooms(ctx context.Context) (int, error) {
	ids, err := s.client.SMembers(ctx, roomsIndexKey()).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, roomKey(model.RoomID(id)))
	}
	pipe.Del(ctx, roomsIndexKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Reservation operations

func (s *Storage) SaveReservation(ctx context.Context, res *model.Reservation) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, reservationKey(res.ID), data, 0)
	pipe.SAdd(ctx, reservationsForRoomIndexKey(res.RoomID), string(res.ID))
	if res.State == model.ReservationHeld {
		pipe.SAdd(ctx, heldReservationsIndexKey(), string(res.ID))
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetReservation(ctx context.Context, id model.ReservationID) (*model.Reservation, error) {
	data, err := s.client.Get(ctx, reservationKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrReservationNotFound
		}
		return nil, err
	}

	var res model.Reservation
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *Storage) UpdateReservation(ctx context.Context, res *model.Reservation) error {
	key := reservationKey(res.ID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrReservationNotFound
			}
			return err
		}

		var stored model.Reservation
		if err := json.Unmarshal(data, &stored); err != nil {
			return err
		}
		if stored.Version != res.Version {
			return model.ErrConcurrentModification
		}

		res.Version++
		updated, err := json.Marshal(res)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if res.State == model.ReservationHeld {
				pipe.Set(ctx, key, updated, 0)
			} else {
				pipe.Set(ctx, key, updated, s.cfg.FinishedReservationTTL)
				pipe.SRem(ctx, heldReservationsIndexKey(), string(res.ID))
			}
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		res.Version--
		return model.ErrConcurrentModification
	}
	return err
}

func (s *Storage) ReservationsForRoom(ctx context.Context, roomID model.RoomID) ([]*model.Reservation, error) {
	ids, err := s.client.SMembers(ctx, reservationsForRoomIndexKey(roomID)).Result()
	if err != nil {
		return nil, err
	}
	return s.fetchReservations(ctx, ids, func(*model.Reservation) bool { return true })
}

func (s *Storage) HeldReservationsOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Reservation, error) {
	ids, err := s.client.SMembers(ctx, heldReservationsIndexKey()).Result()
	if err != nil {
		return nil, err
	}
	return s.fetchReservations(ctx, ids, func(r *model.Reservation) bool {
		return r.State == model.ReservationHeld && r.CreatedAt.Before(cutoff)
	})
}

func (s *Storage) fetchReservations(ctx context.Context, ids []string, keep func(*model.Reservation) bool) ([]*model.Reservation, error) {
	if len(ids) == 0 {
		return []*model.Reservation{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = reservationKey(model.ReservationID(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*model.Reservation, 0, len(values))
	for _, val := range values {
		if val == nil {
			continue // reservation may have expired
		}
		var res model.Reservation
		if err := json.Unmarshal([]byte(val.(string)), &res); err != nil {
			continue
		}
		if keep(&res) {
			out = append(out, &res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
