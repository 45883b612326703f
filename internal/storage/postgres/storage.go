package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rfglabs/deathroll/internal/model"
	"github.com/rfglabs/deathroll/internal/storage"
)

// Storage is a Postgres-backed implementation of the storage interface.
//
// Compare-and-swap updates are expressed as conditional UPDATEs on the
// version column; balance adjustments ride on a single conditional UPDATE
// so they are atomic without an explicit transaction.
type Storage struct {
	pool *pgxpool.Pool
}

// New creates a Postgres storage from a connection string and verifies
// connectivity.
func New(ctx context.Context, connString string) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Storage{pool: pool}, nil
}

// NewWithPool creates a Postgres storage with an existing pool (for testing)
func NewWithPool(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

// EnsureSchema creates the tables if they do not exist.
func (s *Storage) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close releases the connection pool.
func (s *Storage) Close() {
	s.pool.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, display_name, balance, online, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			balance = EXCLUDED.balance,
			online = EXCLUDED.online,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at`,
		user.ID, user.DisplayName, user.Balance, user.Online, user.Version,
		user.CreatedAt, user.UpdatedAt)
	return err
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	var user model.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, display_name, balance, online, version, created_at, updated_at
		FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.DisplayName, &user.Balance, &user.Online,
			&user.Version, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Storage) UpdateUser(ctx context.Context, user *model.User) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET display_name = $1, balance = $2, online = $3,
			version = version + 1, updated_at = $4
		WHERE id = $5 AND version = $6`,
		user.DisplayName, user.Balance, user.Online, user.UpdatedAt,
		user.ID, user.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetUser(ctx, user.ID); errors.Is(err, model.ErrUserNotFound) {
			return model.ErrUserNotFound
		}
		return model.ErrConcurrentModification
	}
	user.Version++
	return nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, display_name, balance, online, version, created_at, updated_at
		FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.ID, &user.DisplayName, &user.Balance, &user.Online,
			&user.Version, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

func (s *Storage) AdjustBalance(ctx context.Context, id model.UserID, delta int64) (int64, error) {
	var newBalance int64
	err := s.pool.QueryRow(ctx, `
		UPDATE users SET balance = balance + $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND balance + $1 >= 0
		RETURNING balance`, delta, id).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the user is missing or the balance would go negative
			if _, gerr := s.GetUser(ctx, id); errors.Is(gerr, model.ErrUserNotFound) {
				return 0, model.ErrUserNotFound
			}
			return 0, model.ErrInsufficientFunds
		}
		return 0, err
	}
	return newBalance, nil
}

// Room operations

func (s *Storage) CreateRoom(ctx context.Context, room *model.Room) error {
	rolls, err := json.Marshal(room.Rolls)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO rooms (id, player1, player2, wager, status, current_max,
			current_player, rolls, winner, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		room.ID, room.Player1, room.Player2, room.Wager, room.Status,
		room.CurrentMax, room.CurrentPlayer, rolls, room.Winner,
		room.Version, room.CreatedAt, room.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRoomExists
	}
	return nil
}

func scanRoom(row pgx.Row) (*model.Room, error) {
	var room model.Room
	var rolls []byte
	err := row.Scan(&room.ID, &room.Player1, &room.Player2, &room.Wager,
		&room.Status, &room.CurrentMax, &room.CurrentPlayer, &rolls,
		&room.Winner, &room.Version, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rolls, &room.Rolls); err != nil {
		return nil, err
	}
	return &room, nil
}

const roomColumns = `id, player1, player2, wager, status, current_max,
	current_player, rolls, winner, version, created_at, updated_at`

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	room, err := scanRoom(s.pool.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}

func (s *Storage) UpdateRoom(ctx context.Context, room *model.Room) error {
	rolls, err := json.Marshal(room.Rolls)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE rooms SET player2 = $1, status = $2, current_max = $3,
			current_player = $4, rolls = $5, winner = $6,
			version = version + 1, updated_at = $7
		WHERE id = $8 AND version = $9`,
		room.Player2, room.Status, room.CurrentMax, room.CurrentPlayer,
		rolls, room.Winner, room.UpdatedAt, room.ID, room.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetRoom(ctx, room.ID); errors.Is(err, model.ErrRoomNotFound) {
			return model.ErrRoomNotFound
		}
		return model.ErrConcurrentModification
	}
	room.Version++
	return nil
}

func (s *Storage) ListRooms(ctx context.Context, filter storage.RoomFilter) ([]*model.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []*model.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (s *Storage) PurgeRooms(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rooms`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Reservation operations

func (s *Storage) SaveReservation(ctx context.Context, res *model.Reservation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reservations (id, room_id, user_id, amount, state, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at`,
		res.ID, res.RoomID, res.UserID, res.Amount, res.State,
		res.Version, res.CreatedAt, res.UpdatedAt)
	return err
}

func (s *Storage) GetReservation(ctx context.Context, id model.ReservationID) (*model.Reservation, error) {
	var res model.Reservation
	err := s.pool.QueryRow(ctx, `
		SELECT id, room_id, user_id, amount, state, version, created_at, updated_at
		FROM reservations WHERE id = $1`, id).
		Scan(&res.ID, &res.RoomID, &res.UserID, &res.Amount, &res.State,
			&res.Version, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrReservationNotFound
		}
		return nil, err
	}
	return &res, nil
}

func (s *Storage) UpdateReservation(ctx context.Context, res *model.Reservation) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reservations SET state = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		res.State, res.UpdatedAt, res.ID, res.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetReservation(ctx, res.ID); errors.Is(err, model.ErrReservationNotFound) {
			return model.ErrReservationNotFound
		}
		return model.ErrConcurrentModification
	}
	res.Version++
	return nil
}

func (s *Storage) ReservationsForRoom(ctx context.Context, roomID model.RoomID) ([]*model.Reservation, error) {
	return s.queryReservations(ctx, `
		SELECT id, room_id, user_id, amount, state, version, created_at, updated_at
		FROM reservations WHERE room_id = $1 ORDER BY id`, roomID)
}

func (s *Storage) HeldReservationsOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Reservation, error) {
	return s.queryReservations(ctx, `
		SELECT id, room_id, user_id, amount, state, version, created_at, updated_at
		FROM reservations WHERE state = $1 AND created_at < $2 ORDER BY created_at`,
		model.ReservationHeld, cutoff)
}

func (s *Storage) queryReservations(ctx context.Context, query string, args ...any) ([]*model.Reservation, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Reservation
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(&res.ID, &res.RoomID, &res.UserID, &res.Amount,
			&res.State, &res.Version, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &res)
	}
	return out, rows.Err()
}
