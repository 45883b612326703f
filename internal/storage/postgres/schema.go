package postgres

// Schema for the deathroll tables. Applied idempotently at startup via
// EnsureSchema; versioned migrations are out of scope for this service.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	balance      BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
	online       BOOLEAN NOT NULL DEFAULT FALSE,
	version      BIGINT NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS rooms (
	id             TEXT PRIMARY KEY,
	player1        TEXT NOT NULL,
	player2        TEXT NOT NULL DEFAULT '',
	wager          BIGINT NOT NULL,
	status         TEXT NOT NULL,
	current_max    BIGINT NOT NULL,
	current_player TEXT NOT NULL DEFAULT '',
	rolls          JSONB NOT NULL DEFAULT '[]',
	winner         TEXT NOT NULL DEFAULT '',
	version        BIGINT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS rooms_status_idx ON rooms (status);

CREATE TABLE IF NOT EXISTS reservations (
	id         TEXT PRIMARY KEY,
	room_id    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	amount     BIGINT NOT NULL,
	state      TEXT NOT NULL,
	version    BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS reservations_room_idx ON reservations (room_id);
CREATE INDEX IF NOT EXISTS reservations_held_idx ON reservations (state, created_at);
`
