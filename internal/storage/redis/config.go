package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// ClosedRoomTTL expires settled rooms so the keyspace does not grow
	// without bound. Open and active rooms never expire.
	ClosedRoomTTL time.Duration

	// FinishedReservationTTL expires settled and released reservations.
	// Held reservations never expire; the reconciliation sweep owns them.
	FinishedReservationTTL time.Duration

	// CASAttempts bounds internal retries of WATCH-based updates when the
	// transaction aborts under contention.
	CASAttempts int
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:                    "redis://localhost:6379",
		PoolSize:               10,
		MinIdleConns:           2,
		ClosedRoomTTL:          24 * time.Hour,
		FinishedReservationTTL: 24 * time.Hour,
		CASAttempts:            5,
	}
}
