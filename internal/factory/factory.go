package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/rfglabs/deathroll/internal/dependencies/clock"
	"github.com/rfglabs/deathroll/internal/dependencies/random"
	"github.com/rfglabs/deathroll/internal/gateway"
	"github.com/rfglabs/deathroll/internal/pubsub"
	"github.com/rfglabs/deathroll/internal/services/game"
	"github.com/rfglabs/deathroll/internal/services/identity"
	"github.com/rfglabs/deathroll/internal/services/ledger"
	"github.com/rfglabs/deathroll/internal/services/room"
	"github.com/rfglabs/deathroll/internal/storage"
	"github.com/rfglabs/deathroll/internal/storage/memory"
	"github.com/rfglabs/deathroll/internal/storage/postgres"
	redisstorage "github.com/rfglabs/deathroll/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypePostgres = "postgres"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Broker          pubsub.Broker
	LedgerService   *ledger.Service
	RoomController  *room.Controller
	GameController  *game.Controller
	IdentityService *identity.Service
	Gateway         *gateway.Gateway
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresURL is the Postgres connection string (required if StorageType is "postgres")
	PostgresURL string
	// IdentityConfig holds configuration for the identity service (optional)
	IdentityConfig identity.Config
	// GatewayConfig holds configuration for the websocket gateway (optional)
	GatewayConfig gateway.Config
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	case StorageTypePostgres:
		if cfg.PostgresURL == "" {
			return nil, errors.New("PostgresURL required when StorageType is postgres")
		}
		pgStore, err := postgres.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := pgStore.EnsureSchema(ctx); err != nil {
			pgStore.Close()
			return nil, err
		}
		store = pgStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'postgres'")
	}

	clk := clock.New()
	rnd := random.New()

	identityCfg := cfg.IdentityConfig
	if identityCfg.SessionDuration == 0 {
		identityCfg = identity.DefaultConfig()
	}

	return newWithDependencies(store, clk, rnd, identityCfg, cfg.GatewayConfig, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	identityCfg identity.Config,
	gatewayCfg gateway.Config,
	logger *slog.Logger,
) *App {
	broker := pubsub.NewMemoryBroker(logger)
	ledgerService := ledger.New(store, clk, rnd, logger)
	roomController := room.NewController(store, ledgerService, broker, clk, rnd, logger)
	gameController := game.NewController(store, ledgerService, broker, clk, rnd, logger)
	identityService := identity.New(store, clk, rnd, identityCfg)
	gw := gateway.New(store, identityService, roomController, gameController, broker, gatewayCfg, logger)

	return &App{
		Storage:         store,
		Clock:           clk,
		Random:          rnd,
		Broker:          broker,
		LedgerService:   ledgerService,
		RoomController:  roomController,
		GameController:  gameController,
		IdentityService: identityService,
		Gateway:         gw,
	}
}
