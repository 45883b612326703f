package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rfglabs/deathroll/internal/api/handler"
	apimiddleware "github.com/rfglabs/deathroll/internal/api/middleware"
	"github.com/rfglabs/deathroll/internal/gateway"
	"github.com/rfglabs/deathroll/internal/middleware"
	"github.com/rfglabs/deathroll/internal/services/game"
	"github.com/rfglabs/deathroll/internal/services/identity"
	"github.com/rfglabs/deathroll/internal/services/room"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger          *slog.Logger
	IdentityService *identity.Service
	RoomController  *room.Controller
	GameController  *game.Controller
	Gateway         *gateway.Gateway
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	userHandler := handler.NewUserHandler(cfg.IdentityService)
	roomHandler := handler.NewRoomHandler(cfg.RoomController, cfg.GameController)

	authMiddleware := apimiddleware.Auth(cfg.IdentityService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := apimiddleware.Recovery(cfg.Logger)
	metricsMiddleware := middleware.Metrics()

	// Prometheus scrape endpoint, outside the API middleware chain
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)
	api.Use(metricsMiddleware)

	// User routes (no auth required for creating guests)
	api.HandleFunc("/users/guest", userHandler.CreateGuest).Methods(http.MethodPost)

	userProtected := api.PathPrefix("/users").Subrouter()
	userProtected.Use(authMiddleware)
	userProtected.HandleFunc("/me", userHandler.GetMe).Methods(http.MethodGet)
	userProtected.HandleFunc("/logout", userHandler.Logout).Methods(http.MethodPost)

	// Room routes (all require auth)
	rooms := api.PathPrefix("/rooms").Subrouter()
	rooms.Use(authMiddleware)
	rooms.HandleFunc("", roomHandler.Create).Methods(http.MethodPost)
	rooms.HandleFunc("", roomHandler.List).Methods(http.MethodGet)
	rooms.HandleFunc("/{id}", roomHandler.Get).Methods(http.MethodGet)
	rooms.HandleFunc("/{id}/join", roomHandler.Join).Methods(http.MethodPost)
	rooms.HandleFunc("/{id}/roll", roomHandler.Roll).Methods(http.MethodPost)

	// Admin routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authMiddleware)
	admin.HandleFunc("/purge-rooms", roomHandler.Purge).Methods(http.MethodPost)

	// Websocket gateway does its own token validation; the auth
	// middleware cannot run here because browsers cannot set headers on
	// websocket dials
	if cfg.Gateway != nil {
		api.HandleFunc("/ws", cfg.Gateway.HandleWS).Methods(http.MethodGet)
	}

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
