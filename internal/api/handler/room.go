package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rfglabs/deathroll/internal/api/middleware"
	"github.com/rfglabs/deathroll/internal/api/request"
	"github.com/rfglabs/deathroll/internal/api/response"
	"github.com/rfglabs/deathroll/internal/model"
	"github.com/rfglabs/deathroll/internal/services/game"
	"github.com/rfglabs/deathroll/internal/services/room"
	"github.com/rfglabs/deathroll/internal/storage"
)

// RoomHandler handles room and game endpoints
type RoomHandler struct {
	roomController *room.Controller
	gameController *game.Controller
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(roomController *room.Controller, gameController *game.Controller) *RoomHandler {
	return &RoomHandler{
		roomController: roomController,
		gameController: gameController,
	}
}

// Create handles POST /api/v1/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	var req request.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	created, err := h.roomController.CreateRoom(r.Context(), user.ID, req.Wager)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.RoomFromModel(created))
}

// List handles GET /api/v1/rooms
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter storage.RoomFilter
	if status := r.URL.Query().Get("status"); status != "" {
		switch model.RoomStatus(status) {
		case model.RoomStatusOpen, model.RoomStatusActive, model.RoomStatusClosed:
			filter.Status = model.RoomStatus(status)
		default:
			WriteError(w, NewInvalidRequestError("unknown status filter"))
			return
		}
	}

	rooms, err := h.roomController.ListRooms(r.Context(), filter)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RoomListFromModels(rooms))
}

// Get handles GET /api/v1/rooms/{id}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	roomID := model.RoomID(mux.Vars(r)["id"])

	got, err := h.roomController.GetRoom(r.Context(), roomID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RoomFromModel(got))
}

// Join handles POST /api/v1/rooms/{id}/join
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	roomID := model.RoomID(mux.Vars(r)["id"])

	joined, err := h.roomController.JoinRoom(r.Context(), roomID, user.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RoomFromModel(joined))
}

// Roll handles POST /api/v1/rooms/{id}/roll
func (h *RoomHandler) Roll(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	roomID := model.RoomID(mux.Vars(r)["id"])

	result, err := h.gameController.Roll(r.Context(), roomID, user.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RollResultFromModel(result))
}

// Purge handles POST /api/v1/admin/purge-rooms
func (h *RoomHandler) Purge(w http.ResponseWriter, r *http.Request) {
	count, err := h.roomController.PurgeRooms(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PurgeResult{Purged: count})
}
