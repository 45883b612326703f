package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rfglabs/deathroll/internal/api/middleware"
	"github.com/rfglabs/deathroll/internal/api/request"
	"github.com/rfglabs/deathroll/internal/api/response"
	"github.com/rfglabs/deathroll/internal/services/identity"
)

// UserHandler handles user-related endpoints
type UserHandler struct {
	identityService *identity.Service
}

// NewUserHandler creates a new user handler
func NewUserHandler(identityService *identity.Service) *UserHandler {
	return &UserHandler{
		identityService: identityService,
	}
}

// CreateGuest handles POST /api/v1/users/guest
func (h *UserHandler) CreateGuest(w http.ResponseWriter, r *http.Request) {
	var req request.CreateGuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.DisplayName == "" {
		WriteError(w, NewInvalidRequestError("display_name is required"))
		return
	}

	session, err := h.identityService.CreateGuest(r.Context(), req.DisplayName)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.AuthResponseFromSession(session))
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	response.JSON(w, http.StatusOK, response.UserFromModel(user))
}

// Logout handles POST /api/v1/users/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if session != nil {
		h.identityService.RevokeSession(session.Token)
	}
	response.NoContent(w)
}
