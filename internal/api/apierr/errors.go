package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rfglabs/deathroll/internal/model"
	"github.com/rfglabs/deathroll/internal/services/identity"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeInvalidWager      = "INVALID_WAGER"
	CodeUserNotFound      = "USER_NOT_FOUND"
	CodeRoomNotFound      = "ROOM_NOT_FOUND"
	CodeRoomNotOpen       = "ROOM_NOT_OPEN"
	CodeRoomNotActive     = "ROOM_NOT_ACTIVE"
	CodeSelfJoinForbidden = "SELF_JOIN_FORBIDDEN"
	CodeNotYourTurn       = "NOT_YOUR_TURN"
	CodeConflict          = "CONFLICT"
	CodeInternalError     = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Map model errors
	switch {
	case errors.Is(err, model.ErrUserNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeUserNotFound, "User not found"}}
	case errors.Is(err, model.ErrRoomNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeRoomNotFound, "Room not found"}}
	case errors.Is(err, model.ErrInsufficientFunds):
		return &httpError{http.StatusBadRequest, APIError{CodeInsufficientFunds, "Insufficient funds"}}
	case errors.Is(err, model.ErrInvalidWager):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidWager, "Wager is below the minimum"}}
	case errors.Is(err, model.ErrRoomNotOpen):
		return &httpError{http.StatusConflict, APIError{CodeRoomNotOpen, "Room is not open for joining"}}
	case errors.Is(err, model.ErrRoomNotActive):
		return &httpError{http.StatusConflict, APIError{CodeRoomNotActive, "Room is not active"}}
	case errors.Is(err, model.ErrSelfJoinForbidden):
		return &httpError{http.StatusForbidden, APIError{CodeSelfJoinForbidden, "Cannot join your own room"}}
	case errors.Is(err, model.ErrNotYourTurn):
		return &httpError{http.StatusForbidden, APIError{CodeNotYourTurn, "Not your turn"}}
	case errors.Is(err, model.ErrConcurrentModification):
		// Retryable: the client may simply re-issue the request
		return &httpError{http.StatusConflict, APIError{CodeConflict, "Conflicting update, please retry"}}

	// Map identity errors
	case errors.Is(err, identity.ErrInvalidSession):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or expired session"}}

	default:
		// model.ErrInvariantViolation also lands here
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
