package request

// CreateGuestRequest is the request body for creating a guest user
type CreateGuestRequest struct {
	DisplayName string `json:"display_name"`
}

// CreateRoomRequest is the request body for opening a room
type CreateRoomRequest struct {
	Wager int64 `json:"wager"`
}
