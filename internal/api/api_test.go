package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfglabs/deathroll/internal/api"
	"github.com/rfglabs/deathroll/internal/api/response"
	"github.com/rfglabs/deathroll/internal/factory"
	"github.com/rfglabs/deathroll/internal/model"
	"github.com/rfglabs/deathroll/internal/services/identity"
	"github.com/rfglabs/deathroll/internal/storage/memory"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler  http.Handler
	storage  *memory.Storage
	identity *identity.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// API tests are integration tests - use production factory with real random/clock
	app, err := factory.New(context.Background(), factory.Config{})
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Logger:          logger,
		IdentityService: app.IdentityService,
		RoomController:  app.RoomController,
		GameController:  app.GameController,
		Gateway:         app.Gateway,
	})

	return &testServer{
		handler:  router,
		storage:  app.Storage.(*memory.Storage),
		identity: app.IdentityService,
	}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

// createGuest creates a guest user via the API and returns the response
func (ts *testServer) createGuest(t *testing.T, name string) response.AuthResponse {
	t.Helper()

	rr := ts.request(http.MethodPost, "/api/v1/users/guest", map[string]string{"display_name": name}, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp response.AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestCreateGuestUser(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.createGuest(t, "Alice")
	assert.Equal(t, "Alice", resp.User.DisplayName)
	assert.Equal(t, model.InitialBalance, resp.User.Balance)
	assert.NotEmpty(t, resp.SessionToken)
	assert.NotEmpty(t, resp.User.ID)
}

func TestCreateGuestRequiresDisplayName(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/users/guest", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "INVALID_REQUEST")
}

func TestGetMeRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/users/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/users/me", nil, "bogus-token")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetMe(t *testing.T) {
	ts := newTestServer(t)
	guest := ts.createGuest(t, "Alice")

	rr := ts.request(http.MethodGet, "/api/v1/users/me", nil, guest.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)

	var me response.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, guest.User.ID, me.ID)
	assert.Equal(t, model.InitialBalance, me.Balance)
}

func TestLogoutRevokesSession(t *testing.T) {
	ts := newTestServer(t)
	guest := ts.createGuest(t, "Alice")

	rr := ts.request(http.MethodPost, "/api/v1/users/logout", nil, guest.SessionToken)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/users/me", nil, guest.SessionToken)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateRoom(t *testing.T) {
	ts := newTestServer(t)
	guest := ts.createGuest(t, "Alice")

	rr := ts.request(http.MethodPost, "/api/v1/rooms", map[string]int64{"wager": 20}, guest.SessionToken)
	require.Equal(t, http.StatusCreated, rr.Code)

	var room response.Room
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &room))
	assert.Equal(t, guest.User.ID, room.Player1)
	assert.Equal(t, "open", room.Status)
	assert.Equal(t, int64(20), room.Wager)
	assert.Equal(t, int64(20), room.CurrentMax)

	// The wager left the creator's balance
	rr = ts.request(http.MethodGet, "/api/v1/users/me", nil, guest.SessionToken)
	var me response.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, model.InitialBalance-20, me.Balance)
}

func TestCreateRoomBelowMinimumWager(t *testing.T) {
	ts := newTestServer(t)
	guest := ts.createGuest(t, "Alice")

	rr := ts.request(http.MethodPost, "/api/v1/rooms", map[string]int64{"wager": 5}, guest.SessionToken)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "INVALID_WAGER")
}

func TestCreateRoomInsufficientFunds(t *testing.T) {
	ts := newTestServer(t)
	guest := ts.createGuest(t, "Alice")

	rr := ts.request(http.MethodPost, "/api/v1/rooms", map[string]int64{"wager": 5000}, guest.SessionToken)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "INSUFFICIENT_FUNDS")
}

func TestGetMissingRoom(t *testing.T) {
	ts := newTestServer(t)
	guest := ts.createGuest(t, "Alice")

	rr := ts.request(http.MethodGet, "/api/v1/rooms/nope", nil, guest.SessionToken)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "ROOM_NOT_FOUND")
}

func TestJoinOwnRoomForbidden(t *testing.T) {
	ts := newTestServer(t)
	guest := ts.createGuest(t, "Alice")

	rr := ts.request(http.MethodPost, "/api/v1/rooms", map[string]int64{"wager": 20}, guest.SessionToken)
	require.Equal(t, http.StatusCreated, rr.Code)
	var room response.Room
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &room))

	rr = ts.request(http.MethodPost, "/api/v1/rooms/"+room.ID+"/join", nil, guest.SessionToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "SELF_JOIN_FORBIDDEN")
}

func TestListRoomsFilter(t *testing.T) {
	ts := newTestServer(t)
	guest := ts.createGuest(t, "Alice")

	rr := ts.request(http.MethodPost, "/api/v1/rooms", map[string]int64{"wager": 20}, guest.SessionToken)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/rooms?status=open", nil, guest.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)
	var list response.RoomList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list.Rooms, 1)

	rr = ts.request(http.MethodGet, "/api/v1/rooms?status=closed", nil, guest.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Empty(t, list.Rooms)

	rr = ts.request(http.MethodGet, "/api/v1/rooms?status=bogus", nil, guest.SessionToken)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFullGameFlow(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.createGuest(t, "Alice")
	bob := ts.createGuest(t, "Bob")
	tokens := map[string]string{
		alice.User.ID: alice.SessionToken,
		bob.User.ID:   bob.SessionToken,
	}

	// Alice opens a room, Bob joins
	rr := ts.request(http.MethodPost, "/api/v1/rooms", map[string]int64{"wager": 20}, alice.SessionToken)
	require.Equal(t, http.StatusCreated, rr.Code)
	var room response.Room
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &room))

	rr = ts.request(http.MethodPost, "/api/v1/rooms/"+room.ID+"/join", nil, bob.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &room))
	assert.Equal(t, "active", room.Status)
	require.NotEmpty(t, room.CurrentPlayer)

	// Rolling out of turn is rejected
	notCurrent := alice.SessionToken
	if room.CurrentPlayer == alice.User.ID {
		notCurrent = bob.SessionToken
	}
	rr = ts.request(http.MethodPost, "/api/v1/rooms/"+room.ID+"/roll", nil, notCurrent)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "NOT_YOUR_TURN")

	// Alternate rolls until someone hits 1
	var result response.RollResult
	prevMax := room.CurrentMax
	for rolls := 0; ; rolls++ {
		require.Less(t, rolls, 100, "game did not terminate")

		token := tokens[room.CurrentPlayer]
		rr = ts.request(http.MethodPost, "/api/v1/rooms/"+room.ID+"/roll", nil, token)
		require.Equal(t, http.StatusOK, rr.Code)
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))

		assert.GreaterOrEqual(t, result.Value, int64(1))
		assert.Less(t, result.Value, prevMax)

		room = result.Room
		if result.Terminal {
			break
		}
		assert.Equal(t, result.Value, room.CurrentMax)
		prevMax = room.CurrentMax
	}

	require.Equal(t, "closed", room.Status)
	require.NotEmpty(t, room.Winner)
	assert.Equal(t, int64(1), result.Value)

	// Winner ends up at +wager, loser at -wager
	loser := alice.User.ID
	if room.Winner == alice.User.ID {
		loser = bob.User.ID
	}

	rr = ts.request(http.MethodGet, "/api/v1/users/me", nil, tokens[room.Winner])
	var winnerUser response.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &winnerUser))
	assert.Equal(t, model.InitialBalance+20, winnerUser.Balance)

	rr = ts.request(http.MethodGet, "/api/v1/users/me", nil, tokens[loser])
	var loserUser response.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &loserUser))
	assert.Equal(t, model.InitialBalance-20, loserUser.Balance)

	// Rolling in a closed room is rejected
	rr = ts.request(http.MethodPost, "/api/v1/rooms/"+room.ID+"/roll", nil, tokens[room.Winner])
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "ROOM_NOT_ACTIVE")
}

func TestPurgeRooms(t *testing.T) {
	ts := newTestServer(t)
	guest := ts.createGuest(t, "Alice")

	rr := ts.request(http.MethodPost, "/api/v1/rooms", map[string]int64{"wager": 20}, guest.SessionToken)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/admin/purge-rooms", nil, guest.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"purged":1`)

	rr = ts.request(http.MethodGet, "/api/v1/rooms", nil, guest.SessionToken)
	var list response.RoomList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Empty(t, list.Rooms)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}
