package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/repository/catalog"
	catalogSql "github.com/sharetube/watchparty/internal/repository/catalog/sql"
	"github.com/sharetube/watchparty/internal/repository/connection/inmemory"
	messageRedis "github.com/sharetube/watchparty/internal/repository/message/redis"
	roomRedis "github.com/sharetube/watchparty/internal/repository/room/redis"
	"github.com/sharetube/watchparty/internal/repository/user"
	userSql "github.com/sharetube/watchparty/internal/repository/user/sql"
	"github.com/sharetube/watchparty/internal/service/auth"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/rest"
	"github.com/sharetube/watchparty/pkg/validator"
	"github.com/sharetube/watchparty/pkg/wsrouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testServer struct {
	srv         *httptest.Server
	authService *auth.Service
	users       interface {
		CreateUser(context.Context, user.User) error
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	userRepo := userSql.NewRepo(db)
	require.NoError(t, userRepo.Migrate())
	catalogRepo := catalogSql.NewRepo(db)
	require.NoError(t, catalogRepo.Migrate())
	require.NoError(t, catalogRepo.CreateItem(ctx, catalog.Item{
		Id:       "movie-1",
		Name:     "Paprika",
		Episodes: []catalog.Episode{{Slug: "full", Name: "Full"}},
	}))

	messageRepo, err := messageRedis.NewRepo(ctx, rc, log)
	require.NoError(t, err)

	roomService := room.NewService(
		roomRedis.NewRepo(rc, log),
		messageRepo,
		catalogRepo,
		inmemory.NewRepo(log),
		&room.Config{
			MembersLimit:    50,
			MembersMax:      100,
			StoreTimeout:    time.Second,
			EndedRoomTTL:    time.Hour,
			HistoryPageSize: 50,
			HistoryPageMax:  100,
		},
		log,
	)
	authService := auth.NewService(userRepo, &auth.Config{Secret: "test-secret", LookupTimeout: time.Second}, log)

	c := NewController(roomService, authService, &Config{
		AllowedOrigins: []string{"*"},
		PingInterval:   time.Minute,
		PongWait:       2 * time.Minute,
		WriteWait:      5 * time.Second,
		MaxMessageSize: 4096,
		SendBufferSize: 64,
	}, log)

	srv := httptest.NewServer(c.GetMux())
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, authService: authService, users: userRepo}
}

// login creates a user and returns a token for it.
func (ts *testServer) login(t *testing.T, userId, name string) string {
	t.Helper()

	require.NoError(t, ts.users.CreateUser(context.Background(), user.User{Id: userId, Name: name}))
	token, err := ts.authService.IssueToken(userId, time.Hour)
	require.NoError(t, err)

	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			reader = strings.NewReader(s)
		} else {
			data, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}

	return resp.StatusCode, out
}

func (ts *testServer) createRoom(t *testing.T, token string, body map[string]any) string {
	t.Helper()

	status, resp := ts.do(t, http.MethodPost, "/api/v1/rooms", token, body)
	require.Equal(t, http.StatusCreated, status, resp)

	return resp["room"].(map[string]any)["roomId"].(string)
}

func (ts *testServer) dial(t *testing.T, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/v1/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Cleanup(func() { conn.Close() })
	}

	return conn, resp, err
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": typ, "payload": payload}))
}

// next reads the next event, whatever its type.
func next(t *testing.T, conn *websocket.Conn) (string, map[string]any) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var e struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&e))

	return e.Type, e.Payload
}

// expect reads events until one of type typ arrives.
func expect(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()

	for {
		got, payload := next(t, conn)
		if got == typ {
			return payload
		}
	}
}

func TestWebsocketRequiresToken(t *testing.T) {
	ts := newTestServer(t)

	for _, token := range []string{"", "not-a-jwt"} {
		_, resp, err := ts.dial(t, token)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	// a valid token for a user that does not exist
	token, err := ts.authService.IssueToken("ghost", time.Hour)
	require.NoError(t, err)
	_, resp, err := ts.dial(t, token)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRoomsREST(t *testing.T) {
	ts := newTestServer(t)
	hostToken := ts.login(t, "host", "Host")
	guestToken := ts.login(t, "guest", "Guest")

	status, _ := ts.do(t, http.MethodPost, "/api/v1/rooms", "", map[string]any{"movieId": "movie-1", "episodeId": "full"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, resp := ts.do(t, http.MethodPost, "/api/v1/rooms", hostToken, map[string]any{
		"movieId":   "movie-1",
		"episodeId": "full",
		"isPrivate": true,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	errResp := resp["error"].(map[string]any)
	assert.Equal(t, "INVALID_ARGUMENT", errResp["code"])
	assert.NotEmpty(t, errResp["details"])

	status, _ = ts.do(t, http.MethodPost, "/api/v1/rooms", hostToken, `{"movieId":"movie-1","episodeId":"full","color":"red"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.do(t, http.MethodPost, "/api/v1/rooms", hostToken, map[string]any{"movieId": "nope", "episodeId": "full"})
	assert.Equal(t, http.StatusNotFound, status)

	status, resp = ts.do(t, http.MethodPost, "/api/v1/rooms", hostToken, map[string]any{
		"movieId":   "movie-1",
		"episodeId": "full",
		"settings":  map[string]any{"allowUserControl": true},
	})
	require.Equal(t, http.StatusCreated, status, resp)
	rm := resp["room"].(map[string]any)
	roomId := rm["roomId"].(string)
	assert.Equal(t, "Paprika - Watch together", rm["title"])
	assert.Equal(t, true, rm["settings"].(map[string]any)["allowUserControl"])
	assert.Equal(t, "full", resp["episode"].(map[string]any)["slug"])

	status, resp = ts.do(t, http.MethodGet, "/api/v1/rooms/"+roomId, guestToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "host", resp["room"].(map[string]any)["hostId"])

	status, _ = ts.do(t, http.MethodPatch, "/api/v1/rooms/"+roomId, guestToken, map[string]any{"title": "mine"})
	assert.Equal(t, http.StatusForbidden, status)

	status, resp = ts.do(t, http.MethodPatch, "/api/v1/rooms/"+roomId, hostToken, map[string]any{"title": "Dream night"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Dream night", resp["room"].(map[string]any)["title"])

	status, _ = ts.do(t, http.MethodGet, "/api/v1/rooms/"+roomId+"/messages?page=abc", hostToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp = ts.do(t, http.MethodGet, "/api/v1/rooms/"+roomId+"/messages", hostToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), resp["total"])

	status, _ = ts.do(t, http.MethodDelete, "/api/v1/rooms/"+roomId, guestToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.do(t, http.MethodDelete, "/api/v1/rooms/"+roomId, hostToken, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = ts.do(t, http.MethodGet, "/api/v1/rooms/"+roomId, hostToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = ts.do(t, http.MethodGet, "/api/v1/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestWatchTogether(t *testing.T) {
	ts := newTestServer(t)
	hostToken := ts.login(t, "host", "Host")
	guestToken := ts.login(t, "guest", "Guest")

	roomId := ts.createRoom(t, hostToken, map[string]any{"movieId": "movie-1", "episodeId": "full"})

	host, _, err := ts.dial(t, hostToken)
	require.NoError(t, err)
	guest, _, err := ts.dial(t, guestToken)
	require.NoError(t, err)

	send(t, host, "join-room", map[string]any{"roomId": roomId})
	joined := expect(t, host, "room-joined")
	assert.Equal(t, float64(1), joined["userCount"])

	send(t, guest, "join-room", map[string]any{"roomId": roomId})
	joined = expect(t, guest, "room-joined")
	assert.Equal(t, float64(2), joined["userCount"])

	userJoined := expect(t, host, "user-joined")
	assert.Equal(t, "guest", userJoined["user"].(map[string]any)["userId"])
	assert.Equal(t, float64(2), userJoined["userCount"])

	send(t, host, "video-play", map[string]any{"roomId": roomId, "currentTime": 120})
	for _, conn := range []*websocket.Conn{host, guest} {
		changed := expect(t, conn, "video-state-changed")
		assert.Equal(t, "play", changed["action"])
		assert.Equal(t, float64(120), changed["currentTime"])
		assert.Equal(t, "Host", changed["updatedBy"])
	}

	// a guest cannot seek, and nobody hears about the attempt
	send(t, guest, "video-seek", map[string]any{"roomId": roomId, "currentTime": 300})
	typ, payload := next(t, guest)
	require.Equal(t, "error", typ)
	assert.Equal(t, "FORBIDDEN", payload["code"])

	send(t, guest, "send-message", map[string]any{"roomId": roomId, "message": " hi there "})
	typ, payload = next(t, host)
	require.Equal(t, "new-message", typ)
	assert.Equal(t, "hi there", payload["message"])
	messageId := payload["id"].(string)
	expect(t, guest, "new-message")

	send(t, host, "add-reaction", map[string]any{"messageId": messageId, "emoji": "🔥"})
	reactions := expect(t, guest, "reaction-updated")["reactions"].([]any)
	require.Len(t, reactions, 1)
	assert.Equal(t, "host", reactions[0].(map[string]any)["userId"])

	send(t, guest, "request-sync", map[string]any{"roomId": roomId})
	synced := expect(t, guest, "sync-response")
	state := synced["videoState"].(map[string]any)
	assert.Equal(t, true, state["isPlaying"])
	assert.GreaterOrEqual(t, state["currentTime"].(float64), 120.0)
	assert.NotZero(t, synced["serverTime"])

	send(t, guest, "video-seek", map[string]any{"roomId": roomId})
	typ, payload = next(t, guest)
	require.Equal(t, "error", typ)
	assert.Equal(t, "INVALID_ARGUMENT", payload["code"])

	send(t, guest, "rewind", map[string]any{"roomId": roomId})
	typ, payload = next(t, guest)
	require.Equal(t, "error", typ)
	assert.Equal(t, "INVALID_ARGUMENT", payload["code"])

	require.NoError(t, guest.WriteMessage(websocket.TextMessage, []byte("{not json")))
	typ, _ = next(t, guest)
	assert.Equal(t, "error", typ)

	// dropping the connection runs the leave path
	guest.Close()
	left := expect(t, host, "user-left")
	assert.Equal(t, "guest", left["userId"])
	assert.Equal(t, float64(1), left["userCount"])

	send(t, host, "delete-room", map[string]any{"roomId": roomId})
	deleted := expect(t, host, "room-deleted")
	assert.NotEmpty(t, deleted["message"])

	status, resp := ts.do(t, http.MethodGet, "/api/v1/rooms/"+roomId+"/messages", hostToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), resp["total"])

	send(t, host, "join-room", map[string]any{"roomId": roomId})
	typ, payload = next(t, host)
	require.Equal(t, "error", typ)
	assert.Equal(t, "NOT_FOUND", payload["code"])
}

func TestPrivateRoomOverWebsocket(t *testing.T) {
	ts := newTestServer(t)
	hostToken := ts.login(t, "host", "Host")
	guestToken := ts.login(t, "guest", "Guest")

	roomId := ts.createRoom(t, hostToken, map[string]any{
		"movieId":   "movie-1",
		"episodeId": "full",
		"isPrivate": true,
		"password":  "letmein",
		"maxUsers":  2,
	})

	guest, _, err := ts.dial(t, guestToken)
	require.NoError(t, err)

	send(t, guest, "join-room", map[string]any{"roomId": roomId, "password": "wrong"})
	typ, payload := next(t, guest)
	require.Equal(t, "error", typ)
	assert.Equal(t, "FORBIDDEN", payload["code"])
	assert.Equal(t, "wrong room password", payload["message"])

	send(t, guest, "join-room", map[string]any{"roomId": roomId, "password": "letmein"})
	joined := expect(t, guest, "room-joined")
	assert.Equal(t, float64(2), joined["userCount"])

	thirdToken := ts.login(t, "third", "Third")
	third, _, err := ts.dial(t, thirdToken)
	require.NoError(t, err)

	send(t, third, "join-room", map[string]any{"roomId": roomId, "password": "letmein"})
	typ, payload = next(t, third)
	require.Equal(t, "error", typ)
	assert.Equal(t, "RESOURCE_EXHAUSTED", payload["code"])

	// outsiders can neither look into the room nor follow its playback
	send(t, third, "request-sync", map[string]any{"roomId": roomId})
	typ, payload = next(t, third)
	require.Equal(t, "error", typ)
	assert.Equal(t, "FORBIDDEN", payload["code"])

	status, _ := ts.do(t, http.MethodGet, "/api/v1/rooms/"+roomId, thirdToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.do(t, http.MethodGet, "/api/v1/rooms/"+roomId, guestToken, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestListRoomsREST(t *testing.T) {
	ts := newTestServer(t)
	hostToken := ts.login(t, "host", "Host")
	guestToken := ts.login(t, "guest", "Guest")

	publicId := ts.createRoom(t, hostToken, map[string]any{"movieId": "movie-1", "episodeId": "full", "title": "Dream night"})
	ts.createRoom(t, hostToken, map[string]any{"movieId": "movie-1", "episodeId": "full", "isPrivate": true, "password": "letmein"})

	status, _ := ts.do(t, http.MethodGet, "/api/v1/rooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, resp := ts.do(t, http.MethodGet, "/api/v1/rooms?movieId=movie-1&search=DREAM", guestToken, nil)
	require.Equal(t, http.StatusOK, status, resp)
	assert.Equal(t, float64(1), resp["total"])
	assert.Equal(t, float64(20), resp["limit"])
	rooms := resp["rooms"].([]any)
	require.Len(t, rooms, 1)
	listed := rooms[0].(map[string]any)
	assert.Equal(t, publicId, listed["roomId"])
	assert.Equal(t, float64(1), listed["userCount"])
	assert.Equal(t, "full", listed["episode"].(map[string]any)["slug"])

	status, _ = ts.do(t, http.MethodGet, "/api/v1/rooms?limit=500", guestToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp = ts.do(t, http.MethodGet, "/api/v1/rooms/my-rooms", hostToken, nil)
	require.Equal(t, http.StatusOK, status, resp)
	assert.Len(t, resp["rooms"], 2)

	status, resp = ts.do(t, http.MethodGet, "/api/v1/rooms/my-rooms?type=joined", guestToken, nil)
	require.Equal(t, http.StatusOK, status, resp)
	assert.Empty(t, resp["rooms"])

	status, _ = ts.do(t, http.MethodGet, "/api/v1/rooms/my-rooms?type=owned", guestToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err     error
		code    string
		status  int
		message string
	}{
		{fmt.Errorf("failed to join room: %w", room.ErrRoomFull), codeResourceExhausted, http.StatusConflict, "room is full"},
		{room.ErrWrongPassword, codeForbidden, http.StatusForbidden, "wrong room password"},
		{room.ErrRoomNotFound, codeNotFound, http.StatusNotFound, "room not found"},
		{auth.ErrTokenExpired, codeUnauthenticated, http.StatusUnauthorized, "authentication required"},
		{room.ErrRoomBusy, codeUnavailable, http.StatusServiceUnavailable, "room is busy, try again"},
		{fmt.Errorf("%w: %w", room.ErrTransient, errors.New("dial tcp: connection refused")), codeUnavailable, http.StatusServiceUnavailable, "temporarily unavailable, try again"},
		{fmt.Errorf("%w: %q", wsrouter.ErrUnknownMessageType, "rewind"), codeInvalidArgument, http.StatusBadRequest, `unknown message type: "rewind"`},
		{rest.ErrInvalidBody, codeInvalidArgument, http.StatusBadRequest, "invalid request body"},
		{validator.ValidationErrors{{Field: "roomId", Message: "roomId is required"}}, codeInvalidArgument, http.StatusBadRequest, "roomId is required"},
		{errors.New("boom"), codeInternal, http.StatusInternalServerError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			payload, status := mapError(tt.err)
			assert.Equal(t, tt.code, payload.Code)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, payload.Message)
		})
	}
}
