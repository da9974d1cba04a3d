package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"callbridge/internal/app/chat"
	"callbridge/internal/app/rtc"
	"callbridge/internal/app/store"
	"callbridge/internal/configs"
	"callbridge/internal/pkg/errs"
)

const (
	testJWTSecret     = "test-secret"
	testLiveKitKey    = "devkey"
	testLiveKitSecret = "supersecretsupersecretsupersecret"
	testLiveKitHost   = "ws://localhost:7880"
)

// envelope mirrors the response shape for assertions.
type envelope struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

// newTestServer wires a full router against the in-memory store, without
// the optional media admin and file storage backends.
func newTestServer(t *testing.T) (*httptest.Server, *AppDeps) {
	t.Helper()

	cfg := &configs.AppConfig{
		Environment:      "development",
		Port:             8080,
		AllowedOrigins:   []string{},
		JWTSecret:        testJWTSecret,
		LiveKitHost:      testLiveKitHost,
		LiveKitAPIKey:    testLiveKitKey,
		LiveKitAPISecret: testLiveKitSecret,
	}

	roomStore := store.NewMemoryStore()

	issuer, err := rtc.NewIssuer(rtc.Config{
		Host:      cfg.LiveKitHost,
		APIKey:    cfg.LiveKitAPIKey,
		APISecret: cfg.LiveKitAPISecret,
	}, roomStore)
	require.NoError(t, err)

	hub := chat.NewHub()
	t.Cleanup(hub.Shutdown)

	deps := &AppDeps{
		Hub:    hub,
		Config: cfg,
		Store:  roomStore,
		Issuer: issuer,
	}

	ts := httptest.NewServer(Router(deps))
	t.Cleanup(ts.Close)

	return ts, deps
}

// doJSON performs a request with an optional bearer token and JSON body.
func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(payload)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequest(method, ts.URL+path, reqBody)
	require.NoError(t, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))

	return res.StatusCode, env
}

// registerAndLogin creates an account and returns its bearer token and id.
func registerAndLogin(t *testing.T, ts *httptest.Server, username string) (token, userID string) {
	t.Helper()

	creds := map[string]string{"username": username, "password": "hunter22"}

	status, _ := doJSON(t, ts, http.MethodPost, "/auth/register", "", creds)
	require.Equal(t, http.StatusOK, status)

	status, env := doJSON(t, ts, http.MethodPost, "/auth/login", "", creds)
	require.Equal(t, http.StatusOK, status)

	token, _ = env.Data["token"].(string)
	userID, _ = env.Data["userId"].(string)
	require.NotEmpty(t, token)
	require.NotEmpty(t, userID)

	return token, userID
}

// createRoom creates a room and returns its id.
func createRoom(t *testing.T, ts *httptest.Server, token, slug string) string {
	t.Helper()

	status, env := doJSON(t, ts, http.MethodPost, "/create-room", token, map[string]string{"slug": slug})
	require.Equal(t, http.StatusOK, status)

	id, _ := env.Data["id"].(string)
	require.NotEmpty(t, id)

	return id
}

func TestRegisterAndLogin(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t)

	creds := map[string]string{"username": "alice_01", "password": "hunter22"}

	status, env := doJSON(t, ts, http.MethodPost, "/auth/register", "", creds)
	req.Equal(http.StatusOK, status)
	req.Equal("alice_01", env.Data["username"])

	nickname, _ := env.Data["nickname"].(string)
	req.True(strings.HasPrefix(nickname, "User_"))

	// Taken username.
	status, env = doJSON(t, ts, http.MethodPost, "/auth/register", "", creds)
	req.Equal(http.StatusConflict, status)
	req.Equal(errs.ErrUserAlreadyExists, env.Code)

	// Malformed username and too-short password.
	status, env = doJSON(t, ts, http.MethodPost, "/auth/register", "", map[string]string{"username": "Al", "password": "hunter22"})
	req.Equal(http.StatusBadRequest, status)
	req.Equal(errs.ErrInvalidUsername, env.Code)

	status, env = doJSON(t, ts, http.MethodPost, "/auth/register", "", map[string]string{"username": "bob_2024", "password": "short"})
	req.Equal(http.StatusBadRequest, status)
	req.Equal(errs.ErrInvalidPassword, env.Code)

	// Wrong password and unknown user both yield the same rejection.
	status, env = doJSON(t, ts, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice_01", "password": "wrong-pass"})
	req.Equal(http.StatusUnauthorized, status)
	req.Equal(errs.ErrInvalidCredentials, env.Code)

	status, env = doJSON(t, ts, http.MethodPost, "/auth/login", "", map[string]string{"username": "nobody99", "password": "hunter22"})
	req.Equal(http.StatusUnauthorized, status)
	req.Equal(errs.ErrInvalidCredentials, env.Code)

	status, env = doJSON(t, ts, http.MethodPost, "/auth/login", "", creds)
	req.Equal(http.StatusOK, status)
	req.NotEmpty(env.Data["token"])
}

func TestRoomLifecycle(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t)

	token, _ := registerAndLogin(t, ts, "alice_01")

	roomID := createRoom(t, ts, token, "standup")

	// Slug resolves to the id used for the relay and media tokens.
	status, env := doJSON(t, ts, http.MethodGet, "/room/standup", token, nil)
	req.Equal(http.StatusOK, status)
	req.Equal(roomID, env.Data["id"])

	// Unknown slug.
	status, env = doJSON(t, ts, http.MethodGet, "/room/retro", token, nil)
	req.Equal(http.StatusNotFound, status)
	req.Equal(errs.ErrRoomNotFound, env.Code)
	req.Empty(env.Data)

	// Taken slug.
	status, env = doJSON(t, ts, http.MethodPost, "/create-room", token, map[string]string{"slug": "standup"})
	req.Equal(http.StatusConflict, status)
	req.Equal(errs.ErrRoomSlugExists, env.Code)
}

func TestCreateRoomValidation(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t)

	token, _ := registerAndLogin(t, ts, "alice_01")

	status, env := doJSON(t, ts, http.MethodPost, "/create-room", token, map[string]string{"slug": "Not A Slug"})
	req.Equal(http.StatusBadRequest, status)
	req.Equal(errs.ErrRoomSlugInvalid, env.Code)

	// No bearer token.
	status, env = doJSON(t, ts, http.MethodPost, "/create-room", "", map[string]string{"slug": "standup"})
	req.Equal(http.StatusUnauthorized, status)
	req.Equal(errs.ErrUnauthorized, env.Code)
}

func TestCreateRoomRateLimited(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t)

	token, _ := registerAndLogin(t, ts, "alice_01")

	var lastStatus int
	var lastEnv envelope
	for i := range CreateBurst + 1 {
		lastStatus, lastEnv = doJSON(t, ts, http.MethodPost, "/create-room", token,
			map[string]string{"slug": fmt.Sprintf("room-%d", i)})
	}

	req.Equal(http.StatusTooManyRequests, lastStatus)
	req.Equal(errs.ErrRateLimitExceeded, lastEnv.Code)
}

func TestDeleteRoom(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t)

	ownerToken, _ := registerAndLogin(t, ts, "alice_01")
	otherToken, _ := registerAndLogin(t, ts, "bob_2024")

	createRoom(t, ts, ownerToken, "standup")

	// Only the creator may delete.
	status, env := doJSON(t, ts, http.MethodDelete, "/room/standup", otherToken, nil)
	req.Equal(http.StatusUnauthorized, status)
	req.Equal(errs.ErrUnauthorized, env.Code)

	status, _ = doJSON(t, ts, http.MethodDelete, "/room/standup", ownerToken, nil)
	req.Equal(http.StatusOK, status)

	status, env = doJSON(t, ts, http.MethodGet, "/room/standup", ownerToken, nil)
	req.Equal(http.StatusNotFound, status)
	req.Equal(errs.ErrRoomNotFound, env.Code)

	status, env = doJSON(t, ts, http.MethodDelete, "/room/standup", ownerToken, nil)
	req.Equal(http.StatusNotFound, status)
}

func TestLiveKitTokenIssuance(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t)

	token, _ := registerAndLogin(t, ts, "alice_01")
	roomID := createRoom(t, ts, token, "standup")

	path := "/livekit/token?roomId=" + url.QueryEscape(roomID) + "&participantName=alice"
	status, env := doJSON(t, ts, http.MethodGet, path, token, nil)
	req.Equal(http.StatusOK, status)
	req.Equal(testLiveKitHost, env.Data["serverUrl"])

	mediaToken, _ := env.Data["token"].(string)
	req.NotEmpty(mediaToken)

	// The minted token is scoped to this participant and this room.
	claims := gojwt.MapClaims{}
	parsed, err := gojwt.ParseWithClaims(mediaToken, claims, func(tok *gojwt.Token) (interface{}, error) {
		return []byte(testLiveKitSecret), nil
	})
	req.NoError(err)
	req.True(parsed.Valid)
	req.Equal("alice", claims["sub"])

	video, ok := claims["video"].(map[string]any)
	req.True(ok)
	req.Equal(roomID, video["room"])
	req.Equal(true, video["roomJoin"])
}

func TestLiveKitTokenErrors(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t)

	token, _ := registerAndLogin(t, ts, "alice_01")
	roomID := createRoom(t, ts, token, "standup")

	// Missing participant name.
	status, env := doJSON(t, ts, http.MethodGet, "/livekit/token?roomId="+roomID, token, nil)
	req.Equal(http.StatusBadRequest, status)
	req.Equal(errs.ErrInvalidParams, env.Code)

	// Missing room id.
	status, env = doJSON(t, ts, http.MethodGet, "/livekit/token?participantName=alice", token, nil)
	req.Equal(http.StatusBadRequest, status)
	req.Equal(errs.ErrInvalidParams, env.Code)

	// Room that was never created; no token leaks in the response.
	path := "/livekit/token?roomId=" + uuid.New().String() + "&participantName=alice"
	status, env = doJSON(t, ts, http.MethodGet, path, token, nil)
	req.Equal(http.StatusNotFound, status)
	req.Equal(errs.ErrRoomNotFound, env.Code)
	req.Empty(env.Data)

	// No bearer token at all.
	status, env = doJSON(t, ts, http.MethodGet, path, "", nil)
	req.Equal(http.StatusUnauthorized, status)
	req.Equal(errs.ErrUnauthorized, env.Code)
}

// fetchWSToken exchanges the bearer token for a chat session token.
func fetchWSToken(t *testing.T, ts *httptest.Server, token string) string {
	t.Helper()

	status, env := doJSON(t, ts, http.MethodGet, "/auth/ws-token", token, nil)
	require.Equal(t, http.StatusOK, status)

	wsToken, _ := env.Data["token"].(string)
	require.NotEmpty(t, wsToken)

	return wsToken
}

// dialWS connects a chat client and consumes the identity frame.
func dialWS(t *testing.T, ts *httptest.Server, wsToken string) (*websocket.Conn, chat.Event) {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + url.QueryEscape(wsToken)

	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if res != nil {
		res.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	identity := readEvent(t, conn)
	require.Equal(t, chat.EventIdentity, identity.Type)
	require.NotEmpty(t, identity.UserID)

	return conn, identity
}

// readEvent reads the next frame with a deadline.
func readEvent(t *testing.T, conn *websocket.Conn) chat.Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var ev chat.Event
	require.NoError(t, conn.ReadJSON(&ev))

	return ev
}

func TestWebSocketRejectsBadTokens(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t)

	accessToken, _ := registerAndLogin(t, ts, "alice_01")

	base := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	// No token.
	_, res, err := websocket.DefaultDialer.Dial(base, nil)
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusUnauthorized, res.StatusCode)
	res.Body.Close()

	// An access-purpose token is not a chat session token.
	_, res, err = websocket.DefaultDialer.Dial(base+"?token="+url.QueryEscape(accessToken), nil)
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusUnauthorized, res.StatusCode)
	res.Body.Close()

	// Garbage token.
	_, res, err = websocket.DefaultDialer.Dial(base+"?token=garbage", nil)
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusUnauthorized, res.StatusCode)
	res.Body.Close()
}

func TestChatRelayBetweenConnections(t *testing.T) {
	req := require.New(t)
	ts, deps := newTestServer(t)

	aliceToken, aliceID := registerAndLogin(t, ts, "alice_01")
	bobToken, bobID := registerAndLogin(t, ts, "bob_2024")

	roomID := createRoom(t, ts, aliceToken, "standup")

	aliceConn, aliceIdentity := dialWS(t, ts, fetchWSToken(t, ts, aliceToken))
	bobConn, bobIdentity := dialWS(t, ts, fetchWSToken(t, ts, bobToken))
	req.Equal(aliceID, aliceIdentity.UserID)
	req.Equal(bobID, bobIdentity.UserID)

	join := map[string]string{"type": "join-room", "roomId": roomID}
	req.NoError(aliceConn.WriteJSON(join))
	req.NoError(bobConn.WriteJSON(join))

	require.Eventually(t, func() bool {
		return deps.Hub.MemberCount(roomID) == 2
	}, 2*time.Second, 10*time.Millisecond)

	req.NoError(aliceConn.WriteJSON(map[string]string{
		"type":    "chat",
		"roomId":  roomID,
		"message": "hello bob",
	}))

	ev := readEvent(t, bobConn)
	req.Equal(chat.EventChat, ev.Type)
	req.Equal(roomID, ev.RoomID)
	req.Equal(aliceID, ev.Sender)
	req.Equal("hello bob", ev.Message)
	req.NotEmpty(ev.ID)
	req.NotZero(ev.Timestamp)

	// The reply proves bob never received an echo of his own send, and
	// alice never received hers: the next frame each side sees is the
	// other's message.
	req.NoError(bobConn.WriteJSON(map[string]string{
		"type":    "chat",
		"roomId":  roomID,
		"message": "hi alice",
	}))

	ev = readEvent(t, aliceConn)
	req.Equal(bobID, ev.Sender)
	req.Equal("hi alice", ev.Message)
}

func TestChatFrameValidation(t *testing.T) {
	req := require.New(t)
	ts, deps := newTestServer(t)

	token, _ := registerAndLogin(t, ts, "alice_01")
	roomID := createRoom(t, ts, token, "standup")

	conn, _ := dialWS(t, ts, fetchWSToken(t, ts, token))

	// Chat into a room this connection never joined.
	req.NoError(conn.WriteJSON(map[string]string{
		"type":    "chat",
		"roomId":  roomID,
		"message": "hello?",
	}))
	ev := readEvent(t, conn)
	req.Equal(chat.EventError, ev.Type)
	req.Equal(errs.ErrRoomNotFound, ev.Code)

	// Frame without a room id.
	req.NoError(conn.WriteJSON(map[string]string{"type": "chat", "message": "hello?"}))
	ev = readEvent(t, conn)
	req.Equal(chat.EventError, ev.Type)
	req.Equal(errs.ErrInvalidParams, ev.Code)

	// Over-length message after joining.
	req.NoError(conn.WriteJSON(map[string]string{"type": "join-room", "roomId": roomID}))
	require.Eventually(t, func() bool {
		return deps.Hub.MemberCount(roomID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	req.NoError(conn.WriteJSON(map[string]string{
		"type":    "chat",
		"roomId":  roomID,
		"message": strings.Repeat("a", chat.MaxContentBytes+1),
	}))
	ev = readEvent(t, conn)
	req.Equal(chat.EventError, ev.Type)
	req.Equal(errs.ErrMessageContentTooLong, ev.Code)
}

func TestHealthEndpoint(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t)

	status, env := doJSON(t, ts, http.MethodGet, "/health", "", nil)
	req.Equal(http.StatusOK, status)
	req.Equal(0, env.Code)
	req.Equal("ok", env.Data["status"])
}
