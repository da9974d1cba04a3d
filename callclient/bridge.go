/*
Package callclient implements the client-side session bridge for joining a
CallBridge call.

A Bridge owns one chat WebSocket connection and sequences the join
handshake: connect, announce the room, wait for the server's identity
frame, then exchange the resolved identity for media credentials. Chat
frames arriving on the socket are collected into an append-only log, with
the client's own relayed messages filtered out.
*/
package callclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// State is the bridge's position in the join handshake.
type State int

const (
	// StateIdle means Start has not been called.
	StateIdle State = iota

	// StateAwaitingIdentity means the socket is open and the bridge is
	// waiting for the server's identity frame.
	StateAwaitingIdentity

	// StateAwaitingToken means the identity arrived and the media token
	// request is in flight or has failed. A failed request leaves the
	// bridge in this state; callers decide whether to tear down and retry
	// with a fresh Bridge.
	StateAwaitingToken

	// StateReady means chat and media credentials are both available.
	StateReady

	// StateClosed means the bridge has shut down.
	StateClosed
)

// String returns the state's name for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingIdentity:
		return "awaiting-identity"
	case StateAwaitingToken:
		return "awaiting-token"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Attachment is a file reference carried in a chat message.
type Attachment struct {
	Key      string `json:"fileKey"`
	Name     string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"fileSize"`
}

// ChatMessage is one received chat entry.
type ChatMessage struct {
	ID          string
	Sender      string
	Text        string
	Attachments []Attachment
	Timestamp   int64
}

// MediaCredentials is what a media client needs to join the call.
type MediaCredentials struct {
	Token     string
	ServerURL string
}

// Config configures a Bridge.
type Config struct {
	// BaseURL is the server's HTTP address, e.g. "http://localhost:8080".
	BaseURL string

	// AccessToken is the bearer token from /auth/login. It authenticates
	// the ws-token exchange and the media token request.
	AccessToken string

	// WSToken optionally supplies a pre-fetched chat session token. When
	// empty, Start exchanges AccessToken for one.
	WSToken string

	// HTTPClient defaults to a client with a 10 second timeout.
	HTTPClient *http.Client

	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
}

// wireEvent mirrors the server's chat frame shape.
type wireEvent struct {
	Type        string       `json:"type"`
	RoomID      string       `json:"roomId,omitempty"`
	Sender      string       `json:"sender,omitempty"`
	Message     string       `json:"message,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	UserID      string       `json:"userId,omitempty"`
	ID          string       `json:"id,omitempty"`
	Timestamp   int64        `json:"timestamp,omitempty"`
	Code        int          `json:"code,omitempty"`
}

// envelope mirrors the server's REST response shape.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Bridge joins one room: chat over the relay socket, media via issued
// credentials. Create one per call; a closed Bridge cannot be restarted.
type Bridge struct {
	cfg        Config
	roomID     string
	httpClient *http.Client
	logger     zerolog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	state    State
	userID   string
	creds    MediaCredentials
	messages []ChatMessage

	ready     chan struct{}
	readyOnce sync.Once

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a Bridge for roomID. Call Start to connect.
func New(cfg Config, roomID string) (*Bridge, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("callclient: BaseURL is required")
	}
	if roomID == "" {
		return nil, fmt.Errorf("callclient: roomID is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Bridge{
		cfg:        cfg,
		roomID:     roomID,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "Bridge").Str("room_id", roomID).Logger(),
		state:      StateIdle,
		ready:      make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Start connects the chat socket, announces the room, and begins the
// handshake. It returns once the socket is up; readiness of the media
// credentials is signaled through Ready.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.state != StateIdle {
		b.mu.Unlock()
		return fmt.Errorf("callclient: bridge already started")
	}
	b.state = StateAwaitingIdentity
	b.mu.Unlock()

	wsToken := b.cfg.WSToken
	if wsToken == "" {
		token, err := b.fetchWSToken(ctx)
		if err != nil {
			b.shutdown(false)
			return err
		}
		wsToken = token
	}

	wsURL, err := b.socketURL(wsToken)
	if err != nil {
		b.shutdown(false)
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		b.shutdown(false)
		return fmt.Errorf("callclient: dial chat socket: %w", err)
	}
	b.conn = conn

	if err := b.writeFrame(map[string]string{
		"type":   "join-room",
		"roomId": b.roomID,
	}); err != nil {
		b.Close()
		return err
	}

	go b.readLoop(ctx)

	return nil
}

// socketURL derives the relay endpoint from BaseURL.
func (b *Bridge) socketURL(wsToken string) (string, error) {
	base, err := url.Parse(b.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("callclient: invalid BaseURL: %w", err)
	}

	switch base.Scheme {
	case "http":
		base.Scheme = "ws"
	case "https":
		base.Scheme = "wss"
	}

	base.Path = strings.TrimSuffix(base.Path, "/") + "/ws"
	base.RawQuery = url.Values{"token": {wsToken}}.Encode()

	return base.String(), nil
}

// State returns the bridge's current handshake state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bridge) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// Identity returns the participant id the server resolved for this
// connection, or "" before the identity frame arrives.
func (b *Bridge) Identity() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.userID
}

// MediaCredentials returns the issued call credentials once the bridge is
// ready.
func (b *Bridge) MediaCredentials() (MediaCredentials, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateReady {
		return MediaCredentials{}, false
	}
	return b.creds, true
}

// Ready is closed once media credentials are available.
func (b *Bridge) Ready() <-chan struct{} {
	return b.ready
}

// Done is closed when the bridge shuts down.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Messages returns a copy of the received chat log, oldest first.
func (b *Bridge) Messages() []ChatMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]ChatMessage, len(b.messages))
	copy(out, b.messages)
	return out
}

// Send relays a chat message to the other participants in the room.
func (b *Bridge) Send(text string) error {
	if text == "" {
		return fmt.Errorf("callclient: empty message")
	}

	return b.writeFrame(map[string]string{
		"type":    "chat",
		"roomId":  b.roomID,
		"message": text,
	})
}

// writeFrame marshals and writes one frame; writes are serialized.
func (b *Bridge) writeFrame(frame any) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("callclient: marshal frame: %w", err)
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if b.conn == nil {
		return fmt.Errorf("callclient: not connected")
	}

	if err := b.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}

	return b.conn.WriteMessage(websocket.TextMessage, payload)
}

// readLoop consumes server frames until the socket dies.
func (b *Bridge) readLoop(ctx context.Context) {
	defer b.shutdown(false)

	for {
		_, payload, err := b.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Warn().Err(err).Msg("Chat socket closed unexpectedly.")
			}
			return
		}

		var ev wireEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			b.logger.Warn().Err(err).Msg("Dropping unparseable server frame.")
			continue
		}

		b.handleEvent(ctx, ev)
	}
}

// handleEvent dispatches one server frame.
func (b *Bridge) handleEvent(ctx context.Context, ev wireEvent) {
	switch ev.Type {
	case "identity":
		b.handleIdentity(ctx, ev.UserID)

	case "chat", "attachment":
		b.appendMessage(ev)

	case "error":
		b.logger.Warn().Int("code", ev.Code).Str("message", ev.Message).Msg("Server rejected a frame.")

	default:
		b.logger.Debug().Str("type", ev.Type).Msg("Ignoring unknown frame type.")
	}
}

// handleIdentity records the resolved identity and trades it for media
// credentials. A failed exchange is terminal for this bridge: chat keeps
// working but the call never becomes ready.
func (b *Bridge) handleIdentity(ctx context.Context, userID string) {
	b.mu.Lock()
	if b.userID != "" {
		// Identity is assigned once per connection.
		b.mu.Unlock()
		return
	}
	b.userID = userID
	b.state = StateAwaitingToken
	b.mu.Unlock()

	creds, err := b.fetchMediaCredentials(ctx, userID)
	if err != nil {
		b.logger.Error().Err(err).Msg("Media credential request failed.")
		return
	}

	b.mu.Lock()
	b.creds = creds
	b.state = StateReady
	b.mu.Unlock()

	b.readyOnce.Do(func() { close(b.ready) })
}

// appendMessage adds a relayed message to the log, skipping the client's
// own messages echoed back by overlapping room memberships elsewhere.
func (b *Bridge) appendMessage(ev wireEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ev.Sender == b.userID {
		return
	}

	b.messages = append(b.messages, ChatMessage{
		ID:          ev.ID,
		Sender:      ev.Sender,
		Text:        ev.Message,
		Attachments: ev.Attachments,
		Timestamp:   ev.Timestamp,
	})
}

// Close leaves the room and tears the socket down. Safe to call more than
// once.
func (b *Bridge) Close() {
	b.shutdown(true)
}

// shutdown performs the one-time teardown. sendLeave is false when the
// socket is already gone.
func (b *Bridge) shutdown(sendLeave bool) {
	b.doneOnce.Do(func() {
		if sendLeave && b.conn != nil {
			if err := b.writeFrame(map[string]string{
				"type":   "leave-room",
				"roomId": b.roomID,
			}); err != nil {
				b.logger.Debug().Err(err).Msg("Leave frame not delivered.")
			}
		}

		if b.conn != nil {
			_ = b.conn.Close()
		}

		b.setState(StateClosed)
		close(b.done)
	})
}

// fetchWSToken exchanges the bearer token for a chat session token.
func (b *Bridge) fetchWSToken(ctx context.Context) (string, error) {
	var data struct {
		Token string `json:"token"`
	}

	if err := b.getJSON(ctx, "/auth/ws-token", nil, &data); err != nil {
		return "", fmt.Errorf("callclient: ws-token exchange: %w", err)
	}

	if data.Token == "" {
		return "", fmt.Errorf("callclient: ws-token exchange returned no token")
	}

	return data.Token, nil
}

// fetchMediaCredentials requests a media access token for this room and
// identity.
func (b *Bridge) fetchMediaCredentials(ctx context.Context, participantName string) (MediaCredentials, error) {
	var data struct {
		Token     string `json:"token"`
		ServerURL string `json:"serverUrl"`
	}

	query := url.Values{
		"roomId":          {b.roomID},
		"participantName": {participantName},
	}

	if err := b.getJSON(ctx, "/livekit/token", query, &data); err != nil {
		return MediaCredentials{}, err
	}

	if data.Token == "" {
		return MediaCredentials{}, fmt.Errorf("callclient: media token response missing token")
	}

	return MediaCredentials{Token: data.Token, ServerURL: data.ServerURL}, nil
}

// getJSON performs an authenticated GET and decodes the envelope's data.
func (b *Bridge) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	reqURL := strings.TrimSuffix(b.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+b.cfg.AccessToken)

	res, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("callclient: decode response (HTTP %d): %w", res.StatusCode, err)
	}

	if res.StatusCode != http.StatusOK || env.Code != 0 {
		return fmt.Errorf("callclient: request failed (HTTP %d, code %d): %s", res.StatusCode, env.Code, env.Message)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("callclient: decode response data: %w", err)
		}
	}

	return nil
}
