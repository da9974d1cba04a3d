package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"callbridge/internal/pkg/errs"
	"callbridge/internal/pkg/logx"
)

const (
	// writeWait is the timeout for writes to the WebSocket connection.
	writeWait = 10 * time.Second

	// pongWait is the maximum wait for a Pong before the read side gives up.
	pongWait = 60 * time.Second

	// pingPeriod is how often the server pings; must be under pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps a single inbound frame in bytes.
	maxMessageSize = 8192

	// MaxContentBytes caps chat message text.
	MaxContentBytes = 5000

	// sendQueueSize is the per-connection outbound buffer.
	sendQueueSize = 256
)

// Client is one active WebSocket connection and the participant behind it.
type Client struct {
	hub *Hub

	conn *websocket.Conn

	participant Participant

	// send queues marshaled frames awaiting the write pump.
	send chan []byte

	// rooms tracks which room ids this connection has joined.
	rooms   map[string]struct{}
	roomsMu sync.Mutex

	closeOnce sync.Once

	logger zerolog.Logger
}

// NewClient constructs a Client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, participant Participant) *Client {
	clientLogger := logx.Logger().With().
		Str("client_id", participant.ID).
		Logger()

	return &Client{
		hub:         hub,
		conn:        conn,
		participant: participant,
		send:        make(chan []byte, sendQueueSize),
		rooms:       make(map[string]struct{}),
		logger:      clientLogger,
	}
}

// trackJoin records membership on the connection side.
func (c *Client) trackJoin(roomID string) {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	c.rooms[roomID] = struct{}{}
}

// trackLeave forgets membership on the connection side.
func (c *Client) trackLeave(roomID string) {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	delete(c.rooms, roomID)
}

// inRoom reports whether this connection has joined roomID.
func (c *Client) inRoom(roomID string) bool {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	_, ok := c.rooms[roomID]
	return ok
}

// joinedRooms snapshots the joined room ids.
func (c *Client) joinedRooms() []string {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()

	ids := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	return ids
}

// queue enqueues a marshaled frame, reporting false when the buffer is full.
func (c *Client) queue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// SendEvent marshals and queues an event for this connection only.
func (c *Client) SendEvent(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to marshal event for client.")
		return err
	}

	if !c.queue(payload) {
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send queue full, dropping event.")
		return fmt.Errorf("client send queue full")
	}
	return nil
}

// sendError reports a rejected frame back to the sender.
func (c *Client) sendError(customErr *errs.CustomError) {
	_ = c.SendEvent(Event{
		Type:    EventError,
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}

// ReadPump consumes inbound frames until the connection dies, then leaves
// every joined room and closes the socket.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (client close/going away)")
			}
			break
		}

		c.processInboundFrame(messageBytes)
	}
}

// cleanupOnDisconnect detaches the connection from the hub and closes it.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.hub.LeaveAll(c)

	c.closeOnce.Do(func() { close(c.send) })

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// processInboundFrame parses and dispatches one frame from the client.
func (c *Client) processInboundFrame(messageBytes []byte) {
	var frame InboundFrame

	if err := json.Unmarshal(messageBytes, &frame); err != nil {
		c.logger.Warn().Err(err).
			Bytes("message_bytes", messageBytes).
			Msg("Client sent invalid JSON")
		return
	}

	if frame.RoomID == "" {
		c.sendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	switch frame.Type {
	case EventJoinRoom:
		c.hub.Join(c, frame.RoomID)

	case EventLeaveRoom:
		c.hub.Leave(c, frame.RoomID)

	case EventChat:
		c.handleChat(frame)

	case EventAttachment:
		c.handleAttachment(frame)

	default:
		c.logger.Warn().Str("frame_type", string(frame.Type)).Msg("Client sent unsupported frame type")
	}
}

// handleChat validates and relays a text message.
func (c *Client) handleChat(frame InboundFrame) {
	if !c.inRoom(frame.RoomID) {
		c.sendError(errs.NewError(errs.ErrRoomNotFound))
		return
	}

	if frame.Message == "" {
		c.sendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	if len(frame.Message) > MaxContentBytes {
		c.sendError(errs.NewError(errs.ErrMessageContentTooLong))
		return
	}

	c.hub.Relay(frame.RoomID, NewChatEvent(frame.RoomID, c.participant.ID, frame.Message))
}

// handleAttachment validates and relays an attachment message.
func (c *Client) handleAttachment(frame InboundFrame) {
	if !c.inRoom(frame.RoomID) {
		c.sendError(errs.NewError(errs.ErrRoomNotFound))
		return
	}

	if count := len(frame.Attachments); count == 0 || count > MaxAttachmentsCount {
		c.sendError(errs.NewError(errs.ErrAttachmentCountInvalid, MaxAttachmentsCount))
		return
	}

	expectedKeyPrefix := fmt.Sprintf("%s/", frame.RoomID)

	for i := range frame.Attachments {
		a := &frame.Attachments[i]

		if !strings.HasPrefix(a.Key, expectedKeyPrefix) {
			c.sendError(errs.NewError(errs.ErrAttachmentKeyInvalid))
			return
		}

		if err := ValidateFileType(a.Name, a.MimeType); err != nil {
			c.sendError(err)
			return
		}
	}

	c.hub.Relay(frame.RoomID, NewAttachmentEvent(frame.RoomID, c.participant.ID, frame.Attachments))
}

// WritePump drains the send queue onto the socket and keeps the heartbeat.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage writes one queued frame; false terminates the pump.
func (c *Client) writeQueuedMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends the heartbeat ping; false terminates the pump.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
