/*
Package chat implements the real-time chat relay.

One WebSocket connection per authenticated participant carries traffic for
every room the participant has joined. The relay holds no message history:
frames are fanned out to the room's current members and forgotten.
*/
package chat

import (
	"time"

	"callbridge/internal/pkg/randx"
)

// EventType identifies a frame on the chat wire protocol.
type EventType string

const (
	// EventIdentity is the first server frame after upgrade, carrying the
	// participant identity resolved from the session token.
	EventIdentity EventType = "identity"

	// EventJoinRoom announces room membership (client to server).
	EventJoinRoom EventType = "join-room"

	// EventLeaveRoom announces room departure (client to server).
	EventLeaveRoom EventType = "leave-room"

	// EventChat is a text message, inbound and relayed.
	EventChat EventType = "chat"

	// EventAttachment is an image attachment message, inbound and relayed.
	EventAttachment EventType = "attachment"

	// EventError reports a rejected frame back to its sender.
	EventError EventType = "error"
)

// Participant is the identity a connection acts as.
type Participant struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname,omitempty"`
}

// InboundFrame is the JSON shape clients send.
type InboundFrame struct {
	Type        EventType    `json:"type"`
	RoomID      string       `json:"roomId,omitempty"`
	Message     string       `json:"message,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Event is the JSON shape the server sends.
type Event struct {
	Type        EventType    `json:"type"`
	RoomID      string       `json:"roomId,omitempty"`
	Sender      string       `json:"sender,omitempty"`
	Message     string       `json:"message,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	UserID      string       `json:"userId,omitempty"`
	ID          string       `json:"id,omitempty"`
	Timestamp   int64        `json:"timestamp,omitempty"`
	Code        int          `json:"code,omitempty"`
}

// NewChatEvent builds the relayed form of a text message.
func NewChatEvent(roomID, senderID, message string) Event {
	return Event{
		Type:      EventChat,
		RoomID:    roomID,
		Sender:    senderID,
		Message:   message,
		ID:        randx.MessageID(),
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewAttachmentEvent builds the relayed form of an attachment message.
func NewAttachmentEvent(roomID, senderID string, attachments []Attachment) Event {
	return Event{
		Type:        EventAttachment,
		RoomID:      roomID,
		Sender:      senderID,
		Attachments: attachments,
		ID:          randx.MessageID(),
		Timestamp:   time.Now().UnixMilli(),
	}
}
