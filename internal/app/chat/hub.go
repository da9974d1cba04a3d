package chat

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"callbridge/internal/pkg/logx"
)

// roomCleanupMsg asks the Hub to drop an empty relay room.
type roomCleanupMsg struct {
	RoomID string
}

// Hub coordinates all active relay rooms. Rooms are created on first join
// and removed once they have sat empty past the inactivity timeout.
type Hub struct {
	// rooms maps room id to its relay group.
	rooms map[string]*Room

	// mu protects concurrent access to the rooms map.
	mu sync.RWMutex

	// cleanup receives notifications from rooms whose run loop has ended.
	cleanup chan roomCleanupMsg

	// wg waits for the cleanup goroutine during shutdown.
	wg sync.WaitGroup

	logger zerolog.Logger
}

// NewHub constructs a Hub and starts its cleanup loop.
func NewHub() *Hub {
	hubLogger := logx.Logger().With().Str("component", "Hub").Logger()

	h := &Hub{
		rooms:   make(map[string]*Room),
		cleanup: make(chan roomCleanupMsg, 16),
		logger:  hubLogger,
	}

	h.wg.Add(1)

	go h.runCleanupLoop()

	return h
}

// runCleanupLoop removes rooms whose run loop has finished.
func (h *Hub) runCleanupLoop() {
	defer h.wg.Done()

	h.logger.Info().Msg("Cleanup loop started.")

	for msg := range h.cleanup {
		h.deleteRoom(msg.RoomID)
	}

	h.logger.Info().Msg("Cleanup loop stopped.")
}

// deleteRoom removes the room from the map if it is still registered.
func (h *Hub) deleteRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; ok {
		delete(h.rooms, roomID)
		h.logger.Info().Str("room_id", roomID).Msg("Relay room removed.")
	}
}

// getOrCreateRoom returns the relay room for roomID, starting a new one if
// none is active.
func (h *Hub) getOrCreateRoom(roomID string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[roomID]; ok {
		return room
	}

	room := newRoom(roomID, h.cleanup)
	h.rooms[roomID] = room

	go room.run()

	h.logger.Info().Str("room_id", roomID).Msg("Relay room started.")
	return room
}

// getRoom returns the active relay room for roomID, or nil.
func (h *Hub) getRoom(roomID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.rooms[roomID]
}

// Join adds the client to roomID's relay group, creating it if needed.
func (h *Hub) Join(c *Client, roomID string) {
	room := h.getOrCreateRoom(roomID)
	room.addMember(c)
	c.trackJoin(roomID)
}

// Leave removes the client from roomID's relay group.
func (h *Hub) Leave(c *Client, roomID string) {
	c.trackLeave(roomID)

	if room := h.getRoom(roomID); room != nil {
		room.removeMember(c)
	}
}

// LeaveAll removes the client from every room it joined. Called when the
// connection goes away without explicit leave-room frames.
func (h *Hub) LeaveAll(c *Client) {
	for _, roomID := range c.joinedRooms() {
		h.Leave(c, roomID)
	}
}

// Relay fans the event out to the room's members, excluding the sender.
func (h *Hub) Relay(roomID string, ev Event) {
	room := h.getRoom(roomID)
	if room == nil {
		h.logger.Warn().Str("room_id", roomID).Msg("Relay requested for inactive room.")
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("room_id", roomID).Msg("Failed to marshal relay event.")
		return
	}

	room.relay(ev.Sender, payload)
}

// MemberCount reports how many connections are in the room's relay group.
func (h *Hub) MemberCount(roomID string) int {
	room := h.getRoom(roomID)
	if room == nil {
		return 0
	}
	return room.memberCount()
}

// CloseRoom stops the relay room immediately, e.g. when the persisted room
// is deleted while a call is live.
func (h *Hub) CloseRoom(roomID string) {
	if room := h.getRoom(roomID); room != nil {
		room.stop()
	}
}

// Shutdown stops every room and waits for the cleanup loop to drain.
func (h *Hub) Shutdown() {
	h.logger.Info().Msg("Shutting down Hub...")

	h.mu.Lock()

	for _, room := range h.rooms {
		room.stop()
	}
	h.rooms = make(map[string]*Room)

	h.mu.Unlock()

	close(h.cleanup)
	h.wg.Wait()

	h.logger.Info().Msg("Hub shutdown complete.")
}
