package chat

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"callbridge/internal/pkg/logx"
)

const (
	broadcastChannelBuffer  = 1024
	membershipChannelBuffer = 16

	// roomInactivityTimeout is how long an empty relay room lingers before
	// its run loop exits.
	roomInactivityTimeout = 5 * time.Minute
)

// outboundMsg is a marshaled event plus the sender to exclude from fanout.
type outboundMsg struct {
	senderID string
	payload  []byte
}

// Room is the relay group for one room id. It owns no persistence: the
// persisted room record lives in the store, this is only the set of live
// chat connections.
type Room struct {
	ID string

	// members holds the connections currently joined to the room.
	members map[*Client]struct{}

	// broadcast queues events awaiting fanout.
	broadcast chan outboundMsg

	// register and unregister queue membership changes.
	register   chan *Client
	unregister chan *Client

	// cleanupChan notifies the Hub when the run loop ends.
	cleanupChan chan<- roomCleanupMsg

	// stopChan terminates the run loop immediately.
	stopChan chan struct{}

	// idleTimer tracks how long the room has been empty.
	idleTimer *time.Timer

	mu sync.RWMutex

	logger zerolog.Logger
}

// newRoom creates a relay room. The caller starts run in a goroutine.
func newRoom(roomID string, cleanupChan chan<- roomCleanupMsg) *Room {
	roomLogger := logx.Logger().With().
		Str("room_id", roomID).
		Logger()

	return &Room{
		ID:          roomID,
		members:     make(map[*Client]struct{}),
		broadcast:   make(chan outboundMsg, broadcastChannelBuffer),
		register:    make(chan *Client, membershipChannelBuffer),
		unregister:  make(chan *Client, membershipChannelBuffer),
		cleanupChan: cleanupChan,
		stopChan:    make(chan struct{}),
		idleTimer:   time.NewTimer(roomInactivityTimeout),
		logger:      roomLogger,
	}
}

// stop terminates the run loop without waiting for the idle timeout.
func (r *Room) stop() {
	select {
	case <-r.stopChan:
	default:
		close(r.stopChan)
	}
}

// addMember queues the client for registration.
func (r *Room) addMember(c *Client) {
	select {
	case r.register <- c:
	default:
		r.logger.Warn().Msg("Room register channel blocked, join dropped.")
	}
}

// removeMember queues the client for deregistration.
func (r *Room) removeMember(c *Client) {
	select {
	case r.unregister <- c:
	default:
		r.logger.Warn().Msg("Room unregister channel blocked, leave dropped.")
	}
}

// relay queues a marshaled event for fanout.
func (r *Room) relay(senderID string, payload []byte) {
	select {
	case r.broadcast <- outboundMsg{senderID: senderID, payload: payload}:
	default:
		r.logger.Warn().Msg("Broadcast channel full, event dropped.")
	}
}

// memberCount reports the current relay group size.
func (r *Room) memberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.members)
}

// run is the room's event loop: membership changes, fanout, and shutdown
// once the room has been empty past the inactivity timeout.
func (r *Room) run() {
	defer func() {
		r.idleTimer.Stop()

		// The Hub may already be shutting down and have closed the cleanup
		// channel; a blocked or closed channel must not wedge the room exit.
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Warn().Msg("Cleanup channel closed during room exit.")
				}
			}()

			select {
			case r.cleanupChan <- roomCleanupMsg{RoomID: r.ID}:
			default:
				r.logger.Warn().Msg("Cleanup channel blocked, skipping notification.")
			}
		}()

		r.logger.Info().Msg("Relay room run loop finished.")
	}()

	for {
		select {
		case c := <-r.register:
			r.mu.Lock()
			r.members[c] = struct{}{}
			total := len(r.members)
			r.mu.Unlock()

			if r.idleTimer.Stop() {
				select {
				case <-r.idleTimer.C:
				default:
				}
			}

			r.logger.Info().
				Str("client_id", c.participant.ID).
				Int("total_members", total).
				Msg("Client joined relay room.")

		case c := <-r.unregister:
			r.mu.Lock()
			if _, ok := r.members[c]; ok {
				delete(r.members, c)
			}
			total := len(r.members)
			r.mu.Unlock()

			r.logger.Info().
				Str("client_id", c.participant.ID).
				Int("total_members", total).
				Msg("Client left relay room.")

			if total == 0 {
				if r.idleTimer.Stop() {
					select {
					case <-r.idleTimer.C:
					default:
					}
				}
				r.idleTimer.Reset(roomInactivityTimeout)
			}

		case msg := <-r.broadcast:
			r.mu.RLock()
			for member := range r.members {
				if member.participant.ID == msg.senderID {
					continue
				}

				if !member.queue(msg.payload) {
					r.logger.Warn().
						Str("client_id", member.participant.ID).
						Msg("Member send queue full, scheduling removal.")

					r.removeMember(member)
				}
			}
			r.mu.RUnlock()

		case <-r.idleTimer.C:
			r.mu.RLock()
			empty := len(r.members) == 0
			r.mu.RUnlock()

			if empty {
				r.logger.Info().Msgf("Relay room idle for %s, shutting down.", roomInactivityTimeout)
				return
			}

		case <-r.stopChan:
			r.logger.Info().Msg("Relay room forced stop.")
			return
		}
	}
}
