package notify

import (
	"context"
	"time"
)

type EventType string

const (
	EventRoomJoined       EventType = "room_joined"
	EventRoomLeft         EventType = "room_left"
	EventUnicastStarted   EventType = "unicast_started"
	EventSenderDiscovered EventType = "sender_discovered"
	EventUnicastStopped   EventType = "unicast_stopped"
)

// Event is published whenever the receive pipeline changes shape.
// EventUnicastStarted carries the port the remote party must send to.
type Event struct {
	Type       EventType `json:"type"`
	SessionID  string    `json:"session_id"`
	RoomID     *int      `json:"room_id,omitempty"`
	Port       int       `json:"port,omitempty"`
	SSRC       uint32    `json:"ssrc,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}
