package receiver

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/foxseedlab/roomcall/internal/audio"
	"github.com/google/uuid"
)

// RoomReceiver receives a room's multicast group. Every sender except the
// local one feeds a single decode path.
type RoomReceiver struct {
	unit
	roomID       int
	group        string
	port         int
	ssrcToIgnore uint32
	target       audio.Mixer

	// guarded by unit.mu
	path *decodePath
	out  audio.MixerInput
}

func newRoomReceiver(deps unitDeps, roomID int, group string, port int, ssrcToIgnore uint32) (*RoomReceiver, error) {
	label := "room:" + strconv.Itoa(roomID)
	path, err := newDecodePath(label, deps.newDecoder, deps.format, deps.stats)
	if err != nil {
		return nil, err
	}
	conn, err := deps.network.ListenMulticast(group, port)
	if err != nil {
		path.close()
		return nil, fmt.Errorf("open multicast endpoint %s:%d: %w", group, port, err)
	}
	r := &RoomReceiver{
		unit: unit{
			id:    uuid.NewString(),
			conn:  conn,
			state: StateNull,
		},
		roomID:       roomID,
		group:        group,
		port:         port,
		ssrcToIgnore: ssrcToIgnore,
		target:       deps.mixer,
		path:         path,
	}
	r.demux = newDemuxer(label, conn, deps.format.PayloadType, deps.stats, r.routeSender(deps.stats))

	r.mu.Lock()
	r.setStateLocked(StatePaused)
	r.mu.Unlock()
	slog.Info("room receiver bound", "session_id", r.id, "room_id", roomID, "group", group, "port", port, "ssrc_to_ignore", ssrcToIgnore)
	return r, nil
}

func (r *RoomReceiver) RoomID() int {
	return r.roomID
}

// Group is the multicast address the room is received on.
func (r *RoomReceiver) Group() string {
	return r.group
}

func (r *RoomReceiver) routeSender(stats *Stats) func(ssrc uint32) packetHandler {
	return func(ssrc uint32) packetHandler {
		if ssrc == r.ssrcToIgnore {
			return stats.excludedRoute()
		}
		slog.Debug("room sender observed", "room_id", r.roomID, "ssrc", ssrc)
		return r.path
	}
}

// Link connects the room's output to a fresh mixer input.
func (r *RoomReceiver) Link() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateNull {
		return fmt.Errorf("%w: room %d is torn down", ErrLink, r.roomID)
	}
	out, err := r.path.link(r.target)
	if err != nil {
		return fmt.Errorf("%w: room %d: %w", ErrLink, r.roomID, err)
	}
	r.out = out
	return nil
}

func (r *RoomReceiver) SetState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateNull || s == StateNull {
		return
	}
	r.setStateLocked(s)
	r.path.setState(s)
}

// Teardown stops the room and releases its mixer input. A second call is a
// no-op.
func (r *RoomReceiver) Teardown() {
	r.mu.Lock()
	if r.state == StateNull {
		r.mu.Unlock()
		return
	}
	peer := r.out
	r.out = nil
	readerDone := r.beginStopLocked()
	r.mu.Unlock()

	r.finishStop(readerDone)
	r.path.close()
	if peer != nil {
		r.target.ReleaseInput(peer)
	}
	slog.Info("room receiver torn down", "session_id", r.id, "room_id", r.roomID, "group", r.group)
}
