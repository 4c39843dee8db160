package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/foxseedlab/roomcall/internal/audio"
	"github.com/foxseedlab/roomcall/internal/config"
	"github.com/foxseedlab/roomcall/internal/network"
	"github.com/foxseedlab/roomcall/internal/notify"
	"github.com/foxseedlab/roomcall/internal/repository"
)

var (
	// ErrLink marks a failure to connect a receiver to the mixer. The
	// pipeline treats it as fatal.
	ErrLink          = errors.New("receiver: link failed")
	ErrNotStarted    = errors.New("receiver: pipeline is not playing")
	ErrAlreadyJoined = errors.New("receiver: room already joined")
	ErrRoomNotJoined = errors.New("receiver: room not joined")
	ErrUnicastActive = errors.New("receiver: unicast receive already active")
)

// Pipeline owns the mixer, the output and every receiver attached to them.
// Rooms are keyed by room id; at most one unicast receiver exists at a time.
type Pipeline struct {
	cfg        *config.Config
	network    network.Network
	mixer      audio.Mixer
	sink       audio.Sink
	newDecoder audio.DecoderFactory
	history    repository.Repository
	events     notify.Notifier
	stats      *Stats
	output     *Output
	queue      *eventQueue

	fatalHandler atomic.Pointer[func(error)]
	runAsync     func(func())

	mu      sync.Mutex
	state   State
	closed  bool
	rooms   map[int]*RoomReceiver
	unicast *UnicastReceiver
}

func NewPipeline(cfg *config.Config, nw network.Network, mixer audio.Mixer, sink audio.Sink, newDecoder audio.DecoderFactory, history repository.Repository, events notify.Notifier) *Pipeline {
	stats := &Stats{}
	p := &Pipeline{
		cfg:        cfg,
		network:    nw,
		mixer:      mixer,
		sink:       sink,
		newDecoder: newDecoder,
		history:    history,
		events:     events,
		stats:      stats,
		output:     newOutput(mixer, sink, stats),
		queue:      newEventQueue(eventQueueSize),
		rooms:      make(map[int]*RoomReceiver),
	}
	p.runAsync = p.queue.push
	p.SetFatalHandler(exitOnFatal)
	return p
}

func exitOnFatal(err error) {
	slog.Error("audio pipeline wiring failed; aborting", "error", err)
	os.Exit(1)
}

// SetFatalHandler replaces what happens on a link failure. The default logs
// and exits the process.
func (p *Pipeline) SetFatalHandler(fn func(error)) {
	p.fatalHandler.Store(&fn)
}

func (p *Pipeline) fatal(err error) {
	(*p.fatalHandler.Load())(err)
}

// Start checks that the configured payload format decodes into the mixer's
// format and sets the pipeline playing. ctx bounds the output loop.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("%w: pipeline is closed", ErrNotStarted)
	}
	if p.state == StatePlaying {
		return nil
	}
	pf := p.cfg.PayloadFormat()
	dec, err := p.newDecoder(pf)
	if err != nil {
		return fmt.Errorf("payload format %s: %w", pf, err)
	}
	decFormat := dec.Format()
	dec.Close()
	if decFormat != p.mixer.Format() {
		return fmt.Errorf("%w: %s decodes to %d Hz x%d but mixer runs %d Hz x%d", audio.ErrFormatMismatch,
			pf, decFormat.SampleRate, decFormat.Channels, p.mixer.Format().SampleRate, p.mixer.Format().Channels)
	}

	p.output.Start(ctx)
	p.state = StatePlaying
	slog.Info("receiver pipeline playing", "payload_format", pf.String(), "multicast_port", p.cfg.RTPMulticastPort)
	return nil
}

func (p *Pipeline) unitDeps() unitDeps {
	return unitDeps{
		network:    p.network,
		mixer:      p.mixer,
		newDecoder: p.newDecoder,
		format:     p.cfg.PayloadFormat(),
		stats:      p.stats,
		onFatal:    p.fatal,
	}
}

// JoinRoom starts receiving a room's multicast group into the mixer.
// Packets carrying ssrcToIgnore, the local sender, are dropped.
func (p *Pipeline) JoinRoom(roomID int, ssrcToIgnore uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePlaying {
		return ErrNotStarted
	}
	if _, ok := p.rooms[roomID]; ok {
		return fmt.Errorf("%w: %d", ErrAlreadyJoined, roomID)
	}

	group := p.cfg.RoomGroup(roomID)
	room, err := newRoomReceiver(p.unitDeps(), roomID, group, p.cfg.RTPMulticastPort, ssrcToIgnore)
	if err != nil {
		return fmt.Errorf("join room %d: %w", roomID, err)
	}
	room.SetState(p.state)
	if err := room.Link(); err != nil {
		room.Teardown()
		p.fatal(err)
		return err
	}
	p.rooms[roomID] = room
	slog.Info("joined room", "room_id", roomID, "group", group, "session_id", room.ID(), "active_inputs", p.mixer.ActiveInputs())

	p.recordStarted(room.ID(), repository.ReceptionKindRoom, &roomID, p.cfg.RTPMulticastPort)
	p.publish(notify.Event{Type: notify.EventRoomJoined, SessionID: room.ID(), RoomID: &roomID, Port: p.cfg.RTPMulticastPort})
	return nil
}

func (p *Pipeline) LeaveRoom(roomID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	room, ok := p.rooms[roomID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrRoomNotJoined, roomID)
	}
	delete(p.rooms, roomID)
	room.Teardown()
	slog.Info("left room", "room_id", roomID, "session_id", room.ID(), "active_inputs", p.mixer.ActiveInputs())

	p.recordEnded(room.ID())
	p.publish(notify.Event{Type: notify.EventRoomLeft, SessionID: room.ID(), RoomID: &roomID})
	return nil
}

// ReceiveUnicast opens an ephemeral port for a direct call and returns it.
// The caller is linked to the mixer when its first packet arrives.
func (p *Pipeline) ReceiveUnicast() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePlaying {
		return 0, ErrNotStarted
	}
	if p.unicast != nil {
		return 0, fmt.Errorf("%w on port %d", ErrUnicastActive, p.unicast.Port())
	}

	var u *UnicastReceiver
	u, err := newUnicastReceiver(p.unitDeps(), func(ssrc uint32) {
		p.recordSender(u.ID(), ssrc)
		p.publish(notify.Event{Type: notify.EventSenderDiscovered, SessionID: u.ID(), Port: u.Port(), SSRC: ssrc})
	})
	if err != nil {
		return 0, fmt.Errorf("receive unicast: %w", err)
	}
	p.unicast = u
	u.SetState(p.state)
	port := u.Port()
	slog.Info("unicast receive started", "session_id", u.ID(), "port", port)

	p.recordStarted(u.ID(), repository.ReceptionKindUnicast, nil, port)
	p.publish(notify.Event{Type: notify.EventUnicastStarted, SessionID: u.ID(), Port: port})
	return port, nil
}

// StopUnicast tears down the unicast receiver. Without one it does nothing.
func (p *Pipeline) StopUnicast() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopUnicastLocked()
}

func (p *Pipeline) stopUnicastLocked() {
	u := p.unicast
	if u == nil {
		return
	}
	p.unicast = nil
	u.Teardown()
	slog.Info("unicast receive stopped", "session_id", u.ID(), "port", u.Port(), "active_inputs", p.mixer.ActiveInputs())

	p.recordEnded(u.ID())
	p.publish(notify.Event{Type: notify.EventUnicastStopped, SessionID: u.ID(), Port: u.Port()})
}

// Close tears down every receiver, stops the output and closes the mixer
// and sink. Pending history writes and notifications are flushed first.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for roomID, room := range p.rooms {
		delete(p.rooms, roomID)
		room.Teardown()
		p.recordEnded(room.ID())
		p.publish(notify.Event{Type: notify.EventRoomLeft, SessionID: room.ID(), RoomID: &roomID})
	}
	p.stopUnicastLocked()
	p.state = StateNull
	p.mu.Unlock()

	p.output.Stop()
	p.mixer.Close()
	p.queue.close()
	if err := p.sink.Close(); err != nil {
		return fmt.Errorf("close audio output: %w", err)
	}
	slog.Info("receiver pipeline closed")
	return nil
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Rooms returns the joined room ids in ascending order.
func (p *Pipeline) Rooms() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]int, 0, len(p.rooms))
	for id := range p.rooms {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (p *Pipeline) ActiveInputs() int {
	return p.mixer.ActiveInputs()
}

func (p *Pipeline) Stats() StatsSnapshot {
	return p.stats.Snapshot()
}

type UnicastStatus struct {
	SessionID  string `json:"session_id"`
	Port       int    `json:"port"`
	Linked     bool   `json:"linked"`
	SenderSSRC uint32 `json:"sender_ssrc,omitempty"`
}

type Status struct {
	State        string         `json:"state"`
	Rooms        []int          `json:"rooms"`
	Unicast      *UnicastStatus `json:"unicast,omitempty"`
	ActiveInputs int            `json:"active_inputs"`
	Stats        StatsSnapshot  `json:"stats"`
}

func (p *Pipeline) Status() Status {
	rooms := p.Rooms()
	p.mu.Lock()
	state := p.state
	u := p.unicast
	p.mu.Unlock()

	st := Status{
		State:        state.String(),
		Rooms:        rooms,
		ActiveInputs: p.mixer.ActiveInputs(),
		Stats:        p.stats.Snapshot(),
	}
	if u != nil {
		ssrc, linked := u.SenderSSRC()
		st.Unicast = &UnicastStatus{SessionID: u.ID(), Port: u.Port(), Linked: linked, SenderSSRC: ssrc}
	}
	return st
}

// UnicastPort returns the active unicast port, if any.
func (p *Pipeline) UnicastPort() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unicast == nil {
		return 0, false
	}
	return p.unicast.Port(), true
}
