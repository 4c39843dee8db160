package receiver

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/foxseedlab/roomcall/internal/audio"
	"github.com/foxseedlab/roomcall/internal/network"
	"github.com/google/uuid"
)

// UnicastReceiver receives a single remote caller on an ephemeral port.
// Its output reaches the mixer only once the caller's first packet reveals
// an SSRC. Packets from any later SSRC are dropped.
type UnicastReceiver struct {
	unit
	port       int
	target     audio.Mixer
	format     audio.PayloadFormat
	newDecoder audio.DecoderFactory
	stats      *Stats
	onFatal    func(error)
	onSender   func(ssrc uint32)
	rejections atomic.Int64

	// guarded by unit.mu
	path   *decodePath
	out    audio.MixerInput
	sender uint32
}

func newUnicastReceiver(deps unitDeps, onSender func(ssrc uint32)) (*UnicastReceiver, error) {
	conn, err := deps.network.ListenUnicast()
	if err != nil {
		return nil, fmt.Errorf("open unicast endpoint: %w", err)
	}
	port := network.LocalPort(conn)
	if port == 0 {
		_ = conn.Close()
		return nil, fmt.Errorf("unicast endpoint has no local port: %s", conn.LocalAddr())
	}
	u := &UnicastReceiver{
		unit: unit{
			id:    uuid.NewString(),
			conn:  conn,
			state: StateNull,
		},
		port:       port,
		target:     deps.mixer,
		format:     deps.format,
		newDecoder: deps.newDecoder,
		stats:      deps.stats,
		onFatal:    deps.onFatal,
		onSender:   onSender,
	}
	u.demux = newDemuxer("unicast:"+u.id, conn, deps.format.PayloadType, deps.stats, u.onNewSSRC)

	u.mu.Lock()
	u.setStateLocked(StatePaused)
	u.mu.Unlock()
	slog.Info("unicast receiver bound", "session_id", u.id, "port", port)
	return u, nil
}

// Port is the UDP port the remote party must send to. It does not change
// for the lifetime of the receiver.
func (u *UnicastReceiver) Port() int {
	return u.port
}

// Linked reports whether a sender has been discovered and wired to the mixer.
func (u *UnicastReceiver) Linked() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.out != nil
}

func (u *UnicastReceiver) SenderSSRC() (uint32, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.sender, u.out != nil
}

// SetState moves the receiver between Paused and Playing. A torn down
// receiver stays in Null.
func (u *UnicastReceiver) SetState(s State) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state == StateNull || s == StateNull {
		return
	}
	u.setStateLocked(s)
	if u.path != nil {
		u.path.setState(s)
	}
}

// onNewSSRC wires the first sender through a decode path to the mixer.
// The returned path becomes the demuxer's route for ssrc.
func (u *UnicastReceiver) onNewSSRC(ssrc uint32) packetHandler {
	u.mu.Lock()
	if u.state == StateNull {
		u.mu.Unlock()
		return nil
	}
	if u.path != nil {
		linked := u.sender
		u.mu.Unlock()
		if n := u.rejections.Add(1); n == 1 || n%500 == 0 {
			slog.Warn("rejecting additional sender on unicast receiver", "session_id", u.id, "ssrc", ssrc, "linked_ssrc", linked, "rejected_packets", n)
		}
		return u.stats.rejectedRoute()
	}
	path, err := u.linkSenderLocked(ssrc)
	u.mu.Unlock()
	if err != nil {
		u.onFatal(fmt.Errorf("%w: unicast sender %d on port %d: %w", ErrLink, ssrc, u.port, err))
		return nil
	}

	u.stats.sendersDiscovered.Add(1)
	slog.Info("unicast sender discovered and linked", "session_id", u.id, "ssrc", ssrc, "port", u.port)
	if u.onSender != nil {
		u.onSender(ssrc)
	}
	return path
}

func (u *UnicastReceiver) linkSenderLocked(ssrc uint32) (*decodePath, error) {
	path, err := newDecodePath("unicast:"+u.id, u.newDecoder, u.format, u.stats)
	if err != nil {
		return nil, err
	}
	path.setState(u.state)
	out, err := path.link(u.target)
	if err != nil {
		path.close()
		return nil, err
	}
	u.path = path
	u.out = out
	u.sender = ssrc
	return path, nil
}

// Teardown stops the receiver and gives its mixer input back. The input is
// owned by the mixer and stays allocated until released, so the peer is
// captured before the path is closed. A second call is a no-op.
func (u *UnicastReceiver) Teardown() {
	u.mu.Lock()
	if u.state == StateNull {
		u.mu.Unlock()
		return
	}
	peer := u.out
	path := u.path
	u.out = nil
	u.path = nil
	readerDone := u.beginStopLocked()
	u.mu.Unlock()

	u.finishStop(readerDone)
	if path != nil {
		path.close()
	}
	if peer != nil {
		u.target.ReleaseInput(peer)
	}
	slog.Info("unicast receiver torn down", "session_id", u.id, "port", u.port, "was_linked", peer != nil)
}
