package receiver

import (
	"net"
	"sync"

	"github.com/foxseedlab/roomcall/internal/audio"
	"github.com/foxseedlab/roomcall/internal/network"
)

// unitDeps are what a receiver borrows from its pipeline.
type unitDeps struct {
	network    network.Network
	mixer      audio.Mixer
	newDecoder audio.DecoderFactory
	format     audio.PayloadFormat
	stats      *Stats
	onFatal    func(error)
}

// unit is the lifecycle shared by room and unicast receivers: a bound
// socket feeding a demuxer whose reader runs from the first Playing
// transition until the unit is stopped.
type unit struct {
	id    string
	conn  net.PacketConn
	demux *demuxer

	mu         sync.Mutex
	state      State
	readerDone chan struct{}
}

func (u *unit) ID() string {
	return u.id
}

func (u *unit) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

func (u *unit) setStateLocked(s State) {
	if s == StatePlaying && u.readerDone == nil {
		done := make(chan struct{})
		u.readerDone = done
		go func() {
			defer close(done)
			u.demux.run()
		}()
	}
	u.state = s
}

// beginStopLocked marks the unit stopped and returns the reader to wait on.
func (u *unit) beginStopLocked() chan struct{} {
	u.state = StateNull
	return u.readerDone
}

// finishStop must run without u.mu held: the reader may be inside a
// discovery callback that needs it.
func (u *unit) finishStop(readerDone chan struct{}) {
	_ = u.conn.Close()
	if readerDone != nil {
		<-readerDone
	}
}
