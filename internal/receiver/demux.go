package receiver

import (
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/pion/rtp"
)

const (
	maxDatagramSize = 1 << 16
	// maxRoutes bounds the SSRC table against senders cycling random SSRCs.
	maxRoutes = 64
)

type packetHandler interface {
	handleRTP(pkt *rtp.Packet)
}

// demuxer splits one RTP endpoint by SSRC. The first packet of an unseen
// SSRC fires onNewSSRC on the reader goroutine; the handler it returns
// receives that SSRC from then on. A nil handler drops the SSRC for good.
// Drop routes are not remembered, and once the table is full new SSRCs are
// resolved per packet instead.
type demuxer struct {
	label       string
	conn        net.PacketConn
	payloadType uint8
	stats       *Stats
	onNewSSRC   func(ssrc uint32) packetHandler

	mu     sync.Mutex
	routes map[uint32]packetHandler
}

func newDemuxer(label string, conn net.PacketConn, payloadType uint8, stats *Stats, onNewSSRC func(ssrc uint32) packetHandler) *demuxer {
	return &demuxer{
		label:       label,
		conn:        conn,
		payloadType: payloadType,
		stats:       stats,
		onNewSSRC:   onNewSSRC,
		routes:      make(map[uint32]packetHandler),
	}
}

// run reads until the connection is closed.
func (d *demuxer) run() {
	buf := make([]byte, maxDatagramSize)
	for {
		n, _, err := d.conn.ReadFrom(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				slog.Error("rtp receive failed", "error", err, "unit", d.label)
			}
			return
		}
		d.dispatch(buf[:n])
	}
}

func (d *demuxer) dispatch(datagram []byte) {
	d.stats.received.Add(1)
	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(datagram); err != nil {
		d.stats.droppedNotRTP.Add(1)
		return
	}
	if pkt.PayloadType != d.payloadType {
		d.stats.droppedPayload.Add(1)
		return
	}
	h := d.route(pkt.SSRC)
	if h == nil {
		d.stats.droppedUnlinked.Add(1)
		return
	}
	h.handleRTP(pkt)
}

func (d *demuxer) route(ssrc uint32) packetHandler {
	d.mu.Lock()
	h, seen := d.routes[ssrc]
	d.mu.Unlock()
	if seen {
		return h
	}
	h = d.onNewSSRC(ssrc)
	if _, drop := h.(dropRoute); drop {
		return h
	}
	d.mu.Lock()
	if len(d.routes) < maxRoutes {
		d.routes[ssrc] = h
	}
	d.mu.Unlock()
	return h
}

func (d *demuxer) knownSSRCs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.routes)
}
