package receiver

import (
	"sync/atomic"

	"github.com/pion/rtp"
)

// Stats counts packets across every receiver of a pipeline.
type Stats struct {
	received          atomic.Int64
	droppedNotRTP     atomic.Int64
	droppedPayload    atomic.Int64
	droppedExcluded   atomic.Int64
	droppedRejected   atomic.Int64
	droppedUnlinked   atomic.Int64
	decodeErrors      atomic.Int64
	sendersDiscovered atomic.Int64
}

type StatsSnapshot struct {
	PacketsReceived    int64 `json:"packets_received"`
	DroppedNotRTP      int64 `json:"dropped_not_rtp"`
	DroppedPayloadType int64 `json:"dropped_payload_type"`
	DroppedExcluded    int64 `json:"dropped_excluded"`
	DroppedRejected    int64 `json:"dropped_rejected"`
	DroppedUnlinked    int64 `json:"dropped_unlinked"`
	DecodeErrors       int64 `json:"decode_errors"`
	SendersDiscovered  int64 `json:"senders_discovered"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		PacketsReceived:    s.received.Load(),
		DroppedNotRTP:      s.droppedNotRTP.Load(),
		DroppedPayloadType: s.droppedPayload.Load(),
		DroppedExcluded:    s.droppedExcluded.Load(),
		DroppedRejected:    s.droppedRejected.Load(),
		DroppedUnlinked:    s.droppedUnlinked.Load(),
		DecodeErrors:       s.decodeErrors.Load(),
		SendersDiscovered:  s.sendersDiscovered.Load(),
	}
}

// dropRoute swallows every packet of an SSRC, counting it.
type dropRoute struct {
	counter *atomic.Int64
}

func (r dropRoute) handleRTP(*rtp.Packet) {
	r.counter.Add(1)
}

func (s *Stats) excludedRoute() packetHandler {
	return dropRoute{counter: &s.droppedExcluded}
}

func (s *Stats) rejectedRoute() packetHandler {
	return dropRoute{counter: &s.droppedRejected}
}
