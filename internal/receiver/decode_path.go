package receiver

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/foxseedlab/roomcall/internal/audio"
	"github.com/pion/rtp"
)

// decodePath turns one sender's RTP payloads into PCM on a mixer input.
type decodePath struct {
	label   string
	decoder audio.Decoder
	stats   *Stats

	mu     sync.Mutex
	state  State
	out    audio.MixerInput
	closed bool
}

func newDecodePath(label string, newDecoder audio.DecoderFactory, pf audio.PayloadFormat, stats *Stats) (*decodePath, error) {
	dec, err := newDecoder(pf)
	if err != nil {
		return nil, fmt.Errorf("build %s decoder: %w", pf.EncodingName, err)
	}
	return &decodePath{
		label:   label,
		decoder: dec,
		stats:   stats,
		state:   StatePaused,
	}, nil
}

func (p *decodePath) setState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.state = s
}

// link requests a mixer input in the decoder's output format.
func (p *decodePath) link(mx audio.Mixer) (audio.MixerInput, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("decode path %s is closed", p.label)
	}
	if p.out != nil {
		return nil, fmt.Errorf("decode path %s is already linked", p.label)
	}
	out, err := mx.RequestInput(p.label, p.decoder.Format())
	if err != nil {
		return nil, err
	}
	p.out = out
	return out, nil
}

func (p *decodePath) handleRTP(pkt *rtp.Packet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePlaying || p.out == nil {
		p.stats.droppedUnlinked.Add(1)
		return
	}
	pcm, err := p.decoder.Decode(pkt.Payload)
	if err != nil {
		p.stats.decodeErrors.Add(1)
		slog.Debug("failed to decode rtp payload", "error", err, "path", p.label, "ssrc", pkt.SSRC, "seq", pkt.SequenceNumber)
		return
	}
	if err := p.out.WritePCM(pcm); err != nil && !errors.Is(err, audio.ErrInputReleased) {
		slog.Warn("failed to write pcm to mixer", "error", err, "path", p.label)
	}
}

// close stops the path and returns the mixer input it fed, if any. The
// caller owns releasing that input.
func (p *decodePath) close() audio.MixerInput {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.state = StateNull
	out := p.out
	p.out = nil
	p.decoder.Close()
	return out
}
