package audio

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/foxseedlab/roomcall/internal/audio"
)

const (
	mixFrameDuration = 20 * time.Millisecond
	maxQueueDuration = time.Second
)

// PCMMixer sums one frame from every input per read. Inputs are slots handed
// out by RequestInput and stay allocated until ReleaseInput.
type PCMMixer struct {
	format          audio.Format
	maxInputs       int
	samplesPerFrame int
	maxQueued       int

	mu     sync.Mutex
	inputs []*pcmInput
	closed bool
}

type pcmInput struct {
	mixer *PCMMixer
	label string
	queue sampleQueue
}

type sampleQueue struct {
	samples []int16
	max     int
}

// push appends samples, dropping the oldest ones once the queue is full.
func (q *sampleQueue) push(pcm []int16) {
	q.samples = append(q.samples, pcm...)
	if over := len(q.samples) - q.max; over > 0 {
		q.samples = q.samples[over:]
	}
}

func (q *sampleQueue) pop(n int) []int16 {
	if n > len(q.samples) {
		n = len(q.samples)
	}
	out := q.samples[:n]
	q.samples = q.samples[n:]
	return out
}

func (q *sampleQueue) hasSamples() bool {
	return len(q.samples) > 0
}

func NewPCMMixer(format audio.Format, maxInputs int) audio.Mixer {
	return &PCMMixer{
		format:          format,
		maxInputs:       maxInputs,
		samplesPerFrame: format.SamplesIn(mixFrameDuration),
		maxQueued:       format.SamplesIn(maxQueueDuration),
	}
}

func (m *PCMMixer) Format() audio.Format {
	return m.format
}

func (m *PCMMixer) RequestInput(label string, format audio.Format) (audio.MixerInput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, audio.ErrMixerClosed
	}
	if format != m.format {
		return nil, fmt.Errorf("%w: input %+v, mixer %+v", audio.ErrFormatMismatch, format, m.format)
	}
	if len(m.inputs) >= m.maxInputs {
		return nil, fmt.Errorf("%w: %d inputs in use", audio.ErrNoFreeInput, len(m.inputs))
	}
	in := &pcmInput{
		mixer: m,
		label: label,
		queue: sampleQueue{max: m.maxQueued},
	}
	m.inputs = append(m.inputs, in)
	return in, nil
}

func (m *PCMMixer) ReleaseInput(in audio.MixerInput) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.inputs {
		if cur == in {
			m.inputs = append(m.inputs[:i], m.inputs[i+1:]...)
			return
		}
	}
}

func (m *PCMMixer) ActiveInputs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs)
}

func (m *PCMMixer) ReadMixedPCM(buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, audio.ErrMixerClosed
	}
	if !hasQueuedSamples(m.inputs) {
		return 0, nil
	}
	mixed := make([]int16, m.samplesPerFrame)
	m.mixQueuedSamples(mixed)
	return writeMixedPCM(buf, mixed), nil
}

func hasQueuedSamples(inputs []*pcmInput) bool {
	for _, in := range inputs {
		if in.queue.hasSamples() {
			return true
		}
	}
	return false
}

func (m *PCMMixer) mixQueuedSamples(mixed []int16) {
	for _, in := range m.inputs {
		frame := in.queue.pop(len(mixed))
		for i := range frame {
			mixed[i] = clampPCM(int32(mixed[i]) + int32(frame[i]))
		}
	}
}

func clampPCM(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func writeMixedPCM(buf []byte, mixed []int16) int {
	toWrite := len(buf) / 2
	if toWrite > len(mixed) {
		toWrite = len(mixed)
	}
	for i := 0; i < toWrite; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(mixed[i]))
	}
	return toWrite * 2
}

func (m *PCMMixer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.inputs = nil
}

func (in *pcmInput) Label() string {
	return in.label
}

func (in *pcmInput) WritePCM(pcm []int16) error {
	if len(pcm) == 0 {
		return nil
	}
	m := in.mixer
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return audio.ErrMixerClosed
	}
	if !m.hasInputLocked(in) {
		return audio.ErrInputReleased
	}
	in.queue.push(pcm)
	return nil
}

func (m *PCMMixer) hasInputLocked(in *pcmInput) bool {
	for _, cur := range m.inputs {
		if cur == in {
			return true
		}
	}
	return false
}
