package audio

import (
	"errors"
	"time"
)

var (
	ErrMixerClosed      = errors.New("audio: mixer is closed")
	ErrNoFreeInput      = errors.New("audio: no free mixer input")
	ErrFormatMismatch   = errors.New("audio: format mismatch")
	ErrInputReleased    = errors.New("audio: mixer input released")
	ErrCodecUnavailable = errors.New("audio: codec unavailable")
)

// Format describes interleaved signed 16-bit PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// SamplesIn returns the number of interleaved samples covering d.
func (f Format) SamplesIn(d time.Duration) int {
	return int(time.Duration(f.SampleRate)*d/time.Second) * f.Channels
}

// Mixer sums any number of inputs into one PCM stream. Inputs are requested
// when a source is linked and must be released by whoever tears the link down.
type Mixer interface {
	Format() Format
	RequestInput(label string, format Format) (MixerInput, error)
	ReleaseInput(in MixerInput)
	ActiveInputs() int
	ReadMixedPCM(buf []byte) (int, error)
	Close()
}

type MixerInput interface {
	Label() string
	WritePCM(pcm []int16) error
}

type MixerFactory func(format Format, maxInputs int) Mixer

type Decoder interface {
	Format() Format
	Decode(payload []byte) ([]int16, error)
	Close()
}

type DecoderFactory func(pf PayloadFormat) (Decoder, error)

// Sink is the output stage. It receives little-endian s16 PCM.
type Sink interface {
	WritePCM(pcm []byte) error
	Close() error
}
