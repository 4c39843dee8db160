//go:build opus

package audio

import (
	"fmt"

	"github.com/foxseedlab/roomcall/internal/audio"
	"github.com/hraban/opus"
)

// 120ms is the longest frame an Opus packet can carry.
const maxOpusFrameMs = 120

type opusDecoder struct {
	format audio.Format
	dec    *opus.Decoder
	pcm    []int16
}

func newOpusDecoder(format audio.Format) (audio.Decoder, error) {
	dec, err := opus.NewDecoder(format.SampleRate, format.Channels)
	if err != nil {
		return nil, fmt.Errorf("opus decoder: %w", err)
	}
	return &opusDecoder{
		format: format,
		dec:    dec,
		pcm:    make([]int16, format.SampleRate*maxOpusFrameMs/1000*format.Channels),
	}, nil
}

func (d *opusDecoder) Format() audio.Format {
	return d.format
}

func (d *opusDecoder) Decode(payload []byte) ([]int16, error) {
	n, err := d.dec.Decode(payload, d.pcm)
	if err != nil {
		return nil, err
	}
	total := n * d.format.Channels
	out := make([]int16, total)
	copy(out, d.pcm[:total])
	return out, nil
}

func (d *opusDecoder) Close() {}
