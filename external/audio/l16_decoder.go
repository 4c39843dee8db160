package audio

import (
	"encoding/binary"
	"fmt"

	"github.com/foxseedlab/roomcall/internal/audio"
)

// l16Decoder unpacks RFC 3551 L16 payloads (network byte order).
type l16Decoder struct {
	format audio.Format
}

func newL16Decoder(format audio.Format) audio.Decoder {
	return &l16Decoder{format: format}
}

func (d *l16Decoder) Format() audio.Format {
	return d.format
}

func (d *l16Decoder) Decode(payload []byte) ([]int16, error) {
	if len(payload)%(2*d.format.Channels) != 0 {
		return nil, fmt.Errorf("l16: payload of %d bytes is not a whole number of frames", len(payload))
	}
	pcm := make([]int16, len(payload)/2)
	for i := range pcm {
		pcm[i] = int16(binary.BigEndian.Uint16(payload[i*2:]))
	}
	return pcm, nil
}

func (d *l16Decoder) Close() {}
