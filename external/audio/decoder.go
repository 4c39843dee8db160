package audio

import (
	"fmt"
	"strings"

	"github.com/foxseedlab/roomcall/internal/audio"
)

// NewDecoder picks a payload decoder by RTP encoding name.
func NewDecoder(pf audio.PayloadFormat) (audio.Decoder, error) {
	switch strings.ToUpper(pf.EncodingName) {
	case "OPUS":
		return newOpusDecoder(pf.PCMFormat())
	case "L16":
		return newL16Decoder(pf.PCMFormat()), nil
	default:
		return nil, fmt.Errorf("%w: %s", audio.ErrCodecUnavailable, pf.EncodingName)
	}
}
