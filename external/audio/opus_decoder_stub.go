//go:build !opus

package audio

import (
	"fmt"

	"github.com/foxseedlab/roomcall/internal/audio"
)

func newOpusDecoder(_ audio.Format) (audio.Decoder, error) {
	return nil, fmt.Errorf("%w: OPUS (build with -tags opus)", audio.ErrCodecUnavailable)
}
