package audio

import "fmt"

// PayloadFormat is the RTP stream contract every participant must share.
// Traffic that does not match it is not decodable.
type PayloadFormat struct {
	Media          string
	ClockRate      int
	EncodingName   string
	EncodingParams int
	PayloadType    uint8
}

// PCMFormat is the decoded format a matching stream produces.
func (p PayloadFormat) PCMFormat() Format {
	channels := p.EncodingParams
	if channels <= 0 {
		channels = 1
	}
	return Format{SampleRate: p.ClockRate, Channels: channels}
}

func (p PayloadFormat) String() string {
	return fmt.Sprintf("application/x-rtp, media=(string)%s, clock-rate=(int)%d, encoding-name=(string)%s, encoding-params=(string)%d, payload=(int)%d",
		p.Media, p.ClockRate, p.EncodingName, p.EncodingParams, p.PayloadType)
}
