package audio

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/foxseedlab/roomcall/internal/audio"
)

// StreamSink writes raw s16le PCM to a file or stdout, ready for aplay/ffplay.
type StreamSink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// OpenSink opens path for writing; "-" selects stdout.
func OpenSink(path string) (audio.Sink, error) {
	if path == "-" {
		return &StreamSink{w: os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open audio output %s: %w", path, err)
	}
	return &StreamSink{w: f, closer: f}, nil
}

func (s *StreamSink) WritePCM(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return io.ErrClosedPipe
	}
	_, err := s.w.Write(pcm)
	return err
}

func (s *StreamSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = nil
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}
