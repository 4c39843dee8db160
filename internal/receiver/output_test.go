package receiver

import (
	"context"
	"testing"
)

func TestOutput_WritesMixedFrames(t *testing.T) {
	mixer := &mockMixer{mixed: [][]byte{{1, 0, 2, 0}}}
	sink := &mockSink{}
	out := newOutput(mixer, sink, &Stats{})

	out.Start(context.Background())
	waitFor(t, "mixed frame", func() bool { return len(sink.written()) == 1 })
	out.Stop()
	out.Stop()

	got := sink.written()[0]
	if len(got) != 4 || got[0] != 1 || got[2] != 2 {
		t.Fatalf("unexpected pcm %v", got)
	}
}

func TestOutput_StopsWhenMixerCloses(t *testing.T) {
	mixer := &mockMixer{}
	sink := &mockSink{}
	out := newOutput(mixer, sink, &Stats{})

	out.Start(context.Background())
	mixer.Close()
	waitFor(t, "loop exit", func() bool {
		select {
		case <-out.done:
			return true
		default:
			return false
		}
	})
	out.Stop()
	if len(sink.written()) != 0 {
		t.Fatalf("nothing should be written, got %d chunks", len(sink.written()))
	}
}
