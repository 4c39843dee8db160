package receiver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/roomcall/internal/audio"
)

const (
	outputInterval = 20 * time.Millisecond
	statsInterval  = 5 * time.Second
)

// Output drains the mixer into the sink at a fixed frame cadence.
type Output struct {
	mixer audio.Mixer
	sink  audio.Sink
	stats *Stats

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newOutput(mixer audio.Mixer, sink audio.Sink, stats *Stats) *Output {
	return &Output{mixer: mixer, sink: sink, stats: stats}
}

func (o *Output) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})
	go o.run(ctx, o.done)
}

// Stop cancels the loop and waits for it to return.
func (o *Output) Stop() {
	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.cancel, o.done = nil, nil
	o.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (o *Output) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(outputInterval)
	statsTicker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	defer statsTicker.Stop()
	buf := make([]byte, o.mixer.Format().SamplesIn(outputInterval)*2)
	var (
		mixedFrames int64
		zeroFrames  int64
		writeFrames int64
	)
	slog.Info("audio output loop started", "frame_bytes", len(buf))
	for {
		select {
		case <-ctx.Done():
			slog.Info("audio output loop stopped",
				"mixed_frames", mixedFrames,
				"zero_frames", zeroFrames,
				"written_frames", writeFrames)
			return
		case <-statsTicker.C:
			s := o.stats.Snapshot()
			slog.Info("audio pipeline stats",
				"active_inputs", o.mixer.ActiveInputs(),
				"packets_received", s.PacketsReceived,
				"dropped_excluded", s.DroppedExcluded,
				"dropped_rejected", s.DroppedRejected,
				"decode_errors", s.DecodeErrors,
				"mixed_frames", mixedFrames,
				"zero_frames", zeroFrames,
				"written_frames", writeFrames)
		case <-ticker.C:
			n, err := o.mixer.ReadMixedPCM(buf)
			if errors.Is(err, audio.ErrMixerClosed) {
				slog.Info("audio output loop stopped by mixer close", "written_frames", writeFrames)
				return
			}
			if err != nil {
				slog.Warn("failed to read mixed pcm", "error", err)
				continue
			}
			mixedFrames++
			if n == 0 {
				zeroFrames++
				continue
			}
			if err := o.sink.WritePCM(buf[:n]); err != nil {
				slog.Error("failed to write pcm to audio output", "error", err, "pcm_bytes", n)
				return
			}
			writeFrames++
		}
	}
}
