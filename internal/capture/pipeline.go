package capture

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dkeye/Babel/internal/audio"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

type VoiceSender interface {
	SendVoice(ctx context.Context, room, text, gender string) error
}

type Stats struct {
	Frames   uint64
	Segments uint64
	Dropped  uint64
	Sent     uint64
	Failed   uint64
}

// Pipeline runs chunking on its own goroutine and does all network I/O on
// the segment consumer, so slow transcription never stalls frame processing.
type Pipeline struct {
	Chunker     *audio.Chunker
	Transcriber Transcriber
	Relay       VoiceSender
	Room        string
	Gender      string
	QueueSize   int

	sent, failed atomic.Uint64
}

func (p *Pipeline) Run(ctx context.Context, frames <-chan audio.Frame) (Stats, error) {
	pump := audio.NewPump(p.Chunker, p.QueueSize)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pump.Run(gctx, frames) })
	g.Go(func() error {
		for seg := range pump.Segments() {
			p.handle(gctx, seg)
		}
		return nil
	})
	err := g.Wait()
	return Stats{
		Frames:   pump.Frames(),
		Segments: pump.Emitted(),
		Dropped:  pump.Dropped(),
		Sent:     p.sent.Load(),
		Failed:   p.failed.Load(),
	}, err
}

func (p *Pipeline) handle(ctx context.Context, seg audio.Segment) {
	started := time.Now()
	wav, err := audio.EncodeWAV(seg.Samples, p.Chunker.Config().SampleRate)
	if err != nil {
		p.failed.Add(1)
		log.Error().Err(err).Str("module", "capture.pipeline").Msg("encode segment")
		return
	}
	text, err := p.Transcriber.Transcribe(ctx, wav)
	if err != nil {
		p.failed.Add(1)
		log.Error().Err(err).Str("module", "capture.pipeline").Str("trigger", seg.Trigger.String()).Msg("transcribe segment")
		return
	}
	if text == "" {
		log.Debug().Str("module", "capture.pipeline").Dur("duration", seg.Duration()).Msg("empty transcript, skipped")
		return
	}
	if err := p.Relay.SendVoice(ctx, p.Room, text, p.Gender); err != nil {
		p.failed.Add(1)
		log.Error().Err(err).Str("module", "capture.pipeline").Msg("send voice")
		return
	}
	p.sent.Add(1)
	log.Info().Str("module", "capture.pipeline").
		Str("trigger", seg.Trigger.String()).
		Dur("audio", seg.Duration()).
		Dur("took", time.Since(started)).
		Str("text", text).
		Msg("segment sent")
}

// StreamFrames emits frames on a channel, paced in real time when realtime
// is set. The channel is closed after the last frame or when ctx is done.
func StreamFrames(ctx context.Context, frames []audio.Frame, realtime bool) <-chan audio.Frame {
	out := make(chan audio.Frame)
	go func() {
		defer close(out)
		start := time.Now()
		for _, f := range frames {
			if realtime {
				if wait := time.Until(start.Add(f.At)); wait > 0 {
					select {
					case <-time.After(wait):
					case <-ctx.Done():
						return
					}
				}
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
