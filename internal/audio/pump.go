package audio

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Pump drives a Chunker from a frame channel. Segments are handed off with a
// non-blocking send; when the consumer falls behind the segment is dropped
// and counted, and frame processing continues unaffected.
type Pump struct {
	chunker *Chunker
	out     chan Segment

	frames  atomic.Uint64
	emitted atomic.Uint64
	dropped atomic.Uint64
}

func NewPump(c *Chunker, queue int) *Pump {
	if queue < 1 {
		queue = 1
	}
	return &Pump{chunker: c, out: make(chan Segment, queue)}
}

func (p *Pump) Segments() <-chan Segment { return p.out }

// Run processes frames until the channel closes or ctx is done. On a closed
// channel the remaining buffer is flushed. Segments() is closed on return.
func (p *Pump) Run(ctx context.Context, frames <-chan Frame) error {
	defer close(p.out)
	var state State
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				if _, seg, ok := p.chunker.Finish(state); ok {
					p.handOff(seg)
				}
				return nil
			}
			p.frames.Add(1)
			var seg Segment
			var emit bool
			state, seg, emit = p.chunker.Step(state, f)
			if emit {
				p.handOff(seg)
			}
		}
	}
}

func (p *Pump) handOff(seg Segment) {
	select {
	case p.out <- seg:
		p.emitted.Add(1)
	default:
		p.dropped.Add(1)
		log.Warn().Str("module", "audio.pump").
			Str("trigger", seg.Trigger.String()).
			Dur("duration", seg.Duration()).
			Msg("segment dropped, transport is behind")
	}
}

func (p *Pump) Frames() uint64  { return p.frames.Load() }
func (p *Pump) Emitted() uint64 { return p.emitted.Load() }
func (p *Pump) Dropped() uint64 { return p.dropped.Load() }
