// Package audio segments a live capture stream into voice segments.
//
// The chunker is a pure state machine: Step takes the previous State and one
// Frame and returns the next State plus an optional Segment. It performs no
// I/O, so it can run on the real-time capture path and be driven by synthetic
// frames in tests. Pump moves it onto a goroutine with a non-blocking
// hand-off to the transport.
package audio

import (
	"fmt"
	"math"
	"time"
)

const (
	DefaultEnergyThreshold = 0.0001
	DefaultSilenceDuration = 300 * time.Millisecond
	DefaultTimeSlice       = 4 * time.Second
	DefaultSampleRate      = 16000
)

type Config struct {
	// EnergyThreshold is the frame RMS above which a frame counts as voice.
	// Samples are normalised to [-1, 1].
	EnergyThreshold float64
	SilenceDuration time.Duration
	TimeSlice       time.Duration
	SampleRate      int
}

func DefaultConfig() Config {
	return Config{
		EnergyThreshold: DefaultEnergyThreshold,
		SilenceDuration: DefaultSilenceDuration,
		TimeSlice:       DefaultTimeSlice,
		SampleRate:      DefaultSampleRate,
	}
}

func (c Config) Validate() error {
	if c.EnergyThreshold < 0 {
		return fmt.Errorf("energy threshold must not be negative, got %v", c.EnergyThreshold)
	}
	if c.SilenceDuration <= 0 || c.TimeSlice <= 0 {
		return fmt.Errorf("silence duration and time slice must be positive")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	return nil
}

// Frame is a fixed-size block of mono samples stamped with its capture-clock
// offset from the start of the stream.
type Frame struct {
	At      time.Duration
	Samples []float32
}

type Trigger int

const (
	TriggerSilence Trigger = iota
	TriggerTimeSlice
	TriggerEndOfStream
)

func (t Trigger) String() string {
	switch t {
	case TriggerSilence:
		return "silence"
	case TriggerTimeSlice:
		return "time_slice"
	case TriggerEndOfStream:
		return "end_of_stream"
	default:
		return "unknown"
	}
}

// Segment is every sample received between two flushes.
type Segment struct {
	Trigger Trigger
	Start   time.Duration
	End     time.Duration
	Samples []float32
}

func (s Segment) Duration() time.Duration { return s.End - s.Start }

// State is the per-stream chunker state. The zero value is a fresh stream.
// A State passed to Step must not be reused afterwards.
type State struct {
	buffer        []float32
	bufferStart   time.Duration
	lastFrame     time.Duration
	lastFlush     time.Duration
	frameEnd      time.Duration
	silence       time.Duration
	voiceDetected bool
	started       bool
}

func (s State) Buffered() int          { return len(s.buffer) }
func (s State) VoiceDetected() bool    { return s.voiceDetected }
func (s State) Silence() time.Duration { return s.silence }

type Chunker struct {
	cfg Config
}

func NewChunker(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

func (c *Chunker) Config() Config { return c.cfg }

// Step consumes one frame. At most one segment is emitted per frame; a
// silence flush takes precedence over a time-slice flush on the same frame.
func (c *Chunker) Step(s State, f Frame) (State, Segment, bool) {
	if !s.started {
		s.started = true
		s.lastFlush = f.At
		s.lastFrame = f.At
	}
	elapsed := f.At - s.lastFrame
	if elapsed < 0 {
		elapsed = 0
	}
	s.lastFrame = f.At
	s.frameEnd = f.At + samplesToDuration(len(f.Samples), c.cfg.SampleRate)

	if len(s.buffer) == 0 {
		s.bufferStart = f.At
	}
	s.buffer = append(s.buffer, f.Samples...)

	if RMS(f.Samples) > c.cfg.EnergyThreshold {
		s.silence = 0
		s.voiceDetected = true
	} else {
		s.silence += elapsed
	}

	if s.voiceDetected && s.silence >= c.cfg.SilenceDuration {
		s.voiceDetected = false
		s.silence = 0
		return flush(s, f.At, TriggerSilence)
	}
	if f.At-s.lastFlush >= c.cfg.TimeSlice {
		return flush(s, f.At, TriggerTimeSlice)
	}
	return s, Segment{}, false
}

// Finish flushes whatever is buffered at end of stream.
func (c *Chunker) Finish(s State) (State, Segment, bool) {
	return flush(s, s.lastFrame, TriggerEndOfStream)
}

// flush on an empty buffer is a no-op; the flush time only advances when a
// segment is emitted.
func flush(s State, now time.Duration, trigger Trigger) (State, Segment, bool) {
	if len(s.buffer) == 0 {
		return s, Segment{}, false
	}
	s.lastFlush = now
	seg := Segment{
		Trigger: trigger,
		Start:   s.bufferStart,
		End:     s.frameEnd,
		Samples: s.buffer,
	}
	s.buffer = nil
	return s, seg, true
}

// RMS returns the root mean square of samples, 0 for an empty slice.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func samplesToDuration(n, sampleRate int) time.Duration {
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}
