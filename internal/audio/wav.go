package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const pcm16Scale = 32768.0

// EncodeWAV encodes mono samples in [-1, 1] as 16-bit PCM WAV.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, errors.New("cannot encode empty audio samples")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	data := make([]int, len(samples))
	for i, v := range samples {
		data[i] = toPCM16(v)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	w := &writeSeeker{}
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}
	return w.buf, nil
}

// DecodeWAV reads a PCM WAV file and returns mono samples in [-1, 1].
// Multi-channel input is downmixed by averaging.
func DecodeWAV(r io.ReadSeeker) ([]float32, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("invalid wav file")
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("read wav: %w", err)
	}
	channels := int(dec.NumChans)
	if channels < 1 {
		channels = 1
	}
	scale := float32(pcm16Scale)
	if dec.BitDepth > 0 {
		scale = float32(int64(1) << (dec.BitDepth - 1))
	}
	out := make([]float32, len(pcm.Data)/channels)
	for i := range out {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += float32(pcm.Data[i*channels+ch]) / scale
		}
		out[i] = sum / float32(channels)
	}
	return out, int(dec.SampleRate), nil
}

func DecodeWAVBytes(b []byte) ([]float32, int, error) {
	return DecodeWAV(bytes.NewReader(b))
}

// SplitFrames cuts samples into frames of size samples stamped at their
// offset from the first sample. The last frame may be short.
func SplitFrames(samples []float32, size, sampleRate int) []Frame {
	if size <= 0 || sampleRate <= 0 {
		return nil
	}
	frames := make([]Frame, 0, (len(samples)+size-1)/size)
	for off := 0; off < len(samples); off += size {
		end := min(off+size, len(samples))
		frames = append(frames, Frame{
			At:      samplesToDuration(off, sampleRate),
			Samples: samples[off:end],
		})
	}
	return frames
}

func toPCM16(v float32) int {
	s := int(v * pcm16Scale)
	if s > 32767 {
		return 32767
	}
	if s < -32768 {
		return -32768
	}
	return s
}

// writeSeeker is an in-memory io.WriteSeeker for the wav encoder, which
// seeks back to patch chunk sizes on Close.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	if need := w.pos + len(p); need > len(w.buf) {
		w.buf = append(w.buf, make([]byte, need-len(w.buf))...)
	}
	n := copy(w.buf[w.pos:], p)
	w.pos += n
	return n, nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, errors.New("writeSeeker: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("writeSeeker: negative position")
	}
	w.pos = int(abs)
	return abs, nil
}
