package tts

import (
	"context"
	"fmt"

	"github.com/dkeye/Babel/internal/domain"
)

// Mock returns deterministic bytes derived from its input.
type Mock struct{}

func (Mock) Synthesize(ctx context.Context, text string, voice domain.VoiceAttributes) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("mock-audio[%s]:%s", voice.Gender, text)), nil
}
