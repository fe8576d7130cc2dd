package translate

import (
	"context"

	"github.com/dkeye/Babel/internal/domain"
)

// Passthrough returns the text unchanged for every target language.
type Passthrough struct{}

func (Passthrough) Translate(_ context.Context, text string, _ domain.LanguageCode) (string, error) {
	return text, nil
}
