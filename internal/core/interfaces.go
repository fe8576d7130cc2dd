package core

import (
	"context"

	"github.com/dkeye/Babel/internal/domain"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_core.go -package=mocks

// Translator re-expresses text in the target language.
// Any error means "no translation available" for that call.
type Translator interface {
	Translate(ctx context.Context, text string, target domain.LanguageCode) (string, error)
}

// SpeechSynthesizer renders text to encoded audio bytes.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string, voice domain.VoiceAttributes) ([]byte, error)
}

// Outbound is a server event addressed to a single member connection.
type Outbound interface {
	EventType() string
}

// Deliverer hands an event to the connection of one member.
// Delivery to a member without a live connection fails and is discarded.
type Deliverer interface {
	Deliver(to domain.MemberID, ev Outbound) error
}
