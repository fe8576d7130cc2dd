package domain

import (
	"errors"
	"strings"
)

const DefaultMaxTextLen = 4096

var (
	ErrTextEmpty   = errors.New("text empty")
	ErrTextTooLong = errors.New("text too long")
)

// VoiceAttributes select the synthetic voice used for a voice message.
type VoiceAttributes struct {
	Gender string `json:"gender"`
}

// TextMessage is an inbound text event after boundary validation.
type TextMessage struct {
	Room       RoomKey
	SenderID   MemberID
	SenderName DisplayName
	Text       string
}

// VoiceMessage carries text the sender's client already transcribed and
// translated to an intermediate language.
type VoiceMessage struct {
	Room       RoomKey
	SenderID   MemberID
	SenderName DisplayName
	SourceText string
	Voice      VoiceAttributes
}

// ValidateText rejects blank text and text longer than maxLen bytes.
// maxLen <= 0 disables the length check.
func ValidateText(text string, maxLen int) error {
	if strings.TrimSpace(text) == "" {
		return ErrTextEmpty
	}
	if maxLen > 0 && len(text) > maxLen {
		return ErrTextTooLong
	}
	return nil
}
