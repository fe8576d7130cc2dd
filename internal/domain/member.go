// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxDisplayNameLen = 64
	DefaultLanguage   = LanguageCode("en")
)

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
)

// MemberID identifies one connection for its whole lifetime.
type MemberID string

type DisplayName string

// LanguageCode is a target language for incoming translations, e.g. "en", "zh-CN".
type LanguageCode string

// MemberEntry is a read-only view of a room member (no transport fields).
type MemberEntry struct {
	ID   MemberID    `json:"id"`
	Name DisplayName `json:"name"`
}

// NewDisplayName trims the raw name and enforces its length.
func NewDisplayName(raw string) (DisplayName, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return "", ErrDisplayNameTooLong
	}
	return DisplayName(name), nil
}
