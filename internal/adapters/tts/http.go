// Package tts holds core.SpeechSynthesizer implementations.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dkeye/Babel/internal/domain"
)

const (
	DefaultModel    = "eleven_multilingual_v2"
	maxAudioPayload = 16 << 20
)

var ErrEmptyAudio = errors.New("tts: empty audio")

type HTTPConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	// Voices maps a gender selector ("F", "M") to a provider voice id.
	Voices       map[string]string
	DefaultVoice string
	Timeout      time.Duration
}

// HTTPSynthesizer calls an ElevenLabs compatible text-to-speech API.
type HTTPSynthesizer struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTPSynthesizer(cfg HTTPConfig) (*HTTPSynthesizer, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("tts: endpoint cannot be empty")
	}
	if cfg.DefaultVoice == "" {
		return nil, errors.New("tts: default voice cannot be empty")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	voices := make(map[string]string, len(cfg.Voices))
	for gender, id := range cfg.Voices {
		voices[strings.ToUpper(gender)] = id
	}
	cfg.Voices = voices
	return &HTTPSynthesizer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// VoiceFor resolves the provider voice id for the given attributes.
func (s *HTTPSynthesizer) VoiceFor(v domain.VoiceAttributes) string {
	if id, ok := s.cfg.Voices[strings.ToUpper(v.Gender)]; ok && id != "" {
		return id
	}
	return s.cfg.DefaultVoice
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string, voice domain.VoiceAttributes) ([]byte, error) {
	body, err := json.Marshal(synthRequest{Text: text, ModelID: s.cfg.Model})
	if err != nil {
		return nil, err
	}
	endpoint := s.cfg.Endpoint + "/v1/text-to-speech/" + url.PathEscape(s.VoiceFor(voice))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tts: build request: %w", err)
	}
	req.Header.Set("xi-api-key", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tts: status %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioPayload))
	if err != nil {
		return nil, fmt.Errorf("tts: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	return audio, nil
}
