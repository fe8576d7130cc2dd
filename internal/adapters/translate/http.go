// Package translate holds core.Translator implementations.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dkeye/Babel/internal/domain"
)

var ErrEmptyTranslation = errors.New("translate: empty result")

type HTTPConfig struct {
	Endpoint string
	APIKey   string
	// Source is the source language sent upstream; "auto" lets the service detect it.
	Source  string
	Timeout time.Duration
}

// HTTPTranslator talks to a LibreTranslate compatible endpoint.
type HTTPTranslator struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTPTranslator(cfg HTTPConfig) (*HTTPTranslator, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("translate: endpoint cannot be empty")
	}
	if cfg.Source == "" {
		cfg.Source = "auto"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &HTTPTranslator{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error,omitempty"`
}

func (t *HTTPTranslator) Translate(ctx context.Context, text string, target domain.LanguageCode) (string, error) {
	body, err := json.Marshal(translateRequest{
		Q:      text,
		Source: t.cfg.Source,
		Target: string(target),
		Format: "text",
		APIKey: t.cfg.APIKey,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("translate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("translate: read response: %w", err)
	}
	var out translateResponse
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if json.Unmarshal(respBody, &out) == nil && out.Error != "" {
			return "", fmt.Errorf("translate: status %d: %s", resp.StatusCode, out.Error)
		}
		return "", fmt.Errorf("translate: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("translate: decode response: %w", err)
	}
	if out.TranslatedText == "" {
		return "", ErrEmptyTranslation
	}
	return out.TranslatedText, nil
}
