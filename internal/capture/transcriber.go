package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

// HTTPError is a non-2xx answer from the transcriber.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("transcriber: HTTP error %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed on a later attempt.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type TranscriberConfig struct {
	Endpoint   string
	Language   string
	MaxRetries uint
	Timeout    time.Duration
	// InitialInterval is the first retry delay; later delays grow exponentially.
	InitialInterval time.Duration
}

// HTTPTranscriber posts WAV segments as multipart/form-data (field "file")
// and reads the transcript as plain text.
type HTTPTranscriber struct {
	cfg    TranscriberConfig
	client *http.Client
}

func NewHTTPTranscriber(cfg TranscriberConfig) (*HTTPTranscriber, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("transcriber: endpoint cannot be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	return &HTTPTranscriber{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (t *HTTPTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.cfg.InitialInterval

	attempt := 0
	op := func() (string, error) {
		attempt++
		text, err := t.do(ctx, wav)
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && !httpErr.Retryable() {
			return "", backoff.Permanent(err)
		}
		return text, err
	}
	text, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(t.cfg.MaxRetries+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Str("module", "capture.transcriber").Int("attempt", attempt).Dur("retry_in", next).Msg("transcription failed, retrying")
		}),
	)
	if err != nil {
		return "", fmt.Errorf("transcription failed after %d attempts: %w", attempt, err)
	}
	return text, nil
}

func (t *HTTPTranscriber) do(ctx context.Context, wav []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	fileWriter, err := writer.CreateFormFile("file", "segment.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(wav); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}
	if t.cfg.Language != "" {
		if err := writer.WriteField("language", t.cfg.Language); err != nil {
			return "", err
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "text/plain")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return strings.TrimSpace(string(body)), nil
}
