package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dkeye/Babel/internal/domain"
)

const (
	rachel = "21m00Tcm4TlvDq8ikWAM"
	male   = "iP95p4xoKVk53GoZ742B"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req synthRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ModelID != DefaultModel {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		voice := strings.TrimPrefix(r.URL.Path, "/v1/text-to-speech/")
		if req.Text == "fail" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(voice + "|" + req.Text))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSynthesizer(t *testing.T) {
	srv := newServer(t)
	s, err := NewHTTPSynthesizer(HTTPConfig{
		Endpoint:     srv.URL + "/",
		APIKey:       "key",
		Voices:       map[string]string{"F": rachel},
		DefaultVoice: male,
	})
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name   string
		gender string
		want   string
	}{
		{"female", "F", rachel + "|hello"},
		{"lowercase female", "f", rachel + "|hello"},
		{"male", "M", male + "|hello"},
		{"unset", "", male + "|hello"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			audio, err := s.Synthesize(context.Background(), "hello", domain.VoiceAttributes{Gender: tc.gender})
			if err != nil {
				t.Fatal(err)
			}
			if string(audio) != tc.want {
				t.Fatalf("got %q, want %q", audio, tc.want)
			}
		})
	}
}

func TestHTTPSynthesizerErrors(t *testing.T) {
	srv := newServer(t)
	s, _ := NewHTTPSynthesizer(HTTPConfig{Endpoint: srv.URL, APIKey: "key", DefaultVoice: male})
	if _, err := s.Synthesize(context.Background(), "fail", domain.VoiceAttributes{}); err == nil {
		t.Fatal("expected error on non-200")
	}

	unauth, _ := NewHTTPSynthesizer(HTTPConfig{Endpoint: srv.URL, APIKey: "wrong", DefaultVoice: male})
	if _, err := unauth.Synthesize(context.Background(), "hello", domain.VoiceAttributes{}); err == nil {
		t.Fatal("expected error on 401")
	}

	if _, err := NewHTTPSynthesizer(HTTPConfig{Endpoint: srv.URL}); err == nil {
		t.Fatal("expected error without default voice")
	}
}

func TestMockIsDeterministic(t *testing.T) {
	a, _ := Mock{}.Synthesize(context.Background(), "hi", domain.VoiceAttributes{Gender: "F"})
	b, _ := Mock{}.Synthesize(context.Background(), "hi", domain.VoiceAttributes{Gender: "F"})
	if string(a) != string(b) || len(a) == 0 {
		t.Fatalf("mock output not deterministic: %q vs %q", a, b)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Mock{}).Synthesize(ctx, "hi", domain.VoiceAttributes{}); err == nil {
		t.Fatal("expected canceled context error")
	}
}
