package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Babel/internal/adapters/http"
	"github.com/dkeye/Babel/internal/adapters/translate"
	"github.com/dkeye/Babel/internal/adapters/tts"
	"github.com/dkeye/Babel/internal/app"
	"github.com/dkeye/Babel/internal/app/orch"
	"github.com/dkeye/Babel/internal/config"
	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/langdir"
	"github.com/dkeye/Babel/internal/metrics"
	"github.com/dkeye/Babel/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err == nil {
		log.Info().Msg("loaded .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.Server.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	translator, err := newTranslator(cfg.Translator)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build translator")
	}
	synth, err := newSynthesizer(cfg.TTS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build synthesizer")
	}
	policy, err := app.ParsePolicy(cfg.Relay.SlowConsumerPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("bad slow consumer policy")
	}

	o := &orch.Orchestrator{
		Rooms:       app.NewRoomRegistry(),
		Sessions:    app.NewSessions(policy),
		Translator:  translator,
		Synth:       synth,
		Metrics:     m,
		CallTimeout: cfg.Relay.CallTimeout,
	}

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:      o,
		Metrics:   m,
		Gatherer:  reg,
		Languages: langdir.Default(),
	})
	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Babel relay started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

func newTranslator(cfg config.TranslatorConfig) (core.Translator, error) {
	var next core.Translator
	switch cfg.Mode {
	case "http":
		t, err := translate.NewHTTPTranslator(translate.HTTPConfig{
			Endpoint: cfg.Endpoint,
			APIKey:   cfg.APIKey,
			Source:   cfg.Source,
			Timeout:  cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		next = t
	default:
		log.Warn().Str("module", "main").Msg("translator in passthrough mode, messages are not translated")
		return translate.Passthrough{}, nil
	}
	return translate.NewCached(next, cfg.CacheSize)
}

func newSynthesizer(cfg config.TTSConfig) (core.SpeechSynthesizer, error) {
	if cfg.Mode != "http" {
		log.Warn().Str("module", "main").Msg("tts in mock mode")
		return tts.Mock{}, nil
	}
	return tts.NewHTTPSynthesizer(tts.HTTPConfig{
		Endpoint:     cfg.Endpoint,
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		Voices:       cfg.Voices,
		DefaultVoice: cfg.DefaultVoice,
		Timeout:      cfg.Timeout,
	})
}
