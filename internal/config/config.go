package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const EnvPrefix = "BABEL"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Relay      RelayConfig      `mapstructure:"relay"`
	Translator TranslatorConfig `mapstructure:"translator"`
	TTS        TTSConfig        `mapstructure:"tts"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Capture    CaptureConfig    `mapstructure:"capture"`
}

type ServerConfig struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`
	// AdminToken enables the admin routes when set.
	AdminToken string `mapstructure:"admin_token"`
}

type RelayConfig struct {
	SendBuffer         int           `mapstructure:"send_buffer"`
	SlowConsumerPolicy string        `mapstructure:"slow_consumer_policy"`
	EventsPerSecond    float64       `mapstructure:"events_per_second"`
	EventBurst         int           `mapstructure:"event_burst"`
	MaxTextLen         int           `mapstructure:"max_text_len"`
	CallTimeout        time.Duration `mapstructure:"call_timeout"`
}

type TranslatorConfig struct {
	Mode      string        `mapstructure:"mode"`
	Endpoint  string        `mapstructure:"endpoint"`
	APIKey    string        `mapstructure:"api_key"`
	Source    string        `mapstructure:"source"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheSize int           `mapstructure:"cache_size"`
}

type TTSConfig struct {
	Mode         string            `mapstructure:"mode"`
	Endpoint     string            `mapstructure:"endpoint"`
	APIKey       string            `mapstructure:"api_key"`
	Model        string            `mapstructure:"model"`
	Voices       map[string]string `mapstructure:"voices"`
	DefaultVoice string            `mapstructure:"default_voice"`
	Timeout      time.Duration     `mapstructure:"timeout"`
}

type TelemetryConfig struct {
	Tracing      string `mapstructure:"tracing"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	MetricsPath  string `mapstructure:"metrics_path"`
	ServiceName  string `mapstructure:"service_name"`
}

type CaptureConfig struct {
	RelayURL        string        `mapstructure:"relay_url"`
	TranscriberURL  string        `mapstructure:"transcriber_url"`
	Language        string        `mapstructure:"language"`
	SampleRate      int           `mapstructure:"sample_rate"`
	FrameSize       int           `mapstructure:"frame_size"`
	EnergyThreshold float64       `mapstructure:"energy_threshold"`
	SilenceDuration time.Duration `mapstructure:"silence_duration"`
	TimeSlice       time.Duration `mapstructure:"time_slice"`
	QueueSize       int           `mapstructure:"queue_size"`
	MaxRetries      uint          `mapstructure:"max_retries"`
}

// Load reads config/config.<CONFIG_ENV>.yaml. A missing file is not an error;
// defaults and BABEL_* environment variables still apply.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var parseErr viper.ConfigParseError
		if errors.As(err, &parseErr) {
			return nil, fmt.Errorf("failed to parse config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	// viper lowercases map keys; gender selectors are upper case.
	cfg.TTS.Voices = upperKeys(cfg.TTS.Voices)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("translator", cfg.Translator.Mode).
		Str("tts", cfg.TTS.Mode).
		Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_path", "./web")
	v.SetDefault("server.read_limit", 1<<20)
	v.SetDefault("server.ping_period", "54s")
	v.SetDefault("server.secret", "")
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.log_level", "info")

	v.SetDefault("relay.send_buffer", 64)
	v.SetDefault("relay.slow_consumer_policy", "drop")
	v.SetDefault("relay.events_per_second", 10.0)
	v.SetDefault("relay.event_burst", 20)
	v.SetDefault("relay.max_text_len", 4096)
	v.SetDefault("relay.call_timeout", "10s")

	v.SetDefault("translator.mode", "passthrough")
	v.SetDefault("translator.endpoint", "http://localhost:5000/translate")
	v.SetDefault("translator.api_key", "")
	v.SetDefault("translator.source", "auto")
	v.SetDefault("translator.timeout", "5s")
	v.SetDefault("translator.cache_size", 1024)

	v.SetDefault("tts.mode", "mock")
	v.SetDefault("tts.endpoint", "https://api.elevenlabs.io")
	v.SetDefault("tts.api_key", "")
	v.SetDefault("tts.model", "eleven_multilingual_v2")
	v.SetDefault("tts.voices", map[string]string{"F": "21m00Tcm4TlvDq8ikWAM"})
	v.SetDefault("tts.default_voice", "iP95p4xoKVk53GoZ742B")
	v.SetDefault("tts.timeout", "15s")

	v.SetDefault("telemetry.tracing", "none")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.otlp_insecure", true)
	v.SetDefault("telemetry.metrics_path", "/metrics")
	v.SetDefault("telemetry.service_name", "babel-relay")

	v.SetDefault("capture.relay_url", "ws://localhost:8080/api/ws/signal")
	v.SetDefault("capture.transcriber_url", "http://localhost:9000/transcribe")
	v.SetDefault("capture.language", "en")
	v.SetDefault("capture.sample_rate", 16000)
	v.SetDefault("capture.frame_size", 1024)
	v.SetDefault("capture.energy_threshold", 0.0001)
	v.SetDefault("capture.silence_duration", "300ms")
	v.SetDefault("capture.time_slice", "4s")
	v.SetDefault("capture.queue_size", 8)
	v.SetDefault("capture.max_retries", 3)
}

func upperKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToUpper(k)] = v
	}
	return out
}

func (c *Config) Validate() error {
	switch c.Relay.SlowConsumerPolicy {
	case "", "drop", "kick":
	default:
		return fmt.Errorf("relay.slow_consumer_policy: unknown policy %q", c.Relay.SlowConsumerPolicy)
	}
	switch c.Translator.Mode {
	case "passthrough", "http":
	default:
		return fmt.Errorf("translator.mode: unknown mode %q", c.Translator.Mode)
	}
	switch c.TTS.Mode {
	case "mock", "http":
	default:
		return fmt.Errorf("tts.mode: unknown mode %q", c.TTS.Mode)
	}
	switch c.Telemetry.Tracing {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("telemetry.tracing: unknown exporter %q", c.Telemetry.Tracing)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: out of range %d", c.Server.Port)
	}
	if c.Relay.SendBuffer <= 0 {
		return errors.New("relay.send_buffer must be positive")
	}
	if c.Relay.MaxTextLen <= 0 {
		return errors.New("relay.max_text_len must be positive")
	}
	if c.Capture.SampleRate <= 0 || c.Capture.FrameSize <= 0 {
		return errors.New("capture.sample_rate and capture.frame_size must be positive")
	}
	return nil
}
