package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dkeye/Babel/internal/audio"
	"github.com/dkeye/Babel/internal/capture"
	"github.com/dkeye/Babel/internal/langdir"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	flagFile     string
	flagRoom     string
	flagName     string
	flagLang     string
	flagGender   string
	flagRealtime bool
	flagLinger   time.Duration
)

var streamCmd = &cobra.Command{
	Use:     "stream",
	Aliases: []string{"s"},
	Short:   "Stream a WAV file into a room",
	Long: `Stream a WAV file into a room as if it were captured live.

Examples:
  babel-capture stream --file talk.wav --room r1 --name alice
  babel-capture stream --file talk.wav --room r1 --name alice --lang tr --gender F --realtime=false`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagFile == "" || flagRoom == "" || flagName == "" {
			return errors.New("--file, --room and --name are required")
		}
		return stream(cmd.Context())
	},
}

func init() {
	streamCmd.Flags().StringVarP(&flagFile, "file", "f", "", "WAV file to stream")
	streamCmd.Flags().StringVarP(&flagRoom, "room", "r", "", "room key")
	streamCmd.Flags().StringVarP(&flagName, "name", "n", "", "display name")
	streamCmd.Flags().StringVarP(&flagLang, "lang", "l", "", "language to receive messages in (default from config)")
	streamCmd.Flags().StringVarP(&flagGender, "gender", "g", "M", "voice gender selector (M or F)")
	streamCmd.Flags().BoolVar(&flagRealtime, "realtime", true, "pace frames at the capture rate")
	streamCmd.Flags().DurationVar(&flagLinger, "linger", 3*time.Second, "keep listening for deliveries after the last segment")
}

func stream(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cc := cfg.Capture
	lang := flagLang
	if lang == "" {
		lang = cc.Language
	}
	langs := langdir.Default()
	lang = langs.Normalize(lang)
	if !langs.Supported(lang) {
		log.Warn().Str("lang", lang).Msg("language is not in the directory, messages may arrive untranslated")
	}

	f, err := os.Open(flagFile)
	if err != nil {
		return err
	}
	samples, rate, err := audio.DecodeWAV(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", flagFile, err)
	}

	chunker, err := audio.NewChunker(audio.Config{
		EnergyThreshold: cc.EnergyThreshold,
		SilenceDuration: cc.SilenceDuration,
		TimeSlice:       cc.TimeSlice,
		SampleRate:      rate,
	})
	if err != nil {
		return err
	}
	transcriber, err := capture.NewHTTPTranscriber(capture.TranscriberConfig{
		Endpoint:   cc.TranscriberURL,
		Language:   lang,
		MaxRetries: cc.MaxRetries,
	})
	if err != nil {
		return err
	}

	relay, err := capture.DialRelay(ctx, cc.RelayURL)
	if err != nil {
		return err
	}
	defer relay.Close()
	go logEvents(relay.Incoming())

	if err := relay.SetLanguage(ctx, lang); err != nil {
		return err
	}
	if err := relay.Join(ctx, flagRoom, flagName); err != nil {
		return err
	}

	p := &capture.Pipeline{
		Chunker:     chunker,
		Transcriber: transcriber,
		Relay:       relay,
		Room:        flagRoom,
		Gender:      flagGender,
		QueueSize:   cc.QueueSize,
	}
	frames := audio.SplitFrames(samples, cc.FrameSize, rate)
	log.Info().Str("file", flagFile).Int("sample_rate", rate).Int("frames", len(frames)).Str("room", flagRoom).Msg("streaming")

	// A dropped relay ends the stream instead of transcribing into the void.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		select {
		case <-relay.Done():
			stop()
		case <-runCtx.Done():
		}
	}()

	stats, err := p.Run(runCtx, capture.StreamFrames(runCtx, frames, flagRealtime))
	log.Info().
		Uint64("frames", stats.Frames).
		Uint64("segments", stats.Segments).
		Uint64("dropped", stats.Dropped).
		Uint64("sent", stats.Sent).
		Uint64("failed", stats.Failed).
		Msg("stream finished")
	if ctx.Err() == nil && runCtx.Err() != nil {
		return capture.ErrRelayClosed
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return err
	}
	select {
	case <-time.After(flagLinger):
	case <-ctx.Done():
	case <-relay.Done():
	}
	return nil
}

func logEvents(events <-chan capture.Event) {
	for ev := range events {
		switch ev.Type {
		case "text":
			var t struct {
				SenderName     string `json:"sender_name"`
				TranslatedText string `json:"translated_text"`
			}
			_ = json.Unmarshal(ev.Data, &t)
			log.Info().Str("from", t.SenderName).Str("text", t.TranslatedText).Msg("text")
		case "voice":
			var v struct {
				SenderName string `json:"sender_name"`
				Audio      []byte `json:"audio"`
			}
			_ = json.Unmarshal(ev.Data, &v)
			log.Info().Str("from", v.SenderName).Int("bytes", len(v.Audio)).Msg("voice")
		case "room_membership":
			log.Info().RawJSON("data", ev.Data).Msg("membership")
		case "error":
			log.Warn().Str("error", ev.Error).Msg("relay rejected event")
		default:
			log.Debug().Str("type", ev.Type).Msg("event")
		}
	}
	log.Info().Msg("relay connection closed")
}
