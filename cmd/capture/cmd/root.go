package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dkeye/Babel/internal/config"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var flagVerbose bool

var rootCmd = &cobra.Command{
	Use:   "babel-capture",
	Short: "Stream speech from an audio source into a Babel room",
	Long: `babel-capture segments audio with energy based voice activity detection,
transcribes each segment and sends it to a Babel relay as a voice message.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if flagVerbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		_ = godotenv.Load()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(streamCmd, languagesCmd)
}

// Execute runs the root command until it finishes or the process is signalled.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("babel-capture")
		cancel()
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load()
}
