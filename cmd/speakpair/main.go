// Command speakpair runs a spoken language-practice session in the
// terminal: it captures the microphone, recognizes utterances, generates
// tutor replies and speaks them back, with a live transcript and level
// meter.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	synthdeepgram "github.com/speakpair/dialogue-core/core/synthesis/deepgram"
)

var (
	envFile  string
	logFile  string
	topic    string
	voice    string
	language string
	provider string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "speakpair",
		Short: "Spoken language practice in the terminal",
		Long: "speakpair runs half-duplex voice conversations for language " +
			"practice: you speak, it listens, thinks, and answers out loud.",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file with API keys")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "speakpair.log", "File to write logs to")

	rootCmd.AddCommand(practiceCmd())
	rootCmd.AddCommand(voicesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func practiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Start a practice conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, closeLog, err := setupLogging()
			if err != nil {
				return err
			}
			defer closeLog()

			return runPractice(cmd.Context(), log)
		},
	}

	cmd.Flags().StringVarP(&topic, "topic", "t", "everyday small talk", "Practice topic")
	cmd.Flags().StringVar(&voice, "voice", "", "Synthesis voice")
	cmd.Flags().StringVarP(&language, "language", "l", "en-US", "Recognition language (BCP-47)")
	cmd.Flags().StringVar(&provider, "provider", "groq", "Reply generator: groq or gemini")

	return cmd
}

func voicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List available synthesis voices",
		Run: func(cmd *cobra.Command, args []string) {
			for _, v := range synthdeepgram.GetAvailableVoices() {
				fmt.Println(v)
			}
		},
	}
}

// setupLogging routes structured logs to a file so they do not tear the
// TUI, and returns the closer for the log file.
func setupLogging() (zerolog.Logger, func(), error) {
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return zerolog.Nop(), nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
	}

	log := zerolog.New(f).With().Timestamp().Logger()
	return log, func() { _ = f.Close() }, nil
}
