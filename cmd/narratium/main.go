package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tjfontaine/narratium-client/internal/api/narratium"
	"github.com/tjfontaine/narratium-client/internal/pkg/config"
	"github.com/tjfontaine/narratium-client/internal/tokens"
	"github.com/tjfontaine/narratium-client/internal/transcript"
	"github.com/tjfontaine/narratium-client/internal/transcript/memory"
	"github.com/tjfontaine/narratium-client/internal/transcript/sqlite"
)

// app holds what every command needs once configuration is loaded.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "narratium",
		Short:         "Play Narratium text adventures from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath, "configuration file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newPlayCmd(a),
		newServeMockCmd(a),
		newStatusCmd(a),
		newTranscriptCmd(a),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(a.logLevel))); err != nil {
		return fmt.Errorf("invalid --log-level %q", a.logLevel)
	}

	// Logs go to stderr so they never interleave with the story.
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)
	return nil
}

// client builds the backend client from configuration.
func (a *app) client() *narratium.Client {
	token := a.cfg.API.Token
	return narratium.NewClient(a.cfg.API.BaseURL,
		narratium.WithBearerToken(func() string { return token }),
		narratium.WithTimeout(a.cfg.API.Timeout),
		narratium.WithUserAgent(a.cfg.API.UserAgent),
		narratium.WithLogger(a.logger),
		narratium.WithTokenCounter(tokens.NewCounter(a.cfg.Game.Model, a.logger)),
	)
}

// openStore opens the configured transcript store. It returns nil when
// transcripts are disabled.
func (a *app) openStore() (transcript.Store, error) {
	switch a.cfg.Transcript.Driver {
	case "sqlite":
		return sqlite.New(a.cfg.Transcript.Path)
	case "memory":
		return memory.New(), nil
	default:
		return nil, nil
	}
}
