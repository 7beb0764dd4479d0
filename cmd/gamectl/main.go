package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Lysander66/gamecontroller/internal/config"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type rootOptions struct {
	url       string
	name      string
	logLevel  string
	logFormat string
}

func main() {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "gamectl",
		Short: "Drive a game remotely over a WebSocket",
		Long: `gamectl injects keyboard and mouse input into a running game host and
exchanges payloads and events with it.

Run "gamectl host" next to the game, then use the other commands from
anywhere that can reach it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.url, "url", "", "game server URL (default $GAME_SERVER_URL)")
	flags.StringVar(&opts.name, "name", "", "player name (default $PLAYER_NAME)")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL)")
	flags.StringVar(&opts.logFormat, "log-format", "", "text or json (default $LOG_FORMAT)")

	rootCmd.AddCommand(
		hostCmd(opts),
		keysCmd(opts),
		mouseCmd(opts),
		payloadCmd(opts),
		eventCmd(opts),
		listenCmd(opts),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// load reads the environment, applies flag overrides and installs the logger.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	if o.url != "" {
		cfg.ServerURL = o.url
	}
	if o.name != "" {
		cfg.PlayerName = o.name
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	slog.SetDefault(cfg.NewLogger(os.Stderr))
	return cfg, nil
}
