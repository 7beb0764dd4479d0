package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Lysander66/gamecontroller/internal/config"
	"github.com/Lysander66/gamecontroller/pkg/message"
	"github.com/Lysander66/gamecontroller/player"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

func clientConfig(cfg *config.Config) *player.ClientConfig {
	return &player.ClientConfig{
		ServerURL:      cfg.ServerURL,
		ReconnectDelay: cfg.ReconnectDelay,
		MaxReconnects:  cfg.MaxReconnects,
		PongWait:       cfg.PongWait,
	}
}

// withPlayer connects, runs fn once and disconnects.
func withPlayer(root *rootOptions, fn func(p *player.Player) error) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}

	p, ws, err := player.Dial(cfg.PlayerName, clientConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.ServerURL, err)
	}
	defer ws.Stop()

	return fn(p)
}

// parsePayload accepts a JSON document; empty means no payload.
func parsePayload(s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	if !gjson.Valid(s) {
		return nil, fmt.Errorf("payload is not valid JSON: %s", s)
	}
	return json.RawMessage(s), nil
}

func keysCmd(root *rootOptions) *cobra.Command {
	var payloadFlag string

	cmd := &cobra.Command{
		Use:   "keys <press|release|click> KEY...",
		Short: "Press, release or click keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := message.KeyAction(strings.ToUpper(args[0]))
			if !action.Valid() {
				return fmt.Errorf("unknown key action %q", args[0])
			}
			payload, err := parsePayload(payloadFlag)
			if err != nil {
				return err
			}

			return withPlayer(root, func(p *player.Player) error {
				return p.ExecuteKeyAction(action, payload, args[1:]...)
			})
		},
	}

	cmd.Flags().StringVar(&payloadFlag, "payload", "", "JSON payload attached to every key")
	return cmd
}

func mouseCmd(root *rootOptions) *cobra.Command {
	var (
		positionType string
		x, y         int
		payloadFlag  string
	)

	cmd := &cobra.Command{
		Use:   "mouse <press|release|click|move>",
		Short: "Send a mouse action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := message.MouseAction(strings.ToUpper(args[0]))
			if !action.Valid() {
				return fmt.Errorf("unknown mouse action %q", args[0])
			}
			posType := message.MousePositionType(strings.ToUpper(positionType))
			if !posType.Valid() {
				return fmt.Errorf("unknown position type %q", positionType)
			}
			payload, err := parsePayload(payloadFlag)
			if err != nil {
				return err
			}

			return withPlayer(root, func(p *player.Player) error {
				return p.ExecuteMouseAction(action, posType, x, y, payload)
			})
		},
	}

	cmd.Flags().StringVar(&positionType, "type", string(message.PositionAbsolute), "ABSOLUTE or RELATIVE")
	cmd.Flags().IntVar(&x, "x", 0, "x coordinate or delta")
	cmd.Flags().IntVar(&y, "y", 0, "y coordinate or delta")
	cmd.Flags().StringVar(&payloadFlag, "payload", "", "JSON payload")
	return cmd
}

func payloadCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "payload TYPE [JSON]",
		Short: "Send an application payload",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			if len(args) == 2 {
				raw = args[1]
			}
			payload, err := parsePayload(raw)
			if err != nil {
				return err
			}

			return withPlayer(root, func(p *player.Player) error {
				return p.SendPayload(args[0], payload)
			})
		},
	}
}

func eventCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "event NAME [JSON]",
		Short: "Send a named event",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			if len(args) == 2 {
				raw = args[1]
			}
			payload, err := parsePayload(raw)
			if err != nil {
				return err
			}

			return withPlayer(root, func(p *player.Player) error {
				return p.SendEvent(args[0], payload)
			})
		},
	}
}

func listenCmd(root *rootOptions) *cobra.Command {
	var payloadTypes, events []string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Stay connected and log payloads and events from the host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			ws := player.NewWebSocket(clientConfig(cfg), slog.Default())
			p := player.New(cfg.PlayerName, ws)
			ws.SetReceiver(p)

			for _, t := range payloadTypes {
				player.HandlePayload(p, t, func(v json.RawMessage) {
					slog.Info("📦 payload", "type", t, "payload", string(v))
				})
			}
			for _, e := range events {
				player.HandleEvent(p, e, func(v json.RawMessage) {
					slog.Info("📢 event", "event", e, "payload", string(v))
				})
			}

			go ws.Start()
			slog.Info("listening", "player", cfg.PlayerName, "payloads", payloadTypes, "events", events)

			signalChan := make(chan os.Signal, 1)
			signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
			<-signalChan

			ws.Stop()
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&payloadTypes, "payload", nil, "payload types to log")
	cmd.Flags().StringSliceVar(&events, "event", []string{"pong"}, "event names to log")
	return cmd
}
