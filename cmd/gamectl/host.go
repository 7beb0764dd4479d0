package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lysander66/gamecontroller/host"
	"github.com/Lysander66/gamecontroller/internal/input"
	"github.com/Lysander66/gamecontroller/internal/metrics"
	"github.com/Lysander66/gamecontroller/pkg/callback"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func hostCmd(root *rootOptions) *cobra.Command {
	var addr, name string

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Accept players and inject their input",
		Long: `Start the game host. Players connect on /ws; keyboard and mouse
messages are handed to the input injector, and a "ping" event is
answered with a "pong" event to the sender.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.HostAddr
			}
			if name == "" {
				name = cfg.HostName
			}

			opts := []host.Option{host.WithKeepalive(cfg.PingInterval, cfg.PongWait)}
			if cfg.MetricsEnabled {
				opts = append(opts, host.WithMetrics(metrics.New(metrics.WithSubsystem("host"))))
			}
			hub := host.NewHub(name, &input.LogInjector{}, opts...)
			defer hub.Close()

			hub.OnEvent("ping", callback.None, func(player string, _ any) {
				if err := hub.SendEvent(player, "pong", time.Now().UnixMilli()); err != nil {
					slog.Warn("pong failed", "player", player, "error", err)
				}
			})

			mux := http.NewServeMux()
			mux.Handle("/ws", hub)
			mux.Handle("/api/players", hub.PlayersHandler())
			if cfg.MetricsEnabled {
				mux.Handle("/metrics", promhttp.Handler())
			}

			srv := &http.Server{Addr: addr, Handler: mux}
			errChan := make(chan error, 1)
			go func() {
				errChan <- srv.ListenAndServe()
			}()
			slog.Info("🚀 host started", "addr", addr, "name", name)

			signalChan := make(chan os.Signal, 1)
			signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err = <-errChan:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-signalChan:
			}

			slog.Info("👋 shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default $HOST_ADDR)")
	cmd.Flags().StringVar(&name, "host-name", "", "name used on outbound messages (default $HOST_NAME)")

	return cmd
}
