package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	player "github.com/e7canasta/orion-player"
	"github.com/e7canasta/orion-player/internal/config"
	"github.com/e7canasta/orion-player/internal/engine/gstengine"
	"github.com/e7canasta/orion-player/internal/notify"
)

// Version information
const version = "v0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
		showVer    bool
	)

	cmd := &cobra.Command{
		Use:   "orion-player [uri]",
		Short: "Interactive GStreamer media player",
		Long: `orion-player plays media URIs through a GStreamer playbin pipeline.

Commands are read from an interactive prompt:
  play <uri>   start or replace playback
  pause        toggle pause
  stop         stop playback
  status       show the player state
  quit         shut down and exit`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVer {
				fmt.Printf("orion-player %s\n", version)
				return nil
			}

			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if debug {
				cfg.Log.Level = "debug"
			}
			setupLogging(cfg.Log)

			var uri string
			if len(args) == 1 {
				uri = args[0]
			}
			return run(cmd.Context(), cfg, uri)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVarP(&showVer, "version", "v", false, "Show version and exit")

	return cmd
}

func setupLogging(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func run(ctx context.Context, cfg *config.Config, uri string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Telemetry: the prompt subscribes to the fanout, MQTT is optional
	fanout := notify.NewFanout()
	defer fanout.Close()

	notifiers := notify.Multi{fanout}
	if m := cfg.Notify.MQTT; m != nil {
		mq := notify.NewMQTT(notify.MQTTConfig{
			Broker:   m.Broker,
			ClientID: m.ClientID,
			Topic:    m.Topic,
			QoS:      m.QoS,
		})
		if err := mq.Connect(ctx); err != nil {
			slog.Warn("orion-player: mqtt unavailable, continuing without it", "error", err)
		} else {
			defer mq.Disconnect()
			notifiers = append(notifiers, mq)
		}
	}

	eng := gstengine.New(gstengine.Config{
		AudioSink: cfg.Engine.AudioSink,
		VideoSink: cfg.Engine.VideoSink,
	})

	c := player.New(player.Config{
		PollInterval:    cfg.Player.PollInterval(),
		LockTimeout:     cfg.Player.LockTimeout(),
		ShutdownTimeout: cfg.Player.ShutdownTimeout(),
		HandoffTimeout:  cfg.Player.HandoffTimeout(),
	}, eng, notifiers)

	slog.Info("orion-player: started",
		"version", version,
		"instance_id", cfg.InstanceID,
		"mqtt", cfg.Notify.MQTT != nil,
	)

	// Shut down on SIGINT/SIGTERM even while the prompt is blocked
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if uri != "" {
		if err := c.Play(uri); err != nil {
			slog.Error("orion-player: initial play failed", "uri", uri, "error", err)
		}
	}

	replErr := runPrompt(sigCtx, c, fanout)

	if err := c.End(); err != nil {
		slog.Warn("orion-player: shutdown incomplete", "error", err)
	}

	stats := c.Stats()
	slog.Info("orion-player: stopped",
		"workers_spawned", stats.WorkersSpawned,
		"commands_sent", stats.CommandsSent,
	)
	return replErr
}
