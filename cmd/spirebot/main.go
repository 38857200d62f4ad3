package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/spire-dev/spire"
	"github.com/spire-dev/spire/internal/cliconfig"
	"github.com/spire-dev/spire/pkg/log"
)

const helpDescription = `
Drive simulated players against a spire game server.

Each bot provisions a dev account and character through the lobby, logs in
over TCP, WebSocket or QUIC and stays connected for --duration (or until
interrupted). Bots stop on the first protocol error.

Configuration comes from defaults, then the TOML config file, then SPIRE_*
environment variables, then flags.
`

var exampleUsage = strings.TrimSpace(`
  spirebot --bot-count 50 --game-host play.example.com --duration 5m
  spirebot --transport quic --alpn spire --security-mode production --ca-file ca.pem
  spirebot --config $HOME/.spire/config.toml --metrics-addr :9100
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	boot := cliconfig.Logger()

	root := &cobra.Command{
		Use:           "spirebot",
		Short:         "Drive simulated players against a spire game server",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// SPIRE_* override the file but not explicit flags.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			zl, err := cliconfig.LevelLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			zl.Info().Interface("config", cfg).Msg("configuration")
			logger := log.NewZerologAdapterWithLogger(zl)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			bots, err := spire.Run(ctx, cfg, spire.WithLogger(logger))

			loggedIn := 0
			for _, b := range bots {
				if b != nil && b.LoggedIn() {
					loggedIn++
				}
			}
			zl.Info().Int("bots", len(bots)).Int("logged_in", loggedIn).Msg("run finished")

			if ctx.Err() != nil && errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.spire/config.toml)")

	f.IntVar(&cfg.BotCount, "bot-count", cfg.BotCount, "number of bots to run")
	f.StringVar(&cfg.BotPrefix, "bot-prefix", cfg.BotPrefix, "prefix for dev logins and character names")
	f.DurationVar(&cfg.Duration, "duration", cfg.Duration, "how long each bot stays connected (0 = until interrupted)")

	f.StringVar(&cfg.LobbyURL, "lobby-url", cfg.LobbyURL, "lobby HTTP base URL")
	f.StringVar(&cfg.GameHost, "game-host", cfg.GameHost, "game server host")
	f.IntVar(&cfg.GamePort, "game-port", cfg.GamePort, "game server port")

	f.StringVar(&cfg.Transport, "transport", cfg.Transport, "transport: tcp, ws or quic")
	f.StringVar(&cfg.SecurityMode, "security-mode", cfg.SecurityMode, "development or production")
	f.BoolVar(&cfg.InsecureSkipVerify, "insecure-skip-verify", cfg.InsecureSkipVerify, "accept any server certificate (development only)")
	f.StringVar(&cfg.CAFile, "ca-file", cfg.CAFile, "PEM bundle to verify the server certificate with")
	f.StringVar(&cfg.ServerName, "server-name", cfg.ServerName, "name checked against the server certificate")
	f.StringVar(&cfg.ALPN, "alpn", cfg.ALPN, "ALPN token for QUIC and TLS")
	f.BoolVar(&cfg.TLS, "tls", cfg.TLS, "use TLS for tcp and wss for ws")
	f.StringVar(&cfg.WSPath, "ws-path", cfg.WSPath, "websocket request path")
	f.StringVar(&cfg.ByteOrder, "byte-order", cfg.ByteOrder, "frame header byte order: big or little")

	f.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "connect timeout")
	f.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "per-read timeout (0 disables)")
	f.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "per-frame write timeout (0 disables)")
	f.IntVar(&cfg.QueueCapacity, "queue-capacity", cfg.QueueCapacity, "outbound queue bound per session (0 = unbounded)")

	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")
	f.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for the dev account cache (empty disables)")

	if err := root.Execute(); err != nil {
		boot.Error().Err(err).Msg("spirebot")
		os.Exit(1)
	}
}
