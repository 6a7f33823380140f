package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/muxship/internal/cliconfig"
	"github.com/bft-labs/muxship/pkg/log"
	"github.com/bft-labs/muxship/pkg/muxship"
)

const longHelp = `
Ship spooled payloads to a single peer over one multiplexed connection.

Every file published into the spool directory becomes one framed payload on
its own stream. When the connection drops, muxship reconnects under the same
session and resends whatever was not written.

Configure via file ($HOME/.muxship/config.toml), MUXSHIP_* environment
variables or flags; flags win over the environment, the environment over
the file.`

var exampleUsage = strings.TrimSpace(`
  muxship --addr collector:9000 --spool-dir /var/spool/muxship
  muxship --transport websocket --addr wss://collector/ingest --metrics-addr :9100
  muxship sink --listen :9000
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return muxship.Version
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:          "muxship",
		Short:        "Ship spooled payloads over one multiplexed connection",
		Long:         strings.TrimSpace(longHelp),
		Example:      exampleUsage,
		Version:      fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if err := loadConfig(&cfg, cfgPath, changed); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.muxship/config.toml)")
	root.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "peer address (host:port, or ws:// url for websocket)")
	root.Flags().StringVar(&cfg.Transport, "transport", cfg.Transport, "transport: tcp or websocket")
	root.Flags().DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "connect timeout")
	root.Flags().StringVar(&cfg.SpoolDir, "spool-dir", cfg.SpoolDir, "directory whose files are shipped")
	root.Flags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for status.json (default: $HOME/.muxship)")
	root.Flags().IntVar(&cfg.Reporters, "reporters", cfg.Reporters, "number of reporters")
	root.Flags().IntVar(&cfg.StreamsPerReporter, "streams", cfg.StreamsPerReporter, "streams (in-flight payloads) per reporter")
	root.Flags().IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "delivery attempts per payload (0 retries forever)")
	root.Flags().DurationVar(&cfg.ReconnectInitial, "reconnect-initial", cfg.ReconnectInitial, "first reconnect delay")
	root.Flags().DurationVar(&cfg.ReconnectMax, "reconnect-max", cfg.ReconnectMax, "maximum reconnect delay")
	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (disabled when empty)")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	root.Flags().Uint64Var(&cfg.SessionID, "session-id", cfg.SessionID, "pin the session id (default: saved or generated)")

	root.AddCommand(newSinkCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers file, environment and flags onto cfg and validates it.
func loadConfig(cfg *cliconfig.Config, cfgPath string, changed map[string]bool) error {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}
	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return err
	}
	return cfg.Validate()
}

func muxshipConfig(cfg cliconfig.Config) muxship.Config {
	return muxship.Config{
		Addr:               cfg.Addr,
		Transport:          cfg.Transport,
		DialTimeout:        cfg.DialTimeout,
		SpoolDir:           cfg.SpoolDir,
		StateDir:           cfg.StateDir,
		Reporters:          cfg.Reporters,
		StreamsPerReporter: cfg.StreamsPerReporter,
		MaxAttempts:        cfg.MaxAttempts,
		ReconnectInitial:   cfg.ReconnectInitial,
		ReconnectMax:       cfg.ReconnectMax,
		SessionID:          cfg.SessionID,
	}
}

// crashWatcher closes crashed when the instance enters StateCrashed.
type crashWatcher struct {
	muxship.BaseEventHandler
	once    sync.Once
	crashed chan struct{}
}

func (w *crashWatcher) OnStateChange(ev muxship.StateChangeEvent) {
	if ev.Current == muxship.StateCrashed {
		w.once.Do(func() { close(w.crashed) })
	}
}

func run(cfg cliconfig.Config) error {
	logger := log.NewConsoleAdapter(os.Stderr, cfg.LogLevel)
	zl := logger.Logger()
	zl.Info().Interface("config", cfg).Msg("configuration")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	watcher := &crashWatcher{crashed: make(chan struct{})}
	m, err := muxship.New(muxshipConfig(cfg),
		muxship.WithLogger(logger),
		muxship.WithRegisterer(reg),
		muxship.WithEventHandler(watcher),
	)
	if err != nil {
		return fmt.Errorf("create muxship: %w", err)
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", log.Err(err))
			}
		}()
		logger.Info("serving metrics", log.String("addr", cfg.MetricsAddr))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := m.Start(ctx); err != nil {
		return fmt.Errorf("start muxship: %w", err)
	}

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("received signal, stopping", log.String("signal", sig.String()))
		runErr = m.Stop()
	case <-watcher.crashed:
		logger.Error("pipeline crashed")
		cancel()
		_ = m.Wait()
		runErr = errors.New("pipeline crashed")
	}

	if metricsSrv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return runErr
}
