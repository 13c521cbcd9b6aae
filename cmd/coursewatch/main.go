package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/coursewatch/coursewatch/internal/alerter"
	"github.com/coursewatch/coursewatch/internal/api"
	"github.com/coursewatch/coursewatch/internal/config"
	"github.com/coursewatch/coursewatch/internal/logbuffer"
	"github.com/coursewatch/coursewatch/internal/metrics"
	"github.com/coursewatch/coursewatch/internal/notifier"
	"github.com/coursewatch/coursewatch/internal/scheduler"
	"github.com/coursewatch/coursewatch/internal/source"
	"github.com/coursewatch/coursewatch/internal/types"
)

// Set at build time with -ldflags "-X main.Version=... -X main.Commit=...".
var (
	Version = "dev"
	Commit  = "unknown"
)

var testKey = types.ResourceKey{Code: "TEST", Group: "0", Kind: "X"}

func main() {
	configPath := flag.String("config", "coursewatch.yaml", "Path to configuration file")
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before the configuration")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "json", "Log format (json, console)")
	once := flag.Bool("once", false, "Run a single check and exit")
	testAlert := flag.Bool("test-alert", false, "Send a test alert on startup")
	flag.Parse()

	// Recent log lines are kept for the status API
	logBuffer := logbuffer.New(1000)

	zerolog.TimeFieldFormat = time.RFC3339
	logLevelParsed, err := zerolog.ParseLevel(*logLevel)
	if err != nil || logLevelParsed == zerolog.NoLevel {
		logLevelParsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevelParsed)

	var out io.Writer = os.Stdout
	if *logFormat == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	}
	logger := zerolog.New(io.MultiWriter(out, logBuffer)).With().
		Timestamp().
		Str("version", Version).
		Str("commit", Commit).
		Logger()

	logger.Info().Msg("Starting coursewatch")

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn().
			Err(err).
			Str("env_file", *envFile).
			Msg("Failed to load env file")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("config_path", *configPath).
			Msg("Failed to load configuration")
	}

	policy, err := alerter.ParsePolicy(cfg.Alerts.Policy)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid alert policy")
	}

	logger.Info().
		Int("tracked", len(cfg.Tracked)).
		Dur("interval", cfg.Poll.Interval).
		Str("policy", string(policy)).
		Str("source", cfg.Source.URL).
		Msg("Configuration loaded")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.New(reg)

	dispatcher := notifier.FromConfig(cfg, filepath.Dir(*configPath), notifier.HostDesktop(), rec, logger)
	src := source.NewCSVSource(cfg.Source, cfg.Poll.RequestTimeout, logger)
	state := alerter.NewState(cfg.Tracked, policy, logger)
	sched := scheduler.New(scheduler.Options{
		Tracked:        cfg.Tracked,
		Interval:       cfg.Poll.Interval,
		RequestTimeout: cfg.Poll.RequestTimeout,
	}, src, state, dispatcher, rec, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Alerts.TestOnStart || *testAlert {
		logger.Info().Msg("Testing alert on startup")
		event := types.NewNotificationEvent(uuid.NewString(), time.Now(), []types.ResourceKey{testKey})
		event.Test = true
		dispatcher.Dispatch(ctx, event)
	}

	if *once {
		sched.RunOnce(ctx)
		dispatcher.Drain(cfg.Alerts.ShutdownGrace)
		return
	}

	var apiServer *api.Server
	if cfg.StatusEnabled() {
		apiServer = api.NewServer(cfg.Status.ListenAddr, sched, api.Info{
			Version:  Version,
			Commit:   Commit,
			Policy:   string(policy),
			Interval: cfg.Poll.Interval.String(),
			Channels: dispatcher.Channels(),
			Tracked:  cfg.Tracked,
		}, logBuffer, reg, logger)

		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().
					Err(err).
					Msg("Status server error")
			}
		}()
	}

	logger.Info().Msg("coursewatch running, press Ctrl+C to stop")

	if err := sched.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Scheduler error")
	}

	logger.Info().Msg("Shutting down...")

	if apiServer != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Error stopping status server")
		}
		cancelShutdown()
	}

	dispatcher.Drain(cfg.Alerts.ShutdownGrace)
	logger.Info().Msg("coursewatch stopped")
}
