package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/skelcrypto/skelbot/internal/agent"
	"github.com/skelcrypto/skelbot/internal/channels"
	"github.com/skelcrypto/skelbot/internal/channels/telegram"
	"github.com/skelcrypto/skelbot/internal/config"
	"github.com/skelcrypto/skelbot/internal/dispatch"
	"github.com/skelcrypto/skelbot/internal/gateway"
	"github.com/skelcrypto/skelbot/internal/logging"
	"github.com/skelcrypto/skelbot/internal/sessions"
	"github.com/skelcrypto/skelbot/internal/tracing"
)

// shutdownBudget bounds channel stop plus span flush on exit.
const shutdownBudget = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot (default when no subcommand is given)",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	cfg, ok := loadServeConfig(os.Stderr)
	if !ok {
		os.Exit(1)
	}

	logCloser, err := logging.Setup(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Verbose:    verbose,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %s\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg); err != nil {
		slog.Error("skelbot stopped with error", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
}

// loadServeConfig loads and validates the config, printing every problem
// to w. ok is false when the bot cannot start.
func loadServeConfig(w io.Writer) (*config.Config, bool) {
	if err := loadEnvFile(); err != nil {
		fmt.Fprintf(w, "Warning: %s\n", err)
	}

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(w, "Failed to load config: %s\n", err)
		return nil, false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(w, "SkelBot cannot start, the configuration is incomplete:")
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Fprintf(w, "  - %s\n", line)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Set the variables above, or run `skelbot onboard` to write a .env file.")
		return nil, false
	}
	return cfg, true
}

// serve runs the bot until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config) error {
	shutdownTracing, err := tracing.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		slog.Warn("telemetry disabled", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	sessionMgr := sessions.NewManager()
	agentClient := agent.NewClient(cfg.Agent.BaseURL, cfg.Agent.ProcessorID,
		agent.WithTimeout(cfg.Agent.TimeoutDuration()),
		agent.WithSessions(sessionMgr),
	)
	defer agentClient.Close()

	channelMgr := channels.NewManager()
	dispatcher := dispatch.New(agentClient, dispatch.NewLanguageStore(cfg.DefaultLanguage),
		dispatch.WithAdminLookup(channelMgr.AdminChecker),
	)

	tg, err := telegram.New(cfg.Channels.Telegram, cfg.Webhook, dispatcher.Handle)
	if err != nil {
		return fmt.Errorf("telegram channel: %w", err)
	}
	channelMgr.RegisterChannel(tg.Name(), tg)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	// Bind before setWebhook so the first delivery finds a listener.
	if cfg.Webhook.Enabled() {
		srv := gateway.NewServer(cfg.Webhook.Listen, tg)
		if err := srv.Listen(); err != nil {
			return err
		}
		g.Go(func() error { return srv.Serve(gctx) })
	}

	if err := channelMgr.StartAll(gctx); err != nil {
		cancel()
		_ = g.Wait()
		return err
	}

	mode := "polling"
	if cfg.Webhook.Enabled() {
		mode = "webhook"
	}
	slog.Info("skelbot running",
		"version", Version,
		"mode", mode,
		"bot", tg.Username(),
		"agent", cfg.Agent.BaseURL,
		"default_lang", cfg.DefaultLanguage,
		"channels", channelMgr.GetEnabledChannels(),
	)

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	runErr := g.Wait()

	slog.Info("shutting down", "channels", channelMgr.GetStatus())
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownBudget)
	defer stopCancel()

	if err := channelMgr.StopAll(stopCtx); err != nil {
		slog.Warn("channel stop", "error", err)
	}
	if err := shutdownTracing(stopCtx); err != nil {
		slog.Warn("telemetry shutdown", "error", err)
	}
	slog.Info("skelbot stopped",
		"sessions", sessionMgr.Len(),
		"turns", sessionMgr.Turns(),
		"language_prefs", dispatcher.Languages().Len(),
	)
	return runErr
}
