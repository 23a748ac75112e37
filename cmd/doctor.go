package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/skelcrypto/skelbot/internal/agent"
	"github.com/skelcrypto/skelbot/internal/channels/telegram"
	"github.com/skelcrypto/skelbot/internal/config"
)

const doctorProbeTimeout = 10 * time.Second

func doctorCmd() *cobra.Command {
	var showConfig bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and connectivity to Telegram and the agent",
		Run: func(cmd *cobra.Command, args []string) {
			if !runDoctor(showConfig) {
				os.Exit(1)
			}
		},
	}
	cmd.Flags().BoolVar(&showConfig, "show-config", false, "print the effective configuration with secrets masked")
	return cmd
}

func runDoctor(showConfig bool) bool {
	fmt.Println("skelbot doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	fmt.Printf("  Env file: %s", envFile)
	if err := loadEnvFile(); err != nil {
		fmt.Printf(" (ERROR: %s)\n", err)
	} else if _, err := os.Stat(envFile); err != nil {
		fmt.Println(" (not found)")
	} else {
		fmt.Println(" (OK)")
	}

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (not found, using env only)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return false
	}

	if showConfig {
		data, _ := json.MarshalIndent(cfg.MaskedCopy(), "  ", "  ")
		fmt.Println()
		fmt.Printf("  %s\n", data)
	}

	healthy := true
	fmt.Println()
	fmt.Println("  Settings:")
	if err := cfg.Validate(); err != nil {
		healthy = false
		fmt.Printf("    %-12s INVALID\n", "Config:")
		fmt.Printf("      %s\n", err)
	} else {
		fmt.Printf("    %-12s OK\n", "Config:")
	}
	mode := "polling"
	if cfg.Webhook.Enabled() {
		mode = "webhook (" + cfg.Webhook.Listen + ")"
	}
	fmt.Printf("    %-12s %s\n", "Mode:", mode)
	fmt.Printf("    %-12s %s\n", "Language:", cfg.DefaultLanguage)
	fmt.Printf("    %-12s %s\n", "Log file:", cfg.Logging.File)

	fmt.Println()
	fmt.Println("  Connectivity:")
	if !checkTelegram(cfg) {
		healthy = false
	}
	if !checkAgent(cfg) {
		healthy = false
	}

	fmt.Println()
	if healthy {
		fmt.Println("Doctor check complete.")
	} else {
		fmt.Println("Doctor found problems, see above.")
	}
	return healthy
}

func checkTelegram(cfg *config.Config) bool {
	if cfg.Channels.Telegram.Token == "" {
		fmt.Printf("    %-12s (not configured)\n", "Telegram:")
		return false
	}
	tg, err := telegram.New(cfg.Channels.Telegram, config.WebhookConfig{}, nil)
	if err != nil {
		fmt.Printf("    %-12s FAILED (%s)\n", "Telegram:", err)
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), doctorProbeTimeout)
	defer cancel()
	username, err := tg.Probe(ctx)
	if err != nil {
		fmt.Printf("    %-12s FAILED (%s)\n", "Telegram:", err)
		return false
	}
	fmt.Printf("    %-12s @%s\n", "Telegram:", username)
	return true
}

func checkAgent(cfg *config.Config) bool {
	if cfg.Agent.BaseURL == "" {
		fmt.Printf("    %-12s (not configured)\n", "Agent:")
		return false
	}
	client := agent.NewClient(cfg.Agent.BaseURL, cfg.Agent.ProcessorID, agent.WithTimeout(doctorProbeTimeout))
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), doctorProbeTimeout)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		fmt.Printf("    %-12s UNREACHABLE (%s)\n", "Agent:", err)
		return false
	}
	fmt.Printf("    %-12s %s (OK)\n", "Agent:", cfg.Agent.BaseURL)
	return true
}
