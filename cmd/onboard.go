package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/skelcrypto/skelbot/internal/config"
)

// onboardAnswers holds what onboard collects, keyed later by env var name.
type onboardAnswers struct {
	Token         string
	AgentURL      string
	ProcessorID   string
	Language      string
	WebhookURL    string
	WebhookSecret string
	LogFile       string
}

func onboardCmd() *cobra.Command {
	var nonInteractive, verify bool
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Write a .env file and prepare the local environment",
		Run: func(cmd *cobra.Command, args []string) {
			if !runOnboard(nonInteractive, verify) {
				os.Exit(1)
			}
		},
	}
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "take values from the environment instead of prompting")
	cmd.Flags().BoolVar(&verify, "verify", true, "check the token and agent URL after writing")
	return cmd
}

func runOnboard(nonInteractive, verify bool) bool {
	existing := map[string]string{}
	if _, err := os.Stat(envFile); err == nil {
		m, err := godotenv.Read(envFile)
		if err != nil {
			fmt.Printf("Cannot read %s: %s\n", envFile, err)
			return false
		}
		existing = m
	}

	answers := defaultAnswers(existing)
	if nonInteractive {
		fmt.Println("Onboard: non-interactive mode, reading values from the environment...")
	} else if err := onboardForm(&answers).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("Onboard cancelled, nothing written.")
		} else {
			fmt.Printf("Onboard form failed: %s\n", err)
		}
		return false
	}

	if err := validateToken(answers.Token); err != nil {
		fmt.Printf("  %s\n", err)
		return false
	}
	if err := validateAgentURL(answers.AgentURL); err != nil {
		fmt.Printf("  %s\n", err)
		return false
	}

	env := mergeEnv(existing, answers)
	if err := godotenv.Write(env, envFile); err != nil {
		fmt.Printf("  Failed to write %s: %s\n", envFile, err)
		return false
	}
	if err := os.Chmod(envFile, 0o600); err != nil {
		fmt.Printf("  Warning: could not restrict %s permissions: %s\n", envFile, err)
	}
	fmt.Printf("  Wrote %s\n", envFile)

	if answers.LogFile != "" && answers.LogFile != "-" {
		dir := filepath.Dir(answers.LogFile)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Printf("  Failed to create log directory %s: %s\n", dir, err)
			return false
		}
		fmt.Printf("  Log directory %s ready\n", dir)
	}

	if verify {
		fmt.Println()
		fmt.Println("  Verifying...")
		if !verifyOnboard(answers) {
			fmt.Println()
			fmt.Printf("Saved, but verification failed. Fix %s and run `skelbot doctor`.\n", envFile)
			return false
		}
	}

	fmt.Println()
	fmt.Println("Done. Start the bot with:")
	fmt.Println()
	fmt.Println("  ./skelbot")
	return true
}

// defaultAnswers pre-fills from the process env first, then the existing
// dotenv file, then built-in defaults.
func defaultAnswers(existing map[string]string) onboardAnswers {
	pick := func(key, def string) string {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		if v := strings.TrimSpace(existing[key]); v != "" {
			return v
		}
		return def
	}
	return onboardAnswers{
		Token:         pick("TELEGRAM_BOT_TOKEN", ""),
		AgentURL:      pick("AGENT_BASE_URL", config.DefaultAgentBaseURL),
		ProcessorID:   pick("AGENT_PROCESSOR_ID", config.DefaultAgentProcessorID),
		Language:      strings.ToUpper(pick("SKELBOT_DEFAULT_LANG", config.DefaultLanguage)),
		WebhookURL:    pick("WEBHOOK_URL", ""),
		WebhookSecret: pick("WEBHOOK_SECRET", ""),
		LogFile:       pick("LOG_FILE", config.DefaultLogFile),
	}
}

// mergeEnv overlays answers onto the existing dotenv values.
// Keys onboard does not manage are kept as-is; empty optional answers are removed.
func mergeEnv(existing map[string]string, a onboardAnswers) map[string]string {
	env := make(map[string]string, len(existing)+7)
	for k, v := range existing {
		env[k] = v
	}
	set := func(key, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			delete(env, key)
			return
		}
		env[key] = value
	}
	set("TELEGRAM_BOT_TOKEN", a.Token)
	set("AGENT_BASE_URL", strings.TrimRight(strings.TrimSpace(a.AgentURL), "/"))
	set("AGENT_PROCESSOR_ID", a.ProcessorID)
	set("SKELBOT_DEFAULT_LANG", strings.ToUpper(a.Language))
	set("WEBHOOK_URL", a.WebhookURL)
	set("WEBHOOK_SECRET", a.WebhookSecret)
	set("LOG_FILE", a.LogFile)
	return env
}

func onboardForm(a *onboardAnswers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram bot token").
				Description("From @BotFather, e.g. 123456:ABC-DEF...").
				EchoMode(huh.EchoModePassword).
				Validate(validateToken).
				Value(&a.Token),
			huh.NewInput().
				Title("Agent base URL").
				Description("The assistant service; the bot posts to {url}/assist").
				Validate(validateAgentURL).
				Value(&a.AgentURL),
			huh.NewInput().
				Title("Processor ID").
				Value(&a.ProcessorID),
			huh.NewSelect[string]().
				Title("Default language").
				Options(
					huh.NewOption("English", "EN"),
					huh.NewOption("Bahasa Indonesia", "ID"),
				).
				Value(&a.Language),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Webhook URL (optional)").
				Description("Leave empty to use long polling").
				Validate(validateWebhookURL).
				Value(&a.WebhookURL),
			huh.NewInput().
				Title("Webhook secret (optional)").
				EchoMode(huh.EchoModePassword).
				Value(&a.WebhookSecret),
			huh.NewInput().
				Title("Log file").
				Description(`Use "-" to log to stderr only`).
				Value(&a.LogFile),
		),
	)
}
