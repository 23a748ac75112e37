package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/titanous/json5"
)

const (
	DefaultAgentBaseURL     = "http://127.0.0.1:8000"
	DefaultAgentProcessorID = "telegram-bot"
	DefaultAgentTimeout     = 60 * time.Second
	DefaultWebhookListen    = ":8080"
	DefaultLogFile          = "logs/bot.log"
	DefaultLanguage         = "EN"
	DefaultTelegramSendRate = 25
)

// SupportedLanguages lists the language codes the bot has message bundles for.
var SupportedLanguages = []string{"EN", "ID"}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				SendRate: DefaultTelegramSendRate,
			},
		},
		Agent: AgentConfig{
			BaseURL:     DefaultAgentBaseURL,
			ProcessorID: DefaultAgentProcessorID,
			Timeout:     "60s",
		},
		Webhook: WebhookConfig{
			Listen: DefaultWebhookListen,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			File:       DefaultLogFile,
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "skelbot",
		},
		DefaultLanguage: DefaultLanguage,
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: env vars alone are a complete configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.normalize()
	return cfg, nil
}

// ApplyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) ApplyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	// Telegram
	envStr("TELEGRAM_BOT_TOKEN", &c.Channels.Telegram.Token)
	envStr("TELEGRAM_PROXY", &c.Channels.Telegram.Proxy)
	envStr("TELEGRAM_BOT_USERNAME", &c.Channels.Telegram.BotUsername)
	if v := os.Getenv("TELEGRAM_ALLOW_FROM"); v != "" {
		c.Channels.Telegram.AllowFrom = splitList(v)
	}
	if v := os.Getenv("TELEGRAM_SEND_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil && rate > 0 {
			c.Channels.Telegram.SendRate = rate
		}
	}

	// Agent
	envStr("AGENT_BASE_URL", &c.Agent.BaseURL)
	envStr("AGENT_PROCESSOR_ID", &c.Agent.ProcessorID)
	envStr("AGENT_TIMEOUT", &c.Agent.Timeout)

	// Webhook
	envStr("WEBHOOK_URL", &c.Webhook.URL)
	envStr("WEBHOOK_SECRET", &c.Webhook.Secret)
	envStr("WEBHOOK_LISTEN", &c.Webhook.Listen)

	// Logging
	envStr("LOG_LEVEL", &c.Logging.Level)
	envStr("LOG_FORMAT", &c.Logging.Format)
	envStr("LOG_FILE", &c.Logging.File)

	envStr("SKELBOT_DEFAULT_LANG", &c.DefaultLanguage)

	// Telemetry
	envStr("SKELBOT_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("SKELBOT_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("SKELBOT_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	envBool("SKELBOT_TELEMETRY_ENABLED", &c.Telemetry.Enabled)
	envBool("SKELBOT_TELEMETRY_INSECURE", &c.Telemetry.Insecure)
}

func (c *Config) normalize() {
	c.Channels.Telegram.Token = strings.TrimSpace(c.Channels.Telegram.Token)
	c.Channels.Telegram.BotUsername = strings.TrimPrefix(strings.TrimSpace(c.Channels.Telegram.BotUsername), "@")
	c.Agent.BaseURL = strings.TrimRight(strings.TrimSpace(c.Agent.BaseURL), "/")
	if c.Agent.ProcessorID == "" {
		c.Agent.ProcessorID = DefaultAgentProcessorID
	}
	if c.Webhook.Listen == "" {
		c.Webhook.Listen = DefaultWebhookListen
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.DefaultLanguage = strings.ToUpper(strings.TrimSpace(c.DefaultLanguage))
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = DefaultLanguage
	}
}

// Validate reports every problem that prevents the bot from starting.
// The returned error names the env var to set, so it can be shown as-is.
func (c *Config) Validate() error {
	var errs []error

	if c.Channels.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram bot token is required (set TELEGRAM_BOT_TOKEN)"))
	}

	if c.Agent.BaseURL == "" {
		errs = append(errs, errors.New("agent base URL is required (set AGENT_BASE_URL)"))
	} else if u, err := url.Parse(c.Agent.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("agent base URL %q must be an absolute http(s) URL", c.Agent.BaseURL))
	}

	if c.Agent.Timeout != "" {
		if _, ok := parseDuration(c.Agent.Timeout); !ok {
			errs = append(errs, fmt.Errorf("invalid agent timeout %q", c.Agent.Timeout))
		}
	}

	if !IsSupportedLanguage(c.DefaultLanguage) {
		errs = append(errs, fmt.Errorf("unsupported default language %q (use %s)", c.DefaultLanguage, strings.Join(SupportedLanguages, " or ")))
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	if c.Webhook.Enabled() {
		if u, err := url.Parse(c.Webhook.URL); err != nil || u.Scheme != "https" {
			errs = append(errs, fmt.Errorf("webhook URL %q must be an https URL", c.Webhook.URL))
		}
	}

	if c.Telemetry.Enabled {
		switch c.Telemetry.Protocol {
		case "", "grpc", "http":
		default:
			errs = append(errs, fmt.Errorf("invalid telemetry protocol %q (use grpc or http)", c.Telemetry.Protocol))
		}
	}

	return errors.Join(errs...)
}

// IsSupportedLanguage reports whether code (case-insensitive) has a message bundle.
func IsSupportedLanguage(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, l := range SupportedLanguages {
		if l == code {
			return true
		}
	}
	return false
}

const secretMask = "***"

// MaskedCopy returns a deep copy of the config with all secret fields masked.
// Used by the doctor command to print the effective configuration.
func (c *Config) MaskedCopy() *Config {
	data, err := json.Marshal(c)
	if err != nil {
		return &Config{}
	}
	cp := Default()
	if err := json.Unmarshal(data, cp); err != nil {
		return &Config{}
	}

	maskNonEmpty(&cp.Channels.Telegram.Token)
	maskNonEmpty(&cp.Webhook.Secret)
	for k := range cp.Telemetry.Headers {
		cp.Telemetry.Headers[k] = secretMask
	}
	if cp.Channels.Telegram.Proxy != "" {
		if u, err := url.Parse(cp.Channels.Telegram.Proxy); err == nil && u.User != nil {
			u.User = url.User(secretMask)
			cp.Channels.Telegram.Proxy = u.String()
		}
	}

	return cp
}

func maskNonEmpty(s *string) {
	if *s != "" {
		*s = secretMask
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
