package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON.
// Telegram user IDs are commonly written as bare numbers in allow lists.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the bot.
type Config struct {
	Channels        ChannelsConfig  `json:"channels"`
	Agent           AgentConfig     `json:"agent"`
	Webhook         WebhookConfig   `json:"webhook,omitempty"`
	Logging         LoggingConfig   `json:"logging,omitempty"`
	Telemetry       TelemetryConfig `json:"telemetry,omitempty"`
	DefaultLanguage string          `json:"default_language,omitempty"` // "EN" (default) or "ID"
}

// AgentConfig points the bot at the upstream agent service.
type AgentConfig struct {
	BaseURL     string `json:"base_url"`
	ProcessorID string `json:"processor_id,omitempty"`
	Timeout     string `json:"timeout,omitempty"` // Go duration or whole seconds (default "60s")
}

// TimeoutDuration parses Timeout, falling back to 60s when unset or invalid.
func (a AgentConfig) TimeoutDuration() time.Duration {
	if d, ok := parseDuration(a.Timeout); ok {
		return d
	}
	return DefaultAgentTimeout
}

// WebhookConfig switches the Telegram channel from long polling to webhook delivery.
// An empty URL means polling mode.
type WebhookConfig struct {
	URL    string `json:"url,omitempty"`    // public HTTPS URL registered with Telegram
	Secret string `json:"secret,omitempty"` // X-Telegram-Bot-Api-Secret-Token value
	Listen string `json:"listen,omitempty"` // local listen address (default ":8080")
}

// Enabled reports whether webhook mode is configured.
func (w WebhookConfig) Enabled() bool { return strings.TrimSpace(w.URL) != "" }

// LoggingConfig configures the slog handlers and the rotating log file.
type LoggingConfig struct {
	Level      string `json:"level,omitempty"`        // debug, info (default), warn, error
	Format     string `json:"format,omitempty"`       // "text" (default) or "json"
	File       string `json:"file,omitempty"`         // rotating log file (default "logs/bot.log", "-" disables)
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`  // rotate after this size (default 10)
	MaxBackups int    `json:"max_backups,omitempty"`  // rotated files kept (default 5)
}

// TelemetryConfig configures OpenTelemetry export for traces and spans.
// When enabled, spans are exported to an OTLP-compatible backend (Jaeger, Tempo, Datadog, etc.).
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`      // enable OTLP export (default false)
	Endpoint    string            `json:"endpoint,omitempty"`     // OTLP endpoint (e.g. "localhost:4317", "https://otel.example.com:4318")
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // plaintext transport (default false, set true for local dev)
	ServiceName string            `json:"service_name,omitempty"` // OTEL service name (default "skelbot")
	Headers     map[string]string `json:"headers,omitempty"`      // extra headers (e.g. auth tokens for cloud backends)
}

func parseDuration(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, true
	}
	var secs int
	if _, err := fmt.Sscanf(s, "%d", &secs); err == nil && secs > 0 && fmt.Sprint(secs) == s {
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}
