package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/skelcrypto/skelbot/internal/config"
)

// validateToken checks the BotFather token shape: "<bot id>:<secret>".
func validateToken(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("telegram bot token is required")
	}
	id, secret, ok := strings.Cut(s, ":")
	if !ok || id == "" || secret == "" {
		return errors.New("token must look like 123456:ABC-DEF...")
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return errors.New("token must start with the numeric bot id")
		}
	}
	return nil
}

func validateAgentURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("agent base URL is required")
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an http(s) URL", s)
	}
	return nil
}

func validateWebhookURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return errors.New("webhook URL must use https")
	}
	return nil
}

// verifyOnboard probes Telegram and the agent with the collected values.
func verifyOnboard(a onboardAnswers) bool {
	cfg := config.Default()
	cfg.Channels.Telegram.Token = strings.TrimSpace(a.Token)
	cfg.Agent.BaseURL = strings.TrimRight(strings.TrimSpace(a.AgentURL), "/")
	cfg.Agent.ProcessorID = a.ProcessorID

	ok := checkTelegram(cfg)
	// An unreachable agent is reported but not fatal: it is often started later.
	checkAgent(cfg)
	return ok
}
