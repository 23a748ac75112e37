package telegram

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mymmrac/telego"
)

const (
	// WebhookPath is where Telegram delivers updates in webhook mode.
	WebhookPath = "/webhook"

	secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"
	maxUpdateBytes    = 1 << 20
)

// RegisterRoutes mounts the webhook endpoint on r.
func (c *Channel) RegisterRoutes(r chi.Router) {
	r.Post(WebhookPath, c.handleWebhook)
}

// handleWebhook verifies and decodes one update, processes it to completion
// and then acknowledges it. With a secret configured the secret token is the
// only gate; otherwise requests are rate limited per client IP. Updates are
// processed with the channel's lifecycle context so a client disconnect does
// not abort the agent call.
func (c *Channel) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if secret := c.webhook.Secret; secret != "" {
		got := r.Header.Get(secretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			slog.Warn("telegram webhook rejected: bad secret token", "remote", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	} else if !c.webhookLimiter.Allow(clientIP(r)) {
		// Without a secret anyone can post here. Telegram delivers from a few
		// shared IPs, so configure a secret for busy bots.
		slog.Warn("telegram webhook rate limited", "remote", r.RemoteAddr, "tracked", c.webhookLimiter.Tracked())
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	var update telego.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateBytes)).Decode(&update); err != nil {
		slog.Warn("telegram webhook: invalid update", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	c.processUpdate(c.runContext(r.Context()), update)
	w.WriteHeader(http.StatusOK)
}

// clientIP returns the request's host without port. chi's RealIP
// middleware has already applied X-Forwarded-For / X-Real-IP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
