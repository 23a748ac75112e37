// Package telegram connects the bot to the Telegram Bot API via long
// polling or a webhook.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/skelcrypto/skelbot/internal/bus"
	"github.com/skelcrypto/skelbot/internal/channels"
	"github.com/skelcrypto/skelbot/internal/config"
)

const (
	channelName = "telegram"

	// stopTimeout bounds how long Stop waits for the polling goroutine.
	stopTimeout = 10 * time.Second

	menuSyncAttempts = 3
	menuSyncBackoff  = 5 * time.Second
)

// allowedUpdates limits delivery to the update kinds the bot acts on.
var allowedUpdates = []string{"message"}

// Channel connects to Telegram via the Bot API.
type Channel struct {
	*channels.BaseChannel
	bot            *telego.Bot
	config         config.TelegramConfig
	webhook        config.WebhookConfig
	sendLimiter    *rate.Limiter
	webhookLimiter *channels.WebhookRateLimiter
	tracer         trace.Tracer

	mu          sync.RWMutex
	botID       int64
	botUsername string
	runCtx      context.Context
	cancel      context.CancelFunc
	pollDone    chan struct{}
}

// Option configures a Channel.
type Option func(*channelOptions)

type channelOptions struct {
	botOptions []telego.BotOption
}

// WithBotOptions passes extra options to telego.NewBot, e.g. a custom API server.
func WithBotOptions(opts ...telego.BotOption) Option {
	return func(o *channelOptions) { o.botOptions = append(o.botOptions, opts...) }
}

// New creates a new Telegram channel from config. handler receives every
// accepted message; its reply is sent back to the chat.
func New(cfg config.TelegramConfig, wh config.WebhookConfig, handler bus.MessageHandler, opts ...Option) (*Channel, error) {
	var o channelOptions
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, err)
		}
		o.botOptions = append(o.botOptions, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			},
		}))
	}
	for _, opt := range opts {
		opt(&o)
	}

	bot, err := telego.NewBot(cfg.Token, o.botOptions...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	sendRate := cfg.SendRate
	if sendRate <= 0 {
		sendRate = config.DefaultTelegramSendRate
	}

	c := &Channel{
		bot:            bot,
		config:         cfg,
		webhook:        wh,
		sendLimiter:    rate.NewLimiter(rate.Limit(sendRate), 1),
		webhookLimiter: channels.NewWebhookRateLimiter(channels.DefaultWebhookMaxHits, channels.DefaultWebhookWindow),
		tracer:         otel.Tracer("github.com/skelcrypto/skelbot/internal/channels/telegram"),
		botUsername:    cfg.BotUsername,
	}
	c.BaseChannel = channels.NewBaseChannel(channelName, c.withTyping(handler), cfg.AllowFrom)
	return c, nil
}

// withTyping shows the typing indicator before running next. BaseChannel
// only calls it for allowed senders.
func (c *Channel) withTyping(next bus.MessageHandler) bus.MessageHandler {
	if next == nil {
		return nil
	}
	return func(ctx context.Context, msg bus.InboundMessage) (*bus.OutboundMessage, error) {
		if chatID, err := parseChatID(msg.ChatID); err == nil {
			if err := c.bot.SendChatAction(ctx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping)); err != nil {
				slog.Debug("telegram typing action failed", "chat_id", chatID, "error", err)
			}
		}
		return next(ctx, msg)
	}
}

// Probe checks the token with getMe and records the bot identity.
func (c *Channel) Probe(ctx context.Context) (string, error) {
	me, err := c.bot.GetMe(ctx)
	if err != nil {
		return "", fmt.Errorf("telegram getMe: %w", err)
	}
	c.setIdentity(me.ID, me.Username)
	return me.Username, nil
}

// Start resolves the bot identity, registers the command menu and begins
// receiving updates via webhook (when configured) or long polling.
func (c *Channel) Start(ctx context.Context) error {
	if _, err := c.Probe(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.runCtx = runCtx
	c.cancel = cancel
	c.mu.Unlock()

	go c.syncMenu(runCtx)

	if c.webhook.Enabled() {
		if err := c.startWebhook(runCtx); err != nil {
			cancel()
			return err
		}
	} else if err := c.startPolling(runCtx); err != nil {
		cancel()
		return err
	}

	c.SetRunning(true)
	return nil
}

func (c *Channel) startPolling(ctx context.Context) error {
	slog.Info("starting telegram bot (polling mode)", "allowlist", c.HasAllowList())

	// getUpdates is refused while a webhook is registered.
	if err := c.bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{}); err != nil {
		slog.Warn("telegram deleteWebhook failed", "error", err)
	}

	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: allowedUpdates,
	})
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.pollDone = done
	c.mu.Unlock()

	slog.Info("telegram bot connected", "username", c.Username())

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram updates channel closed")
					return
				}
				c.processUpdate(ctx, update)
			}
		}
	}()
	return nil
}

func (c *Channel) startWebhook(ctx context.Context) error {
	slog.Info("starting telegram bot (webhook mode)",
		"url", c.webhook.URL,
		"allowlist", c.HasAllowList(),
		"secret", c.webhook.Secret != "",
	)

	err := c.bot.SetWebhook(ctx, &telego.SetWebhookParams{
		URL:                c.webhook.URL,
		SecretToken:        c.webhook.Secret,
		DropPendingUpdates: true,
		AllowedUpdates:     allowedUpdates,
	})
	if err != nil {
		return fmt.Errorf("telegram setWebhook: %w", err)
	}

	slog.Info("telegram webhook registered", "username", c.Username())
	return nil
}

// syncMenu registers the command menu, retrying with a linear backoff.
func (c *Channel) syncMenu(ctx context.Context) {
	commands := DefaultMenuCommands()
	for attempt := 1; attempt <= menuSyncAttempts; attempt++ {
		err := c.SyncMenuCommands(ctx, commands)
		if err == nil {
			slog.Info("telegram menu commands synced", "count", len(commands))
			return
		}
		slog.Warn("failed to sync telegram menu commands", "error", err, "attempt", attempt)
		if attempt == menuSyncAttempts {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * menuSyncBackoff):
		}
	}
}

// Stop cancels update delivery and waits for the polling goroutine to
// exit so Telegram releases the getUpdates lock. In webhook mode the
// webhook is removed.
func (c *Channel) Stop(ctx context.Context) error {
	slog.Info("stopping telegram bot")
	c.SetRunning(false)

	c.mu.Lock()
	cancel, done := c.cancel, c.pollDone
	c.cancel, c.pollDone = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if done != nil {
		select {
		case <-done:
			slog.Info("telegram bot stopped")
		case <-time.After(stopTimeout):
			slog.Warn("telegram polling goroutine did not exit within timeout")
		}
	}

	if c.webhook.Enabled() {
		if err := c.bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{}); err != nil {
			return fmt.Errorf("telegram deleteWebhook: %w", err)
		}
		slog.Info("telegram webhook removed")
	}
	return nil
}

// IsChatAdmin reports whether userID administers chatID.
func (c *Channel) IsChatAdmin(ctx context.Context, chatID, userID string) (bool, error) {
	cid, err := parseChatID(chatID)
	if err != nil {
		return false, err
	}
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	member, err := c.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: tu.ID(cid),
		UserID: uid,
	})
	if err != nil {
		return false, fmt.Errorf("telegram getChatMember: %w", err)
	}

	switch member.MemberStatus() {
	case "administrator", "creator", "owner":
		return true, nil
	}
	return false, nil
}

// Username returns the bot's username without the leading "@".
func (c *Channel) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.botUsername
}

func (c *Channel) identity() (int64, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.botID, c.botUsername
}

func (c *Channel) setIdentity(id int64, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.botID = id
	if username != "" {
		c.botUsername = username
	}
}

// runContext returns the lifecycle context set by Start, or fallback before Start.
func (c *Channel) runContext(fallback context.Context) context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.runCtx != nil {
		return c.runCtx
	}
	return fallback
}

// parseChatID converts a string chat ID to int64.
func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}
	return id, nil
}
