// Package channels provides the channel abstraction between chat platforms
// and the command dispatcher.
package channels

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/mattn/go-runewidth"

	"github.com/skelcrypto/skelbot/internal/bus"
)

// Channel defines the interface that all channel implementations must satisfy.
type Channel interface {
	// Name returns the channel identifier (e.g., "telegram").
	Name() string

	// Start begins receiving updates. Should be non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to the channel.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// IsRunning returns whether the channel is actively processing messages.
	IsRunning() bool

	// IsAllowed checks if a sender is permitted by the channel's allowlist.
	IsAllowed(senderID string) bool
}

// AdminChecker is implemented by channels that can tell whether a user
// administers a group chat.
type AdminChecker interface {
	IsChatAdmin(ctx context.Context, chatID, userID string) (bool, error)
}

// BaseChannel provides shared functionality for all channel implementations.
// Channel implementations should embed this struct.
type BaseChannel struct {
	name      string
	handler   bus.MessageHandler
	running   atomic.Bool
	allowList []string
}

// NewBaseChannel creates a new BaseChannel with the given parameters.
func NewBaseChannel(name string, handler bus.MessageHandler, allowList []string) *BaseChannel {
	return &BaseChannel{
		name:      name,
		handler:   handler,
		allowList: allowList,
	}
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning returns whether the channel is running.
func (c *BaseChannel) IsRunning() bool { return c.running.Load() }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running.Store(running) }

// HasAllowList returns true if an allowlist is configured (non-empty).
func (c *BaseChannel) HasAllowList() bool { return len(c.allowList) > 0 }

// IsAllowed checks if a sender is permitted by the allowlist.
// Supports compound senderID format: "123456|username".
// Empty allowlist means all senders are allowed.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}

	idPart := senderID
	userPart := ""
	if idx := strings.Index(senderID, "|"); idx > 0 {
		idPart = senderID[:idx]
		userPart = senderID[idx+1:]
	}

	for _, allowed := range c.allowList {
		// "@name" and "name" match the same username
		trimmed := strings.TrimPrefix(allowed, "@")
		allowedID := trimmed
		allowedUser := ""
		if idx := strings.Index(trimmed, "|"); idx > 0 {
			allowedID = trimmed[:idx]
			allowedUser = trimmed[idx+1:]
		}

		if senderID == allowed ||
			idPart == trimmed ||
			idPart == allowedID ||
			(allowedUser != "" && strings.EqualFold(userPart, allowedUser)) ||
			(userPart != "" && strings.EqualFold(userPart, trimmed)) {
			return true
		}
	}

	return false
}

// HandleMessage runs the handler for an inbound message from an allowed
// sender. Messages from senders outside the allowlist yield (nil, nil).
func (c *BaseChannel) HandleMessage(ctx context.Context, msg bus.InboundMessage) (*bus.OutboundMessage, error) {
	if !c.IsAllowed(msg.SenderID) {
		slog.Debug("message rejected by allowlist", "channel", c.name, "sender", msg.SenderID)
		return nil, nil
	}
	if msg.UserID == "" {
		msg.UserID = msg.SenderID
		if idx := strings.IndexByte(msg.SenderID, '|'); idx > 0 {
			msg.UserID = msg.SenderID[:idx]
		}
	}
	msg.Channel = c.name
	if c.handler == nil {
		return nil, nil
	}
	return c.handler(ctx, msg)
}

// Truncate shortens s to at most maxWidth display cells, appending "..." if
// truncated. Used for log previews of user text.
func Truncate(s string, maxWidth int) string {
	return runewidth.Truncate(s, maxWidth, "...")
}
