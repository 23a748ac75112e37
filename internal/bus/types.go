// Package bus holds the message types exchanged between chat channels and
// the command dispatcher.
package bus

import "context"

// Output formats for OutboundMessage.Format.
const (
	FormatText = ""     // plain text, no parse mode
	FormatHTML = "html" // Telegram HTML parse mode
)

// Metadata keys set by channels on InboundMessage.Metadata.
const (
	MetaBotUsername = "bot_username"
	MetaChatType    = "chat_type"
	MetaMessageID   = "message_id"
	MetaUsername    = "username"
)

// InboundMessage represents a message received from a channel.
// Command is the lower-cased command name without the leading slash and
// without any @bot suffix; it is empty for plain chat text.
type InboundMessage struct {
	Channel    string            `json:"channel"`
	SenderID   string            `json:"sender_id"`           // "123456" or "123456|username"
	ChatID     string            `json:"chat_id"`
	UserID     string            `json:"user_id,omitempty"`   // numeric platform user ID
	Content    string            `json:"content"`             // cleaned text for chat, raw argument string for commands
	Command    string            `json:"command,omitempty"`
	Args       []string          `json:"args,omitempty"`
	PeerKind   string            `json:"peer_kind,omitempty"` // "direct" or "group"
	SessionKey string            `json:"session_key"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// IsCommand reports whether the message is a slash command.
func (m InboundMessage) IsCommand() bool { return m.Command != "" }

// IsGroup reports whether the message came from a group or supergroup.
func (m InboundMessage) IsGroup() bool { return m.PeerKind == "group" }

// OutboundMessage represents a message to be sent to a channel.
type OutboundMessage struct {
	Channel        string            `json:"channel"`
	ChatID         string            `json:"chat_id"`
	Content        string            `json:"content"`
	Format         string            `json:"format,omitempty"` // FormatText or FormatHTML
	DisablePreview bool              `json:"disable_preview,omitempty"`
	Buttons        []Button          `json:"buttons,omitempty"` // one button per row
	ReplyTo        int               `json:"reply_to,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"` // channel-specific metadata
}

// Button is an inline URL button attached to an outbound message.
type Button struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// MessageHandler handles an inbound message and returns the reply to send.
// A nil reply with a nil error means there is nothing to send.
type MessageHandler func(ctx context.Context, msg InboundMessage) (*OutboundMessage, error)
