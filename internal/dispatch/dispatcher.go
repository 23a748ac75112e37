// Package dispatch turns inbound chat messages into agent prompts and
// formats the replies sent back to the chat.
//
// Each message makes at most one agent call. Commands that only touch local
// state (/help, /lang, /reset, /start) and usage errors make none.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"

	"github.com/skelcrypto/skelbot/internal/agent"
	"github.com/skelcrypto/skelbot/internal/bus"
	"github.com/skelcrypto/skelbot/internal/channels"
	"github.com/skelcrypto/skelbot/internal/config"
)

const (
	// DefaultBotUsername is used for the invite link when the transport
	// did not report the bot's username.
	DefaultBotUsername = "skel_crypto_bot"

	logPreviewWidth = 120
)

// Command names, without the leading slash.
const (
	CmdStart   = "start"
	CmdReset   = "reset"
	CmdHelp    = "help"
	CmdLang    = "lang"
	CmdProject = "project"
	CmdGas     = "gas"
	CmdRPC     = "rpc"
)

// Agent is the subset of *agent.Client the dispatcher needs.
type Agent interface {
	Send(ctx context.Context, sessionKey, prompt string) (string, error)
	Reset(sessionKey string)
}

// AdminLookup finds the admin checker for a channel by name.
type AdminLookup func(channel string) (channels.AdminChecker, bool)

// Dispatcher routes inbound messages to command handlers or the chat path.
type Dispatcher struct {
	agent  Agent
	langs  *LanguageStore
	admins AdminLookup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAdminLookup enables the group admin check for /lang. Without it,
// /lang is refused in groups.
func WithAdminLookup(fn AdminLookup) Option {
	return func(d *Dispatcher) { d.admins = fn }
}

// New creates a dispatcher. A nil langs uses an English-default store.
func New(a Agent, langs *LanguageStore, opts ...Option) *Dispatcher {
	if langs == nil {
		langs = NewLanguageStore(config.DefaultLanguage)
	}
	d := &Dispatcher{agent: a, langs: langs}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Languages exposes the preference store.
func (d *Dispatcher) Languages() *LanguageStore { return d.langs }

// Handle implements bus.MessageHandler. Agent failures are turned into
// localized replies; the returned error is reserved for local faults.
func (d *Dispatcher) Handle(ctx context.Context, msg bus.InboundMessage) (*bus.OutboundMessage, error) {
	lang := d.langs.Get(msg.ChatID)
	if !msg.IsCommand() {
		return d.handleChat(ctx, msg, lang)
	}

	switch msg.Command {
	case CmdStart:
		return d.handleStart(msg, lang), nil
	case CmdReset:
		d.agent.Reset(msg.SessionKey)
		slog.Info("session reset", "chat_id", msg.ChatID, "session", msg.SessionKey, "lang", lang)
		return textReply(msg, Text(lang, msgResetDone)), nil
	case CmdHelp:
		slog.Info("help requested", "chat_id", msg.ChatID, "lang", lang)
		reply := textReply(msg, Text(lang, msgHelpText))
		reply.DisablePreview = true
		return reply, nil
	case CmdLang:
		return d.handleLang(ctx, msg, lang), nil
	case CmdProject:
		return d.handleProject(ctx, msg, lang), nil
	case CmdGas:
		return d.handleGas(ctx, msg, lang)
	case CmdRPC:
		return d.handleRPC(ctx, msg, lang)
	default:
		slog.Debug("ignoring unknown command", "command", msg.Command, "chat_id", msg.ChatID)
		return nil, nil
	}
}

func (d *Dispatcher) handleChat(ctx context.Context, msg bus.InboundMessage, lang string) (*bus.OutboundMessage, error) {
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		if msg.IsGroup() {
			return nil, nil
		}
		slog.Info("non-text message", "chat_id", msg.ChatID)
		return textReply(msg, Text(lang, msgNonTextWarning)), nil
	}

	slog.Info("user -> agent",
		"chat_id", msg.ChatID,
		"session", msg.SessionKey,
		"lang", lang,
		"text", channels.Truncate(text, logPreviewWidth),
	)
	return d.ask(ctx, msg, lang, chatPrompt(lang, text), msgAgentError), nil
}

func (d *Dispatcher) handleStart(msg bus.InboundMessage, lang string) *bus.OutboundMessage {
	d.agent.Reset(msg.SessionKey)
	d.langs.Set(msg.ChatID, lang)
	slog.Info("start requested", "chat_id", msg.ChatID, "lang", lang)

	username := strings.TrimPrefix(msg.Metadata[bus.MetaBotUsername], "@")
	if username == "" {
		username = DefaultBotUsername
	}

	reply := textReply(msg, Text(lang, msgStartGreeting))
	reply.DisablePreview = true
	reply.Buttons = []bus.Button{{
		Text: Text(lang, msgInviteButton),
		URL:  InviteURL(username),
	}}
	return reply
}

func (d *Dispatcher) handleLang(ctx context.Context, msg bus.InboundMessage, lang string) *bus.OutboundMessage {
	if len(msg.Args) == 0 {
		return textReply(msg, Text(lang, msgLangUsage))
	}

	requested := strings.ToUpper(msg.Args[0])
	if !config.IsSupportedLanguage(requested) {
		slog.Info("unsupported language requested", "chat_id", msg.ChatID, "lang", requested)
		return textReply(msg, Text(lang, msgLangInvalid))
	}

	if msg.IsGroup() && !d.isAdmin(ctx, msg) {
		slog.Info("language change denied", "chat_id", msg.ChatID, "user_id", msg.UserID)
		return textReply(msg, Text(lang, msgLangNoPermission))
	}

	d.langs.Set(msg.ChatID, requested)
	slog.Info("language set", "chat_id", msg.ChatID, "lang", requested)
	return textReply(msg, fmt.Sprintf(Text(requested, msgLangSet), LanguageName(requested)))
}

func (d *Dispatcher) isAdmin(ctx context.Context, msg bus.InboundMessage) bool {
	if d.admins == nil {
		return false
	}
	checker, ok := d.admins(msg.Channel)
	if !ok {
		return false
	}
	admin, err := checker.IsChatAdmin(ctx, msg.ChatID, msg.UserID)
	if err != nil {
		slog.Warn("chat member lookup failed", "chat_id", msg.ChatID, "user_id", msg.UserID, "error", err)
		return false
	}
	return admin
}

func (d *Dispatcher) handleProject(ctx context.Context, msg bus.InboundMessage, lang string) *bus.OutboundMessage {
	query := strings.TrimSpace(strings.Join(msg.Args, " "))
	if query == "" {
		reply := textReply(msg, Text(lang, msgProjectUsage))
		reply.DisablePreview = true
		return reply
	}

	slog.Info("project requested", "session", msg.SessionKey, "query", query)
	return d.ask(ctx, msg, lang, projectPrompt(lang, query), msgAgentError)
}

func (d *Dispatcher) handleGas(ctx context.Context, msg bus.InboundMessage, lang string) (*bus.OutboundMessage, error) {
	network, currency := parseGasArgs(msg.Args)
	prompt, err := gasPrompt(lang, network, currency)
	if err != nil {
		return nil, err
	}

	slog.Info("gas requested", "session", msg.SessionKey, "network", network, "currency", currency)
	return d.ask(ctx, msg, lang, prompt, msgGasError), nil
}

func (d *Dispatcher) handleRPC(ctx context.Context, msg bus.InboundMessage, lang string) (*bus.OutboundMessage, error) {
	query := strings.TrimSpace(strings.Join(msg.Args, " "))
	prompt, err := rpcPrompt(lang, query)
	if err != nil {
		return nil, err
	}

	network := query
	if network == "" {
		network = "default"
	}
	slog.Info("rpc requested", "session", msg.SessionKey, "network", network)
	return d.ask(ctx, msg, lang, prompt, msgAgentError), nil
}

// ask sends prompt to the agent and builds the reply. errorKey is the
// message shown when the agent is unreachable or reports an error.
func (d *Dispatcher) ask(ctx context.Context, msg bus.InboundMessage, lang, prompt, errorKey string) *bus.OutboundMessage {
	answer, err := d.agent.Send(ctx, msg.SessionKey, prompt)
	if err != nil {
		return d.errorReply(msg, lang, err, errorKey)
	}

	slog.Info("agent -> user",
		"session", msg.SessionKey,
		"lang", lang,
		"text", channels.Truncate(answer, logPreviewWidth),
	)

	reply := &bus.OutboundMessage{
		Channel:        msg.Channel,
		ChatID:         msg.ChatID,
		Content:        answer,
		Format:         bus.FormatHTML,
		DisablePreview: true,
	}
	if msg.IsGroup() {
		reply.ReplyTo = messageID(msg)
	}
	return reply
}

func (d *Dispatcher) errorReply(msg bus.InboundMessage, lang string, err error, errorKey string) *bus.OutboundMessage {
	key := errorKey
	var remote *agent.RemoteError
	switch {
	case errors.Is(err, agent.ErrUnavailable):
		slog.Warn("agent unavailable", "session", msg.SessionKey, "error", err)
	case errors.As(err, &remote):
		slog.Warn("agent reported an error", "session", msg.SessionKey, "error", remote.Message)
	case errors.Is(err, agent.ErrMalformedResponse):
		slog.Warn("malformed agent response", "session", msg.SessionKey, "error", err)
		if key == msgAgentError {
			key = msgAgentFallback
		}
	default:
		slog.Error("agent call failed", "session", msg.SessionKey, "error", err)
	}

	return &bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: html.EscapeString(Text(lang, key)),
		Format:  bus.FormatHTML,
	}
}

// InviteURL is the deep link that opens Telegram's "add to group" picker.
func InviteURL(botUsername string) string {
	return "https://t.me/" + botUsername + "?startgroup=true"
}

func textReply(msg bus.InboundMessage, text string) *bus.OutboundMessage {
	return &bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: text,
	}
}

func messageID(msg bus.InboundMessage) int {
	id, _ := strconv.Atoi(msg.Metadata[bus.MetaMessageID])
	return id
}
