package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/skelcrypto/skelbot/internal/bus"
	"github.com/skelcrypto/skelbot/internal/channels"
	"github.com/skelcrypto/skelbot/internal/sessions"
)

// processUpdate handles one update. A panic in message handling is
// recovered so a single bad update cannot stop delivery.
func (c *Channel) processUpdate(ctx context.Context, update telego.Update) {
	ctx, span := c.tracer.Start(ctx, "telegram.update")
	span.SetAttributes(attribute.Int("telegram.update_id", update.UpdateID))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while handling telegram update",
				"update_id", update.UpdateID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			span.SetStatus(codes.Error, fmt.Sprint(r))
		}
	}()

	if update.Message == nil {
		slog.Debug("telegram update skipped (no message)", "update_id", update.UpdateID)
		return
	}
	c.handleMessage(ctx, update.Message)
}

// handleMessage turns a Telegram message into an InboundMessage, applies
// group addressing rules and sends the handler's reply.
func (c *Channel) handleMessage(ctx context.Context, message *telego.Message) {
	// Member joins, title changes and the like carry no user content.
	if isServiceMessage(message) {
		slog.Debug("telegram service message skipped", "chat_id", message.Chat.ID)
		return
	}

	user := message.From
	if user == nil {
		return
	}

	userID := strconv.FormatInt(user.ID, 10)
	senderID := userID
	if user.Username != "" {
		senderID = userID + "|" + user.Username
	}
	chatID := message.Chat.ID
	chatIDStr := strconv.FormatInt(chatID, 10)
	peerKind := sessions.PeerKindFromChatType(message.Chat.Type)
	isGroup := peerKind == sessions.PeerGroup
	botID, botUsername := c.identity()

	text, entities := message.Text, message.Entities
	if text == "" {
		text, entities = message.Caption, message.CaptionEntities
	}

	slog.Debug("telegram message received",
		"chat_type", message.Chat.Type,
		"chat_id", chatID,
		"user_id", user.ID,
		"username", user.Username,
		"text_preview", channels.Truncate(text, 60),
	)

	msg := bus.InboundMessage{
		SenderID:   senderID,
		ChatID:     chatIDStr,
		UserID:     userID,
		PeerKind:   string(peerKind),
		SessionKey: sessions.BuildSessionKey(peerKind, chatIDStr, userID),
		Metadata: map[string]string{
			bus.MetaBotUsername: botUsername,
			bus.MetaChatType:    message.Chat.Type,
			bus.MetaMessageID:   strconv.Itoa(message.MessageID),
			bus.MetaUsername:    user.Username,
		},
	}

	trimmed := strings.TrimSpace(text)
	switch {
	case trimmed == "":
		// Private chats get a "text only" notice from the handler.
		if isGroup {
			return
		}

	case strings.HasPrefix(trimmed, "/"):
		cmd, args, ok := parseCommand(trimmed, botUsername)
		if !ok {
			slog.Debug("telegram command for another bot ignored", "chat_id", chatID, "text", trimmed)
			return
		}
		msg.Command = cmd
		msg.Args = args
		msg.Content = strings.Join(args, " ")

	default:
		content, ok := groupContent(message, trimmed, entities, isGroup, botID, botUsername)
		if !ok {
			return
		}
		msg.Content = content
	}

	reply, err := c.HandleMessage(ctx, msg)
	if err != nil {
		slog.Error("telegram message handling failed", "chat_id", chatID, "error", err)
		return
	}
	if reply == nil {
		return
	}
	if reply.ChatID == "" {
		reply.ChatID = chatIDStr
	}
	if err := c.Send(ctx, *reply); err != nil {
		slog.Error("telegram reply failed", "chat_id", chatID, "error", err)
	}
}

// groupContent applies the group addressing rules to plain text. In private
// chats text passes unchanged. In groups it is forwarded only when the bot
// is addressed, with the bot reference stripped, or when it is a bare price
// conversion. ok is false when the message should be dropped.
func groupContent(message *telego.Message, text string, entities []telego.MessageEntity, isGroup bool, botID int64, botUsername string) (string, bool) {
	if !isGroup {
		return text, true
	}

	addressed := isBotAddressed(message, text, entities, botID, botUsername)
	if !addressed && botUsername != "" && containsFold(text, "@"+botUsername) {
		addressed = true
	}

	if !addressed {
		return text, isConversion(text)
	}

	cleaned := stripBotReference(text, entities, botID, botUsername)
	if cleaned == "" {
		return "", false
	}
	return cleaned, true
}

// parseCommand splits "/cmd@bot arg1 arg2" into a lower-case command name
// and its arguments. ok is false when the command names a different bot.
func parseCommand(text, botUsername string) (cmd string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil, false
	}

	head := strings.TrimPrefix(fields[0], "/")
	if name, target, found := strings.Cut(head, "@"); found {
		if botUsername != "" && !strings.EqualFold(target, botUsername) {
			return "", nil, false
		}
		head = name
	}
	if head == "" {
		return "", nil, false
	}
	return strings.ToLower(head), fields[1:], true
}

// isServiceMessage returns true if the Telegram message is a service/system message
// (member added/removed, title changed, pinned, etc.) rather than a user-sent message.
func isServiceMessage(msg *telego.Message) bool {
	if msg.Text != "" || msg.Caption != "" {
		return false
	}

	if msg.Photo != nil || msg.Audio != nil || msg.Video != nil ||
		msg.Document != nil || msg.Voice != nil || msg.VideoNote != nil ||
		msg.Sticker != nil || msg.Animation != nil || msg.Contact != nil ||
		msg.Location != nil || msg.Venue != nil || msg.Poll != nil {
		return false
	}

	return true
}
