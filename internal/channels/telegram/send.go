package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/skelcrypto/skelbot/internal/bus"
)

// maxMessageRunes keeps each chunk under Telegram's 4096 character limit
// with room for entity expansion.
const maxMessageRunes = 4000

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// Send delivers an outbound message, splitting long text into chunks.
// The first chunk quotes msg.ReplyTo; buttons go on the last chunk. An HTML
// message Telegram cannot parse is resent as plain text.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	chatID, err := parseChatID(msg.ChatID)
	if err != nil {
		return err
	}

	chunks := splitMessage(msg.Content, maxMessageRunes)
	if len(chunks) == 0 {
		slog.Debug("telegram send skipped: empty message", "chat_id", chatID)
		return nil
	}

	for i, chunk := range chunks {
		params := tu.Message(tu.ID(chatID), chunk)
		if msg.Format == bus.FormatHTML {
			params.ParseMode = telego.ModeHTML
		}
		if msg.DisablePreview {
			params.LinkPreviewOptions = &telego.LinkPreviewOptions{IsDisabled: true}
		}
		if i == 0 && msg.ReplyTo > 0 {
			params.ReplyParameters = &telego.ReplyParameters{
				MessageID:                msg.ReplyTo,
				AllowSendingWithoutReply: true,
			}
		}
		if i == len(chunks)-1 && len(msg.Buttons) > 0 {
			params.ReplyMarkup = inlineKeyboard(msg.Buttons)
		}

		if err := c.sendMessage(ctx, params); err != nil {
			return fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func (c *Channel) sendMessage(ctx context.Context, params *telego.SendMessageParams) error {
	if err := c.sendLimiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.bot.SendMessage(ctx, params)
	if err == nil || params.ParseMode == "" || !isParseError(err) {
		return err
	}

	slog.Warn("telegram rejected HTML, resending as plain text", "chat_id", params.ChatID.ID, "error", err)
	params.ParseMode = ""
	params.Text = htmlToPlain(params.Text)

	if err := c.sendLimiter.Wait(ctx); err != nil {
		return err
	}
	_, err = c.bot.SendMessage(ctx, params)
	return err
}

func inlineKeyboard(buttons []bus.Button) *telego.InlineKeyboardMarkup {
	rows := make([][]telego.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []telego.InlineKeyboardButton{{Text: b.Text, URL: b.URL}})
	}
	return &telego.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// isParseError reports whether Telegram refused the message's markup.
func isParseError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "can't parse entities") || strings.Contains(msg, "can't parse entity")
}

// htmlToPlain drops tags and unescapes entities.
func htmlToPlain(s string) string {
	return html.UnescapeString(htmlTagPattern.ReplaceAllString(s, ""))
}

// splitMessage splits text into chunks of at most limit runes, preferring
// to break at a newline, then at a space.
func splitMessage(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	for utf8.RuneCountInString(text) > limit {
		cut := runeOffset(text, limit)
		window := text[:cut]
		if i := strings.LastIndexByte(window, '\n'); i > 0 {
			cut = i
		} else if i := strings.LastIndexByte(window, ' '); i > 0 {
			cut = i
		}
		chunks = append(chunks, strings.TrimRight(text[:cut], " \n"))
		text = strings.TrimLeft(text[cut:], " \n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// runeOffset returns the byte index just past the first n runes of s.
func runeOffset(s string, n int) int {
	i := 0
	for count := 0; count < n && i < len(s); count++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}
