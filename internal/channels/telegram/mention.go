package telegram

import (
	"regexp"
	"strings"

	"github.com/mymmrac/telego"
)

// conversionPattern matches bare price conversions such as "1 BTC",
// "0.5 eth idr" or "1 BTC to USD". Groups answer them without a mention.
var conversionPattern = regexp.MustCompile(`(?i)^\s*(\d+(?:[.,]\d+)?)\s*([A-Za-z0-9]{2,10})(?:\s*(?:to)?\s*([A-Za-z]{2,10}))?\s*$`)

// isConversion reports whether text is a bare price conversion request.
func isConversion(text string) bool {
	return conversionPattern.MatchString(text)
}

// isBotAddressed reports whether a group message is directed at the bot:
// a reply to the bot, an @mention entity of its username, or a
// text_mention of its user.
func isBotAddressed(msg *telego.Message, text string, entities []telego.MessageEntity, botID int64, botUsername string) bool {
	if reply := msg.ReplyToMessage; reply != nil && reply.From != nil && reply.From.ID == botID {
		return true
	}
	for _, e := range entities {
		if entityIsBot(text, e, botID, botUsername) {
			return true
		}
	}
	return false
}

// entityIsBot reports whether a mention or text_mention entity names the bot.
func entityIsBot(text string, e telego.MessageEntity, botID int64, botUsername string) bool {
	switch e.Type {
	case "mention":
		if botUsername == "" {
			return false
		}
		return strings.EqualFold(sliceByUTF16(text, e.Offset, e.Length), "@"+botUsername)
	case "text_mention":
		return e.User != nil && e.User.ID == botID
	}
	return false
}

// stripBotReference removes the bot's mention entities and any remaining
// "@botname" occurrences, then collapses whitespace.
func stripBotReference(text string, entities []telego.MessageEntity, botID int64, botUsername string) string {
	var b strings.Builder
	cursor := 0
	for _, e := range entities {
		if !entityIsBot(text, e, botID, botUsername) {
			continue
		}
		start := utf16OffsetToByteIndex(text, e.Offset)
		end := utf16OffsetToByteIndex(text, e.Offset+e.Length)
		if start < cursor {
			continue
		}
		b.WriteString(text[cursor:start])
		b.WriteByte(' ')
		cursor = end
	}
	b.WriteString(text[cursor:])
	cleaned := b.String()

	if botUsername != "" {
		cleaned = replaceFold(cleaned, "@"+botUsername, " ")
	}
	return strings.Join(strings.Fields(cleaned), " ")
}

// containsFold reports whether substr occurs in s ignoring ASCII case.
func containsFold(s, substr string) bool {
	return substr != "" && strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// replaceFold replaces every case-insensitive occurrence of old in s.
// old must be ASCII (Telegram usernames are).
func replaceFold(s, old, repl string) string {
	if old == "" {
		return s
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(old))
	return re.ReplaceAllLiteralString(s, repl)
}

// sliceByUTF16 returns the substring addressed by a Telegram entity, whose
// offset and length count UTF-16 code units.
func sliceByUTF16(s string, offset, length int) string {
	if offset < 0 {
		offset = 0
	}
	if length <= 0 || s == "" {
		return ""
	}
	start := utf16OffsetToByteIndex(s, offset)
	end := utf16OffsetToByteIndex(s, offset+length)
	if start > end {
		return ""
	}
	return s[start:end]
}

// utf16OffsetToByteIndex maps a UTF-16 offset to a byte index in s,
// clamped to len(s).
func utf16OffsetToByteIndex(s string, offset int) int {
	if offset <= 0 {
		return 0
	}
	units := 0
	for i, r := range s {
		if units >= offset {
			return i
		}
		if r <= 0xFFFF {
			units++
		} else {
			units += 2
		}
	}
	return len(s)
}
