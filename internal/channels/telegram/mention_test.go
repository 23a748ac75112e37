package telegram

import (
	"testing"

	"github.com/mymmrac/telego"
)

func TestUTF16Helpers(t *testing.T) {
	// "😀" is two UTF-16 units and four bytes.
	s := "😀 @skel_test_bot hi"
	if got := utf16OffsetToByteIndex(s, 3); got != 5 {
		t.Errorf("utf16OffsetToByteIndex = %d, want 5", got)
	}
	if got := sliceByUTF16(s, 3, 14); got != "@skel_test_bot" {
		t.Errorf("sliceByUTF16 = %q", got)
	}
	if got := sliceByUTF16(s, 100, 5); got != "" {
		t.Errorf("out of range slice = %q", got)
	}
	if got := utf16OffsetToByteIndex(s, 1000); got != len(s) {
		t.Errorf("clamped index = %d, want %d", got, len(s))
	}
}

func TestIsConversion(t *testing.T) {
	for text, want := range map[string]bool{
		"1 BTC":            true,
		"1 btc idr":        true,
		"0.5 ETH to USD":   true,
		"2,5 sol usdt":     true,
		" 100usdt ":        true,
		"btc price":        false,
		"1 BTC please now": false,
		"1 B":              false,
		"hello":            false,
	} {
		if got := isConversion(text); got != want {
			t.Errorf("isConversion(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text     string
		wantCmd  string
		wantArgs []string
		wantOK   bool
	}{
		{"/start", "start", nil, true},
		{"/Lang id", "lang", []string{"id"}, true},
		{"/gas@skel_test_bot  base   eur", "gas", []string{"base", "eur"}, true},
		{"/gas@SKEL_TEST_BOT", "gas", nil, true},
		{"/gas@other_bot base", "", nil, false},
		{"/", "", nil, false},
	}
	for _, tt := range tests {
		cmd, args, ok := parseCommand(tt.text, testBotUsername)
		if ok != tt.wantOK || cmd != tt.wantCmd || len(args) != len(tt.wantArgs) {
			t.Errorf("parseCommand(%q) = (%q, %v, %v), want (%q, %v, %v)",
				tt.text, cmd, args, ok, tt.wantCmd, tt.wantArgs, tt.wantOK)
			continue
		}
		for i := range args {
			if args[i] != tt.wantArgs[i] {
				t.Errorf("parseCommand(%q) arg %d = %q, want %q", tt.text, i, args[i], tt.wantArgs[i])
			}
		}
	}
}

func mentionEntity(text, mention string) telego.MessageEntity {
	// offsets in these fixtures are ASCII-only, so bytes == UTF-16 units
	for i := 0; i+len(mention) <= len(text); i++ {
		if text[i:i+len(mention)] == mention {
			return telego.MessageEntity{Type: "mention", Offset: i, Length: len(mention)}
		}
	}
	return telego.MessageEntity{}
}

// TestGroupContent verifies the group addressing rules applied to plain text.
func TestGroupContent(t *testing.T) {
	botReply := &telego.Message{From: &telego.User{ID: testBotID}}
	otherReply := &telego.Message{From: &telego.User{ID: 7}}

	tests := []struct {
		name     string
		text     string
		entities []telego.MessageEntity
		replyTo  *telego.Message
		isGroup  bool
		want     string
		wantOK   bool
	}{
		{"private passes through", "hello there", nil, nil, false, "hello there", true},
		{"group unaddressed dropped", "hello there", nil, nil, true, "", false},
		{"group conversion bypass", "1 BTC to IDR", nil, nil, true, "1 BTC to IDR", true},
		{"mention entity stripped", "@skel_test_bot  what is  eth?",
			[]telego.MessageEntity{mentionEntity("@skel_test_bot  what is  eth?", "@skel_test_bot")}, nil, true, "what is eth?", true},
		{"mention of other user ignored", "@alice what is eth?",
			[]telego.MessageEntity{mentionEntity("@alice what is eth?", "@alice")}, nil, true, "", false},
		{"tag in text without entity", "hey @Skel_Test_Bot price?", nil, nil, true, "hey price?", true},
		{"text mention", "Skel explain gas",
			[]telego.MessageEntity{{Type: "text_mention", Offset: 0, Length: 4, User: &telego.User{ID: testBotID}}}, nil, true, "explain gas", true},
		{"reply to bot", "and solana?", nil, botReply, true, "and solana?", true},
		{"reply to someone else", "and solana?", nil, otherReply, true, "", false},
		{"mention only dropped", "@skel_test_bot",
			[]telego.MessageEntity{{Type: "mention", Offset: 0, Length: 14}}, nil, true, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &telego.Message{Text: tt.text, Entities: tt.entities, ReplyToMessage: tt.replyTo}
			got, ok := groupContent(msg, tt.text, tt.entities, tt.isGroup, testBotID, testBotUsername)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (content %q)", ok, tt.wantOK, got)
			}
			if ok && got != tt.want {
				t.Errorf("content = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripBotReference_UTF16Offsets(t *testing.T) {
	text := "😀😀 @skel_test_bot gm"
	// two surrogate pairs plus a space: the mention starts at UTF-16 offset 5
	entities := []telego.MessageEntity{{Type: "mention", Offset: 5, Length: 14}}
	if got := stripBotReference(text, entities, testBotID, testBotUsername); got != "😀😀 gm" {
		t.Errorf("stripBotReference = %q", got)
	}
}
