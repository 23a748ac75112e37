// Package sessions — session key builder and activity registry.
//
// A session key scopes one conversation with the agent:
//
//	DM:    {chatID}
//	Group: {chatID}:{userID}
//
// Group members each get their own thread so one person's /reset does not
// wipe another's context.
//
// Examples:
//
//	386246614
//	-100123456:386246614
package sessions

import "fmt"

// PeerKind distinguishes DM from group conversations.
type PeerKind string

const (
	PeerDirect PeerKind = "direct"
	PeerGroup  PeerKind = "group"
)

// BuildSessionKey builds the session key for a conversation.
// userID is ignored for direct chats and when empty.
func BuildSessionKey(kind PeerKind, chatID, userID string) string {
	if kind == PeerGroup && userID != "" {
		return fmt.Sprintf("%s:%s", chatID, userID)
	}
	return chatID
}

// PeerKindFromGroup returns PeerGroup if isGroup is true, PeerDirect otherwise.
func PeerKindFromGroup(isGroup bool) PeerKind {
	if isGroup {
		return PeerGroup
	}
	return PeerDirect
}

// PeerKindFromChatType maps a Telegram chat type to a PeerKind.
// Channels and unknown types are treated as direct.
func PeerKindFromChatType(chatType string) PeerKind {
	return PeerKindFromGroup(chatType == "group" || chatType == "supergroup")
}
