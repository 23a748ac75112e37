package sessions

import (
	"sync"
	"testing"
)

func TestBuildSessionKey(t *testing.T) {
	tests := []struct {
		name   string
		kind   PeerKind
		chatID string
		userID string
		want   string
	}{
		{"direct ignores user", PeerDirect, "386246614", "386246614", "386246614"},
		{"group scopes per user", PeerGroup, "-100123456", "42", "-100123456:42"},
		{"group without user", PeerGroup, "-100123456", "", "-100123456"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildSessionKey(tt.kind, tt.chatID, tt.userID); got != tt.want {
				t.Errorf("BuildSessionKey = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPeerKindFromChatType(t *testing.T) {
	for chatType, want := range map[string]PeerKind{
		"private":    PeerDirect,
		"group":      PeerGroup,
		"supergroup": PeerGroup,
		"channel":    PeerDirect,
	} {
		if got := PeerKindFromChatType(chatType); got != want {
			t.Errorf("PeerKindFromChatType(%q) = %q, want %q", chatType, got, want)
		}
	}
}

// TestManager_TouchIsStable verifies the activity ID survives across turns
// and changes after Reset.
func TestManager_TouchIsStable(t *testing.T) {
	m := NewManager()

	first := m.Touch("chat-1")
	if first == "" {
		t.Fatal("empty activity ID")
	}
	if again := m.Touch("chat-1"); again != first {
		t.Errorf("activity ID changed between turns: %q -> %q", first, again)
	}
	if other := m.Touch("chat-2"); other == first {
		t.Error("distinct sessions share an activity ID")
	}

	if !m.Reset("chat-1") {
		t.Error("Reset reported no session")
	}
	if m.Reset("chat-1") {
		t.Error("second Reset reported a session")
	}
	if m.Len() != 1 || m.Turns() != 1 {
		t.Errorf("after Reset: Len = %d, Turns = %d, want 1, 1", m.Len(), m.Turns())
	}
	if fresh := m.Touch("chat-1"); fresh == first {
		t.Error("activity ID reused after Reset")
	}
	if m.Len() != 2 || m.Turns() != 2 {
		t.Errorf("Len = %d, Turns = %d, want 2, 2", m.Len(), m.Turns())
	}
}

func TestManager_ConcurrentTouch(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	ids := make([]string, 32)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = m.Touch("shared")
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("concurrent Touch produced different IDs: %q vs %q", id, ids[0])
		}
	}
}
