package dispatch

import (
	"strings"
	"sync"
)

// LanguageStore keeps the per-chat language preference in memory.
type LanguageStore struct {
	mu    sync.RWMutex
	prefs map[string]string
	def   string
}

// NewLanguageStore creates a store answering def for chats without a preference.
func NewLanguageStore(def string) *LanguageStore {
	def = strings.ToUpper(strings.TrimSpace(def))
	if def == "" {
		def = fallbackLanguage
	}
	return &LanguageStore{prefs: make(map[string]string), def: def}
}

// Get returns the chat's language or the default.
func (s *LanguageStore) Get(chatID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if lang, ok := s.prefs[chatID]; ok {
		return lang
	}
	return s.def
}

// Set stores lang for the chat.
func (s *LanguageStore) Set(chatID, lang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[chatID] = strings.ToUpper(lang)
}

// Default returns the language used for chats without a preference.
func (s *LanguageStore) Default() string { return s.def }

// Len returns the number of chats with an explicit preference.
func (s *LanguageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prefs)
}
