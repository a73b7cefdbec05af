package prefstore

import (
	"context"
	"sort"
	"sync"

	"github.com/yanqian/ai-assistant/internal/domain/assistant"
)

// MemoryStore keeps chat preferences in process memory for tests/dev.
type MemoryStore struct {
	mu    sync.RWMutex
	prefs map[string]assistant.Preferences
}

// NewMemoryStore constructs a store backed by process memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prefs: make(map[string]assistant.Preferences)}
}

// Get implements assistant.PreferenceStore.
func (s *MemoryStore) Get(_ context.Context, chatID string) (assistant.Preferences, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefs, ok := s.prefs[chatID]
	return prefs, ok, nil
}

// Save replaces the preferences of prefs.ChatID.
func (s *MemoryStore) Save(_ context.Context, prefs assistant.Preferences) error {
	if prefs.ChatID == "" {
		return errEmptyChatID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[prefs.ChatID] = prefs
	return nil
}

// Subscribers lists chats opted into the daily briefing, sorted.
func (s *MemoryStore) Subscribers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.prefs))
	for id, prefs := range s.prefs {
		if prefs.Subscribed {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

var _ assistant.PreferenceStore = (*MemoryStore)(nil)
