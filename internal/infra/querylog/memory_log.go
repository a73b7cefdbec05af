package querylog

import (
	"context"
	"sync"

	"github.com/yanqian/ai-assistant/internal/domain/assistant"
)

const defaultCapacity = 500

// MemoryLog keeps the most recent analyzed queries in a ring buffer.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []assistant.QueryLogEntry
	next    int
	full    bool
	seq     int64
}

// NewMemoryLog constructs a log holding at most capacity entries.
func NewMemoryLog(capacity int) *MemoryLog {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &MemoryLog{entries: make([]assistant.QueryLogEntry, capacity)}
}

// Record appends entry, evicting the oldest one when full.
func (l *MemoryLog) Record(_ context.Context, entry assistant.QueryLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	entry.ID = l.seq
	l.entries[l.next] = entry
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	return nil
}

// Recent returns up to limit entries for chatID, newest first. An empty chatID
// matches every chat.
func (l *MemoryLog) Recent(_ context.Context, chatID string, limit int) ([]assistant.QueryLogEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := l.next
	if l.full {
		size = len(l.entries)
	}
	var out []assistant.QueryLogEntry
	for i := 0; i < size; i++ {
		idx := (l.next - 1 - i + len(l.entries)) % len(l.entries)
		entry := l.entries[idx]
		if chatID != "" && entry.ChatID != chatID {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

var _ assistant.QueryLog = (*MemoryLog)(nil)
