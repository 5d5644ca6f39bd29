package diagnostics

import "sync"

// LogBuffer keeps the most recent request and login-failure lines in a ring.
type LogBuffer struct {
	mu    sync.RWMutex
	lines []string
	next  int
	full  bool
}

// NewLogBuffer builds buffer.
func NewLogBuffer(limit int) *LogBuffer {
	if limit <= 0 {
		limit = 100
	}
	return &LogBuffer{lines: make([]string, limit)}
}

// Append stores a line, evicting the oldest when full.
func (b *LogBuffer) Append(entry string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines[b.next] = entry
	b.next = (b.next + 1) % len(b.lines)
	if b.next == 0 {
		b.full = true
	}
}

// Snapshot returns up to limit lines, oldest first. A limit <= 0 returns everything.
func (b *LogBuffer) Snapshot(limit int) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []string
	if b.full {
		out = append(out, b.lines[b.next:]...)
	}
	out = append(out, b.lines[:b.next]...)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
