package manager

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// Minimal lengths (in characters) for an exchange to be remembered.
const (
	minQuestionLen = 10
	minAnswerLen   = 5
)

// MemoryEntry is one remembered question/answer exchange.
type MemoryEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// MemoryRing is a bounded FIFO of recent exchanges used to augment prompts.
type MemoryRing struct {
	mu       sync.RWMutex
	entries  []MemoryEntry
	capacity int
}

// NewMemoryRing returns an empty ring holding at most capacity entries.
func NewMemoryRing(capacity int) *MemoryRing {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryRing{entries: make([]MemoryEntry, 0, capacity), capacity: capacity}
}

// Record appends an exchange, evicting the oldest entry when full. Trivial
// exchanges are dropped; the return value reports whether it was stored.
func (r *MemoryRing) Record(question, answer string) bool {
	if utf8.RuneCountInString(question) < minQuestionLen || utf8.RuneCountInString(answer) < minAnswerLen {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) >= r.capacity {
		copy(r.entries, r.entries[1:])
		r.entries = r.entries[:len(r.entries)-1]
	}
	r.entries = append(r.entries, MemoryEntry{Question: question, Answer: answer})
	return true
}

// Render joins entries oldest first as "Q: ...\nA: ..." lines.
func (r *MemoryRing) Render() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.entries) == 0 {
		return ""
	}
	var b strings.Builder
	for i, e := range r.entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("Q: ")
		b.WriteString(e.Question)
		b.WriteString("\nA: ")
		b.WriteString(e.Answer)
	}
	return b.String()
}

// Clear drops every entry.
func (r *MemoryRing) Clear() {
	r.mu.Lock()
	r.entries = r.entries[:0]
	r.mu.Unlock()
}

// Len returns the number of stored entries.
func (r *MemoryRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Capacity returns the maximum number of entries.
func (r *MemoryRing) Capacity() int { return r.capacity }

// Entries returns a copy of the stored entries, oldest first.
func (r *MemoryRing) Entries() []MemoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemoryEntry, len(r.entries))
	copy(out, r.entries)
	return out
}
