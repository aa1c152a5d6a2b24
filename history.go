package imagegen

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// historySeq makes keys unique even when two entries share a millisecond.
var historySeq atomic.Uint64

// MemoryHistory is an append-only, process-lifetime History.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []HistoryEntry
	now     func() time.Time
}

// Ensure MemoryHistory implements History.
var _ History = (*MemoryHistory)(nil)

// NewMemoryHistory creates an empty ledger.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{now: time.Now}
}

// Record appends entry under a fresh key. Timestamp is set when zero.
func (h *MemoryHistory) Record(entry HistoryEntry) string {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = h.now()
	}
	entry.ID = fmt.Sprintf("gen_%d_%d", entry.Timestamp.UnixMilli(), historySeq.Add(1))

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	return entry.ID
}

// List returns a copy of every entry in insertion order.
func (h *MemoryHistory) List() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
