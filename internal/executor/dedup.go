package executor

import (
	"encoding/hex"
	"sort"
	"strings"
	"sync"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

// DedupKey identifies a logical action by destination and calldata. Two
// requests with the same key are the same ledger write.
func DedupKey(to string, data []byte) string {
	return strings.ToLower(to) + ":" + hex.EncodeToString(data)
}

// History holds the in-flight record for every unconfirmed action. It is
// safe for concurrent use.
type History struct {
	records map[string]*domain.TxRecord // dedup key -> record
	mu      sync.Mutex
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{records: make(map[string]*domain.TxRecord)}
}

// Reserve records rec under rec.Key. It returns false and leaves the history
// untouched when the key is already in flight.
func (h *History) Reserve(rec domain.TxRecord) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.records[rec.Key]; ok {
		return false
	}
	cp := rec.Clone()
	h.records[rec.Key] = &cp
	return true
}

// Update applies fn to the record under key. It is a no-op for unknown keys.
func (h *History) Update(key string, fn func(*domain.TxRecord)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rec, ok := h.records[key]; ok {
		fn(rec)
	}
}

// Get returns a copy of the record under key.
func (h *History) Get(key string) (domain.TxRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec, ok := h.records[key]
	if !ok {
		return domain.TxRecord{}, false
	}
	return rec.Clone(), true
}

// Release drops key so the action may be submitted again.
func (h *History) Release(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.records, key)
}

// Len reports the number of in-flight actions.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// List returns copies of all in-flight records ordered by submission time.
func (h *History) List() []domain.TxRecord {
	h.mu.Lock()
	out := make([]domain.TxRecord, 0, len(h.records))
	for _, rec := range h.records {
		out = append(out, rec.Clone())
	}
	h.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}
