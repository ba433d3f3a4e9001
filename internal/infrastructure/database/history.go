package database

import "time"

// DefaultHistoryLimit bounds the in-memory statement history
const DefaultHistoryLimit = 1000

// HistoryEntry records one executed statement. Durations are in seconds.
type HistoryEntry struct {
	Statement          string    `json:"statement"`
	StartedAt          time.Time `json:"started_at"`
	Duration           float64   `json:"duration"`
	Error              string    `json:"error,omitempty"`
	CumulativeDuration float64   `json:"cumulative_duration"`
	Occurrences        int       `json:"occurrences"`
}

// history is an append-only log that evicts its oldest entries past limit
type history struct {
	limit       int
	entries     []HistoryEntry
	occurrences map[string]int
}

func newHistory(limit int) *history {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &history{limit: limit, occurrences: make(map[string]int)}
}

func (h *history) add(entry HistoryEntry) HistoryEntry {
	h.occurrences[entry.Statement]++
	entry.Occurrences = h.occurrences[entry.Statement]

	if len(h.entries) >= h.limit {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:len(h.entries)-1]
	}
	h.entries = append(h.entries, entry)
	return entry
}

func (h *history) snapshot() []HistoryEntry {
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *history) reset() {
	h.entries = nil
	h.occurrences = make(map[string]int)
}
