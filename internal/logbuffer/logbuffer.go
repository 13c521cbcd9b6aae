package logbuffer

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one captured log line.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Buffer is a thread-safe ring of the most recent zerolog JSON lines. It is
// used as an extra writer next to stdout.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	count   int
}

// New creates a buffer holding at most size entries.
func New(size int) *Buffer {
	if size <= 0 {
		size = 1000
	}
	return &Buffer{entries: make([]Entry, size)}
}

// Write implements io.Writer. Each call carries one zerolog event.
func (b *Buffer) Write(p []byte) (int, error) {
	entry := parse(p)

	b.mu.Lock()
	b.entries[b.head] = entry
	b.head = (b.head + 1) % len(b.entries)
	if b.count < len(b.entries) {
		b.count++
	}
	b.mu.Unlock()

	return len(p), nil
}

// Recent returns up to n entries, oldest first.
func (b *Buffer) Recent(n int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || n > b.count {
		n = b.count
	}
	out := make([]Entry, n)
	start := (b.head - n + len(b.entries)) % len(b.entries)
	for i := 0; i < n; i++ {
		out[i] = b.entries[(start+i)%len(b.entries)]
	}
	return out
}

func parse(p []byte) Entry {
	entry := Entry{Timestamp: time.Now(), Level: zerolog.InfoLevel.String()}

	var fields map[string]any
	if err := json.Unmarshal(p, &fields); err != nil {
		entry.Message = strings.TrimSpace(string(p))
		return entry
	}

	if lvl, ok := fields[zerolog.LevelFieldName].(string); ok {
		entry.Level = lvl
		delete(fields, zerolog.LevelFieldName)
	}
	if msg, ok := fields[zerolog.MessageFieldName].(string); ok {
		entry.Message = msg
		delete(fields, zerolog.MessageFieldName)
	}
	delete(fields, zerolog.TimestampFieldName)
	if len(fields) > 0 {
		entry.Fields = fields
	}
	return entry
}
