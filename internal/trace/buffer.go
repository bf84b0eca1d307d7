package trace

import "sync"

// Buffer keeps the most recent completed spans in memory, bounded to maxSize.
// Older records are dropped as new ones arrive.
type Buffer struct {
	mu      sync.Mutex
	records []Record
	maxSize int
}

func NewBuffer(maxSize int) *Buffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Buffer{maxSize: maxSize}
}

// Add appends a record, evicting the oldest when full.
func (b *Buffer) Add(rec Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, rec)
	if len(b.records) > b.maxSize {
		b.records = b.records[len(b.records)-b.maxSize:]
	}
}

// Records returns a snapshot of buffered records, oldest first.
func (b *Buffer) Records() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// Clear drops all buffered records.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = nil
}
