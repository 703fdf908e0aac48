package proxy

import (
	"sync"
	"time"

	"discord-pk-bot/models"
)

// PendingBuffer holds user messages whose proxy fate is still unknown.
// Removal is the single point that decides who resolves an entry, so every
// operation runs under one lock for the whole map.
type PendingBuffer struct {
	mu      sync.Mutex
	entries map[string]models.PendingMessage
}

func NewPendingBuffer() *PendingBuffer {
	return &PendingBuffer{entries: make(map[string]models.PendingMessage)}
}

// Put buffers a message under id, replacing any previous entry.
func (b *PendingBuffer) Put(id string, p models.PendingMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[id] = p
}

// Remove deletes and returns the entry for id, if present.
func (b *PendingBuffer) Remove(id string) (models.PendingMessage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.entries[id]
	if ok {
		delete(b.entries, id)
	}
	return p, ok
}

// DrainOlderThan removes and returns every entry buffered before cutoff.
func (b *PendingBuffer) DrainOlderThan(cutoff time.Time) []models.PendingMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	var drained []models.PendingMessage
	for id, p := range b.entries {
		if p.CreatedAt.Before(cutoff) {
			drained = append(drained, p)
			delete(b.entries, id)
		}
	}
	return drained
}

func (b *PendingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
