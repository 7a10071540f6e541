package mocks

import (
	"sync"

	"tkcollect/domain/contracts"
	"tkcollect/domain/manhwa"
)

// RecorderBus is a contracts.Broadcaster that records published messages in
// submission order per group key, and signals every publish on a channel so
// tests can wait for asynchronous broadcasts without sleeping.
type RecorderBus struct {
	mu        sync.Mutex
	published map[manhwa.GroupKey][]any
	Published chan any
}

// NewRecorderBus creates a recorder with a generously buffered signal channel.
func NewRecorderBus() *RecorderBus {
	return &RecorderBus{
		published: make(map[manhwa.GroupKey][]any),
		Published: make(chan any, 128),
	}
}

func (b *RecorderBus) Join(key manhwa.GroupKey, member contracts.BusMember) {}

func (b *RecorderBus) Leave(key manhwa.GroupKey, memberID string) {}

func (b *RecorderBus) Publish(key manhwa.GroupKey, message any) error {
	b.mu.Lock()
	b.published[key] = append(b.published[key], message)
	b.mu.Unlock()
	b.Published <- message
	return nil
}

// Messages returns the messages published to one key, in order.
func (b *RecorderBus) Messages(key manhwa.GroupKey) []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]any, len(b.published[key]))
	copy(out, b.published[key])
	return out
}
