package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tkcollect/domain/contracts"
	"tkcollect/domain/events"
	"tkcollect/domain/manhwa"
	"tkcollect/logging"
)

// QtBridge is the translate stage executor. Translation itself happens
// out-of-process in the comic-translate GUI: the bridge publishes a
// translation request to the qt control group and blocks until the GUI's
// done-signal comes back through the qt session, or the deadline passes.
//
// The waiter map is the once-only guard for a chapter's translation
// completion: Complete pops the waiter under the lock, so a late GUI signal
// racing a timeout can never fire the terminal transition twice.
type QtBridge struct {
	bus     contracts.Broadcaster
	timeout time.Duration
	logger  *logging.Logger

	mu      sync.Mutex
	waiters map[string]chan struct{}
}

// NewQtBridge creates a bridge publishing to the qt control group.
func NewQtBridge(bus contracts.Broadcaster, timeout time.Duration) *QtBridge {
	return &QtBridge{
		bus:     bus,
		timeout: timeout,
		logger:  logging.Default().WithComponent("qt_bridge"),
		waiters: make(map[string]chan struct{}),
	}
}

// Translate implements contracts.Translator.
func (b *QtBridge) Translate(ctx context.Context, seriesID string, index int, pages []string) error {
	key := waiterKey(seriesID, index)
	done := make(chan struct{})

	b.mu.Lock()
	if _, exists := b.waiters[key]; exists {
		b.mu.Unlock()
		return fmt.Errorf("translation already pending for %s/%d", seriesID, index)
	}
	b.waiters[key] = done
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		// Only clear our own registration; Complete may already have popped
		// it and a fresh Translate for the same chapter re-registered.
		if b.waiters[key] == done {
			delete(b.waiters, key)
		}
		b.mu.Unlock()
	}()

	request := events.NewTranslationRequest(seriesID, index, pages)
	if err := b.bus.Publish(manhwa.QtGroup, request); err != nil {
		return fmt.Errorf("failed to publish translation request: %w", err)
	}

	b.logger.Toonkor("Translation request sent to GUI", "series_id", seriesID, "chapter", index)

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("translation of %s/%d timed out after %s", seriesID, index, b.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Complete resolves the pending waiter for a chapter, if any. It returns
// false when no dispatcher is waiting, which means the GUI initiated the
// translation on its own and the caller owns the status transition.
func (b *QtBridge) Complete(seriesID string, index int) bool {
	key := waiterKey(seriesID, index)

	b.mu.Lock()
	done, ok := b.waiters[key]
	if ok {
		delete(b.waiters, key)
	}
	b.mu.Unlock()

	if !ok {
		return false
	}
	close(done)
	return true
}

func waiterKey(seriesID string, index int) string {
	return fmt.Sprintf("%s|%d", seriesID, index)
}
