package events

import (
	"encoding/json"
	"fmt"
	"sync"

	"tkcollect/domain/contracts"
	"tkcollect/domain/manhwa"
	"tkcollect/logging"
)

// BroadcastBus maintains named subscriber groups and fans messages out to
// every current member of a group. Publishes to the same key are serialized
// on the group's lock, so every member observes messages for one key in
// submission order. Delivery to a failed member is logged and skipped; the
// member's own session lifecycle is responsible for leaving the group.
type BroadcastBus struct {
	mu     sync.RWMutex
	groups map[manhwa.GroupKey]*group
	logger *logging.Logger
}

// group holds the live members of one key. The group mutex both guards the
// member map and serializes publishes for the key.
type group struct {
	mu      sync.Mutex
	members map[string]contracts.BusMember
}

// NewBroadcastBus creates an empty bus.
func NewBroadcastBus() *BroadcastBus {
	return &BroadcastBus{
		groups: make(map[manhwa.GroupKey]*group),
		logger: logging.Default().WithComponent("broadcast_bus"),
	}
}

// Join adds a member to a group, creating the group on first join.
func (b *BroadcastBus) Join(key manhwa.GroupKey, member contracts.BusMember) {
	b.mu.Lock()
	g, ok := b.groups[key]
	if !ok {
		g = &group{members: make(map[string]contracts.BusMember)}
		b.groups[key] = g
	}
	b.mu.Unlock()

	g.mu.Lock()
	g.members[member.ID()] = member
	memberCount := len(g.members)
	g.mu.Unlock()

	b.logger.Transport("Member joined group", "group", string(key), "member_id", member.ID(), "members", memberCount)
}

// Leave removes a member from a group. Removing the last member drops the
// group so long-gone series do not accumulate empty entries.
func (b *BroadcastBus) Leave(key manhwa.GroupKey, memberID string) {
	b.mu.RLock()
	g, ok := b.groups[key]
	b.mu.RUnlock()
	if !ok {
		return
	}

	g.mu.Lock()
	delete(g.members, memberID)
	empty := len(g.members) == 0
	g.mu.Unlock()

	if empty {
		b.mu.Lock()
		// Re-check under the write lock; a concurrent Join may have raced.
		g.mu.Lock()
		if len(g.members) == 0 {
			delete(b.groups, key)
		}
		g.mu.Unlock()
		b.mu.Unlock()
	}

	b.logger.Transport("Member left group", "group", string(key), "member_id", memberID)
}

// Publish delivers a message to every current member of a group. The
// message is marshalled once; a member that cannot accept the payload is
// logged and skipped without affecting the other members or the publisher.
func (b *BroadcastBus) Publish(key manhwa.GroupKey, message any) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast for %s: %w", key, err)
	}

	b.mu.RLock()
	g, ok := b.groups[key]
	b.mu.RUnlock()
	if !ok {
		b.logger.Debug("No members in group, dropping broadcast", "group", string(key))
		return nil
	}

	// Deliveries run under the group lock to keep per-key submission order.
	// Deliver is a bounded enqueue on the member side, never blocking I/O.
	g.mu.Lock()
	defer g.mu.Unlock()

	delivered := 0
	for memberID, member := range g.members {
		if err := member.Deliver(payload); err != nil {
			b.logger.Warn("Failed to deliver broadcast to member",
				"group", string(key),
				"member_id", memberID,
				"error", err)
			continue
		}
		delivered++
	}

	b.logger.Debug("Broadcast delivered", "group", string(key), "members", delivered)
	return nil
}

// MemberCount returns the number of live members in a group.
func (b *BroadcastBus) MemberCount(key manhwa.GroupKey) int {
	b.mu.RLock()
	g, ok := b.groups[key]
	b.mu.RUnlock()
	if !ok {
		return 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}
