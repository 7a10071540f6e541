package contracts

import "tkcollect/domain/manhwa"

// BusMember is one subscriber of a broadcast group, typically a live
// websocket session. Deliver must not block the bus: implementations queue
// into a bounded per-connection outbox and return an error when the member
// cannot accept the payload.
type BusMember interface {
	ID() string
	Deliver(payload []byte) error
}

// Broadcaster fans messages out to every current member of a group.
// Publish preserves submission order per group key; delivery to a failed
// member is logged and skipped, never raised back to the publisher.
type Broadcaster interface {
	Join(key manhwa.GroupKey, member BusMember)
	Leave(key manhwa.GroupKey, memberID string)
	Publish(key manhwa.GroupKey, message any) error
}

// StatusCache is the process-wide fast-read view of chapter status fields.
// Get distinguishes a never-written entry (ok == false) from an explicit
// NONE. Entries live for the process lifetime.
type StatusCache interface {
	Get(seriesID string, index int, field manhwa.StatusField) (manhwa.Status, bool)
	Set(seriesID string, index int, field manhwa.StatusField, status manhwa.Status)
}
