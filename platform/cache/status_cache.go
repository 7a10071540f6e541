package cache

import (
	"fmt"

	gocache "github.com/patrickmn/go-cache"

	"tkcollect/domain/manhwa"
)

// StatusCache is the process-wide fast-read view of chapter status fields.
// It bridges user-facing immediacy and store durability: dispatchers write
// through it before broadcasting, and readers overlay it on top of store
// rows. Entries live for the process lifetime; the fleet of active series
// is small relative to memory, so no eviction policy is applied.
type StatusCache struct {
	entries *gocache.Cache
}

// NewStatusCache creates an empty status cache.
func NewStatusCache() *StatusCache {
	return &StatusCache{
		entries: gocache.New(gocache.NoExpiration, 0),
	}
}

// Get returns the cached status of one chapter field. The second return
// value is false when the entry has never been written, which is distinct
// from an explicit NONE.
func (c *StatusCache) Get(seriesID string, index int, field manhwa.StatusField) (manhwa.Status, bool) {
	value, found := c.entries.Get(statusKey(seriesID, index, field))
	if !found {
		return "", false
	}
	return value.(manhwa.Status), true
}

// Set writes the current status of one chapter field. Safe under concurrent
// callers updating different chapters of the same series; a writer always
// observes its own write on a subsequent Get.
func (c *StatusCache) Set(seriesID string, index int, field manhwa.StatusField, status manhwa.Status) {
	c.entries.Set(statusKey(seriesID, index, field), status, gocache.NoExpiration)
}

func statusKey(seriesID string, index int, field manhwa.StatusField) string {
	return fmt.Sprintf("%s|%d|%s", seriesID, index, field)
}
