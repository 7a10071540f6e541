package application

import (
	"context"
	"sync"

	"tkcollect/domain/contracts"
	"tkcollect/domain/events"
	"tkcollect/domain/manhwa"
	"tkcollect/logging"
)

// batchProgress tracks the {current,total} counter of one batch under
// concurrent per-chapter completions.
type batchProgress struct {
	mu      sync.Mutex
	current int
	total   int
}

func newBatchProgress(total int) *batchProgress {
	return &batchProgress{total: total}
}

// increment advances the counter and returns the new snapshot.
func (p *batchProgress) increment() events.ProgressCounter {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current++
	return events.ProgressCounter{Current: p.current, Total: p.total}
}

// snapshot returns the counter without advancing it.
func (p *batchProgress) snapshot() events.ProgressCounter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return events.ProgressCounter{Current: p.current, Total: p.total}
}

// chapterUpdate builds a wire update carrying only the named fields.
func chapterUpdate(chapter *manhwa.Chapter, fields ...manhwa.StatusField) events.ChapterUpdate {
	update := events.ChapterUpdate{Index: chapter.Index}
	for _, field := range fields {
		switch field {
		case manhwa.FieldDownload:
			update.DownloadStatus = chapter.DownloadStatus
		case manhwa.FieldTranslation:
			update.TranslationStatus = chapter.TranslationStatus
		}
	}
	return update
}

// writeCache writes the named chapter fields through the status cache.
func writeCache(cache contracts.StatusCache, chapter *manhwa.Chapter, fields ...manhwa.StatusField) {
	for _, field := range fields {
		cache.Set(chapter.SeriesID, chapter.Index, field, chapter.Field(field))
	}
}

// loadChapter reads a chapter from the store and overlays any fresher
// cached status values. The cache is advisory: it reflects optimistic
// transitions the durable write may not have caught up with yet.
func loadChapter(
	ctx context.Context,
	repo contracts.ChapterRepository,
	cache contracts.StatusCache,
	seriesID string,
	index int,
) (*manhwa.Chapter, error) {
	chapter, err := repo.GetChapter(ctx, seriesID, index)
	if err != nil {
		return nil, err
	}
	for _, field := range []manhwa.StatusField{manhwa.FieldDownload, manhwa.FieldTranslation} {
		if status, ok := cache.Get(seriesID, index, field); ok {
			chapter.SetField(field, status)
		}
	}
	return chapter, nil
}

// persistTerminal saves a chapter's terminal state durably. On a store
// failure the chapter's affected fields and the cache are reconciled to
// ERROR so a false READY/NONE never outlives the failed write.
func persistTerminal(
	ctx context.Context,
	repo contracts.ChapterRepository,
	cache contracts.StatusCache,
	logger *logging.Logger,
	chapter *manhwa.Chapter,
	fields []manhwa.StatusField,
) {
	if err := repo.SaveChapter(ctx, chapter); err != nil {
		logger.DispatchError("Failed to persist terminal status, reconciling cache to ERROR",
			err, chapter.SeriesID)
		for _, field := range fields {
			chapter.SetField(field, manhwa.StatusError)
		}
	}
	writeCache(cache, chapter, fields...)
}
