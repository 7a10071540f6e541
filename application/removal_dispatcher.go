package application

import (
	"context"
	"fmt"
	"log/slog"

	"tkcollect/domain/contracts"
	"tkcollect/domain/events"
	"tkcollect/domain/manhwa"
	"tkcollect/logging"
)

// RemovalDispatcher orchestrates artifact deletion batches. It mirrors the
// TaskDispatcher's two phases: optimistic REMOVING transition plus an
// immediate broadcast with no progress counter, then asynchronous per-class
// deletion driving each field's own terminal transition.
type RemovalDispatcher struct {
	repo    contracts.ChapterRepository
	cache   contracts.StatusCache
	bus     contracts.Broadcaster
	cleaner contracts.ArtifactCleaner
	locks   *chapterLocks
	logger  *logging.Logger
}

// NewRemovalDispatcher creates a removal dispatcher sharing the task
// dispatcher's per-chapter lock table.
func NewRemovalDispatcher(
	repo contracts.ChapterRepository,
	cache contracts.StatusCache,
	bus contracts.Broadcaster,
	cleaner contracts.ArtifactCleaner,
	tasks *TaskDispatcher,
) *RemovalDispatcher {
	return &RemovalDispatcher{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		cleaner: cleaner,
		// One lock table across both dispatchers: a removal can never
		// interleave with a download or translation of the same chapter.
		locks:  tasks.locks,
		logger: logging.Default().WithComponent("removal_dispatcher"),
	}
}

// SubmitRemoval accepts a removal batch. A chapter whose targeted field has
// an operation in flight rejects the whole batch synchronously with no
// state mutated and no broadcast; fields holding no artifact (NONE/ERROR)
// are skipped rather than rejected.
func (d *RemovalDispatcher) SubmitRemoval(
	ctx context.Context,
	seriesID string,
	groupKey manhwa.GroupKey,
	refs []manhwa.ChapterRef,
	targets manhwa.RemovalTargets,
) error {
	if len(refs) == 0 {
		return ErrEmptyBatch
	}
	if targets.IsEmpty() {
		return ErrEmptyTargets
	}

	classes := targets.Classes()

	// Validation pass. classesFor collects, per chapter, the classes whose
	// field is actually READY and therefore cycles REMOVING -> NONE.
	chapters := make([]*manhwa.Chapter, 0, len(refs))
	classesFor := make(map[int][]manhwa.ArtifactClass, len(refs))
	for _, ref := range refs {
		if ref.Index < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidChapter, ref.Index)
		}
		chapter, err := loadChapter(ctx, d.repo, d.cache, seriesID, ref.Index)
		if err != nil {
			return fmt.Errorf("failed to load chapter %d: %w", ref.Index, err)
		}
		for _, class := range classes {
			field := class.Field()
			status := chapter.Field(field)
			if status.IsInFlight() {
				return fmt.Errorf("%w: chapter %d %s is %s",
					ErrChapterInFlight, ref.Index, field, status)
			}
			if status == manhwa.StatusReady {
				classesFor[ref.Index] = append(classesFor[ref.Index], class)
			}
		}
		chapters = append(chapters, chapter)
	}

	// Optimistic phase: REMOVING transitions and cache writes, then one
	// broadcast with an empty progress counter.
	lifecycle := &manhwa.ChapterLifecycle{}
	var updates []events.ChapterUpdate
	for _, chapter := range chapters {
		fields := fieldsOf(classesFor[chapter.Index])
		if len(fields) == 0 {
			continue
		}
		for _, field := range fields {
			if err := lifecycle.BeginRemoving(chapter, field); err != nil {
				return fmt.Errorf("chapter %d: %w", chapter.Index, err)
			}
		}
		writeCache(d.cache, chapter, fields...)
		updates = append(updates, chapterUpdate(chapter, fields...))
	}

	if len(updates) == 0 {
		// Nothing holds an artifact; the request is a no-op, not an error.
		d.logger.Dispatch("Removal batch had no removable artifacts", seriesID)
		return nil
	}

	if err := d.bus.Publish(groupKey, events.NewProgressMessage(updates, nil)); err != nil {
		d.logger.Warn("Failed to publish immediate removal progress", "series_id", seriesID, "error", err)
	}

	d.logger.Dispatch("Removal batch accepted", seriesID,
		slog.Int("chapters", len(updates)),
		slog.Bool("downloaded", targets.Downloaded),
		slog.Bool("translated", targets.Translated))

	for _, chapter := range chapters {
		if len(classesFor[chapter.Index]) == 0 {
			continue
		}
		go d.runRemoval(groupKey, chapter, classesFor[chapter.Index])
	}
	return nil
}

// runRemoval deletes the selected artifact classes of one chapter. Each
// class drives only its own status field; one class failing never blocks
// the other.
func (d *RemovalDispatcher) runRemoval(
	groupKey manhwa.GroupKey,
	chapter *manhwa.Chapter,
	classes []manhwa.ArtifactClass,
) {
	ctx := context.Background()

	unlock := d.locks.acquire(chapter.SeriesID, chapter.Index)
	defer unlock()

	if err := d.repo.SaveChapter(ctx, chapter); err != nil {
		d.logger.DispatchError("Failed to persist optimistic removal status", err, chapter.SeriesID,
			slog.Int("chapter", chapter.Index))
	}

	lifecycle := &manhwa.ChapterLifecycle{}
	for _, class := range classes {
		field := class.Field()

		deleteErr := d.cleaner.Delete(ctx, chapter.SeriesID, chapter.Index, class)

		var err error
		if deleteErr != nil {
			err = lifecycle.FailOperation(chapter, field)
		} else {
			err = lifecycle.CompleteRemoving(chapter, field)
		}
		if err != nil {
			d.logger.DispatchError("Illegal removal transition", err, chapter.SeriesID,
				slog.Int("chapter", chapter.Index), slog.String("field", string(field)))
		}

		persistTerminal(ctx, d.repo, d.cache, d.logger, chapter, []manhwa.StatusField{field})

		message := events.NewProgressMessage(
			[]events.ChapterUpdate{chapterUpdate(chapter, field)}, nil)
		if err := d.bus.Publish(groupKey, message); err != nil {
			d.logger.Warn("Failed to publish removal progress",
				"series_id", chapter.SeriesID, "chapter", chapter.Index, "error", err)
		}

		if deleteErr != nil {
			d.logger.DispatchError("Artifact deletion failed", deleteErr, chapter.SeriesID,
				slog.Int("chapter", chapter.Index), slog.String("class", string(class)))
		}
	}
}

func fieldsOf(classes []manhwa.ArtifactClass) []manhwa.StatusField {
	fields := make([]manhwa.StatusField, 0, len(classes))
	for _, class := range classes {
		fields = append(fields, class.Field())
	}
	return fields
}
