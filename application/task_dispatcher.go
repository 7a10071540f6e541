package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tkcollect/domain/contracts"
	"tkcollect/domain/events"
	"tkcollect/domain/manhwa"
	"tkcollect/logging"
)

// Validation errors rejected synchronously before any state is mutated.
var (
	ErrEmptyBatch      = errors.New("batch contains no chapters")
	ErrInvalidChapter  = errors.New("chapter index must be non-negative")
	ErrChapterInFlight = errors.New("chapter has an operation in flight")
	ErrWrongDispatcher = errors.New("remove requests go to the removal dispatcher")
	ErrEmptyTargets    = errors.New("removal request selects no artifact class")
)

// TaskDispatcher orchestrates download and translation batches. Submit
// applies the optimistic LOADING transition, writes through the status
// cache, broadcasts immediately, and schedules the stage executors off the
// request path. Terminal transitions are persisted durably and broadcast
// per chapter as each stage settles.
type TaskDispatcher struct {
	repo       contracts.ChapterRepository
	cache      contracts.StatusCache
	bus        contracts.Broadcaster
	downloader contracts.Downloader
	translator contracts.Translator
	locks      *chapterLocks
	sem        chan struct{}
	logger     *logging.Logger
}

// NewTaskDispatcher creates a task dispatcher. concurrency bounds how many
// chapter downloads run at once across all batches.
func NewTaskDispatcher(
	repo contracts.ChapterRepository,
	cache contracts.StatusCache,
	bus contracts.Broadcaster,
	downloader contracts.Downloader,
	translator contracts.Translator,
	concurrency int,
) *TaskDispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &TaskDispatcher{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		downloader: downloader,
		translator: translator,
		locks:      newChapterLocks(),
		sem:        make(chan struct{}, concurrency),
		logger:     logging.Default().WithComponent("task_dispatcher"),
	}
}

// Submit accepts a download/translate batch. It returns after the
// optimistic transitions are cached and the immediate progress broadcast
// is published; stage execution continues asynchronously.
func (d *TaskDispatcher) Submit(
	ctx context.Context,
	seriesID string,
	groupKey manhwa.GroupKey,
	kind manhwa.TaskKind,
	refs []manhwa.ChapterRef,
) error {
	if kind == manhwa.TaskRemove {
		return ErrWrongDispatcher
	}
	if len(refs) == 0 {
		return ErrEmptyBatch
	}

	fields := kind.Fields()

	// Validation pass: no state is mutated until the whole batch is legal.
	chapters := make([]*manhwa.Chapter, 0, len(refs))
	for _, ref := range refs {
		if ref.Index < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidChapter, ref.Index)
		}
		chapter, err := loadChapter(ctx, d.repo, d.cache, seriesID, ref.Index)
		if err != nil {
			return fmt.Errorf("failed to load chapter %d: %w", ref.Index, err)
		}
		if ref.Title != "" {
			chapter.Title = ref.Title
		}
		for _, field := range fields {
			if chapter.Field(field).IsInFlight() {
				return fmt.Errorf("%w: chapter %d %s is %s",
					ErrChapterInFlight, ref.Index, field, chapter.Field(field))
			}
		}
		chapters = append(chapters, chapter)
	}

	// Optimistic phase: LOADING transitions, written through the cache
	// before the immediate broadcast.
	lifecycle := &manhwa.ChapterLifecycle{}
	updates := make([]events.ChapterUpdate, 0, len(chapters))
	for _, chapter := range chapters {
		for _, field := range fields {
			if err := lifecycle.BeginLoading(chapter, field); err != nil {
				return fmt.Errorf("chapter %d: %w", chapter.Index, err)
			}
		}
		writeCache(d.cache, chapter, fields...)
		updates = append(updates, chapterUpdate(chapter, fields...))
	}

	progress := newBatchProgress(len(chapters))
	counter := progress.snapshot()
	if err := d.bus.Publish(groupKey, events.NewProgressMessage(updates, &counter)); err != nil {
		d.logger.Warn("Failed to publish immediate progress", "series_id", seriesID, "error", err)
	}

	d.logger.Dispatch("Batch accepted", seriesID,
		slog.String("task", string(kind)),
		slog.Int("chapters", len(chapters)))

	for _, chapter := range chapters {
		go d.runChapter(groupKey, kind, chapter, progress)
	}
	return nil
}

// runChapter executes the stage pipeline of one chapter. The chapter lock
// serializes it against any other batch targeting the same chapter; the
// semaphore bounds concurrent downloads only, so a chapter parked on the
// GUI translate wait holds no slot.
func (d *TaskDispatcher) runChapter(
	groupKey manhwa.GroupKey,
	kind manhwa.TaskKind,
	chapter *manhwa.Chapter,
	progress *batchProgress,
) {
	ctx := context.Background()

	unlock := d.locks.acquire(chapter.SeriesID, chapter.Index)
	defer unlock()

	// The durable write of the optimistic state may lag the broadcast; the
	// chapter lock keeps it ordered ahead of the terminal write. A failure
	// here is non-fatal to the batch.
	if err := d.repo.SaveChapter(ctx, chapter); err != nil {
		d.logger.DispatchError("Failed to persist optimistic status", err, chapter.SeriesID,
			slog.Int("chapter", chapter.Index))
	}

	var pages []string
	if kind == manhwa.TaskDownload || kind == manhwa.TaskDownloadTranslate {
		var err error
		pages, err = d.fetchChapter(ctx, chapter)
		counter := progress.increment()
		if err != nil {
			// A download failure also settles the optimistic translation
			// LOADING: that stage can never start without pages.
			failed := []manhwa.StatusField{manhwa.FieldDownload}
			if kind == manhwa.TaskDownloadTranslate {
				failed = append(failed, manhwa.FieldTranslation)
			}
			d.finishChapter(ctx, groupKey, chapter, failed, err, &counter)
			return
		}
		d.finishChapter(ctx, groupKey, chapter, []manhwa.StatusField{manhwa.FieldDownload}, nil, &counter)
	}

	if kind == manhwa.TaskTranslate || kind == manhwa.TaskDownloadTranslate {
		if kind == manhwa.TaskTranslate {
			var err error
			pages, err = d.downloader.Pages(chapter.SeriesID, chapter.Index)
			if err != nil {
				counter := progress.increment()
				d.finishChapter(ctx, groupKey, chapter, []manhwa.StatusField{manhwa.FieldTranslation}, err, &counter)
				return
			}
		}

		err := d.translator.Translate(ctx, chapter.SeriesID, chapter.Index, pages)

		var counter events.ProgressCounter
		if kind == manhwa.TaskTranslate {
			counter = progress.increment()
		} else {
			counter = progress.snapshot()
		}
		d.finishChapter(ctx, groupKey, chapter, []manhwa.StatusField{manhwa.FieldTranslation}, err, &counter)
	}
}

// fetchChapter runs the download stage under the concurrency semaphore.
// The slot is released before the translate stage starts so chapters
// waiting on the GUI never starve downloads belonging to other batches.
func (d *TaskDispatcher) fetchChapter(ctx context.Context, chapter *manhwa.Chapter) ([]string, error) {
	d.sem <- struct{}{}
	defer func() { <-d.sem }()
	return d.downloader.Download(ctx, chapter.SeriesID, chapter.Index)
}

// finishChapter applies the terminal transition for the given fields,
// persists it, reconciles the cache, and broadcasts the settled state.
// This is the only completion path for a chapter's stage, invoked exactly
// once per field per operation.
func (d *TaskDispatcher) finishChapter(
	ctx context.Context,
	groupKey manhwa.GroupKey,
	chapter *manhwa.Chapter,
	fields []manhwa.StatusField,
	stageErr error,
	counter *events.ProgressCounter,
) {
	lifecycle := &manhwa.ChapterLifecycle{}
	for _, field := range fields {
		var err error
		if stageErr != nil {
			err = lifecycle.FailOperation(chapter, field)
		} else {
			err = lifecycle.CompleteLoading(chapter, field)
		}
		if err != nil {
			d.logger.DispatchError("Illegal terminal transition", err, chapter.SeriesID,
				slog.Int("chapter", chapter.Index), slog.String("field", string(field)))
		}
	}

	persistTerminal(ctx, d.repo, d.cache, d.logger, chapter, fields)

	message := events.NewProgressMessage(
		[]events.ChapterUpdate{chapterUpdate(chapter, fields...)}, counter)
	if err := d.bus.Publish(groupKey, message); err != nil {
		d.logger.Warn("Failed to publish terminal progress",
			"series_id", chapter.SeriesID, "chapter", chapter.Index, "error", err)
	}

	if stageErr != nil {
		d.logger.DispatchError("Stage execution failed", stageErr, chapter.SeriesID,
			slog.Int("chapter", chapter.Index))
	}
}
