package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tkcollect/domain/manhwa"
	"tkcollect/platform/cache"
	"tkcollect/test/mocks"
)

func newRemovalFixture() (*RemovalDispatcher, *mocks.MockChapterRepository, *mocks.MockArtifactCleaner, *cache.StatusCache, *mocks.RecorderBus) {
	repo := &mocks.MockChapterRepository{}
	cleaner := &mocks.MockArtifactCleaner{}
	statusCache := cache.NewStatusCache()
	bus := mocks.NewRecorderBus()

	tasks := NewTaskDispatcher(repo, statusCache, bus, &mocks.MockDownloader{}, &mocks.MockTranslator{}, 4)
	dispatcher := NewRemovalDispatcher(repo, statusCache, bus, cleaner, tasks)
	return dispatcher, repo, cleaner, statusCache, bus
}

func readyChapter(seriesID string, index int, fields ...manhwa.StatusField) *manhwa.Chapter {
	chapter := manhwa.NewChapter(seriesID, index)
	for _, field := range fields {
		chapter.SetField(field, manhwa.StatusReady)
	}
	return chapter
}

func TestRemovalDispatcher_DownloadedOnlyTouchesDownloadField(t *testing.T) {
	dispatcher, repo, cleaner, statusCache, bus := newRemovalFixture()
	key := manhwa.EncodeSeriesID(testSeries)

	repo.On("GetChapter", mock.Anything, testSeries, 1).
		Return(readyChapter(testSeries, 1, manhwa.FieldDownload, manhwa.FieldTranslation), nil)
	repo.On("SaveChapter", mock.Anything, mock.Anything).Return(nil)
	cleaner.On("Delete", mock.Anything, testSeries, 1, manhwa.ArtifactDownloaded).Return(nil)

	err := dispatcher.SubmitRemoval(context.Background(), testSeries, key,
		[]manhwa.ChapterRef{{Index: 1}}, manhwa.RemovalTargets{Downloaded: true})
	require.NoError(t, err)

	waitForPublishes(t, bus, 2)

	messages := progressMessages(t, bus, key)
	require.Len(t, messages, 2)
	assert.Nil(t, messages[0].Progress, "removal broadcasts carry no progress counter")
	assert.Equal(t, manhwa.StatusRemoving, messages[0].Chapters[0].DownloadStatus)
	assert.Empty(t, messages[0].Chapters[0].TranslationStatus)
	assert.Equal(t, manhwa.StatusNone, messages[1].Chapters[0].DownloadStatus)

	status, _ := statusCache.Get(testSeries, 1, manhwa.FieldDownload)
	assert.Equal(t, manhwa.StatusNone, status)
	status, _ = statusCache.Get(testSeries, 1, manhwa.FieldTranslation)
	assert.Equal(t, manhwa.StatusReady, status, "untargeted field stays untouched")

	cleaner.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything, manhwa.ArtifactTranslated)
}

func TestRemovalDispatcher_RejectsInFlightChapter(t *testing.T) {
	dispatcher, repo, _, statusCache, bus := newRemovalFixture()
	key := manhwa.EncodeSeriesID(testSeries)

	repo.On("GetChapter", mock.Anything, testSeries, 2).Return(manhwa.NewChapter(testSeries, 2), nil)
	statusCache.Set(testSeries, 2, manhwa.FieldDownload, manhwa.StatusLoading)

	err := dispatcher.SubmitRemoval(context.Background(), testSeries, key,
		[]manhwa.ChapterRef{{Index: 2}}, manhwa.RemovalTargets{Downloaded: true})
	assert.ErrorIs(t, err, ErrChapterInFlight)
	assert.Empty(t, bus.Messages(key))

	status, _ := statusCache.Get(testSeries, 2, manhwa.FieldDownload)
	assert.Equal(t, manhwa.StatusLoading, status, "rejection must not disturb the running task")
}

func TestRemovalDispatcher_SkipsFieldsWithoutArtifacts(t *testing.T) {
	dispatcher, repo, cleaner, _, bus := newRemovalFixture()
	key := manhwa.EncodeSeriesID(testSeries)

	// NONE on both fields: nothing to remove, nothing broadcast.
	repo.On("GetChapter", mock.Anything, testSeries, 3).Return(manhwa.NewChapter(testSeries, 3), nil)

	err := dispatcher.SubmitRemoval(context.Background(), testSeries, key,
		[]manhwa.ChapterRef{{Index: 3}},
		manhwa.RemovalTargets{Downloaded: true, Translated: true})
	require.NoError(t, err)
	assert.Empty(t, bus.Messages(key))
	cleaner.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRemovalDispatcher_CleanerFailureSettlesToError(t *testing.T) {
	dispatcher, repo, cleaner, statusCache, bus := newRemovalFixture()
	key := manhwa.EncodeSeriesID(testSeries)

	repo.On("GetChapter", mock.Anything, testSeries, 4).
		Return(readyChapter(testSeries, 4, manhwa.FieldDownload), nil)
	repo.On("SaveChapter", mock.Anything, mock.Anything).Return(nil)
	cleaner.On("Delete", mock.Anything, testSeries, 4, manhwa.ArtifactDownloaded).
		Return(errors.New("permission denied"))

	err := dispatcher.SubmitRemoval(context.Background(), testSeries, key,
		[]manhwa.ChapterRef{{Index: 4}}, manhwa.RemovalTargets{Downloaded: true})
	require.NoError(t, err)

	waitForPublishes(t, bus, 2)

	status, _ := statusCache.Get(testSeries, 4, manhwa.FieldDownload)
	assert.Equal(t, manhwa.StatusError, status)
}

func TestRemovalDispatcher_ValidatesInput(t *testing.T) {
	dispatcher, _, _, _, _ := newRemovalFixture()
	key := manhwa.EncodeSeriesID(testSeries)

	err := dispatcher.SubmitRemoval(context.Background(), testSeries, key, nil,
		manhwa.RemovalTargets{Downloaded: true})
	assert.ErrorIs(t, err, ErrEmptyBatch)

	err = dispatcher.SubmitRemoval(context.Background(), testSeries, key,
		[]manhwa.ChapterRef{{Index: 1}}, manhwa.RemovalTargets{})
	assert.ErrorIs(t, err, ErrEmptyTargets)
}
