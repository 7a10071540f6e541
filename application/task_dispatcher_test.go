package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tkcollect/domain/events"
	"tkcollect/domain/manhwa"
	"tkcollect/platform/cache"
	"tkcollect/test/mocks"
)

const testSeries = "/webtoon/test-series"

func waitForPublishes(t *testing.T, bus *mocks.RecorderBus, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-bus.Published:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for publish %d of %d", i+1, n)
		}
	}
}

func progressMessages(t *testing.T, bus *mocks.RecorderBus, key manhwa.GroupKey) []events.ProgressMessage {
	t.Helper()
	var out []events.ProgressMessage
	for _, raw := range bus.Messages(key) {
		msg, ok := raw.(events.ProgressMessage)
		require.True(t, ok, "unexpected message type %T", raw)
		out = append(out, msg)
	}
	return out
}

func newTaskFixture() (*TaskDispatcher, *mocks.MockChapterRepository, *mocks.MockDownloader, *mocks.MockTranslator, *cache.StatusCache, *mocks.RecorderBus) {
	repo := &mocks.MockChapterRepository{}
	downloader := &mocks.MockDownloader{}
	translator := &mocks.MockTranslator{}
	statusCache := cache.NewStatusCache()
	bus := mocks.NewRecorderBus()

	dispatcher := NewTaskDispatcher(repo, statusCache, bus, downloader, translator, 4)
	return dispatcher, repo, downloader, translator, statusCache, bus
}

func TestTaskDispatcher_DownloadSuccess(t *testing.T) {
	dispatcher, repo, downloader, _, statusCache, bus := newTaskFixture()
	key := manhwa.EncodeSeriesID(testSeries)

	repo.On("GetChapter", mock.Anything, testSeries, 1).Return(manhwa.NewChapter(testSeries, 1), nil)
	repo.On("SaveChapter", mock.Anything, mock.Anything).Return(nil)
	downloader.On("Download", mock.Anything, testSeries, 1).Return([]string{"p1.jpg"}, nil)

	err := dispatcher.Submit(context.Background(), testSeries, key, manhwa.TaskDownload,
		[]manhwa.ChapterRef{{Index: 1}})
	require.NoError(t, err)

	// Immediate LOADING broadcast happens synchronously inside Submit.
	status, ok := statusCache.Get(testSeries, 1, manhwa.FieldDownload)
	require.True(t, ok)
	assert.Equal(t, manhwa.StatusLoading, status)

	waitForPublishes(t, bus, 2)

	messages := progressMessages(t, bus, key)
	require.Len(t, messages, 2, "exactly two progress messages for one chapter")

	assert.Equal(t, manhwa.StatusLoading, messages[0].Chapters[0].DownloadStatus)
	require.NotNil(t, messages[0].Progress)
	assert.Equal(t, 0, messages[0].Progress.Current)
	assert.Equal(t, 1, messages[0].Progress.Total)

	assert.Equal(t, manhwa.StatusReady, messages[1].Chapters[0].DownloadStatus)
	assert.Equal(t, 1, messages[1].Progress.Current)

	status, _ = statusCache.Get(testSeries, 1, manhwa.FieldDownload)
	assert.Equal(t, manhwa.StatusReady, status)
	repo.AssertCalled(t, "SaveChapter", mock.Anything, mock.Anything)
}

func TestTaskDispatcher_DownloadFailureSettlesToError(t *testing.T) {
	dispatcher, repo, downloader, _, statusCache, bus := newTaskFixture()
	key := manhwa.EncodeSeriesID(testSeries)

	repo.On("GetChapter", mock.Anything, testSeries, 2).Return(manhwa.NewChapter(testSeries, 2), nil)
	repo.On("SaveChapter", mock.Anything, mock.Anything).Return(nil)
	downloader.On("Download", mock.Anything, testSeries, 2).Return(nil, errors.New("toonkor unreachable"))

	err := dispatcher.Submit(context.Background(), testSeries, key, manhwa.TaskDownload,
		[]manhwa.ChapterRef{{Index: 2}})
	require.NoError(t, err)

	waitForPublishes(t, bus, 2)

	status, ok := statusCache.Get(testSeries, 2, manhwa.FieldDownload)
	require.True(t, ok)
	assert.Equal(t, manhwa.StatusError, status, "failure must settle as ERROR, never NONE or READY")

	messages := progressMessages(t, bus, key)
	require.Len(t, messages, 2)
	assert.Equal(t, manhwa.StatusError, messages[1].Chapters[0].DownloadStatus)
}

func TestTaskDispatcher_DownloadTranslate(t *testing.T) {
	dispatcher, repo, downloader, translator, statusCache, bus := newTaskFixture()
	key := manhwa.EncodeSeriesID("/abc")

	for _, index := range []int{1, 2} {
		repo.On("GetChapter", mock.Anything, "/abc", index).Return(manhwa.NewChapter("/abc", index), nil)
	}
	repo.On("SaveChapter", mock.Anything, mock.Anything).Return(nil)
	downloader.On("Download", mock.Anything, "/abc", mock.Anything).Return([]string{"p1.jpg"}, nil)
	translator.On("Translate", mock.Anything, "/abc", mock.Anything, mock.Anything).Return(nil)

	err := dispatcher.Submit(context.Background(), "/abc", key, manhwa.TaskDownloadTranslate,
		[]manhwa.ChapterRef{{Index: 1}, {Index: 2}})
	require.NoError(t, err)

	// Both fields go LOADING as a single optimistic batch update.
	messages := progressMessages(t, bus, key)
	require.NotEmpty(t, messages)
	immediate := messages[0]
	require.Len(t, immediate.Chapters, 2)
	for _, update := range immediate.Chapters {
		assert.Equal(t, manhwa.StatusLoading, update.DownloadStatus)
		assert.Equal(t, manhwa.StatusLoading, update.TranslationStatus)
	}
	require.NotNil(t, immediate.Progress)
	assert.Equal(t, 0, immediate.Progress.Current)
	assert.Equal(t, 2, immediate.Progress.Total)

	// Immediate + per chapter one download terminal and one translation terminal.
	waitForPublishes(t, bus, 5)

	for _, index := range []int{1, 2} {
		status, _ := statusCache.Get("/abc", index, manhwa.FieldDownload)
		assert.Equal(t, manhwa.StatusReady, status)
		status, _ = statusCache.Get("/abc", index, manhwa.FieldTranslation)
		assert.Equal(t, manhwa.StatusReady, status)
	}
}

func TestTaskDispatcher_DownloadFailureAlsoSettlesTranslation(t *testing.T) {
	dispatcher, repo, downloader, translator, statusCache, bus := newTaskFixture()
	key := manhwa.EncodeSeriesID(testSeries)

	repo.On("GetChapter", mock.Anything, testSeries, 4).Return(manhwa.NewChapter(testSeries, 4), nil)
	repo.On("SaveChapter", mock.Anything, mock.Anything).Return(nil)
	downloader.On("Download", mock.Anything, testSeries, 4).Return(nil, errors.New("boom"))

	err := dispatcher.Submit(context.Background(), testSeries, key, manhwa.TaskDownloadTranslate,
		[]manhwa.ChapterRef{{Index: 4}})
	require.NoError(t, err)

	waitForPublishes(t, bus, 2)

	status, _ := statusCache.Get(testSeries, 4, manhwa.FieldDownload)
	assert.Equal(t, manhwa.StatusError, status)
	status, _ = statusCache.Get(testSeries, 4, manhwa.FieldTranslation)
	assert.Equal(t, manhwa.StatusError, status, "optimistic translation LOADING must not stick")

	translator.AssertNotCalled(t, "Translate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTaskDispatcher_ValidationRejectsWithoutMutation(t *testing.T) {
	dispatcher, repo, _, _, statusCache, bus := newTaskFixture()
	key := manhwa.EncodeSeriesID(testSeries)

	err := dispatcher.Submit(context.Background(), testSeries, key, manhwa.TaskDownload, nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)

	err = dispatcher.Submit(context.Background(), testSeries, key, manhwa.TaskRemove,
		[]manhwa.ChapterRef{{Index: 1}})
	assert.ErrorIs(t, err, ErrWrongDispatcher)

	err = dispatcher.Submit(context.Background(), testSeries, key, manhwa.TaskDownload,
		[]manhwa.ChapterRef{{Index: -1}})
	assert.ErrorIs(t, err, ErrInvalidChapter)

	// A chapter already LOADING rejects the batch before any mutation.
	repo.On("GetChapter", mock.Anything, testSeries, 5).Return(manhwa.NewChapter(testSeries, 5), nil)
	statusCache.Set(testSeries, 5, manhwa.FieldDownload, manhwa.StatusLoading)

	err = dispatcher.Submit(context.Background(), testSeries, key, manhwa.TaskDownload,
		[]manhwa.ChapterRef{{Index: 5}})
	assert.ErrorIs(t, err, ErrChapterInFlight)

	assert.Empty(t, bus.Messages(key), "validation errors must not broadcast")
}

func TestTaskDispatcher_StoreFailureReconcilesCacheToError(t *testing.T) {
	dispatcher, repo, downloader, _, statusCache, bus := newTaskFixture()
	key := manhwa.EncodeSeriesID(testSeries)

	repo.On("GetChapter", mock.Anything, testSeries, 6).Return(manhwa.NewChapter(testSeries, 6), nil)
	repo.On("SaveChapter", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	downloader.On("Download", mock.Anything, testSeries, 6).Return([]string{"p1.jpg"}, nil)

	err := dispatcher.Submit(context.Background(), testSeries, key, manhwa.TaskDownload,
		[]manhwa.ChapterRef{{Index: 6}})
	require.NoError(t, err)

	waitForPublishes(t, bus, 2)

	status, _ := statusCache.Get(testSeries, 6, manhwa.FieldDownload)
	assert.Equal(t, manhwa.StatusError, status,
		"a failed durable write must never leave a false READY in the cache")
}

func TestTaskDispatcher_ResubmitAfterTerminalStartsFreshCycle(t *testing.T) {
	dispatcher, repo, downloader, _, statusCache, bus := newTaskFixture()
	key := manhwa.EncodeSeriesID(testSeries)

	repo.On("GetChapter", mock.Anything, testSeries, 7).Return(manhwa.NewChapter(testSeries, 7), nil)
	repo.On("SaveChapter", mock.Anything, mock.Anything).Return(nil)
	downloader.On("Download", mock.Anything, testSeries, 7).Return([]string{"p1.jpg"}, nil)

	refs := []manhwa.ChapterRef{{Index: 7}}

	require.NoError(t, dispatcher.Submit(context.Background(), testSeries, key, manhwa.TaskDownload, refs))
	waitForPublishes(t, bus, 2)

	require.NoError(t, dispatcher.Submit(context.Background(), testSeries, key, manhwa.TaskDownload, refs))
	waitForPublishes(t, bus, 2)

	messages := progressMessages(t, bus, key)
	require.Len(t, messages, 4, "two full LOADING->terminal cycles")
	assert.Equal(t, manhwa.StatusLoading, messages[2].Chapters[0].DownloadStatus)
	assert.Equal(t, manhwa.StatusReady, messages[3].Chapters[0].DownloadStatus)

	status, _ := statusCache.Get(testSeries, 7, manhwa.FieldDownload)
	assert.Equal(t, manhwa.StatusReady, status)
}

func TestTaskDispatcher_TranslateWaitReleasesDownloadSlot(t *testing.T) {
	repo := &mocks.MockChapterRepository{}
	downloader := &mocks.MockDownloader{}
	translator := &mocks.MockTranslator{}
	statusCache := cache.NewStatusCache()
	bus := mocks.NewRecorderBus()
	dispatcher := NewTaskDispatcher(repo, statusCache, bus, downloader, translator, 1)
	key := manhwa.EncodeSeriesID(testSeries)

	repo.On("GetChapter", mock.Anything, testSeries, 1).Return(manhwa.NewChapter(testSeries, 1), nil)
	repo.On("GetChapter", mock.Anything, testSeries, 2).Return(manhwa.NewChapter(testSeries, 2), nil)
	repo.On("SaveChapter", mock.Anything, mock.Anything).Return(nil)
	downloader.On("Download", mock.Anything, testSeries, 1).Return([]string{"p1.jpg"}, nil)
	downloader.On("Download", mock.Anything, testSeries, 2).Return([]string{"p1.jpg"}, nil)

	release := make(chan struct{})
	defer close(release)
	translator.On("Translate", mock.Anything, testSeries, 1, mock.Anything).
		Run(func(mock.Arguments) { <-release }).Return(nil)

	// Chapter 1 settles its download and parks on the translate stage.
	require.NoError(t, dispatcher.Submit(context.Background(), testSeries, key,
		manhwa.TaskDownloadTranslate, []manhwa.ChapterRef{{Index: 1}}))
	waitForPublishes(t, bus, 2)

	// With a single download slot, chapter 2 can still download to
	// completion while chapter 1 waits on the GUI.
	require.NoError(t, dispatcher.Submit(context.Background(), testSeries, key,
		manhwa.TaskDownload, []manhwa.ChapterRef{{Index: 2}}))
	waitForPublishes(t, bus, 2)

	messages := progressMessages(t, bus, key)
	last := messages[len(messages)-1]
	require.Len(t, last.Chapters, 1)
	assert.Equal(t, 2, last.Chapters[0].Index)
	assert.Equal(t, manhwa.StatusReady, last.Chapters[0].DownloadStatus)

	status, _ := statusCache.Get(testSeries, 2, manhwa.FieldDownload)
	assert.Equal(t, manhwa.StatusReady, status)
}
