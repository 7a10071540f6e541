package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"tkcollect/domain/manhwa"
)

// MockChapterRepository implements contracts.ChapterRepository for testing
type MockChapterRepository struct {
	mock.Mock
}

func (m *MockChapterRepository) GetChapter(ctx context.Context, seriesID string, index int) (*manhwa.Chapter, error) {
	args := m.Called(ctx, seriesID, index)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*manhwa.Chapter), args.Error(1)
}

func (m *MockChapterRepository) SaveChapter(ctx context.Context, chapter *manhwa.Chapter) error {
	args := m.Called(ctx, chapter)
	return args.Error(0)
}

func (m *MockChapterRepository) ListChapters(ctx context.Context, seriesID string) ([]*manhwa.Chapter, error) {
	args := m.Called(ctx, seriesID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*manhwa.Chapter), args.Error(1)
}

func (m *MockChapterRepository) SaveSeries(ctx context.Context, series *manhwa.Series) error {
	args := m.Called(ctx, series)
	return args.Error(0)
}

func (m *MockChapterRepository) ListSeries(ctx context.Context) ([]*manhwa.Series, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*manhwa.Series), args.Error(1)
}

// MockDownloader implements contracts.Downloader for testing
type MockDownloader struct {
	mock.Mock
}

func (m *MockDownloader) Download(ctx context.Context, seriesID string, index int) ([]string, error) {
	args := m.Called(ctx, seriesID, index)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDownloader) Pages(seriesID string, index int) ([]string, error) {
	args := m.Called(seriesID, index)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockTranslator implements contracts.Translator for testing
type MockTranslator struct {
	mock.Mock
}

func (m *MockTranslator) Translate(ctx context.Context, seriesID string, index int, pages []string) error {
	args := m.Called(ctx, seriesID, index, pages)
	return args.Error(0)
}

// MockArtifactCleaner implements contracts.ArtifactCleaner for testing
type MockArtifactCleaner struct {
	mock.Mock
}

func (m *MockArtifactCleaner) Delete(ctx context.Context, seriesID string, index int, class manhwa.ArtifactClass) error {
	args := m.Called(ctx, seriesID, index, class)
	return args.Error(0)
}
