package contracts

import (
	"context"

	"tkcollect/domain/manhwa"
)

// ChapterRepository defines operations for persisted chapter data.
// The store is the single source of truth on conflict; cache entries and
// in-flight batch copies are reconciled against it.
type ChapterRepository interface {
	// GetChapter retrieves one chapter by its natural key.
	GetChapter(ctx context.Context, seriesID string, index int) (*manhwa.Chapter, error)

	// SaveChapter inserts or updates a chapter row.
	SaveChapter(ctx context.Context, chapter *manhwa.Chapter) error

	// ListChapters retrieves all chapters of a series ordered by index.
	ListChapters(ctx context.Context, seriesID string) ([]*manhwa.Chapter, error)

	// Series management operations
	SaveSeries(ctx context.Context, series *manhwa.Series) error
	ListSeries(ctx context.Context) ([]*manhwa.Series, error)
}
