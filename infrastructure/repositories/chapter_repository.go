package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tkcollect/database"
	"tkcollect/domain/contracts"
	"tkcollect/domain/manhwa"
)

// SqlChapterRepository implements contracts.ChapterRepository with
// hand-written SQL over the read/write-split database.
type SqlChapterRepository struct {
	*BaseRepository
}

// NewSqlChapterRepository creates a new chapter repository.
func NewSqlChapterRepository(database *database.Database) contracts.ChapterRepository {
	return &SqlChapterRepository{
		BaseRepository: NewBaseRepository(database),
	}
}

// GetChapter retrieves one chapter by its natural key. A chapter the store
// has never seen is returned as an untouched chapter rather than an error,
// since batch requests legitimately reference chapters ahead of first
// download.
func (r *SqlChapterRepository) GetChapter(ctx context.Context, seriesID string, index int) (*manhwa.Chapter, error) {
	row := r.ReadDB().QueryRowContext(ctx, `
		SELECT series_id, idx, title, download_status, translation_status, updated_at
		FROM chapters
		WHERE series_id = ? AND idx = ?`,
		seriesID, index,
	)

	chapter, err := scanChapter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return manhwa.NewChapter(seriesID, index), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chapter %s/%d: %w", seriesID, index, err)
	}
	return chapter, nil
}

// SaveChapter inserts or updates a chapter row.
func (r *SqlChapterRepository) SaveChapter(ctx context.Context, chapter *manhwa.Chapter) error {
	_, err := r.WriteDB().ExecContext(ctx, `
		INSERT INTO chapters (series_id, idx, title, download_status, translation_status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (series_id, idx) DO UPDATE SET
			title = excluded.title,
			download_status = excluded.download_status,
			translation_status = excluded.translation_status,
			updated_at = excluded.updated_at`,
		chapter.SeriesID,
		chapter.Index,
		chapter.Title,
		string(chapter.DownloadStatus),
		string(chapter.TranslationStatus),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save chapter %s/%d: %w", chapter.SeriesID, chapter.Index, err)
	}
	return nil
}

// ListChapters retrieves all chapters of a series ordered by index.
func (r *SqlChapterRepository) ListChapters(ctx context.Context, seriesID string) ([]*manhwa.Chapter, error) {
	rows, err := r.ReadDB().QueryContext(ctx, `
		SELECT series_id, idx, title, download_status, translation_status, updated_at
		FROM chapters
		WHERE series_id = ?
		ORDER BY idx`,
		seriesID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters for %s: %w", seriesID, err)
	}
	defer rows.Close()

	var chapters []*manhwa.Chapter
	for rows.Next() {
		chapter, err := scanChapter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chapter row: %w", err)
		}
		chapters = append(chapters, chapter)
	}
	return chapters, rows.Err()
}

// SaveSeries inserts or updates a series row.
func (r *SqlChapterRepository) SaveSeries(ctx context.Context, series *manhwa.Series) error {
	_, err := r.WriteDB().ExecContext(ctx, `
		INSERT INTO series (series_id, title, chapter_count)
		VALUES (?, ?, ?)
		ON CONFLICT (series_id) DO UPDATE SET
			title = excluded.title,
			chapter_count = excluded.chapter_count`,
		series.ID, series.Title, series.ChapterCount,
	)
	if err != nil {
		return fmt.Errorf("failed to save series %s: %w", series.ID, err)
	}
	return nil
}

// ListSeries retrieves every series in the library.
func (r *SqlChapterRepository) ListSeries(ctx context.Context) ([]*manhwa.Series, error) {
	rows, err := r.ReadDB().QueryContext(ctx, `
		SELECT series_id, title, chapter_count
		FROM series
		ORDER BY title`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	defer rows.Close()

	var all []*manhwa.Series
	for rows.Next() {
		var s manhwa.Series
		if err := rows.Scan(&s.ID, &s.Title, &s.ChapterCount); err != nil {
			return nil, fmt.Errorf("failed to scan series row: %w", err)
		}
		all = append(all, &s)
	}
	return all, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanChapter(s scanner) (*manhwa.Chapter, error) {
	var (
		chapter     manhwa.Chapter
		download    string
		translation string
		updatedAt   sql.NullTime
	)
	if err := s.Scan(
		&chapter.SeriesID,
		&chapter.Index,
		&chapter.Title,
		&download,
		&translation,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	chapter.DownloadStatus = manhwa.Status(download)
	chapter.TranslationStatus = manhwa.Status(translation)
	if updatedAt.Valid {
		chapter.UpdatedAt = updatedAt.Time
	}
	return &chapter, nil
}
