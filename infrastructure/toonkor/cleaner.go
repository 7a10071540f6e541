package toonkor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"tkcollect/domain/manhwa"
	"tkcollect/logging"
)

// Cleaner removes artifact directories from the media library. It implements
// contracts.ArtifactCleaner. Raw and translated pages are separate classes:
// deleting one never touches the other.
type Cleaner struct {
	mediaDir string
	logger   *logging.Logger
}

func NewCleaner(mediaDir string) *Cleaner {
	return &Cleaner{
		mediaDir: mediaDir,
		logger:   logging.Default().WithComponent("toonkor_cleaner"),
	}
}

func (c *Cleaner) Delete(ctx context.Context, seriesID string, index int, class manhwa.ArtifactClass) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var sub string
	switch class {
	case manhwa.ArtifactDownloaded:
		sub = rawDir
	case manhwa.ArtifactTranslated:
		sub = translatedDir
	default:
		return fmt.Errorf("unknown artifact class %q", class)
	}

	dir := ChapterPath(c.mediaDir, seriesID, index, sub)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete %s artifacts of %s/%d: %w", class, seriesID, index, err)
	}

	c.pruneChapterDir(filepath.Dir(dir))

	c.logger.Toonkor("Deleted chapter artifacts",
		"series_id", seriesID, "chapter", index, "class", string(class))
	return nil
}

// pruneChapterDir drops the chapter directory once its last artifact class
// is gone, so the library does not accumulate empty directories.
func (c *Cleaner) pruneChapterDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	if err := os.Remove(dir); err != nil {
		c.logger.Warn("Failed to prune empty chapter dir", "dir", dir, "error", err)
	}
}
