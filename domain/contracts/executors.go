package contracts

import (
	"context"

	"tkcollect/domain/manhwa"
)

// Stage executors are the long-running external operations the dispatchers
// schedule off the request path. Each reports a definite outcome; timeout
// policy lives behind the executor, not in the dispatcher.

// Downloader fetches a chapter's pages into the media library and returns
// the on-disk page paths. Pages reports the library copy of an already
// downloaded chapter for translate-only tasks.
type Downloader interface {
	Download(ctx context.Context, seriesID string, index int) ([]string, error)
	Pages(seriesID string, index int) ([]string, error)
}

// Translator produces the translated artifact for an already downloaded
// chapter.
type Translator interface {
	Translate(ctx context.Context, seriesID string, index int, pages []string) error
}

// ArtifactCleaner deletes one artifact class of a chapter from disk.
type ArtifactCleaner interface {
	Delete(ctx context.Context, seriesID string, index int, class manhwa.ArtifactClass) error
}
