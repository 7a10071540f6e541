package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tkcollect/domain/contracts"
	"tkcollect/domain/manhwa"
	"tkcollect/logging"
)

// LibraryHandlers serves the read-only library API the web UI renders its
// series and chapter views from. Statuses are overlaid from the cache so
// the UI sees in-flight transitions before their durable writes land.
type LibraryHandlers struct {
	repo   contracts.ChapterRepository
	cache  contracts.StatusCache
	logger *logging.Logger
}

func NewLibraryHandlers(repo contracts.ChapterRepository, cache contracts.StatusCache) *LibraryHandlers {
	return &LibraryHandlers{
		repo:   repo,
		cache:  cache,
		logger: logging.Default().WithComponent("library_handler"),
	}
}

type seriesView struct {
	SeriesID     string `json:"toonkor_id"`
	Title        string `json:"title"`
	ChapterCount int    `json:"chapter_count"`
}

type chapterView struct {
	Index             int           `json:"index"`
	Title             string        `json:"title,omitempty"`
	DownloadStatus    manhwa.Status `json:"download_status"`
	TranslationStatus manhwa.Status `json:"translation_status"`
}

// ListLibrary returns every series in the library.
// GET /api/library
func (h *LibraryHandlers) ListLibrary(w http.ResponseWriter, r *http.Request) {
	series, err := h.repo.ListSeries(r.Context())
	if err != nil {
		h.logger.Error("Failed to list library", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	views := make([]seriesView, 0, len(series))
	for _, s := range series {
		views = append(views, seriesView{
			SeriesID:     s.ID,
			Title:        s.Title,
			ChapterCount: s.ChapterCount,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(views); err != nil {
		h.logger.Error("Failed to encode library response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// ListChapters returns a series' chapters with live statuses.
// GET /api/series/* (wildcard tail is the toonkor series path)
func (h *LibraryHandlers) ListChapters(w http.ResponseWriter, r *http.Request) {
	seriesID := "/" + chi.URLParam(r, "*")
	if seriesID == "/" {
		http.Error(w, "missing series id", http.StatusBadRequest)
		return
	}

	chapters, err := h.repo.ListChapters(r.Context(), seriesID)
	if err != nil {
		h.logger.Error("Failed to list chapters", "series_id", seriesID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	views := make([]chapterView, 0, len(chapters))
	for _, chapter := range chapters {
		views = append(views, chapterView{
			Index:             chapter.Index,
			Title:             chapter.Title,
			DownloadStatus:    h.liveStatus(chapter, manhwa.FieldDownload),
			TranslationStatus: h.liveStatus(chapter, manhwa.FieldTranslation),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(views); err != nil {
		h.logger.Error("Failed to encode chapters response", "series_id", seriesID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// liveStatus prefers the cache entry over the stored row: the cache leads
// during optimistic phases and the two reconcile on terminal writes.
func (h *LibraryHandlers) liveStatus(chapter *manhwa.Chapter, field manhwa.StatusField) manhwa.Status {
	if status, ok := h.cache.Get(chapter.SeriesID, chapter.Index, field); ok {
		return status
	}
	return chapter.Field(field)
}
