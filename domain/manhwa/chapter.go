package manhwa

import "time"

// Series is a manhwa identified by its toonkor path (e.g. "/webtoon/name").
type Series struct {
	ID           string
	Title        string
	ChapterCount int
}

// Chapter is one unit of content within a series. The persisted store owns
// the authoritative copy; cache entries and in-flight batch objects carry
// copies that are reconciled against the store after every stage.
type Chapter struct {
	SeriesID          string
	Index             int
	Title             string
	DownloadStatus    Status
	TranslationStatus Status
	UpdatedAt         time.Time
}

// NewChapter creates an untouched chapter for a series.
func NewChapter(seriesID string, index int) *Chapter {
	return &Chapter{
		SeriesID:          seriesID,
		Index:             index,
		DownloadStatus:    StatusNone,
		TranslationStatus: StatusNone,
	}
}

// Field returns the value of the named status field.
func (c *Chapter) Field(field StatusField) Status {
	if field == FieldTranslation {
		return c.TranslationStatus
	}
	return c.DownloadStatus
}

// SetField sets the named status field.
func (c *Chapter) SetField(field StatusField, status Status) {
	if field == FieldTranslation {
		c.TranslationStatus = status
	} else {
		c.DownloadStatus = status
	}
}

// IsActive returns true while any field has an operation in flight.
func (c *Chapter) IsActive() bool {
	return c.DownloadStatus.IsInFlight() || c.TranslationStatus.IsInFlight()
}

// Clone returns an independent copy safe to hand to another goroutine.
func (c *Chapter) Clone() *Chapter {
	clone := *c
	return &clone
}
