package events

import "tkcollect/domain/manhwa"

// Message type discriminators carried in the "type" field of every
// broadcast payload.
const (
	TypeProgress           = "send_progress"
	TypeTranslationRequest = "translation_request"
	TypeError              = "error"
)

// ChapterUpdate carries the status fields that changed for one chapter.
// Unchanged fields are omitted from the wire payload.
type ChapterUpdate struct {
	Index             int           `json:"index"`
	DownloadStatus    manhwa.Status `json:"download_status,omitempty"`
	TranslationStatus manhwa.Status `json:"translation_status,omitempty"`
}

// ProgressCounter tracks batch completion. Removal broadcasts omit it.
type ProgressCounter struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// ProgressMessage is broadcast to a series group on every status change so
// observers always see a chapter settle into a terminal state.
type ProgressMessage struct {
	Type     string           `json:"type"`
	Chapters []ChapterUpdate  `json:"chapters"`
	Progress *ProgressCounter `json:"progress,omitempty"`
}

// NewProgressMessage builds a progress broadcast for a set of updated chapters.
func NewProgressMessage(chapters []ChapterUpdate, progress *ProgressCounter) ProgressMessage {
	return ProgressMessage{
		Type:     TypeProgress,
		Chapters: chapters,
		Progress: progress,
	}
}

// TranslationRequest is published to the qt control group to hand a
// downloaded chapter to the translation GUI.
type TranslationRequest struct {
	Type     string   `json:"type"`
	SeriesID string   `json:"toonkor_id"`
	Chapter  int      `json:"chapter"`
	Pages    []string `json:"pages,omitempty"`
}

// NewTranslationRequest builds a control-plane translation request.
func NewTranslationRequest(seriesID string, chapter int, pages []string) TranslationRequest {
	return TranslationRequest{
		Type:     TypeTranslationRequest,
		SeriesID: seriesID,
		Chapter:  chapter,
		Pages:    pages,
	}
}

// ErrorMessage is sent to a single requesting connection when its request
// is rejected before any state was mutated. It is never broadcast.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewErrorMessage builds a validation error frame.
func NewErrorMessage(message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message}
}
