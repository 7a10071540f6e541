package ws

import (
	"encoding/json"
	"fmt"

	"tkcollect/domain/events"
	"tkcollect/domain/manhwa"
)

// Inbound wire frames. Clients send key-value JSON; unknown fields are
// ignored so GUI and web UI versions can drift without breaking the server.

// TaskMessage is the series channel request frame: a download/translate
// batch, or a removal when task is "remove".
type TaskMessage struct {
	Task          string           `json:"task"`
	Chapters      []ChapterPayload `json:"chapters"`
	RemoveChoices *RemoveChoices   `json:"remove_choices,omitempty"`
}

// ChapterPayload identifies one chapter of a batch. Clients echo back the
// title from the library view so new chapters can be stored with one.
type ChapterPayload struct {
	Index int    `json:"index"`
	Title string `json:"title,omitempty"`
}

// RemoveChoices selects the artifact classes a removal targets.
type RemoveChoices struct {
	Downloaded bool `json:"downloaded"`
	Translated bool `json:"translated"`
}

// TranslationDone is the control frame the GUI sends on the qt channel when
// it finishes translating a chapter.
type TranslationDone struct {
	SeriesID string                  `json:"toonkor_id"`
	Chapter  int                     `json:"chapter"`
	Progress *events.ProgressCounter `json:"progress,omitempty"`
}

func parseTaskMessage(raw []byte) (*TaskMessage, error) {
	var msg TaskMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("malformed request frame: %w", err)
	}
	if msg.Task == "" {
		return nil, fmt.Errorf("request frame is missing a task")
	}
	return &msg, nil
}

func parseTranslationDone(raw []byte) (*TranslationDone, error) {
	var msg TranslationDone
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("malformed translation-done frame: %w", err)
	}
	if msg.SeriesID == "" {
		return nil, fmt.Errorf("translation-done frame is missing toonkor_id")
	}
	return &msg, nil
}

func (m *TaskMessage) refs() []manhwa.ChapterRef {
	refs := make([]manhwa.ChapterRef, 0, len(m.Chapters))
	for _, chapter := range m.Chapters {
		refs = append(refs, manhwa.ChapterRef{Index: chapter.Index, Title: chapter.Title})
	}
	return refs
}

func (m *TaskMessage) targets() manhwa.RemovalTargets {
	if m.RemoveChoices == nil {
		return manhwa.RemovalTargets{}
	}
	return manhwa.RemovalTargets{
		Downloaded: m.RemoveChoices.Downloaded,
		Translated: m.RemoveChoices.Translated,
	}
}
