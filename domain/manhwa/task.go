package manhwa

import "fmt"

// TaskKind identifies a batch operation requested by a client.
type TaskKind string

const (
	TaskDownload          TaskKind = "download"
	TaskDownloadTranslate TaskKind = "download_translate"
	TaskTranslate         TaskKind = "translate"
	TaskRemove            TaskKind = "remove"
)

// ParseTaskKind validates a wire-level task name.
func ParseTaskKind(s string) (TaskKind, error) {
	switch TaskKind(s) {
	case TaskDownload, TaskDownloadTranslate, TaskTranslate, TaskRemove:
		return TaskKind(s), nil
	default:
		return "", fmt.Errorf("unknown task kind: %q", s)
	}
}

// Fields returns the status fields a task kind drives to LOADING.
func (k TaskKind) Fields() []StatusField {
	switch k {
	case TaskDownloadTranslate:
		return []StatusField{FieldDownload, FieldTranslation}
	case TaskTranslate:
		return []StatusField{FieldTranslation}
	default:
		return []StatusField{FieldDownload}
	}
}

// ChapterRef identifies one chapter inside a batch request.
type ChapterRef struct {
	Index int    `json:"index"`
	Title string `json:"title,omitempty"`
}

// RemovalTargets selects which artifact classes a removal request deletes.
type RemovalTargets struct {
	Downloaded bool `json:"downloaded"`
	Translated bool `json:"translated"`
}

// Classes returns the artifact classes selected by the targets, in a fixed order.
func (t RemovalTargets) Classes() []ArtifactClass {
	var classes []ArtifactClass
	if t.Downloaded {
		classes = append(classes, ArtifactDownloaded)
	}
	if t.Translated {
		classes = append(classes, ArtifactTranslated)
	}
	return classes
}

// IsEmpty reports whether no artifact class was selected.
func (t RemovalTargets) IsEmpty() bool {
	return !t.Downloaded && !t.Translated
}
