package manhwa

import "fmt"

// Status represents the lifecycle state of one chapter artifact.
type Status string

const (
	StatusNone     Status = "NONE"     // untouched / artifact absent
	StatusLoading  Status = "LOADING"  // download or translation in flight
	StatusReady    Status = "READY"    // artifact present and usable
	StatusRemoving Status = "REMOVING" // deletion in flight
	StatusError    Status = "ERROR"    // last operation failed, terminal until retried
)

// StatusField names one of the two independent status fields on a chapter.
type StatusField string

const (
	FieldDownload    StatusField = "download_status"
	FieldTranslation StatusField = "translation_status"
)

// ArtifactClass names a removable artifact class on disk.
type ArtifactClass string

const (
	ArtifactDownloaded ArtifactClass = "downloaded"
	ArtifactTranslated ArtifactClass = "translated"
)

// Field returns the status field an artifact class drives.
func (a ArtifactClass) Field() StatusField {
	if a == ArtifactTranslated {
		return FieldTranslation
	}
	return FieldDownload
}

// IsTerminal returns true for states a dispatcher may start a new operation from.
func (s Status) IsTerminal() bool {
	return s == StatusNone || s == StatusReady || s == StatusError
}

// IsInFlight returns true while an operation owns the field.
func (s Status) IsInFlight() bool {
	return s == StatusLoading || s == StatusRemoving
}

// ChapterLifecycle manages chapter status transitions and business rules.
// Both dispatchers route every field mutation through it so illegal
// transitions surface as errors instead of silent state corruption.
type ChapterLifecycle struct{}

// BeginLoading transitions a field to LOADING for a download/translate request.
func (cl *ChapterLifecycle) BeginLoading(c *Chapter, field StatusField) error {
	current := c.Field(field)
	if !current.IsTerminal() {
		return fmt.Errorf("cannot start %s while %s", field, current)
	}
	c.SetField(field, StatusLoading)
	return nil
}

// CompleteLoading transitions a field from LOADING to READY after the stage
// executor reports success.
func (cl *ChapterLifecycle) CompleteLoading(c *Chapter, field StatusField) error {
	if current := c.Field(field); current != StatusLoading {
		return fmt.Errorf("cannot complete %s from %s", field, current)
	}
	c.SetField(field, StatusReady)
	return nil
}

// BeginRemoving transitions a field to REMOVING for a removal request.
// Only READY artifacts can be removed.
func (cl *ChapterLifecycle) BeginRemoving(c *Chapter, field StatusField) error {
	if current := c.Field(field); current != StatusReady {
		return fmt.Errorf("cannot remove %s while %s", field, current)
	}
	c.SetField(field, StatusRemoving)
	return nil
}

// CompleteRemoving transitions a field from REMOVING back to NONE.
func (cl *ChapterLifecycle) CompleteRemoving(c *Chapter, field StatusField) error {
	if current := c.Field(field); current != StatusRemoving {
		return fmt.Errorf("cannot finish removal of %s from %s", field, current)
	}
	c.SetField(field, StatusNone)
	return nil
}

// MarkReady records an artifact produced outside a dispatcher pipeline,
// such as a GUI-initiated translation. An in-flight field is owned by a
// dispatcher and cannot be overwritten; READY stays READY so a duplicate
// report is harmless.
func (cl *ChapterLifecycle) MarkReady(c *Chapter, field StatusField) error {
	if current := c.Field(field); current.IsInFlight() {
		return fmt.Errorf("cannot mark %s ready while %s", field, current)
	}
	c.SetField(field, StatusReady)
	return nil
}

// FailOperation transitions a field from an in-flight state to ERROR.
func (cl *ChapterLifecycle) FailOperation(c *Chapter, field StatusField) error {
	if current := c.Field(field); !current.IsInFlight() {
		return fmt.Errorf("cannot fail %s from %s", field, current)
	}
	c.SetField(field, StatusError)
	return nil
}
