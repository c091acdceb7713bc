package domain

// FileState is the processing state of an asset staged with the remote model.
type FileState string

const (
	FileStatePending FileState = "PENDING"
	FileStateActive  FileState = "ACTIVE"
	FileStateFailed  FileState = "FAILED"
)

// StagedAsset is an uploaded audio file living in the remote asset store.
// It is owned by the request that created it and must be deleted remotely
// before that request finishes.
type StagedAsset struct {
	Name     string    `json:"name"`
	URI      string    `json:"uri"`
	MIMEType string    `json:"mimeType"`
	State    FileState `json:"state"`
}

type LineStyle string

const (
	LineHeading   LineStyle = "heading"
	LineBullet    LineStyle = "bullet"
	LineParagraph LineStyle = "paragraph"
)

type NoteLine struct {
	Style LineStyle
	Text  string
}

// NoteDocument is the rendered form of synthesized notes. Lines[0] is always
// the heading.
type NoteDocument struct {
	Title string
	Lines []NoteLine
	Path  string
}

// NoteResult is what a successful synthesis hands back to the caller.
// Secondary is a reserved slot for an alternate document format and is
// always nil.
type NoteResult struct {
	Title        string
	DocumentPath string
	Secondary    *string
}

// NoteEntry is one row of the note catalog.
type NoteEntry struct {
	Title    string  `json:"title"`
	Filename string  `json:"filename"`
	MTime    float64 `json:"mtime"`
}

type UserProfile struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Initials string `json:"initials"`
}
