package core

import (
	"database/sql/driver"
	"encoding/json"
	"io"
	"regexp"
	"time"

	"github.com/pkg/errors"
)

// ErrPathViolation is returned when a stored file reference resolves outside
// the configured storage root. Callers surface it as a 403-class condition.
var ErrPathViolation = errors.New("file path outside storage root")

// FileStore grants guarded access to the byte storage under a single root.
// Every path crossing its boundary is canonicalized and containment-checked;
// implementations live in storage/files.
type FileStore interface {
	Root() string
	// Resolve canonicalizes a stored path and rejects anything escaping the
	// root with ErrPathViolation.
	Resolve(path string) (string, error)
	// Save streams src into a new file under root/subdir and returns its metadata.
	Save(subdir, filename string, src io.Reader) (StoredFile, error)
	Open(path string) (io.ReadCloser, error)
	// Hash streams the file at path through SHA-256 and returns the hex digest.
	Hash(path string) (string, error)
	Remove(path string) error
}

// StoredFile describes one uploaded file kept in the file store.
// It is created at upload time and immutable thereafter.
type StoredFile struct {
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"` // UTC
}

// FileList is an ordered sequence of StoredFile persisted as a JSON column.
// A NULL or malformed column value decodes as an empty list; callers never
// see a nil-vs-corrupt distinction.
type FileList []StoredFile

func (fl *FileList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*fl = FileList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("scanning FileList: unsupported type %T", src)
	}

	var files FileList
	if err := json.Unmarshal(data, &files); err != nil || files == nil {
		files = FileList{}
	}
	*fl = files
	return nil
}

func (fl FileList) Value() (driver.Value, error) {
	if len(fl) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(fl)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling FileList")
	}
	return data, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFilename replaces every character outside [a-zA-Z0-9._-] with an underscore.
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}
