// Package workspace names and places files in the shared upload and
// converted directories.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ErrBadName is returned for names that would escape their directory.
var ErrBadName = errors.New("invalid filename")

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SafeName reduces an uploaded filename to its base name made of ASCII
// letters, digits, underscores, dots and dashes. Runs of other characters
// become a single underscore; leading dots and underscores are dropped. The
// result may be empty.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.TrimLeft(name, "._")
}

// Dirs is the pair of shared directories.
type Dirs struct {
	Upload    string
	Converted string
}

// Ensure creates both directories.
func (d Dirs) Ensure() error {
	for _, dir := range []string{d.Upload, d.Converted} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Job is the per-request set of names derived from one upload.
type Job struct {
	ID   string
	Stem string
}

// NewJob assigns a fresh id to an upload named original. When the name has
// nothing usable left after sanitising, fallback is used as the stem.
func NewJob(original, fallback string) Job {
	base := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	stem := SafeName(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" {
		stem = fallback
	}
	return Job{ID: uuid.NewString(), Stem: stem}
}

// Name is "<id>_<stem><ext>".
func (j Job) Name(ext string) string {
	return j.ID + "_" + j.Stem + ext
}

// UploadPath places the job's upload under d.Upload.
func (d Dirs) UploadPath(j Job, ext string) string {
	return filepath.Join(d.Upload, j.Name(ext))
}

// OutputPath places an artifact under d.Converted.
func (d Dirs) OutputPath(name string) string {
	return filepath.Join(d.Converted, name)
}

// Resolve maps a client-supplied artifact name to its path. Names with any
// path component are rejected.
func (d Dirs) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", ErrBadName
	}
	return filepath.Join(d.Converted, name), nil
}

// Scoped creates a private directory under parent for the duration of one
// operation. The returned cleanup removes it and everything inside.
func Scoped(parent, pattern string) (string, func() error, error) {
	dir, err := os.MkdirTemp(parent, pattern)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return dir, func() error { return os.RemoveAll(dir) }, nil
}
