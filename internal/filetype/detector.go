package filetype

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Kind is the class of upload an endpoint accepts.
type Kind int

const (
	PDF Kind = iota
	Text
)

func (k Kind) String() string {
	if k == Text {
		return "text"
	}
	return "pdf"
}

var extensions = map[Kind][]string{
	PDF:  {".pdf"},
	Text: {".txt", ".text", ".md", ".csv", ".log"},
}

// ErrUnsupported is wrapped by every rejection.
var ErrUnsupported = errors.New("unsupported file type")

// Info is the result of sniffing an upload.
type Info struct {
	MIMEType  string
	Extension string
}

// AllowedExtension reports whether name carries an extension accepted for k.
func AllowedExtension(name string, k Kind) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range extensions[k] {
		if ext == e {
			return true
		}
	}
	return false
}

// Check validates both the filename extension and the leading bytes of r
// against k.
func Check(name string, r io.Reader, k Kind) (*Info, error) {
	if !AllowedExtension(name, k) {
		return nil, fmt.Errorf("%w: only %s files are allowed", ErrUnsupported, strings.Join(extensions[k], ", "))
	}
	mtype, err := mimetype.DetectReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	info := &Info{MIMEType: mtype.String(), Extension: mtype.Extension()}
	log.Debug().Str("mime", info.MIMEType).Str("file", name).Str("want", k.String()).Msg("detected file type")

	if !matches(mtype, k) {
		return info, fmt.Errorf("%w: content is %s", ErrUnsupported, info.MIMEType)
	}
	return info, nil
}

// CheckFile is Check for a file already on disk.
func CheckFile(path string, k Kind) (*Info, error) {
	if !AllowedExtension(path, k) {
		return nil, fmt.Errorf("%w: only %s files are allowed", ErrUnsupported, strings.Join(extensions[k], ", "))
	}
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	info := &Info{MIMEType: mtype.String(), Extension: mtype.Extension()}
	if !matches(mtype, k) {
		return info, fmt.Errorf("%w: content is %s", ErrUnsupported, info.MIMEType)
	}
	return info, nil
}

func matches(mtype *mimetype.MIME, k Kind) bool {
	switch k {
	case PDF:
		return mtype.Is("application/pdf")
	case Text:
		// Legacy Chinese encodings and UTF-16 often sniff as octet-stream.
		for m := mtype; m != nil; m = m.Parent() {
			if strings.HasPrefix(m.String(), "text/") {
				return true
			}
		}
		return mtype.Is("application/octet-stream")
	}
	return false
}
