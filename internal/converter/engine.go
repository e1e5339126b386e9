package converter

import "context"

// Options tune a single engine call.
type Options struct {
	IncludeImages bool
	// MaxImagesPerPage caps embedded images per page; 0 is unlimited.
	MaxImagesPerPage int
	// KeepLayout keeps the source line breaks instead of re-flowing text.
	KeepLayout bool
}

// Engine converts pages [start, end) of the PDF at src into a .docx at dst.
// Implementations check ctx and stop early once it is done.
type Engine interface {
	Name() string
	Convert(ctx context.Context, src, dst string, start, end int, opts Options) error
}
