// Package mupdf wraps go-fitz (MuPDF) for page counting, text extraction,
// page geometry and rasterisation.
package mupdf

import (
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// Document is an open PDF. Methods take 0-based page indices and are safe
// for concurrent use.
type Document struct {
	mu  sync.Mutex
	doc *fitz.Document
	n   int
}

// Open opens the PDF at path.
func Open(path string) (*Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return &Document{doc: doc, n: doc.NumPage()}, nil
}

// PageCount opens path just long enough to count its pages.
func PageCount(path string) (int, error) {
	d, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer d.Close()
	return d.NumPage(), nil
}

func (d *Document) NumPage() int { return d.n }

func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Close()
}

func (d *Document) check(page int) error {
	if page < 0 || page >= d.n {
		return fmt.Errorf("page %d out of range (document has %d pages)", page+1, d.n)
	}
	return nil
}

// Text returns the raw text layer of a page.
func (d *Document) Text(page int) (string, error) {
	if err := d.check(page); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	text, err := d.doc.Text(page)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from page %d: %w", page+1, err)
	}
	return text, nil
}

// CleanText returns page text with page numbers, running headers and noise
// lines removed. Broken lines are re-joined unless keepLayout is set.
func (d *Document) CleanText(page int, keepLayout bool) (string, error) {
	raw, err := d.Text(page)
	if err != nil {
		return "", err
	}
	return cleanText(raw, page+1, keepLayout), nil
}

// Size returns the page size in points.
func (d *Document) Size(page int) (width, height float64, err error) {
	if err := d.check(page); err != nil {
		return 0, 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	r, err := d.doc.Bound(page)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read bounds of page %d: %w", page+1, err)
	}
	return float64(r.Dx()), float64(r.Dy()), nil
}

// Render rasterises a page at dpi.
func (d *Document) Render(page int, dpi float64) (*image.RGBA, error) {
	if err := d.check(page); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	img, err := d.doc.ImageDPI(page, dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", page+1, err)
	}
	return img, nil
}

// RenderWidth rasterises a page scaled so the result is about width pixels wide.
func (d *Document) RenderWidth(page, width int) (*image.RGBA, error) {
	w, _, err := d.Size(page)
	if err != nil {
		return nil, err
	}
	if w <= 0 {
		w = 612
	}
	return d.Render(page, 72*float64(width)/w)
}
