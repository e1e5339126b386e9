package imagerender

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/rs/zerolog/log"
)

// Format is an output raster encoding.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

// ColorMode defines the color mode for rendering
type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorGray ColorMode = "gray"
)

// ParseFormat accepts png, jpg and jpeg in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	}
	return "", fmt.Errorf("unsupported image format %q", s)
}

// Extension is the file extension without the dot.
func (f Format) Extension() string {
	if f == JPEG {
		return "jpg"
	}
	return "png"
}

func (f Format) MIME() string {
	if f == JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Pager is implemented by *mupdf.Document.
type Pager interface {
	Render(page int, dpi float64) (*image.RGBA, error)
	RenderWidth(page, width int) (*image.RGBA, error)
}

// Options controls RenderPage. Exactly one of DPI and Width should be set.
type Options struct {
	DPI     float64
	Width   int
	Format  Format
	Quality int
	Color   ColorMode
}

// Page is an encoded raster of one page.
type Page struct {
	Data   []byte
	Width  int
	Height int
	Format Format
}

// DataURI renders the page as a data: URI.
func (p Page) DataURI() string { return DataURI(p.Format, p.Data) }

// RenderPage rasterises a 0-based page and encodes it.
func RenderPage(doc Pager, page int, opts Options) (Page, error) {
	var (
		img *image.RGBA
		err error
	)
	if opts.Width > 0 {
		img, err = doc.RenderWidth(page, opts.Width)
	} else {
		dpi := opts.DPI
		if dpi <= 0 {
			dpi = 150
		}
		img, err = doc.Render(page, dpi)
	}
	if err != nil {
		return Page{}, err
	}

	data, err := Encode(img, opts.Format, opts.Quality, opts.Color)
	if err != nil {
		return Page{}, fmt.Errorf("page %d: %w", page+1, err)
	}
	b := img.Bounds()
	log.Debug().
		Int("page", page+1).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Str("format", string(opts.Format)).
		Int("bytes", len(data)).
		Msg("rendered page")
	return Page{Data: data, Width: b.Dx(), Height: b.Dy(), Format: opts.Format}, nil
}

// Encode writes img in the given format. JPEG output is flattened onto
// white since it has no alpha channel.
func Encode(img image.Image, f Format, quality int, mode ColorMode) ([]byte, error) {
	final := img
	switch {
	case mode == ColorGray:
		g := image.NewGray(img.Bounds())
		draw.Draw(g, g.Bounds(), flatten(img), img.Bounds().Min, draw.Src)
		final = g
	case f == JPEG:
		final = flatten(img)
	}

	var buf bytes.Buffer
	switch f {
	case JPEG:
		if quality <= 0 || quality > 100 {
			quality = 85
		}
		if err := jpeg.Encode(&buf, final, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG: %w", err)
		}
	default:
		enc := png.Encoder{CompressionLevel: pngCompression(quality)}
		if err := enc.Encode(&buf, final); err != nil {
			return nil, fmt.Errorf("failed to encode PNG: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// pngCompression maps a 1-100 quality onto zlib effort; lower quality
// trades file size for speed.
func pngCompression(quality int) png.CompressionLevel {
	switch {
	case quality <= 0:
		return png.DefaultCompression
	case quality < 50:
		return png.BestSpeed
	case quality >= 95:
		return png.BestCompression
	}
	return png.DefaultCompression
}

func flatten(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

// EncodeToBase64 converts binary data to base64 string
func EncodeToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DataURI wraps data in a data: URI of the format's MIME type.
func DataURI(f Format, data []byte) string {
	return "data:" + f.MIME() + ";base64," + EncodeToBase64(data)
}

// Dimensions decodes just the header of an encoded image.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
