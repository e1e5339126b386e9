package converter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfconvert/internal/docx"
	"github.com/local/pdfconvert/internal/mupdf"
	"github.com/local/pdfconvert/internal/pdfpages"
)

const (
	emuPerPixel = 9525 // at 96 dpi
	emuPerInch  = 914400
	bodyFont    = 11
)

// Native converts with MuPDF text extraction and pdfcpu image extraction,
// entirely in process.
type Native struct{}

func NewNative() *Native { return &Native{} }

func (*Native) Name() string { return "native" }

func (n *Native) Convert(ctx context.Context, src, dst string, start, end int, opts Options) error {
	began := time.Now()
	doc, err := mupdf.Open(src)
	if err != nil {
		return err
	}
	defer doc.Close()

	if end > doc.NumPage() {
		end = doc.NumPage()
	}
	if start < 0 || start >= end {
		return fmt.Errorf("empty page range [%d, %d) for %d pages", start, end, doc.NumPage())
	}

	out := &docx.Document{Section: docx.Letter}
	contentWidth := int64(docx.Letter.PageWidth-docx.Letter.MarginLeft-docx.Letter.MarginRight) * emuPerInch / 1440
	images := 0

	var pageImages map[int][]pdfpages.Image
	if opts.IncludeImages {
		pageImages, err = pdfpages.ExtractImages(src, start, end)
		if err != nil {
			// Pages whose images cannot be read still convert as text.
			log.Warn().Err(err).Int("start", start+1).Int("end", end).Msg("skipping page images")
		}
	}

	for page := start; page < end; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		text, err := doc.CleanText(page, opts.KeepLayout)
		if err != nil {
			return err
		}
		for _, para := range mupdf.Paragraphs(text) {
			out.Blocks = append(out.Blocks, &docx.Paragraph{
				SpacingAfter: docx.Pt(6),
				Runs:         []docx.Run{{Text: para, Size: bodyFont}},
			})
		}

		if imgs := pageImages[page]; len(imgs) > 0 {
			if opts.MaxImagesPerPage > 0 && len(imgs) > opts.MaxImagesPerPage {
				imgs = imgs[:opts.MaxImagesPerPage]
			}
			for i, img := range imgs {
				p, ok := imageParagraph(img, page, i, contentWidth)
				if !ok {
					continue
				}
				out.Blocks = append(out.Blocks, p)
				images++
			}
		}

		if page < end-1 {
			out.Blocks = append(out.Blocks, docx.PageBreak())
		}
	}

	if err := docx.WriteFile(dst, out); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	log.Debug().
		Int("start", start+1).
		Int("end", end).
		Int("images", images).
		Bool("keep_layout", opts.KeepLayout).
		Dur("duration", time.Since(began)).
		Msg("native conversion done")
	return nil
}

// imageParagraph sizes img at 96 dpi, scaled down to fit maxWidth EMU.
func imageParagraph(img pdfpages.Image, page, idx int, maxWidth int64) (*docx.Paragraph, bool) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		log.Debug().Err(err).Str("image", img.Name).Msg("unreadable embedded image")
		return nil, false
	}
	w, h := int64(cfg.Width)*emuPerPixel, int64(cfg.Height)*emuPerPixel
	if w > maxWidth {
		h = h * maxWidth / w
		w = maxWidth
	}
	ext := "png"
	if format == "jpeg" {
		ext = "jpg"
	}
	return &docx.Paragraph{
		Alignment: docx.AlignCenter,
		Runs: []docx.Run{{Image: &docx.Image{
			Name:   fmt.Sprintf("p%d_%d.%s", page+1, idx+1, ext),
			Data:   img.Data,
			Width:  w,
			Height: h,
		}}},
	}, true
}
