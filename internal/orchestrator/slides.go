package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfconvert/internal/apperr"
	"github.com/local/pdfconvert/internal/filetype"
	"github.com/local/pdfconvert/internal/guard"
	"github.com/local/pdfconvert/internal/imagerender"
	"github.com/local/pdfconvert/internal/metrics"
	"github.com/local/pdfconvert/internal/mupdf"
	"github.com/local/pdfconvert/internal/pptx"
)

// Decks past this size still convert; it only earns a warning.
const slideWarnPages = 100

type SlidesRequest struct {
	DPI     int
	Quality int
}

func (r *SlidesRequest) normalize() {
	if r.DPI < 72 || r.DPI > 400 {
		r.DPI = 200
	}
	if r.Quality < 60 || r.Quality > 100 {
		r.Quality = 92
	}
}

type SlidesResult struct {
	URL            string `json:"url"`
	Filename       string `json:"filename"`
	Pages          int    `json:"pages"`
	Size           int64  `json:"size"`
	ConversionTime string `json:"conversion_time"`
	DPI            int    `json:"dpi"`
	Quality        int    `json:"quality"`
	Checksum       string `json:"checksum"`
	S3URL          string `json:"s3_url,omitempty"`
	Message        string `json:"message"`
}

// ToPPT renders every page to JPEG and writes one full-bleed picture slide
// per page.
func (s *Service) ToPPT(ctx context.Context, up Upload, req SlidesRequest) (*SlidesResult, error) {
	s.Sweep()
	req.normalize()

	_, src, err := s.receive(up, filetype.PDF, "document")
	if err != nil {
		return nil, err
	}
	defer removeUpload(src)

	name := "converted_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8] + ".pptx"
	dst := s.deps.Dirs.OutputPath(name)

	began := time.Now()
	pages, err := guard.Run(context.WithoutCancel(ctx), s.deps.Timeout, func(ctx context.Context) (int, error) {
		doc, err := mupdf.Open(src)
		if err != nil {
			return 0, apperr.Wrap(apperr.KindInvalidInput, "invalid PDF file", err)
		}
		defer doc.Close()

		n := doc.NumPage()
		if n == 0 {
			return 0, apperr.InvalidInput("the PDF has no pages")
		}
		if n > slideWarnPages {
			log.Warn().Int("pages", n).Msg("large deck requested")
		}
		log.Info().Int("pages", n).Int("dpi", req.DPI).Int("quality", req.Quality).Msg("building slides")

		deck := &pptx.Deck{Size: pptx.Widescreen, Slides: make([]pptx.Slide, 0, n)}
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			p, err := imagerender.RenderPage(doc, i, imagerender.Options{
				DPI:     float64(req.DPI),
				Format:  imagerender.JPEG,
				Quality: req.Quality,
			})
			if err != nil {
				return 0, err
			}
			deck.Slides = append(deck.Slides, pptx.Slide{Image: p.Data, Format: "jpeg"})
		}
		metrics.AddPagesRendered("slide", n)
		return n, pptx.WriteFile(dst, deck)
	})
	took := time.Since(began)
	if err != nil {
		return nil, s.fail("ppt", "images", took, err)
	}

	rec, err := s.finalize(ctx, artifact{path: dst, kind: "ppt", mode: "images", pages: pages, took: took})
	if err != nil {
		return nil, err
	}
	return &SlidesResult{
		URL:            "/download/" + name,
		Filename:       name,
		Pages:          pages,
		Size:           rec.Size,
		ConversionTime: formatSeconds(took),
		DPI:            req.DPI,
		Quality:        req.Quality,
		Checksum:       rec.Checksum,
		S3URL:          rec.S3URL,
		Message:        "conversion succeeded",
	}, nil
}
