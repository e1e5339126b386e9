package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfconvert/internal/apperr"
	"github.com/local/pdfconvert/internal/filetype"
	"github.com/local/pdfconvert/internal/guard"
	"github.com/local/pdfconvert/internal/imagerender"
	"github.com/local/pdfconvert/internal/metrics"
	"github.com/local/pdfconvert/internal/mupdf"
	"github.com/local/pdfconvert/internal/textprobe"
)

const (
	thumbnailWidth   = 150
	thumbnailQuality = 70
	previewWidth     = 200
	previewQuality   = 75
)

// Thumbnail is a small JPEG of one page; Width and Height are the page size
// in points.
type Thumbnail struct {
	Page   int    `json:"page"`
	Image  string `json:"image"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type Pagination struct {
	CurrentPage int `json:"currentPage"`
	PageSize    int `json:"pageSize"`
	TotalPages  int `json:"totalPages"`
	StartIndex  int `json:"startIndex"`
	EndIndex    int `json:"endIndex"`
}

type InfoResult struct {
	Success            bool        `json:"success"`
	PageCount          int         `json:"pageCount"`
	Previews           []Thumbnail `json:"previews"`
	Pagination         Pagination  `json:"pagination"`
	HasExtractableText bool        `json:"hasExtractableText"`
}

type PreviewResult struct {
	Success   bool      `json:"success"`
	Preview   Thumbnail `json:"preview"`
	PageCount int       `json:"pageCount"`
}

// openUpload stores a PDF upload and opens it. close removes both.
func (s *Service) openUpload(up Upload) (*mupdf.Document, func(), error) {
	_, src, err := s.receive(up, filetype.PDF, "document")
	if err != nil {
		return nil, nil, err
	}
	doc, err := mupdf.Open(src)
	if err != nil {
		removeUpload(src)
		return nil, nil, apperr.Wrap(apperr.KindInvalidInput, "invalid PDF file", err)
	}
	return doc, func() {
		doc.Close()
		removeUpload(src)
	}, nil
}

func thumbnail(doc *mupdf.Document, page, width, quality int) (Thumbnail, error) {
	img, err := imagerender.RenderPage(doc, page, imagerender.Options{
		Width:   width,
		Format:  imagerender.JPEG,
		Quality: quality,
	})
	if err != nil {
		return Thumbnail{}, err
	}
	w, h, err := doc.Size(page)
	if err != nil {
		return Thumbnail{}, err
	}
	return Thumbnail{Page: page + 1, Image: img.DataURI(), Width: int(w), Height: int(h)}, nil
}

// Info returns the page count, one page of thumbnails and whether the PDF
// has a text layer.
func (s *Service) Info(_ context.Context, up Upload, page, pageSize int) (*InfoResult, error) {
	doc, done, err := s.openUpload(up)
	if err != nil {
		return nil, err
	}
	defer done()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	count := doc.NumPage()
	totalPages := (count + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start >= count && page > 1 {
		return nil, apperr.New(apperr.KindPageOutOfRange, fmt.Sprintf("page out of range (1-%d)", totalPages))
	}
	end := min(start+pageSize, count)
	log.Info().Int("page_count", count).Int("from", start+1).Int("to", end).Msg("building thumbnails")

	previews := make([]Thumbnail, 0, max(end-start, 0))
	for i := start; i < end; i++ {
		th, err := thumbnail(doc, i, thumbnailWidth, thumbnailQuality)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConversion, "preview failed", err)
		}
		previews = append(previews, th)
	}
	metrics.AddPagesRendered("thumbnail", len(previews))

	diag := textprobe.Probe(doc, textprobe.DefaultThreshold)
	log.Debug().
		Ints("sampled", diag.SampledPages).
		Int("chars", diag.TotalCharsInSample).
		Bool("has_text", diag.HasExtractableText).
		Msg("text probe")

	return &InfoResult{
		Success:   true,
		PageCount: count,
		Previews:  previews,
		Pagination: Pagination{
			CurrentPage: page,
			PageSize:    pageSize,
			TotalPages:  totalPages,
			StartIndex:  min(start+1, end),
			EndIndex:    end,
		},
		HasExtractableText: diag.HasExtractableText,
	}, nil
}

// Preview renders one 1-based page at preview size.
func (s *Service) Preview(_ context.Context, up Upload, page int) (*PreviewResult, error) {
	doc, done, err := s.openUpload(up)
	if err != nil {
		return nil, err
	}
	defer done()

	count := doc.NumPage()
	if page < 1 || page > count {
		return nil, apperr.New(apperr.KindPageOutOfRange, fmt.Sprintf("page out of range (1-%d)", count))
	}
	th, err := thumbnail(doc, page-1, previewWidth, previewQuality)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConversion, "preview failed", err)
	}
	metrics.AddPagesRendered("preview", 1)
	return &PreviewResult{Success: true, Preview: th, PageCount: count}, nil
}

type ImagesRequest struct {
	Page     int
	PageSize int
	Format   string
	Quality  int
	DPI      int
}

// normalize replaces out-of-range values with defaults.
func (r *ImagesRequest) normalize() {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 || r.PageSize > 20 {
		r.PageSize = 6
	}
	if _, err := imagerender.ParseFormat(r.Format); err != nil || r.Format == "" {
		r.Format = "png"
	}
	if r.Quality < 1 || r.Quality > 100 {
		r.Quality = 85
	}
	if r.DPI < 72 || r.DPI > 600 {
		r.DPI = 150
	}
}

type PageImage struct {
	Page   int    `json:"page"`
	Image  string `json:"image"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int    `json:"size"`
}

type ImagesResult struct {
	Images        []PageImage `json:"images"`
	CurrentPage   int         `json:"current_page"`
	TotalPages    int         `json:"total_pages"`
	TotalPDFPages int         `json:"total_pdf_pages"`
	PageSize      int         `json:"page_size"`
	StartPage     int         `json:"start_page"`
	EndPage       int         `json:"end_page"`
	Format        string      `json:"format"`
	Quality       int         `json:"quality"`
	DPI           int         `json:"dpi"`
}

// ToImages rasterises one page window of the document. The document is
// opened inside the guarded task so an abandoned task never renders from a
// closed handle.
func (s *Service) ToImages(ctx context.Context, up Upload, req ImagesRequest) (*ImagesResult, error) {
	req.normalize()
	format, _ := imagerender.ParseFormat(req.Format)

	_, src, err := s.receive(up, filetype.PDF, "document")
	if err != nil {
		return nil, err
	}
	defer removeUpload(src)

	began := time.Now()
	res, err := guard.Run(context.WithoutCancel(ctx), s.deps.Timeout, func(ctx context.Context) (*ImagesResult, error) {
		doc, err := mupdf.Open(src)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInvalidInput, "invalid PDF file", err)
		}
		defer doc.Close()

		count := doc.NumPage()
		start := (req.Page - 1) * req.PageSize
		end := min(start+req.PageSize, count)
		if start >= count {
			return nil, apperr.New(apperr.KindPageOutOfRange, "page out of range")
		}
		log.Info().Int("page_count", count).Int("from", start+1).Int("to", end).Str("format", req.Format).Int("dpi", req.DPI).Msg("rendering pages")

		images := make([]PageImage, 0, end-start)
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			p, err := imagerender.RenderPage(doc, i, imagerender.Options{DPI: float64(req.DPI), Format: format, Quality: req.Quality})
			if err != nil {
				return nil, err
			}
			images = append(images, PageImage{Page: i + 1, Image: p.DataURI(), Width: p.Width, Height: p.Height, Size: len(p.Data)})
		}
		return &ImagesResult{
			Images:        images,
			CurrentPage:   req.Page,
			TotalPages:    (count + req.PageSize - 1) / req.PageSize,
			TotalPDFPages: count,
			PageSize:      req.PageSize,
			StartPage:     start + 1,
			EndPage:       end,
			Format:        req.Format,
			Quality:       req.Quality,
			DPI:           req.DPI,
		}, nil
	})
	took := time.Since(began)
	if err != nil {
		return nil, s.fail("images", req.Format, took, err)
	}
	metrics.AddPagesRendered("image", len(res.Images))
	metrics.ObserveConversion("images", req.Format, "success", took)

	var total int
	for _, im := range res.Images {
		total += im.Size
	}
	log.Info().Int("images", len(res.Images)).Str("size", humanize.Bytes(uint64(total))).Dur("duration", took).Msg("pages rendered")
	return res, nil
}
