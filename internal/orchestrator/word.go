package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfconvert/internal/apperr"
	"github.com/local/pdfconvert/internal/converter"
	"github.com/local/pdfconvert/internal/filetype"
	"github.com/local/pdfconvert/internal/guard"
	"github.com/local/pdfconvert/internal/mupdf"
	"github.com/local/pdfconvert/internal/pagerange"
)

type WordRequest struct {
	Mode          string
	Pages         string
	IncludeImages bool
}

type WordResult struct {
	URL            string `json:"url"`
	Filename       string `json:"filename"`
	Size           int64  `json:"size"`
	ConversionTime string `json:"conversion_time"`
	Mode           string `json:"mode"`
	PagesConverted string `json:"pages_converted"`
	PagesCount     int    `json:"pages_count"`
	Speed          string `json:"speed"`
	Checksum       string `json:"checksum"`
	S3URL          string `json:"s3_url,omitempty"`
}

// ToWord converts the selected pages of a PDF upload into a .docx artifact.
func (s *Service) ToWord(ctx context.Context, up Upload, req WordRequest) (*WordResult, error) {
	s.Sweep()

	job, src, err := s.receive(up, filetype.PDF, "document")
	if err != nil {
		return nil, err
	}
	defer removeUpload(src)

	total, err := mupdf.PageCount(src)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, "invalid PDF file", err)
	}
	if total == 0 {
		return nil, apperr.InvalidInput("the PDF has no pages")
	}
	iv, err := pagerange.ResolveLenient(total, req.Pages)
	if err != nil {
		var selErr *pagerange.SelectorError
		if errors.As(err, &selErr) {
			log.Warn().Err(err).Str("job_id", job.ID).Msg("malformed page selector, converting all pages")
		}
	}
	profile := converter.ParseMode(req.Mode, req.IncludeImages)
	name := job.Name(".docx")
	dst := s.deps.Dirs.OutputPath(name)

	log.Info().
		Str("job_id", job.ID).
		Str("mode", string(profile.Mode)).
		Str("requested_mode", profile.Requested).
		Str("pages", iv.Label(total)).
		Int("page_count", iv.Len()).
		Bool("images", profile.Options.IncludeImages).
		Msg("starting word conversion")

	began := time.Now()
	err = guard.Do(context.WithoutCancel(ctx), s.deps.Timeout, func(ctx context.Context) error {
		if profile.TextOnly {
			return converter.TextOnly(ctx, src, dst, iv.Start, iv.End)
		}
		return s.batch.Convert(ctx, src, dst, iv, profile.Options)
	})
	took := time.Since(began)
	if err != nil {
		return nil, s.fail("word", string(profile.Mode), took, err)
	}

	rec, err := s.finalize(ctx, artifact{path: dst, kind: "word", mode: string(profile.Mode), pages: iv.Len(), took: took})
	if err != nil {
		return nil, err
	}
	return &WordResult{
		URL:            "/download/" + name,
		Filename:       name,
		Size:           rec.Size,
		ConversionTime: formatSeconds(took),
		Mode:           profile.Requested,
		PagesConverted: iv.Label(total),
		PagesCount:     iv.Len(),
		Speed:          fmt.Sprintf("%.2f pages/s", float64(iv.Len())/max(took.Seconds(), 1e-3)),
		Checksum:       rec.Checksum,
		S3URL:          rec.S3URL,
	}, nil
}
