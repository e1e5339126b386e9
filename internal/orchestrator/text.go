package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfconvert/internal/apperr"
	"github.com/local/pdfconvert/internal/docx"
	"github.com/local/pdfconvert/internal/filetype"
	"github.com/local/pdfconvert/internal/guard"
	"github.com/local/pdfconvert/internal/textenc"
	"github.com/local/pdfconvert/internal/workspace"
)

type TextRequest struct {
	// Text is used when no file is uploaded.
	Text        string
	FontSize    float64
	LineSpacing float64
}

func (r *TextRequest) normalize() {
	if r.FontSize < 8 || r.FontSize > 72 {
		r.FontSize = 12
	}
	if r.LineSpacing < 1 || r.LineSpacing > 3 {
		r.LineSpacing = 1.5
	}
}

type TextResult struct {
	URL            string `json:"url"`
	Filename       string `json:"filename"`
	Size           int64  `json:"size"`
	Encoding       string `json:"encoding"`
	ConversionTime string `json:"conversion_time"`
	Checksum       string `json:"checksum"`
	S3URL          string `json:"s3_url,omitempty"`
}

// TextToPDF lays plain text out as a document and prints it to PDF. up may
// be zero when the text arrives as a form field.
func (s *Service) TextToPDF(ctx context.Context, up Upload, req TextRequest) (*TextResult, error) {
	if s.deps.Office == nil {
		return nil, apperr.New(apperr.KindConversion, "text to PDF needs LibreOffice, which is not configured")
	}
	s.Sweep()
	req.normalize()

	var (
		job      workspace.Job
		text     string
		encoding = "utf-8"
	)
	if up.Body != nil {
		var (
			src string
			err error
		)
		job, src, err = s.receive(up, filetype.Text, "text")
		if err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(src)
		removeUpload(src)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to read upload", err)
		}
		if text, encoding, err = textenc.Decode(raw); err != nil {
			return nil, apperr.InvalidInput("unable to detect the text encoding")
		}
	} else {
		job = workspace.NewJob("text.txt", "text")
		text = req.Text
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperr.InvalidInput("no text provided")
	}

	scratch, cleanup, err := workspace.Scoped(s.deps.Dirs.Converted, ".text-*")
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to prepare workspace", err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			log.Warn().Err(err).Str("dir", scratch).Msg("failed to remove text workspace")
		}
	}()

	doc := textDocument(text, req.FontSize, req.LineSpacing)
	docPath := filepath.Join(scratch, job.Stem+".docx")
	if err := docx.WriteFile(docPath, doc); err != nil {
		return nil, apperr.Wrap(apperr.KindConversion, "failed to lay out text", err)
	}

	name := job.Name(".pdf")
	dst := s.deps.Dirs.OutputPath(name)
	log.Info().
		Str("job_id", job.ID).
		Str("encoding", encoding).
		Int("chars", len([]rune(text))).
		Float64("font_size", req.FontSize).
		Float64("line_spacing", req.LineSpacing).
		Msg("starting text to PDF")

	began := time.Now()
	err = guard.Do(context.WithoutCancel(ctx), s.deps.Timeout, func(ctx context.Context) error {
		return s.deps.Office.ToPDF(ctx, docPath, dst)
	})
	took := time.Since(began)
	if err != nil {
		return nil, s.fail("pdf", "text", took, err)
	}

	rec, err := s.finalize(ctx, artifact{path: dst, kind: "pdf", mode: "text", took: took})
	if err != nil {
		return nil, err
	}
	return &TextResult{
		URL:            "/download/" + name,
		Filename:       name,
		Size:           rec.Size,
		Encoding:       encoding,
		ConversionTime: formatSeconds(took),
		Checksum:       rec.Checksum,
		S3URL:          rec.S3URL,
	}, nil
}

// textDocument turns each line into a paragraph; blank lines stay as empty
// paragraphs so spacing between blocks survives.
func textDocument(text string, fontSize, lineSpacing float64) *docx.Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	doc := &docx.Document{Section: docx.Letter}
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		p := &docx.Paragraph{LineSpacing: lineSpacing, SpacingSet: true}
		if line != "" {
			p.Runs = []docx.Run{{Text: line, Size: fontSize}}
		}
		doc.Blocks = append(doc.Blocks, p)
	}
	return doc
}
