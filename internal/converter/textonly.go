package converter

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfconvert/internal/docx"
	"github.com/local/pdfconvert/internal/mupdf"
)

const emptyPageText = "[No text content on this page]"

// textOnlySection is US Letter with half-inch top/bottom and three-quarter
// inch side margins.
var textOnlySection = docx.Section{
	PageWidth:    docx.Letter.PageWidth,
	PageHeight:   docx.Letter.PageHeight,
	MarginTop:    docx.Inch(0.5),
	MarginBottom: docx.Inch(0.5),
	MarginLeft:   docx.Inch(0.75),
	MarginRight:  docx.Inch(0.75),
}

// TextOnly writes the raw text layer of pages [start, end) to dst, one
// "Page N" heading and one paragraph per page. It never batches.
func TextOnly(ctx context.Context, src, dst string, start, end int) error {
	doc, err := mupdf.Open(src)
	if err != nil {
		return err
	}
	defer doc.Close()

	if end <= 0 || end > doc.NumPage() {
		end = doc.NumPage()
	}
	total := end - start
	log.Info().Int("start", start+1).Int("end", end).Int("pages", total).Msg("extracting text")

	out := &docx.Document{Section: textOnlySection}
	for page := start; page < end; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		text, err := doc.Text(page)
		if err != nil {
			return err
		}
		out.Blocks = append(out.Blocks, pageHeading(page), pageBody(text))
		if page < end-1 {
			out.Blocks = append(out.Blocks, docx.PageBreak())
		}
		if done := page - start + 1; done%10 == 0 {
			log.Info().Int("done", done).Int("total", total).Msg("text extraction progress")
		}
	}

	if err := docx.WriteFile(dst, out); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	log.Info().Int("pages", total).Msg("text-only conversion done")
	return nil
}

func pageHeading(page int) *docx.Paragraph {
	return &docx.Paragraph{
		Style:        "Heading2",
		Alignment:    docx.AlignCenter,
		SpacingAfter: docx.Pt(6),
		SpacingSet:   true,
		Runs:         []docx.Run{{Text: fmt.Sprintf("Page %d", page+1), Size: 11, Color: "2E7D32"}},
	}
}

func pageBody(text string) *docx.Paragraph {
	if strings.TrimSpace(text) == "" {
		return &docx.Paragraph{
			SpacingSet: true,
			Runs:       []docx.Run{{Text: emptyPageText, Size: 10, Color: "969696"}},
		}
	}
	return &docx.Paragraph{
		SpacingSet:  true,
		LineSpacing: 1.15,
		Runs:        []docx.Run{{Text: text, Size: 10}},
	}
}
