package converter

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdfconvert/internal/docx"
	"github.com/local/pdfconvert/internal/pdffixture"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		name     string
		images   bool
		mode     Mode
		textOnly bool
		opts     Options
	}{
		{"ultra-fast", false, UltraFast, true, Options{}},
		{"text-only", true, UltraFast, true, Options{}},
		{"fast", true, Fast, false, Options{}},
		{"balanced", false, Balanced, false, Options{IncludeImages: true, MaxImagesPerPage: BalancedImageCap}},
		{"premium", false, Balanced, false, Options{IncludeImages: true, MaxImagesPerPage: BalancedImageCap}},
		{"quality", false, Quality, false, Options{IncludeImages: true, KeepLayout: true}},
		{"Complex", false, Quality, false, Options{IncludeImages: true, KeepLayout: true}},
		{"turbo", true, Fast, false, Options{IncludeImages: true}},
		{"", false, Fast, false, Options{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParseMode(tt.name, tt.images)
			assert.Equal(t, tt.mode, p.Mode)
			assert.Equal(t, tt.textOnly, p.TextOnly)
			assert.Equal(t, tt.opts, p.Options)
		})
	}
	assert.Equal(t, "fast", ParseMode(" ", false).Requested)
	assert.Equal(t, "premium", ParseMode("premium", false).Requested)
}

func paragraphs(t *testing.T, p string) []*docx.Paragraph {
	t.Helper()
	doc, err := docx.ReadFile(p)
	require.NoError(t, err)
	var out []*docx.Paragraph
	for _, b := range doc.Blocks {
		if para, ok := b.(*docx.Paragraph); ok {
			out = append(out, para)
		}
	}
	return out
}

func TestTextOnlyLayout(t *testing.T) {
	dir := t.TempDir()
	src, err := pdffixture.Write(dir, "in.pdf", "Hello world", "")
	require.NoError(t, err)
	dst := filepath.Join(dir, "out.docx")

	require.NoError(t, TextOnly(context.Background(), src, dst, 0, 2))

	paras := paragraphs(t, dst)
	require.Len(t, paras, 5)

	h := paras[0]
	assert.Equal(t, "Page 1", h.Text())
	assert.Equal(t, "Heading2", h.Style)
	assert.Equal(t, docx.AlignCenter, h.Alignment)
	assert.Equal(t, docx.Pt(6), h.SpacingAfter)
	assert.Zero(t, h.SpacingBefore)
	assert.Equal(t, "2E7D32", h.Runs[0].Color)
	assert.Equal(t, 11.0, h.Runs[0].Size)

	assert.Contains(t, paras[1].Text(), "Hello world")
	assert.InDelta(t, 1.15, paras[1].LineSpacing, 0.01)
	assert.Equal(t, 10.0, paras[1].Runs[0].Size)

	assert.True(t, paras[2].IsPageBreak())
	assert.Equal(t, "Page 2", paras[3].Text())
	assert.Equal(t, emptyPageText, paras[4].Text())
	assert.Equal(t, "969696", paras[4].Runs[0].Color)

	doc, err := docx.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, docx.Inch(0.75), doc.Section.MarginLeft)
	assert.Equal(t, docx.Inch(0.5), doc.Section.MarginTop)
}

func TestTextOnlyHonoursCancellation(t *testing.T) {
	dir := t.TempDir()
	src, err := pdffixture.Write(dir, "in.pdf", "a", "b")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = TextOnly(ctx, src, filepath.Join(dir, "out.docx"), 0, 2)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(dir, "out.docx"))
}

func TestNativeConvertsRange(t *testing.T) {
	dir := t.TempDir()
	src, err := pdffixture.Write(dir, "in.pdf", pdffixture.Pages(4)...)
	require.NoError(t, err)
	dst := filepath.Join(dir, "out.docx")

	require.NoError(t, NewNative().Convert(context.Background(), src, dst, 1, 3, Options{IncludeImages: true}))

	var texts []string
	for _, p := range paragraphs(t, dst) {
		if p.IsPageBreak() {
			texts = append(texts, "<break>")
			continue
		}
		texts = append(texts, strings.TrimSpace(p.Text()))
	}
	assert.Equal(t, []string{"Page text 2", "<break>", "Page text 3"}, texts)
}

func TestNativePlacesImagesAfterTheirPage(t *testing.T) {
	dir := t.TempDir()
	src, err := pdffixture.WritePages(dir, "in.pdf",
		pdffixture.Page{Text: "cover", Images: 1},
		pdffixture.Page{Text: "first", Images: 2},
		pdffixture.Page{Text: "second"},
		pdffixture.Page{Text: "third", Images: 3},
	)
	require.NoError(t, err)
	dst := filepath.Join(dir, "out.docx")

	require.NoError(t, NewNative().Convert(context.Background(), src, dst, 1, 4, Options{IncludeImages: true, MaxImagesPerPage: 2}))

	var seq []string
	for _, p := range paragraphs(t, dst) {
		switch {
		case p.IsPageBreak():
			seq = append(seq, "<break>")
		case len(p.Runs) == 1 && p.Runs[0].Image != nil:
			seq = append(seq, "<img>")
		default:
			seq = append(seq, strings.TrimSpace(p.Text()))
		}
	}
	assert.Equal(t, []string{
		"first", "<img>", "<img>", "<break>",
		"second", "<break>",
		"third", "<img>", "<img>",
	}, seq)
}

func TestNativeRejectsEmptyRange(t *testing.T) {
	dir := t.TempDir()
	src, err := pdffixture.Write(dir, "in.pdf", "x")
	require.NoError(t, err)
	assert.Error(t, NewNative().Convert(context.Background(), src, filepath.Join(dir, "o.docx"), 1, 1, Options{}))
}

func TestLibreOfficeMissingBinary(t *testing.T) {
	dir := t.TempDir()
	src, err := pdffixture.Write(dir, "in.pdf", "x")
	require.NoError(t, err)
	lo := NewLibreOffice(filepath.Join(dir, "no-such-soffice"), 1)

	_, err = lo.Version(context.Background())
	assert.Error(t, err)

	err = lo.Convert(context.Background(), src, filepath.Join(dir, "out.docx"), 0, 1, Options{})
	assert.Error(t, err)
	left, _ := filepath.Glob(filepath.Join(dir, ".lo-*"))
	assert.Empty(t, left)
}

func TestOutputHelpers(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "pages.docx"), expectedOutputPath("/tmp/x/pages.pdf", "out", "docx"))
	assert.True(t, looksProtected([]byte("Error: source file could not be loaded, Password required")))
	assert.False(t, looksProtected([]byte("convert /tmp/a.pdf -> /tmp/a.docx")))
}
