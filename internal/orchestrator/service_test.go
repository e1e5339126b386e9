package orchestrator

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/local/pdfconvert/internal/apperr"
	"github.com/local/pdfconvert/internal/converter"
	"github.com/local/pdfconvert/internal/docx"
	"github.com/local/pdfconvert/internal/pdffixture"
	"github.com/local/pdfconvert/internal/store"
	"github.com/local/pdfconvert/internal/workspace"
)

type fakeEngine struct {
	mu    sync.Mutex
	calls [][2]int
	fail  bool
	block bool
}

func (*fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Convert(ctx context.Context, _, dst string, start, end int, _ converter.Options) error {
	f.mu.Lock()
	f.calls = append(f.calls, [2]int{start, end})
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.fail {
		return errors.New("engine exploded")
	}
	doc := &docx.Document{Section: docx.Letter}
	for p := start; p < end; p++ {
		doc.Blocks = append(doc.Blocks, &docx.Paragraph{Runs: []docx.Run{{Text: fmt.Sprintf("p%d", p+1)}}})
	}
	return docx.WriteFile(dst, doc)
}

type fakeMirror struct{ uploaded []string }

func (m *fakeMirror) Upload(_ context.Context, p, _ string, _ map[string]string) (string, error) {
	m.uploaded = append(m.uploaded, filepath.Base(p))
	return "https://mirror.example/" + filepath.Base(p), nil
}

type fakeOffice struct{ got *docx.Document }

func (o *fakeOffice) ToPDF(_ context.Context, src, dst string) error {
	doc, err := docx.ReadFile(src)
	if err != nil {
		return err
	}
	o.got = doc
	return os.WriteFile(dst, pdffixture.Build("printed"), 0o644)
}

func newTestService(t *testing.T, deps Dependencies) (*Service, workspace.Dirs) {
	t.Helper()
	root := t.TempDir()
	dirs := workspace.Dirs{Upload: filepath.Join(root, "uploads"), Converted: filepath.Join(root, "converted")}
	require.NoError(t, dirs.Ensure())
	deps.Dirs = dirs
	if deps.Engine == nil {
		deps.Engine = &fakeEngine{}
	}
	if deps.Records == nil {
		deps.Records = store.NewMemory(time.Hour)
	}
	if deps.MaxAge == 0 {
		deps.MaxAge = time.Hour
	}
	return New(deps), dirs
}

func pdfUpload(name string, pages ...string) Upload {
	return Upload{Name: name, Body: bytes.NewReader(pdffixture.Build(pages...))}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, dir)
}

func TestToWordTextOnly(t *testing.T) {
	s, dirs := newTestService(t, Dependencies{})
	res, err := s.ToWord(context.Background(), pdfUpload("Quarterly Report.pdf", pdffixture.Pages(3)...), WordRequest{Mode: "text-only", Pages: "2-3"})
	require.NoError(t, err)

	assert.Equal(t, "2-3", res.PagesConverted)
	assert.Equal(t, 2, res.PagesCount)
	assert.Equal(t, "text-only", res.Mode)
	assert.True(t, strings.HasSuffix(res.Filename, "_Quarterly_Report.docx"), res.Filename)
	assert.Equal(t, "/download/"+res.Filename, res.URL)
	assert.Len(t, res.Checksum, 64)
	assert.Contains(t, res.Speed, "pages/s")

	doc, err := docx.ReadFile(filepath.Join(dirs.Converted, res.Filename))
	require.NoError(t, err)
	assert.Equal(t, "Page 2", doc.Blocks[0].(*docx.Paragraph).Text())
	assertEmptyDir(t, dirs.Upload)

	rec, err := s.Record(context.Background(), res.Filename)
	require.NoError(t, err)
	assert.Equal(t, "word", rec.Kind)
	assert.Equal(t, res.Size, rec.Size)
}

func TestToWordBatchesLargeRanges(t *testing.T) {
	eng := &fakeEngine{}
	s, dirs := newTestService(t, Dependencies{Engine: eng, BatchSize: 2})
	res, err := s.ToWord(context.Background(), pdfUpload("big.pdf", pdffixture.Pages(5)...), WordRequest{Mode: "fast"})
	require.NoError(t, err)

	assert.Equal(t, "all", res.PagesConverted)
	assert.Equal(t, [][2]int{{0, 2}, {2, 4}, {4, 5}}, eng.calls)

	entries, err := os.ReadDir(dirs.Converted)
	require.NoError(t, err)
	require.Len(t, entries, 1, "batch intermediates are gone")
	assertEmptyDir(t, dirs.Upload)
}

func TestToWordMalformedSelectorConvertsAll(t *testing.T) {
	eng := &fakeEngine{}
	s, _ := newTestService(t, Dependencies{Engine: eng})
	res, err := s.ToWord(context.Background(), pdfUpload("a.pdf", pdffixture.Pages(4)...), WordRequest{Pages: "1-x"})
	require.NoError(t, err)
	assert.Equal(t, "all", res.PagesConverted)
	assert.Equal(t, "fast", res.Mode)
	assert.Equal(t, [][2]int{{0, 4}}, eng.calls)
}

func TestToWordTimeout(t *testing.T) {
	s, dirs := newTestService(t, Dependencies{Engine: &fakeEngine{block: true}, Timeout: 50 * time.Millisecond})
	_, err := s.ToWord(context.Background(), pdfUpload("slow.pdf", "x"), WordRequest{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(err))
	assert.Equal(t, 408, apperr.StatusCode(err))
	assertEmptyDir(t, dirs.Upload)
}

func TestToWordEngineFailure(t *testing.T) {
	s, dirs := newTestService(t, Dependencies{Engine: &fakeEngine{fail: true}})
	_, err := s.ToWord(context.Background(), pdfUpload("bad.pdf", "x"), WordRequest{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConversion, apperr.KindOf(err))
	assert.Contains(t, apperr.PublicMessage(err), "engine exploded")
	assertEmptyDir(t, dirs.Upload)
	assertEmptyDir(t, dirs.Converted)
}

func TestToWordRejectsBadUploads(t *testing.T) {
	s, dirs := newTestService(t, Dependencies{})

	_, err := s.ToWord(context.Background(), Upload{Name: "notes.txt", Body: strings.NewReader("hi")}, WordRequest{})
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))

	_, err = s.ToWord(context.Background(), Upload{Name: "fake.pdf", Body: strings.NewReader("just text")}, WordRequest{})
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))

	_, err = s.ToWord(context.Background(), Upload{}, WordRequest{})
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))

	assertEmptyDir(t, dirs.Upload)
}

func TestToWordMirrors(t *testing.T) {
	m := &fakeMirror{}
	s, _ := newTestService(t, Dependencies{Mirror: m})
	res, err := s.ToWord(context.Background(), pdfUpload("m.pdf", "x"), WordRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{res.Filename}, m.uploaded)
	assert.Equal(t, "https://mirror.example/"+res.Filename, res.S3URL)
}

func TestRecordLookup(t *testing.T) {
	s, _ := newTestService(t, Dependencies{})
	_, err := s.Record(context.Background(), "missing.docx")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = s.Record(context.Background(), "../etc/passwd")
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}

func TestInfoPaginates(t *testing.T) {
	s, dirs := newTestService(t, Dependencies{})
	res, err := s.Info(context.Background(), pdfUpload("i.pdf", pdffixture.Pages(7)...), 2, 3)
	require.NoError(t, err)

	assert.Equal(t, 7, res.PageCount)
	require.Len(t, res.Previews, 3)
	assert.Equal(t, 4, res.Previews[0].Page)
	assert.True(t, strings.HasPrefix(res.Previews[0].Image, "data:image/jpeg;base64,"))
	assert.Equal(t, 612, res.Previews[0].Width)
	assert.Equal(t, Pagination{CurrentPage: 2, PageSize: 3, TotalPages: 3, StartIndex: 4, EndIndex: 6}, res.Pagination)
	assertEmptyDir(t, dirs.Upload)
}

func TestInfoPagePastEnd(t *testing.T) {
	s, dirs := newTestService(t, Dependencies{})
	_, err := s.Info(context.Background(), pdfUpload("i.pdf", pdffixture.Pages(7)...), 5, 3)
	assert.Equal(t, apperr.KindPageOutOfRange, apperr.KindOf(err))
	assert.Equal(t, "page out of range (1-3)", apperr.PublicMessage(err))
	assertEmptyDir(t, dirs.Upload)

	res, err := s.Info(context.Background(), pdfUpload("i.pdf", pdffixture.Pages(7)...), 3, 3)
	require.NoError(t, err)
	require.Len(t, res.Previews, 1)
	assert.Equal(t, Pagination{CurrentPage: 3, PageSize: 3, TotalPages: 3, StartIndex: 7, EndIndex: 7}, res.Pagination)
}

func TestPreviewRange(t *testing.T) {
	s, _ := newTestService(t, Dependencies{})
	res, err := s.Preview(context.Background(), pdfUpload("p.pdf", "a", "b"), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Preview.Page)
	assert.Equal(t, 2, res.PageCount)

	_, err = s.Preview(context.Background(), pdfUpload("p.pdf", "a", "b"), 3)
	assert.Equal(t, apperr.KindPageOutOfRange, apperr.KindOf(err))
	assert.Equal(t, "page out of range (1-2)", apperr.PublicMessage(err))
}

func TestToImages(t *testing.T) {
	s, _ := newTestService(t, Dependencies{})
	res, err := s.ToImages(context.Background(), pdfUpload("x.pdf", pdffixture.Pages(3)...), ImagesRequest{Page: 1, PageSize: 2, Format: "jpg", Quality: 500, DPI: 72})
	require.NoError(t, err)

	require.Len(t, res.Images, 2)
	assert.Equal(t, 85, res.Quality, "out of range quality falls back")
	assert.Equal(t, "jpg", res.Format)
	assert.Equal(t, 2, res.TotalPages)
	assert.Equal(t, 612, res.Images[0].Width)
	assert.Equal(t, 792, res.Images[0].Height)
	assert.Equal(t, 2, res.EndPage)

	_, err = s.ToImages(context.Background(), pdfUpload("x.pdf", pdffixture.Pages(3)...), ImagesRequest{Page: 3, PageSize: 2})
	assert.Equal(t, apperr.KindPageOutOfRange, apperr.KindOf(err))
}

func TestToPPT(t *testing.T) {
	s, dirs := newTestService(t, Dependencies{})
	res, err := s.ToPPT(context.Background(), pdfUpload("deck.pdf", pdffixture.Pages(2)...), SlidesRequest{DPI: 72, Quality: 10})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 92, res.Quality)
	assert.Regexp(t, `^converted_[0-9a-f]{8}\.pptx$`, res.Filename)

	zr, err := zip.OpenReader(filepath.Join(dirs.Converted, res.Filename))
	require.NoError(t, err)
	defer zr.Close()
	var slides int
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") {
			slides++
		}
	}
	assert.Equal(t, 2, slides)
}

func TestTextToPDFFromForm(t *testing.T) {
	office := &fakeOffice{}
	s, dirs := newTestService(t, Dependencies{Office: office})
	res, err := s.TextToPDF(context.Background(), Upload{}, TextRequest{Text: "first\n\nthird", FontSize: 14, LineSpacing: 1.8})
	require.NoError(t, err)

	assert.Equal(t, "utf-8", res.Encoding)
	assert.True(t, strings.HasSuffix(res.Filename, "_text.pdf"))
	require.Len(t, office.got.Blocks, 3)
	first := office.got.Blocks[0].(*docx.Paragraph)
	assert.Equal(t, 14.0, first.Runs[0].Size)
	assert.InDelta(t, 1.8, first.LineSpacing, 1e-9)
	assert.Empty(t, office.got.Blocks[1].(*docx.Paragraph).Runs)

	entries, err := os.ReadDir(dirs.Converted)
	require.NoError(t, err)
	require.Len(t, entries, 1, "layout workspace removed")
}

func TestTextToPDFDetectsEncoding(t *testing.T) {
	gbk, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte("你好，世界"))
	require.NoError(t, err)

	office := &fakeOffice{}
	s, dirs := newTestService(t, Dependencies{Office: office})
	res, err := s.TextToPDF(context.Background(), Upload{Name: "notes.txt", Body: bytes.NewReader(gbk)}, TextRequest{})
	require.NoError(t, err)

	assert.Equal(t, "gbk", res.Encoding)
	assert.Equal(t, "你好，世界", office.got.Blocks[0].(*docx.Paragraph).Text())
	assert.Equal(t, 12.0, office.got.Blocks[0].(*docx.Paragraph).Runs[0].Size)
	assertEmptyDir(t, dirs.Upload)
}

func TestTextToPDFNeedsOffice(t *testing.T) {
	s, _ := newTestService(t, Dependencies{})
	_, err := s.TextToPDF(context.Background(), Upload{}, TextRequest{Text: "x"})
	assert.Equal(t, apperr.KindConversion, apperr.KindOf(err))

	s, _ = newTestService(t, Dependencies{Office: &fakeOffice{}})
	_, err = s.TextToPDF(context.Background(), Upload{}, TextRequest{Text: "   "})
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}

func TestSweepRemovesStaleFiles(t *testing.T) {
	s, dirs := newTestService(t, Dependencies{MaxAge: time.Minute})
	old := filepath.Join(dirs.Converted, "old.docx")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	assert.Equal(t, 1, s.Sweep())
	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType("a.pdf"))
	assert.Contains(t, ContentType("a.docx"), "wordprocessingml")
	assert.Contains(t, ContentType("a.pptx"), "presentationml")
	assert.Equal(t, "application/octet-stream", ContentType("a.unknownext"))
}
