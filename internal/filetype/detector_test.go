package filetype

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdfconvert/internal/pdffixture"
)

func TestCheckPDF(t *testing.T) {
	info, err := Check("report.PDF", bytes.NewReader(pdffixture.Build("hello")), PDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", info.MIMEType)
}

func TestCheckRejectsDisguisedFile(t *testing.T) {
	_, err := Check("report.pdf", bytes.NewReader([]byte("just some words")), PDF)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestCheckRejectsExtension(t *testing.T) {
	_, err := Check("report.docx", bytes.NewReader(pdffixture.Build("x")), PDF)
	assert.True(t, errors.Is(err, ErrUnsupported))
	assert.Contains(t, err.Error(), ".pdf")
}

func TestCheckText(t *testing.T) {
	_, err := Check("notes.txt", bytes.NewReader([]byte("plain ascii notes\n")), Text)
	assert.NoError(t, err)

	gbk := []byte{0xc4, 0xe3, 0xba, 0xc3, 0xca, 0xc0, 0xbd, 0xe7}
	_, err = Check("notes.txt", bytes.NewReader(gbk), Text)
	assert.NoError(t, err)

	_, err = Check("notes.txt", bytes.NewReader(pdffixture.Build("x")), Text)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	p, err := pdffixture.Write(dir, "a.pdf", "a")
	require.NoError(t, err)
	_, err = CheckFile(p, PDF)
	assert.NoError(t, err)

	bad := filepath.Join(dir, "b.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("<html></html>"), 0o644))
	_, err = CheckFile(bad, PDF)
	assert.Error(t, err)
}

func TestAllowedExtension(t *testing.T) {
	assert.True(t, AllowedExtension("a.md", Text))
	assert.False(t, AllowedExtension("a", PDF))
	assert.False(t, AllowedExtension("a.pdf.exe", PDF))
}
