package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\My File.pdf`, "My_File.pdf"},
		{"年度报告.pdf", "pdf"},
		{".hidden", "hidden"},
		{"..", ""},
		{"a  b\tc.txt", "a_b_c.txt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeName(tt.in), tt.in)
	}
}

func TestNewJob(t *testing.T) {
	j := NewJob("Quarterly Report.pdf", "document")
	assert.Equal(t, "Quarterly_Report", j.Stem)
	_, err := uuid.Parse(j.ID)
	require.NoError(t, err)
	assert.Equal(t, j.ID+"_Quarterly_Report.docx", j.Name(".docx"))

	assert.Equal(t, "document", NewJob("年度.pdf", "document").Stem)
	assert.NotEqual(t, j.ID, NewJob("Quarterly Report.pdf", "document").ID)
}

func TestResolve(t *testing.T) {
	d := Dirs{Upload: "up", Converted: "out"}

	p, err := d.Resolve("abc.docx")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "abc.docx"), p)

	for _, bad := range []string{"", "../x", "a/b", `a\b`, ".env", ".."} {
		_, err := d.Resolve(bad)
		assert.ErrorIs(t, err, ErrBadName, bad)
	}
}

func TestScoped(t *testing.T) {
	parent := t.TempDir()
	dir, cleanup, err := Scoped(parent, ".batches-*")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(dir), ".batches-"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x"), nil, 0o644))

	require.NoError(t, cleanup())
	assert.NoDirExists(t, dir)
}

func TestEnsure(t *testing.T) {
	root := t.TempDir()
	d := Dirs{Upload: filepath.Join(root, "u"), Converted: filepath.Join(root, "c")}
	require.NoError(t, d.Ensure())
	assert.DirExists(t, d.Upload)
	assert.DirExists(t, d.Converted)
}
