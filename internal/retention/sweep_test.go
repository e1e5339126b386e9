package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, p string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	mt := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(p, mt, mt))
}

func TestSweepRemovesOnlyOldFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "old.pdf"), 2*time.Hour)
	touch(t, filepath.Join(dir, "new.pdf"), time.Minute)

	sub := filepath.Join(dir, ".batches-1")
	require.NoError(t, os.Mkdir(sub, 0o755))
	touch(t, filepath.Join(sub, "deep.docx"), 5*time.Hour)

	assert.Equal(t, 1, Sweep(dir, time.Hour))

	assert.NoFileExists(t, filepath.Join(dir, "old.pdf"))
	assert.FileExists(t, filepath.Join(dir, "new.pdf"))
	assert.FileExists(t, filepath.Join(sub, "deep.docx"))
}

func TestSweepMissingOrEmptyDir(t *testing.T) {
	assert.Equal(t, 0, Sweep(filepath.Join(t.TempDir(), "nope"), time.Hour))
	assert.Equal(t, 0, Sweep(t.TempDir(), time.Hour))
}

func TestSweepAll(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	touch(t, filepath.Join(a, "1"), 3*time.Hour)
	touch(t, filepath.Join(b, "2"), 3*time.Hour)
	assert.Equal(t, 2, SweepAll(time.Hour, a, b))
}
