package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(p, []byte("abc"), 0o644))

	sum, err := Checksum(p)
	require.NoError(t, err)
	assert.Equal(t, "bddd813c634239723171ef3fee98579b94964e3bb1cb3e427262c8c068d52319", sum)

	_, err = Checksum(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestMemoryExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(time.Hour)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Put(ctx, Record{Filename: "a.docx", Kind: "word", Size: 10}))
	got, ok, err := m.Get(ctx, "a.docx")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(10), got.Size)

	now = now.Add(2 * time.Hour)
	_, ok, err = m.Get(ctx, "a.docx")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecordFromHash(t *testing.T) {
	r := recordFromHash(map[string]string{
		"filename":        "x.docx",
		"kind":            "word",
		"size":            "2048",
		"pages":           "12",
		"conversion_time": "1.250",
		"created_at":      "2026-03-04T05:06:07Z",
		"s3_url":          "https://example/x",
	})
	assert.Equal(t, "x.docx", r.Filename)
	assert.Equal(t, int64(2048), r.Size)
	assert.Equal(t, 12, r.Pages)
	assert.InDelta(t, 1.25, r.ConversionTime, 1e-9)
	assert.Equal(t, 2026, r.CreatedAt.Year())

	assert.Zero(t, recordFromHash(map[string]string{"size": "nope"}).Size)
}

// Runs against a real server when TEST_REDIS_URL is set.
func TestRedisRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	s, err := NewRedis(url, time.Minute)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	rec := Record{Filename: "test-" + time.Now().Format("150405.000") + ".docx", Kind: "word", Pages: 3, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.Put(ctx, rec))

	got, ok, err := s.Get(ctx, rec.Filename)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.Pages)
	ttl, err := s.client.TTL(ctx, s.key(rec.Filename)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
