package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdfconvert/internal/config"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		f.meta[r.URL.Path] = r.Header.Get("X-Amz-Meta-Kind")
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if r.URL.Path == "/artifacts" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestMirror(t *testing.T, prefix string) (*Mirror, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string][]byte{}, meta: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	m, err := NewMirror(context.Background(), config.S3Config{
		Bucket:          "artifacts",
		Prefix:          prefix,
		Region:          "us-east-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		PresignTTL:      10 * time.Minute,
	}, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(srv.URL)
		o.UsePathStyle = true
	})
	require.NoError(t, err)
	return m, fake
}

func TestMirrorUpload(t *testing.T) {
	m, fake := newTestMirror(t, "converted")
	p := filepath.Join(t.TempDir(), "abc_report.docx")
	require.NoError(t, os.WriteFile(p, []byte("docx bytes"), 0o644))

	url, err := m.Upload(context.Background(), p, "application/octet-stream", map[string]string{"kind": "word"})
	require.NoError(t, err)

	assert.Equal(t, []byte("docx bytes"), fake.objects["/artifacts/converted/abc_report.docx"])
	assert.Equal(t, "word", fake.meta["/artifacts/converted/abc_report.docx"])
	assert.Contains(t, url, "/artifacts/converted/abc_report.docx")
	assert.True(t, strings.Contains(url, "X-Amz-Expires=600"), url)
}

func TestMirrorPing(t *testing.T) {
	m, _ := newTestMirror(t, "")
	assert.NoError(t, m.Ping(context.Background()))
	assert.Equal(t, "x.pdf", m.Key("x.pdf"))
}

func TestMirrorRequiresBucket(t *testing.T) {
	_, err := NewMirror(context.Background(), config.S3Config{})
	assert.Error(t, err)
}
