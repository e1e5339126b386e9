// Package orchestrator runs one export per call: it stores the upload,
// resolves pages, drives the conversion under a deadline and finalises the
// artifact. Every exit path removes the upload.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfconvert/internal/apperr"
	"github.com/local/pdfconvert/internal/batch"
	"github.com/local/pdfconvert/internal/converter"
	"github.com/local/pdfconvert/internal/filetype"
	"github.com/local/pdfconvert/internal/retention"
	"github.com/local/pdfconvert/internal/store"
	"github.com/local/pdfconvert/internal/workspace"
)

// Mirror copies finished artifacts elsewhere and returns a download URL.
type Mirror interface {
	Upload(ctx context.Context, p, contentType string, meta map[string]string) (string, error)
}

// PDFWriter turns a word-processing document into a PDF.
type PDFWriter interface {
	ToPDF(ctx context.Context, src, dst string) error
}

// Upload is a client file still being received.
type Upload struct {
	Name string
	Body io.Reader
}

type Dependencies struct {
	Dirs      workspace.Dirs
	Engine    converter.Engine
	BatchSize int
	Timeout   time.Duration
	MaxAge    time.Duration
	Records   store.Store
	// Mirror and Office are optional.
	Mirror Mirror
	Office PDFWriter
}

type Service struct {
	deps  Dependencies
	batch *batch.Converter
}

func New(deps Dependencies) *Service {
	if deps.Timeout <= 0 {
		deps.Timeout = 300 * time.Second
	}
	if deps.Records == nil {
		deps.Records = store.NewMemory(deps.MaxAge)
	}
	return &Service{deps: deps, batch: batch.New(deps.Engine, deps.BatchSize)}
}

// Dirs exposes the working directories for the download handler.
func (s *Service) Dirs() workspace.Dirs { return s.deps.Dirs }

// Sweep runs the retention sweeper over both working directories.
func (s *Service) Sweep() int {
	if s.deps.MaxAge <= 0 {
		return 0
	}
	return retention.SweepAll(s.deps.MaxAge, s.deps.Dirs.Upload, s.deps.Dirs.Converted)
}

// Record returns the stored metadata of a past conversion.
func (s *Service) Record(ctx context.Context, filename string) (store.Record, error) {
	if _, err := s.deps.Dirs.Resolve(filename); err != nil {
		return store.Record{}, apperr.InvalidInput("invalid filename")
	}
	rec, ok, err := s.deps.Records.Get(ctx, filename)
	if err != nil {
		return store.Record{}, apperr.Wrap(apperr.KindInternal, "record lookup failed", err)
	}
	if !ok {
		return store.Record{}, apperr.NotFound("conversion record not found")
	}
	return rec, nil
}

// receive writes up into the upload directory and checks its type. The
// caller owns the returned path and must remove it.
func (s *Service) receive(up Upload, kind filetype.Kind, fallback string) (workspace.Job, string, error) {
	if up.Body == nil || strings.TrimSpace(up.Name) == "" {
		return workspace.Job{}, "", apperr.InvalidInput("no file uploaded")
	}
	if !filetype.AllowedExtension(up.Name, kind) {
		return workspace.Job{}, "", apperr.InvalidInput("only %s files are supported", strings.ToUpper(kind.String()))
	}

	job := workspace.NewJob(up.Name, fallback)
	p := s.deps.Dirs.UploadPath(job, strings.ToLower(filepath.Ext(up.Name)))
	f, err := os.Create(p)
	if err != nil {
		return job, "", apperr.Wrap(apperr.KindInternal, "failed to store upload", err)
	}
	n, err := io.Copy(f, up.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		removeUpload(p)
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return job, "", apperr.TooLarge(tooBig.Limit >> 20)
		}
		return job, "", apperr.Wrap(apperr.KindInternal, "failed to store upload", err)
	}

	if _, err := filetype.CheckFile(p, kind); err != nil {
		removeUpload(p)
		return job, "", apperr.InvalidInput("invalid %s file", strings.ToUpper(kind.String()))
	}
	log.Info().
		Str("job_id", job.ID).
		Str("file", up.Name).
		Str("size", humanize.Bytes(uint64(n))).
		Msg("upload received")
	return job, p, nil
}

func removeUpload(p string) {
	if p == "" {
		return
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("file", p).Msg("failed to remove upload")
	}
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
