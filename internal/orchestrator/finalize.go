package orchestrator

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfconvert/internal/apperr"
	"github.com/local/pdfconvert/internal/metrics"
	"github.com/local/pdfconvert/internal/store"
)

const mirrorTimeout = 2 * time.Minute

// artifact is what a successful conversion leaves in the converted dir.
type artifact struct {
	path  string
	kind  string
	mode  string
	pages int
	took  time.Duration
}

// finalize records the artifact and mirrors it when a mirror is set.
// Record and mirror failures are logged; only a missing artifact fails.
func (s *Service) finalize(ctx context.Context, a artifact) (store.Record, error) {
	info, err := os.Stat(a.path)
	if err != nil {
		metrics.ObserveConversion(a.kind, a.mode, "failure", a.took)
		return store.Record{}, apperr.Wrap(apperr.KindConversion, "conversion produced no output", err)
	}
	name := filepath.Base(a.path)
	rec := store.Record{
		Filename:       name,
		Kind:           a.kind,
		Mode:           a.mode,
		Size:           info.Size(),
		Pages:          a.pages,
		ConversionTime: a.took.Seconds(),
		CreatedAt:      time.Now().UTC(),
	}
	if sum, err := store.Checksum(a.path); err == nil {
		rec.Checksum = sum
	} else {
		log.Warn().Err(err).Str("file", name).Msg("checksum failed")
	}

	// The request may already be gone; the artifact is still worth keeping.
	bg := context.WithoutCancel(ctx)
	if s.deps.Mirror != nil {
		mctx, cancel := context.WithTimeout(bg, mirrorTimeout)
		url, err := s.deps.Mirror.Upload(mctx, a.path, ContentType(name), map[string]string{
			"kind":  a.kind,
			"pages": strconv.Itoa(a.pages),
		})
		cancel()
		if err != nil {
			log.Error().Err(err).Str("file", name).Msg("mirror upload failed")
		} else {
			rec.S3URL = url
		}
	}
	if err := s.deps.Records.Put(bg, rec); err != nil {
		log.Error().Err(err).Str("file", name).Msg("failed to store conversion record")
	}

	metrics.ObserveConversion(a.kind, a.mode, "success", a.took)
	ev := log.Info().
		Str("file", name).
		Str("kind", a.kind).
		Str("size", humanize.Bytes(uint64(rec.Size))).
		Int("pages", a.pages).
		Dur("duration", a.took)
	if a.took > 0 && a.pages > 0 {
		ev = ev.Float64("pages_per_sec", float64(a.pages)/a.took.Seconds())
	}
	ev.Msg("conversion finished")
	return rec, nil
}

func (s *Service) fail(kind, mode string, took time.Duration, err error) error {
	metrics.ObserveConversion(kind, mode, "failure", took)
	out := classify(err)
	log.Error().Err(err).Str("kind", kind).Str("mode", mode).Dur("duration", took).Msg("conversion failed")
	return out
}

var contentTypes = map[string]string{
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".pdf":  "application/pdf",
}

// ContentType is the download MIME type for an artifact name.
func ContentType(name string) string {
	ext := filepath.Ext(name)
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
