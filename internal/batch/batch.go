// Package batch converts large page ranges in fixed-size pieces and merges
// the pieces into one document.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfconvert/internal/converter"
	"github.com/local/pdfconvert/internal/docx"
	"github.com/local/pdfconvert/internal/metrics"
	"github.com/local/pdfconvert/internal/pagerange"
	"github.com/local/pdfconvert/internal/workspace"
)

// DefaultSize is the number of pages converted per engine call.
const DefaultSize = 20

// Batch is a contiguous 0-based page range [Start, End). Index is 1-based.
type Batch struct {
	Index int
	Start int
	End   int
}

func (b Batch) Pages() int { return b.End - b.Start }

// ConversionError reports an engine failure. Batch is zero for a direct
// (unbatched) conversion.
type ConversionError struct {
	Batch Batch
	Err   error
}

func (e *ConversionError) Error() string {
	if e.Batch.Index == 0 {
		return fmt.Sprintf("conversion failed: %v", e.Err)
	}
	return fmt.Sprintf("batch %d (pages %d-%d) failed: %v", e.Batch.Index, e.Batch.Start+1, e.Batch.End, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Plan partitions [start, end) into consecutive batches of at most size
// pages.
func Plan(start, end, size int) []Batch {
	if size <= 0 {
		size = DefaultSize
	}
	var out []Batch
	for s := start; s < end; s += size {
		out = append(out, Batch{Index: len(out) + 1, Start: s, End: min(s+size, end)})
	}
	return out
}

// Converter drives an engine over an interval.
type Converter struct {
	engine converter.Engine
	size   int
}

// New returns a Converter that calls engine with at most size pages at a
// time.
func New(engine converter.Engine, size int) *Converter {
	if size <= 0 {
		size = DefaultSize
	}
	return &Converter{engine: engine, size: size}
}

func (c *Converter) Size() int { return c.size }

// Convert writes pages iv.Start..iv.End of src to dst. Ranges up to the
// batch size are converted in one engine call. Larger ranges are converted
// batch by batch, strictly in sequence, into a private directory next to
// dst and then merged. Intermediates never outlive the call; nothing is left
// at dst on failure.
func (c *Converter) Convert(ctx context.Context, src, dst string, iv pagerange.Interval, opts converter.Options) error {
	pages := iv.Len()
	if pages <= c.size {
		log.Info().Int("pages", pages).Str("engine", c.engine.Name()).Msg("converting directly")
		if err := c.engine.Convert(ctx, src, dst, iv.Start, iv.End, opts); err != nil {
			removeQuiet(dst)
			return &ConversionError{Err: err}
		}
		return nil
	}

	plan := Plan(iv.Start, iv.End, c.size)
	log.Info().Int("pages", pages).Int("batches", len(plan)).Int("batch_size", c.size).Msg("converting in batches")

	scratch, cleanup, err := workspace.Scoped(filepath.Dir(dst), ".batches-*")
	if err != nil {
		return &ConversionError{Err: err}
	}
	defer func() {
		if err := cleanup(); err != nil {
			log.Warn().Err(err).Str("dir", scratch).Msg("failed to remove batch intermediates")
		}
	}()

	stem := strings.TrimSuffix(filepath.Base(dst), filepath.Ext(dst))
	parts := make([]string, 0, len(plan))
	for _, b := range plan {
		part := filepath.Join(scratch, fmt.Sprintf("%s_batch%d.docx", stem, b.Index))
		parts = append(parts, part)

		began := time.Now()
		log.Info().Int("batch", b.Index).Int("of", len(plan)).Int("start", b.Start+1).Int("end", b.End).Msg("converting batch")
		if err := ctx.Err(); err != nil {
			metrics.IncBatch("failure")
			return &ConversionError{Batch: b, Err: err}
		}
		if err := c.engine.Convert(ctx, src, part, b.Start, b.End, opts); err != nil {
			metrics.IncBatch("failure")
			log.Error().Err(err).Int("batch", b.Index).Msg("batch failed")
			return &ConversionError{Batch: b, Err: err}
		}
		metrics.IncBatch("success")
		log.Info().Int("batch", b.Index).Dur("duration", time.Since(began)).Msg("batch done")
	}

	log.Info().Int("parts", len(parts)).Msg("merging batches")
	if err := docx.Merge(ctx, parts, dst); err != nil {
		removeQuiet(dst)
		return err
	}
	return nil
}

func removeQuiet(p string) {
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("file", p).Msg("failed to remove partial output")
	}
}
