// Package retention reclaims old artifacts from the upload and converted
// directories.
package retention

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfconvert/internal/metrics"
)

// Sweep removes regular files directly under dir whose modification time is
// more than maxAge ago and returns how many were removed. Subdirectories are
// left alone. Errors are logged, never returned.
func Sweep(dir string, maxAge time.Duration) int {
	return sweep(dir, maxAge, time.Now())
}

func sweep(dir string, maxAge time.Duration, now time.Time) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("dir", dir).Msg("retention sweep could not list directory")
		}
		return 0
	}

	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := os.Remove(p); err != nil {
			log.Warn().Err(err).Str("file", p).Msg("failed to remove old file")
			continue
		}
		log.Info().Str("file", e.Name()).Dur("age", now.Sub(info.ModTime())).Msg("removed old file")
		removed++
	}
	metrics.AddSwept(removed)
	return removed
}

// SweepAll sweeps each directory in turn.
func SweepAll(maxAge time.Duration, dirs ...string) int {
	n := 0
	for _, d := range dirs {
		n += Sweep(d, maxAge)
	}
	return n
}
