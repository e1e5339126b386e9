package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfconvert/internal/limiter"
	"github.com/local/pdfconvert/internal/pdfpages"
	"github.com/local/pdfconvert/internal/workspace"
)

// ErrProtected is returned when LibreOffice reports an encrypted input.
var ErrProtected = errors.New("document is password protected")

const loSlot = "libreoffice"

// LibreOffice converts through a headless soffice process per call. Each
// call gets a private profile directory so concurrent calls do not fight
// over the user installation lock.
type LibreOffice struct {
	bin   string
	slots *limiter.Keyed
}

// NewLibreOffice creates a converter running bin with at most maxWorkers
// concurrent processes.
func NewLibreOffice(bin string, maxWorkers int) *LibreOffice {
	if bin == "" {
		bin = "libreoffice"
	}
	return &LibreOffice{bin: bin, slots: limiter.New(maxWorkers)}
}

func (*LibreOffice) Name() string { return "libreoffice" }

// Version runs "--version" and reports the first line of its output.
func (l *LibreOffice) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, l.bin, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("LibreOffice not found: %w", err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return line, nil
}

// Convert extracts pages [start, end) with pdfcpu and imports them with
// the Writer PDF filter. Embedded images always come along; opts only
// affects logging.
func (l *LibreOffice) Convert(ctx context.Context, src, dst string, start, end int, opts Options) error {
	scratch, cleanup, err := workspace.Scoped(filepath.Dir(dst), ".lo-*")
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			log.Warn().Err(err).Str("dir", scratch).Msg("failed to remove LibreOffice scratch directory")
		}
	}()

	part := filepath.Join(scratch, "pages.pdf")
	if err := pdfpages.Extract(src, part, start, end); err != nil {
		return err
	}
	log.Debug().Int("start", start+1).Int("end", end).Bool("images", opts.IncludeImages).Msg("LibreOffice batch")

	out, err := l.run(ctx, part, "docx:MS Word 2007 XML", scratch, "--infilter=writer_pdf_import")
	if err != nil {
		return err
	}
	return os.Rename(out, dst)
}

// ToPDF converts a word-processing document to PDF at dst.
func (l *LibreOffice) ToPDF(ctx context.Context, src, dst string) error {
	scratch, cleanup, err := workspace.Scoped(filepath.Dir(dst), ".lo-*")
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := l.run(ctx, src, "pdf", scratch)
	if err != nil {
		return err
	}
	return os.Rename(out, dst)
}

// run converts input into outDir and returns the produced file.
func (l *LibreOffice) run(ctx context.Context, input, convertTo, outDir string, extra ...string) (string, error) {
	if err := validateInput(input); err != nil {
		return "", fmt.Errorf("input validation failed: %w", err)
	}

	release, err := l.slots.Acquire(ctx, loSlot)
	if err != nil {
		return "", err
	}
	defer release()

	profileDir, err := os.MkdirTemp("", "libreoffice_profile_")
	if err != nil {
		return "", fmt.Errorf("failed to create profile directory: %w", err)
	}
	defer os.RemoveAll(profileDir)

	args := []string{
		"-env:UserInstallation=file://" + filepath.ToSlash(profileDir),
		"--headless",
		"--nologo",
		"--nolockcheck",
		"--norestore",
	}
	args = append(args, extra...)
	args = append(args, "--convert-to", convertTo, "--outdir", outDir, input)

	cmd := exec.CommandContext(ctx, l.bin, args...)
	log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("LibreOffice command")

	started := time.Now()
	output, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		if looksProtected(output) {
			return "", ErrProtected
		}
		return "", fmt.Errorf("conversion failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	ext, _, _ := strings.Cut(convertTo, ":")
	produced := expectedOutputPath(input, outDir, ext)
	if _, err := os.Stat(produced); err != nil {
		if looksProtected(output) {
			return "", ErrProtected
		}
		return "", fmt.Errorf("output file not created: %w", err)
	}
	log.Info().Str("output", filepath.Base(produced)).Dur("duration", time.Since(started)).Msg("LibreOffice conversion successful")
	return produced, nil
}

func validateInput(p string) error {
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("file not found: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file")
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty")
	}
	return nil
}

func looksProtected(output []byte) bool {
	s := strings.ToLower(string(output))
	return strings.Contains(s, "password") || strings.Contains(s, "encrypted")
}

// expectedOutputPath is where soffice writes input converted to ext.
func expectedOutputPath(input, outDir, ext string) string {
	base := filepath.Base(input)
	return filepath.Join(outDir, strings.TrimSuffix(base, filepath.Ext(base))+"."+ext)
}
