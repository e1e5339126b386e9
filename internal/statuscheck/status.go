package statuscheck

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Pinger is anything that can report liveness, such as the record store or
// the S3 mirror.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Versioner reports the version of an external converter binary.
type Versioner interface {
	Version(ctx context.Context) (string, error)
}

// Checker aggregates health probes for the service's collaborators.
type Checker struct {
	store       Pinger
	mirror      Pinger
	libreoffice Versioner
	mupdf       func() error
	timeout     time.Duration
}

// Options configures the Checker. Nil collaborators are reported as not
// configured.
type Options struct {
	Store       Pinger
	Mirror      Pinger
	LibreOffice Versioner
	// MuPDF should open or render something trivial.
	MuPDF   func() error
	Timeout time.Duration
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses for /health.
type Summary struct {
	Records     Status `json:"records"`
	S3          Status `json:"s3"`
	LibreOffice Status `json:"libreoffice"`
	MuPDF       Status `json:"mupdf"`
}

func New(opts Options) *Checker {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Checker{
		store:       opts.Store,
		mirror:      opts.Mirror,
		libreoffice: opts.LibreOffice,
		mupdf:       opts.MuPDF,
		timeout:     timeout,
	}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		Records:     c.ping(ctx, c.store, "Connected"),
		S3:          c.ping(ctx, c.mirror, "Connected"),
		LibreOffice: c.checkLibreOffice(ctx),
		MuPDF:       c.checkMuPDF(),
	}
}

func (c *Checker) ping(ctx context.Context, p Pinger, okMsg string) Status {
	if p == nil {
		return Status{OK: false, Message: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: okMsg}
}

func (c *Checker) checkLibreOffice(ctx context.Context) Status {
	if c.libreoffice == nil {
		return Status{OK: false, Message: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	v, err := c.libreoffice.Version(ctx)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: v}
}

func (c *Checker) checkMuPDF() Status {
	if c.mupdf == nil {
		return Status{OK: false, Message: "not configured"}
	}
	if err := c.mupdf(); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Available"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	msg := strings.TrimSpace(err.Error())
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
