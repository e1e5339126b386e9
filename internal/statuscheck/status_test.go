package statuscheck

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type fixedVersion struct {
	v   string
	err error
}

func (f fixedVersion) Version(context.Context) (string, error) { return f.v, f.err }

func TestSummaryHealthy(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	c := New(Options{
		Store:       ok,
		Mirror:      ok,
		LibreOffice: fixedVersion{v: "LibreOffice 7.6.4.1"},
		MuPDF:       func() error { return nil },
	})
	s := c.Summary(context.Background())
	assert.True(t, s.Records.OK)
	assert.True(t, s.S3.OK)
	assert.Equal(t, Status{OK: true, Message: "LibreOffice 7.6.4.1"}, s.LibreOffice)
	assert.True(t, s.MuPDF.OK)
}

func TestSummaryUnconfigured(t *testing.T) {
	s := New(Options{}).Summary(context.Background())
	for _, st := range []Status{s.Records, s.S3, s.LibreOffice, s.MuPDF} {
		assert.Equal(t, Status{OK: false, Message: "not configured"}, st)
	}
}

func TestSummaryFailures(t *testing.T) {
	slow := pingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	c := New(Options{
		Store:       slow,
		Mirror:      pingFunc(func(context.Context) error { return errors.New(strings.Repeat("x", 300)) }),
		LibreOffice: fixedVersion{err: errors.New("exec: \"soffice\": executable file not found in $PATH")},
		MuPDF:       func() error { return errors.New("cgo disabled") },
		Timeout:     20 * time.Millisecond,
	})
	s := c.Summary(context.Background())
	assert.Equal(t, "timeout", s.Records.Message)
	assert.Len(t, s.S3.Message, 120)
	assert.False(t, s.LibreOffice.OK)
	assert.Contains(t, s.LibreOffice.Message, "executable file not found")
	assert.Equal(t, Status{OK: false, Message: "cgo disabled"}, s.MuPDF)
}
