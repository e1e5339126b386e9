package orchestrator

import (
	"context"
	"errors"

	"github.com/local/pdfconvert/internal/apperr"
	"github.com/local/pdfconvert/internal/batch"
	"github.com/local/pdfconvert/internal/converter"
	"github.com/local/pdfconvert/internal/docx"
	"github.com/local/pdfconvert/internal/guard"
	"github.com/local/pdfconvert/internal/metrics"
)

const timeoutMessage = "conversion timed out, try a faster mode or fewer pages"

// classify maps a conversion failure onto the client-facing taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var (
		ae       *apperr.Error
		timeout  *guard.TimeoutError
		mergeErr *docx.MergeError
		convErr  *batch.ConversionError
		panicErr *guard.PanicError
	)
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.As(err, &timeout):
		metrics.IncTimeout()
		return apperr.Wrap(apperr.KindTimeout, timeoutMessage, err)
	case errors.Is(err, context.DeadlineExceeded):
		metrics.IncTimeout()
		return apperr.Wrap(apperr.KindTimeout, timeoutMessage, err)
	case errors.As(err, &mergeErr):
		return apperr.Wrap(apperr.KindMerge, "failed to merge batches", mergeErr)
	case errors.Is(err, converter.ErrProtected):
		return apperr.InvalidInput("the PDF is password protected")
	case errors.As(err, &convErr):
		return apperr.Wrap(apperr.KindConversion, "conversion failed", convErr)
	case errors.As(err, &panicErr):
		return apperr.Wrap(apperr.KindInternal, "conversion crashed", err)
	}
	return apperr.Wrap(apperr.KindConversion, "conversion failed", err)
}
