package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
)

const (
	axiomBuffer        = 1000
	axiomBatchSize     = 200
	axiomIngestTimeout = 15 * time.Second
	axiomCloseTimeout  = 5 * time.Second
)

type ingestFunc func(ctx context.Context, events []axiom.Event) error

// forwarder is an io.Writer that batches zerolog lines into Axiom events.
// Events below min are skipped; events are dropped when the buffer is full.
type forwarder struct {
	ingest  ingestFunc
	min     zerolog.Level
	ch      chan axiom.Event
	stop    context.CancelFunc
	done    chan struct{}
	dropped atomic.Int64
}

func newAxiomForwarder(token, orgID, dataset string, every time.Duration) (*forwarder, error) {
	if dataset == "" {
		dataset = "dev_" + serviceName
	}
	opts := []axiom.Option{axiom.SetToken(token)}
	if orgID != "" {
		opts = append(opts, axiom.SetOrganizationID(orgID))
	}
	c, err := axiom.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return newForwarder(func(ctx context.Context, events []axiom.Event) error {
		_, err := c.IngestEvents(ctx, dataset, events)
		return err
	}, zerolog.InfoLevel, every), nil
}

func newForwarder(fn ingestFunc, min zerolog.Level, every time.Duration) *forwarder {
	if every <= 0 {
		every = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	f := &forwarder{
		ingest: fn,
		min:    min,
		ch:     make(chan axiom.Event, axiomBuffer),
		stop:   cancel,
		done:   make(chan struct{}),
	}
	go f.loop(ctx, every)
	return f
}

func (f *forwarder) Write(p []byte) (int, error) {
	ev := axiom.Event{}
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = axiom.Event{
			zerolog.MessageFieldName: string(p),
			zerolog.LevelFieldName:   zerolog.InfoLevel.String(),
		}
	}
	if s, ok := ev[zerolog.LevelFieldName].(string); ok {
		if lvl, err := zerolog.ParseLevel(s); err == nil && lvl < f.min {
			return len(p), nil
		}
	}
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}
	select {
	case f.ch <- ev:
	default:
		f.dropped.Add(1)
	}
	return len(p), nil
}

func (f *forwarder) loop(ctx context.Context, every time.Duration) {
	defer close(f.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	batch := make([]axiom.Event, 0, axiomBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ictx, cancel := context.WithTimeout(context.Background(), axiomIngestTimeout)
		// zerolog can't be used here; it would feed back into this writer
		if err := f.ingest(ictx, batch); err != nil {
			fmt.Fprintf(os.Stderr, "axiom ingest of %d events failed: %v\n", len(batch), err)
		}
		cancel()
		batch = batch[:0]
	}
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev := <-f.ch:
					batch = append(batch, ev)
				default:
					flush()
					return
				}
			}
		case <-ticker.C:
			flush()
		case ev := <-f.ch:
			batch = append(batch, ev)
			if len(batch) >= axiomBatchSize {
				flush()
			}
		}
	}
}

// Close drains buffered events, waiting at most axiomCloseTimeout.
func (f *forwarder) Close() error {
	f.stop()
	select {
	case <-f.done:
	case <-time.After(axiomCloseTimeout):
		return fmt.Errorf("axiom flush did not finish within %s", axiomCloseTimeout)
	}
	if n := f.dropped.Load(); n > 0 {
		fmt.Fprintf(os.Stderr, "axiom dropped %d events (buffer full)\n", n)
	}
	return nil
}
