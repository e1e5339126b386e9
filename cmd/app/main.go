package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	cfgpkg "github.com/local/pdfconvert/internal/config"
	"github.com/local/pdfconvert/internal/converter"
	logpkg "github.com/local/pdfconvert/internal/logger"
	"github.com/local/pdfconvert/internal/metrics"
	"github.com/local/pdfconvert/internal/mupdf"
	"github.com/local/pdfconvert/internal/orchestrator"
	"github.com/local/pdfconvert/internal/pdffixture"
	"github.com/local/pdfconvert/internal/statuscheck"
	"github.com/local/pdfconvert/internal/storage"
	"github.com/local/pdfconvert/internal/store"
	"github.com/local/pdfconvert/internal/web"
	"github.com/local/pdfconvert/internal/workspace"
)

func main() {
	// .env is optional
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	if err := logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	}); err != nil {
		log.Error().Err(err).Msg("logger init failed, continuing with defaults")
	}
	defer logpkg.Close()
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dirs := workspace.Dirs{Upload: cfg.Storage.UploadDir, Converted: cfg.Storage.ConvertedDir}
	if err := dirs.Ensure(); err != nil {
		log.Fatal().Err(err).Msg("failed to create working directories")
	}

	lo := converter.NewLibreOffice(cfg.Conversion.LibreOfficeBin, cfg.Conversion.MaxWorkers)
	var engine converter.Engine = converter.NewNative()
	if cfg.Conversion.Engine == "libreoffice" {
		engine = lo
	}

	var records store.Store = store.NewMemory(cfg.Records.TTL)
	if cfg.Records.RedisURL != "" {
		rs, err := store.NewRedis(cfg.Records.RedisURL, cfg.Records.TTL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init redis record store")
		}
		records = rs
	}
	defer records.Close()

	deps := orchestrator.Dependencies{
		Dirs:      dirs,
		Engine:    engine,
		BatchSize: cfg.Conversion.BatchSize,
		Timeout:   cfg.Conversion.Timeout,
		MaxAge:    cfg.Storage.MaxAge,
		Records:   records,
		Office:    lo,
	}
	health := statuscheck.Options{
		Store:       records,
		LibreOffice: lo,
		MuPDF:       mupdfProbe(),
	}
	if cfg.S3.Bucket != "" {
		mirror, err := storage.NewMirror(ctx, cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init s3 mirror")
		}
		deps.Mirror = mirror
		health.Mirror = mirror
	}

	svc := orchestrator.New(deps)
	handler := web.New(svc, statuscheck.New(health), web.Options{
		Version:        cfg.Version,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes(),
		PPTUploadBytes: cfg.HTTP.PPTMaxUploadBytes(),
		RateLimit:      cfg.HTTP.RateLimit,
		RateBurst:      cfg.HTTP.RateBurst,
	}).Handler()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("port", cfg.HTTP.Port).
			Str("engine", engine.Name()).
			Int("batch_size", cfg.Conversion.BatchSize).
			Dur("timeout", cfg.Conversion.Timeout).
			Msg("pdfconvert listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sweepLoop(gctx, svc, cfg.Storage.SweepInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return
	}
	log.Info().Msg("shutdown complete")
}

// sweepLoop removes expired files every interval until ctx is done.
func sweepLoop(ctx context.Context, svc *orchestrator.Service, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := svc.Sweep(); n > 0 {
				log.Info().Int("removed", n).Msg("periodic sweep")
			}
		}
	}
}

// mupdfProbe writes a one-page PDF once and reports whether MuPDF can open it.
func mupdfProbe() func() error {
	dir, err := os.MkdirTemp("", "pdfconvert-probe-")
	if err != nil {
		return func() error { return err }
	}
	p, err := pdffixture.Write(dir, "probe.pdf", "probe")
	if err != nil {
		return func() error { return err }
	}
	return func() error {
		_, err := mupdf.PageCount(p)
		return err
	}
}
