// Package web exposes the conversion service over HTTP.
package web

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/local/pdfconvert/internal/metrics"
	"github.com/local/pdfconvert/internal/orchestrator"
	"github.com/local/pdfconvert/internal/statuscheck"
	"github.com/local/pdfconvert/internal/store"
	"github.com/local/pdfconvert/internal/workspace"
)

// Converter is the slice of *orchestrator.Service the handlers use.
type Converter interface {
	Info(ctx context.Context, up orchestrator.Upload, page, pageSize int) (*orchestrator.InfoResult, error)
	Preview(ctx context.Context, up orchestrator.Upload, page int) (*orchestrator.PreviewResult, error)
	ToWord(ctx context.Context, up orchestrator.Upload, req orchestrator.WordRequest) (*orchestrator.WordResult, error)
	ToImages(ctx context.Context, up orchestrator.Upload, req orchestrator.ImagesRequest) (*orchestrator.ImagesResult, error)
	ToPPT(ctx context.Context, up orchestrator.Upload, req orchestrator.SlidesRequest) (*orchestrator.SlidesResult, error)
	TextToPDF(ctx context.Context, up orchestrator.Upload, req orchestrator.TextRequest) (*orchestrator.TextResult, error)
	Record(ctx context.Context, filename string) (store.Record, error)
	Dirs() workspace.Dirs
}

// Health reports dependency status for /health.
type Health interface {
	Summary(ctx context.Context) statuscheck.Summary
}

type Options struct {
	Version        string
	AllowedOrigins []string
	MaxUploadBytes int64
	PPTUploadBytes int64
	// RateLimit is requests per second across all conversion routes; zero
	// disables limiting.
	RateLimit float64
	RateBurst int
}

type Server struct {
	svc    Converter
	health Health
	opts   Options
}

func New(svc Converter, health Health, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 100 << 20
	}
	if opts.PPTUploadBytes <= 0 {
		opts.PPTUploadBytes = 60 << 20
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{svc: svc, health: health, opts: opts}
}

// Handler builds the full middleware chain around the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/download/{filename}", s.handleDownload).Methods(http.MethodGet)
	r.HandleFunc("/conversions/{filename}", s.handleRecord).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(rateLimit(s.opts.RateLimit, s.opts.RateBurst))
	api.HandleFunc("/pdf/info", s.limited(s.opts.MaxUploadBytes, s.handleInfo)).Methods(http.MethodPost)
	api.HandleFunc("/pdf/preview", s.limited(s.opts.MaxUploadBytes, s.handlePreview)).Methods(http.MethodPost)
	api.HandleFunc("/pdf/toword", s.limited(s.opts.MaxUploadBytes, s.handleToWord)).Methods(http.MethodPost)
	api.HandleFunc("/pdf/to-images", s.limited(s.opts.MaxUploadBytes, s.handleToImages)).Methods(http.MethodPost)
	api.HandleFunc("/pdf/to-ppt", s.limited(s.opts.PPTUploadBytes, s.handleToPPT)).Methods(http.MethodPost)
	api.HandleFunc("/text/to-pdf", s.limited(s.opts.MaxUploadBytes, s.handleTextToPDF)).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})

	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "If-None-Match"},
		ExposedHeaders: []string{"Content-Disposition", "ETag"},
		MaxAge:         300,
	})
	return otelhttp.NewHandler(accessLog(c.Handler(r)), "pdfconvert")
}
