package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfconvert/internal/apperr"
	"github.com/local/pdfconvert/internal/orchestrator"
	"github.com/local/pdfconvert/internal/store"
)

// Multipart parts above this are spilled to temp files.
const formMemory = 32 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := apperr.StatusCode(err)
	if status >= 500 {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		log.Warn().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, errorBody{Error: apperr.PublicMessage(err)})
}

// limited caps the body at limit bytes and parses the multipart or url
// encoded form before calling h.
func (s *Server) limited(limit int64, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		var err error
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			err = r.ParseMultipartForm(formMemory)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				writeError(w, apperr.TooLarge(limit>>20))
				return
			}
			writeError(w, apperr.InvalidInput("invalid form data"))
			return
		}
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}
		h(w, r)
	}
}

// upload returns the "file" part. The part is closed by the returned func.
func upload(r *http.Request) (orchestrator.Upload, func(), bool) {
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return orchestrator.Upload{}, func() {}, false
	}
	return orchestrator.Upload{Name: hdr.Filename, Body: f}, func() { f.Close() }, true
}

func requireUpload(w http.ResponseWriter, r *http.Request) (orchestrator.Upload, func(), bool) {
	up, done, ok := upload(r)
	if !ok || up.Name == "" {
		done()
		writeError(w, apperr.InvalidInput("no file uploaded"))
		return up, nil, false
	}
	return up, done, true
}

// intValue parses a form field, falling back to def when absent or bad.
func intValue(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatValue(r *http.Request, key string, def float64) float64 {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

var modes = map[string]string{
	"ultra-fast": "text extraction only (alias text-only)",
	"fast":       "text without images",
	"balanced":   "text with up to 3 images per page (alias premium)",
	"quality":    "text with all images and original line layout (alias complex)",
}

var features = []string{
	"PDF to Word",
	"PDF to images",
	"PDF to PowerPoint",
	"text to PDF",
	"batched conversion of large documents",
	"conversion timeout",
	"automatic cleanup",
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":   "ok",
		"service":  "pdfconvert",
		"version":  s.opts.Version,
		"features": features,
		"modes":    modes,
	}
	if s.health != nil {
		body["dependencies"] = s.health.Summary(r.Context())
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	up, done, ok := requireUpload(w, r)
	if !ok {
		return
	}
	defer done()
	res, err := s.svc.Info(r.Context(), up, intValue(r, "page", 1), intValue(r, "pageSize", 10))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	page := 1
	if v := strings.TrimSpace(r.FormValue("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, apperr.InvalidInput("invalid page number"))
			return
		}
		page = n
	}
	up, done, ok := requireUpload(w, r)
	if !ok {
		return
	}
	defer done()
	res, err := s.svc.Preview(r.Context(), up, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleToWord(w http.ResponseWriter, r *http.Request) {
	up, done, ok := requireUpload(w, r)
	if !ok {
		return
	}
	defer done()
	mode := r.FormValue("mode")
	if mode == "" {
		mode = "fast"
	}
	pages := r.FormValue("pages")
	if pages == "" {
		pages = "all"
	}
	res, err := s.svc.ToWord(r.Context(), up, orchestrator.WordRequest{
		Mode:          mode,
		Pages:         pages,
		IncludeImages: strings.EqualFold(r.FormValue("include_images"), "true"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleToImages(w http.ResponseWriter, r *http.Request) {
	up, done, ok := requireUpload(w, r)
	if !ok {
		return
	}
	defer done()
	res, err := s.svc.ToImages(r.Context(), up, orchestrator.ImagesRequest{
		Page:     intValue(r, "page", 1),
		PageSize: intValue(r, "page_size", 6),
		Format:   strings.ToLower(r.FormValue("format")),
		Quality:  intValue(r, "quality", 85),
		DPI:      intValue(r, "dpi", 150),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleToPPT(w http.ResponseWriter, r *http.Request) {
	up, done, ok := requireUpload(w, r)
	if !ok {
		return
	}
	defer done()
	res, err := s.svc.ToPPT(r.Context(), up, orchestrator.SlidesRequest{
		DPI:     intValue(r, "dpi", 200),
		Quality: intValue(r, "quality", 92),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTextToPDF(w http.ResponseWriter, r *http.Request) {
	up, done, ok := upload(r)
	defer done()
	req := orchestrator.TextRequest{
		FontSize:    floatValue(r, "font_size", 12),
		LineSpacing: floatValue(r, "line_spacing", 1.5),
	}
	if !ok {
		req.Text = r.FormValue("text")
		if strings.TrimSpace(req.Text) == "" {
			writeError(w, apperr.InvalidInput("provide text or upload a text file"))
			return
		}
	}
	res, err := s.svc.TextToPDF(r.Context(), up, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]
	p, err := s.svc.Dirs().Resolve(name)
	if err != nil {
		writeError(w, apperr.InvalidInput("invalid filename"))
		return
	}
	f, err := os.Open(p)
	if err != nil {
		writeError(w, apperr.NotFound("file not found"))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		writeError(w, apperr.NotFound("file not found"))
		return
	}

	sum := ""
	if rec, err := s.svc.Record(r.Context(), name); err == nil {
		sum = rec.Checksum
	}
	if sum == "" {
		if sum, err = store.Checksum(p); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("checksum failed")
		}
	}
	if sum != "" {
		w.Header().Set("ETag", `"`+sum+`"`)
	}
	w.Header().Set("Content-Type", orchestrator.ContentType(name))
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Record(r.Context(), mux.Vars(r)["filename"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
