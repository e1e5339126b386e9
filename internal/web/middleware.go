package web

import (
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// accessLog logs one line per request once the response is written.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		ev := log.Info()
		if m.Code >= 500 {
			ev = log.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", m.Code).
			Int64("bytes", m.Written).
			Dur("duration", m.Duration).
			Str("remote", r.RemoteAddr).
			Msg("http request")
	})
}

// rateLimit rejects requests beyond rps with 429. rps <= 0 disables it.
func rateLimit(rps float64, burst int) mux.MiddlewareFunc {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow() {
				log.Warn().Str("path", r.URL.Path).Msg("rate limited")
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests, try again later"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
