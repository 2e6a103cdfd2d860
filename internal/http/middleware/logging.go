package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logging anexa um logger com request_id ao contexto e registra uma linha por requisição.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		reqLog := log.With().
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("ip", realIPFromRequest(r)).
			Logger()
		r = r.WithContext(reqLog.WithContext(r.Context()))

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ev := reqLog.WithLevel(levelFor(status)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(started))
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				ev = ev.Str("route", pattern)
			}
		}
		if ua := r.UserAgent(); ua != "" {
			ev = ev.Str("user_agent", ua)
		}
		ev.Msg("http_request")
	})
}

// Recover converte panic em 500 no envelope padrão; http.ErrAbortHandler continua propagando.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			zerolog.Ctx(r.Context()).Error().
				Interface("panic", rec).
				Str("path", r.URL.Path).
				Bytes("stack", debug.Stack()).
				Msg("panic recuperado")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno")
		}()
		next.ServeHTTP(w, r)
	})
}

func levelFor(status int) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	}
	return zerolog.InfoLevel
}
