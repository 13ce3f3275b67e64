package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(sr, r)

		lvl := slog.LevelInfo
		switch {
		case sr.status >= 500:
			lvl = slog.LevelError
		case sr.status >= 400:
			lvl = slog.LevelWarn
		}
		s.logger.Log(r.Context(), lvl, "http request",
			"method", r.Method,
			"path", redactPath(r.URL.Path, s.cfg.Telegram.BotToken),
			"status", sr.status,
			"bytes", sr.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// redactPath keeps the bot token, which is part of the webhook path, out
// of the logs.
func redactPath(path, token string) string {
	if token == "" {
		return path
	}
	return strings.ReplaceAll(path, token, "<token>")
}
