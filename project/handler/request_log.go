package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// statusRecorder は書き込まれたステータスコードを記録します
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

// WithRequestLog はリクエストごとにメソッド・URI・ステータスをログに出力します
func WithRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().
			Str("method", r.Method).
			Int("code", rec.code).
			Str("uri", r.URL.String()).
			Msg("")
	})
}
