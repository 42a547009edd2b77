package handler

import (
	"net/http"

	"go.uber.org/zap"
)

// BodyLimitMiddleware caps request bodies at limit bytes. Requests that
// declare a larger Content-Length are refused up front; the rest are read
// through http.MaxBytesReader.
func BodyLimitMiddleware(limit int64, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > limit {
				logger.Warn("request body too large",
					zap.String("path", r.URL.Path),
					zap.Int64("content_length", r.ContentLength),
					zap.Int64("limit", limit),
				)
				writeError(w, http.StatusRequestEntityTooLarge, "arquivo excede o tamanho máximo permitido")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
