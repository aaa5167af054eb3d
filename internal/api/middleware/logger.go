// internal/api/middleware/logger.go
package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// RequestLogger writes one structured log entry per request.
func RequestLogger(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				entry := logger.WithFields(logrus.Fields{
					"request_id":  chimiddleware.GetReqID(r.Context()),
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      ww.Status(),
					"bytes":       ww.BytesWritten(),
					"duration_ms": time.Since(start).Milliseconds(),
					"remote_ip":   r.RemoteAddr,
				})
				switch {
				case ww.Status() >= http.StatusInternalServerError:
					entry.Error("HTTP request")
				case ww.Status() >= http.StatusBadRequest:
					entry.Warn("HTTP request")
				default:
					entry.Info("HTTP request")
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
