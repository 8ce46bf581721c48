package core

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tesh254/gemd/internal/logger"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bodySize   int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(data)
	rw.bodySize += n
	return n, err
}

// Flush keeps streamed responses working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func loggingHandler(log logger.Logger, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		reqLog := log.With(
			logger.String("request_id", requestID),
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
		)

		reqLog.Info("Incoming request",
			logger.String("remote_addr", r.RemoteAddr),
			logger.String("user_agent", r.Header.Get("User-Agent")),
			logger.String("content_length", r.Header.Get("Content-Length")),
		)

		handler.ServeHTTP(wrapped, r)

		reqLog.Info("Response sent",
			logger.Int("status", wrapped.statusCode),
			logger.Duration("duration", time.Since(start)),
			logger.Int("size", wrapped.bodySize),
		)
	})
}
