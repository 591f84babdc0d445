package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/Varun5711/shortlinks/internal/logger"
)

const requestIDKey contextKey = "request_id"

const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Logging tags every request with an id, taken from X-Request-ID when the
// caller sent one, and logs one line per request.
func Logging(log *logger.Logger, newID func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = newID()
			}
			w.Header().Set(RequestIDHeader, id)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))

			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			reqLog := log.With("request_id", id).With("status", rec.status).With("duration", time.Since(start))
			switch {
			case rec.status >= 500:
				reqLog.Error("%s %s", r.Method, r.URL.Path)
			case rec.status >= 400:
				reqLog.Warn("%s %s", r.Method, r.URL.Path)
			default:
				reqLog.Info("%s %s", r.Method, r.URL.Path)
			}
		})
	}
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
