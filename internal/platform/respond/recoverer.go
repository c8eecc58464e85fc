// Package respond translates handler panics into responses for the local runner,
// the way the Functions Framework does once the function is deployed.
package respond

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/janisto/http-v2-cloud-function/internal/platform/logging"
)

const msgInternalServerErr = "internal server error"

// responseWriter remembers whether the status line has been sent.
type responseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Recoverer converts panics into a logged error and a plain-text 500.
// http.ErrAbortHandler is re-panicked so net/http can abort the connection.
// If the handler already wrote a response, only the log entry is emitted.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				var err error
				switch v := rec.(type) {
				case error:
					err = v
				default:
					err = fmt.Errorf("%v", v)
				}
				err = fmt.Errorf("%w\n%s", err, debug.Stack())
				logging.LogError(r.Context(), msgInternalServerErr, err,
					zap.String("method", r.Method), zap.String("path", r.URL.Path))

				if rw.wroteHeader {
					return
				}
				http.Error(rw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(rw, r)
		})
	}
}
