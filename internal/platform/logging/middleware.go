package logging

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger enriches the request context with a zap logger that embeds Cloud Trace metadata.
// It writes nothing itself, so the handler's own entries are the only lines per invocation.
func RequestLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sc, _ := parseTraceHeader(r.Header)
			projectID := resolveProjectID()
			reqID := chimiddleware.GetReqID(ctx)

			traceID := traceResource(sc, projectID)
			if traceID == "" && reqID != "" {
				traceID = reqID
			}
			logger := loggerWithTrace(LoggerFromContext(ctx), sc, projectID, reqID)
			ctx = contextWithTraceID(ctx, traceID)
			ctx = contextWithLogger(ctx, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
