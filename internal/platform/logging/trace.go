package logging

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"sync"

	"go.uber.org/zap"
)

const (
	traceparentHeader = "traceparent"
	cloudTraceHeader  = "X-Cloud-Trace-Context"
)

// W3C Trace Context format: {version}-{trace-id}-{parent-id}-{trace-flags}
// Example: 00-ab42124a3c573678d4d8b21ba52df3bf-d21f7bc17caa5aba-01
var traceparentRe = regexp.MustCompile(`^([0-9a-fA-F]{2})-([0-9a-fA-F]{32})-([0-9a-fA-F]{16})-([0-9a-fA-F]{2})$`)

// Legacy Google format: TRACE_ID/SPAN_ID;o=OPTIONS, span ID in decimal.
var cloudTraceRe = regexp.MustCompile(`^([0-9a-fA-F]+)/([0-9]+)(?:;o=([01]))?$`)

var (
	projectIDOnce   sync.Once
	cachedProjectID string
)

// spanContext is the parsed form of an incoming trace header.
type spanContext struct {
	traceID string
	spanID  string
	sampled bool
}

// parseTraceHeader prefers traceparent and falls back to X-Cloud-Trace-Context.
func parseTraceHeader(h http.Header) (spanContext, bool) {
	if sc, ok := parseTraceparent(h.Get(traceparentHeader)); ok {
		return sc, true
	}
	return parseCloudTrace(h.Get(cloudTraceHeader))
}

func parseTraceparent(header string) (spanContext, bool) {
	matches := traceparentRe.FindStringSubmatch(header)
	if len(matches) != 5 {
		return spanContext{}, false
	}
	return spanContext{traceID: matches[2], spanID: matches[3], sampled: matches[4] == "01"}, true
}

func parseCloudTrace(header string) (spanContext, bool) {
	matches := cloudTraceRe.FindStringSubmatch(header)
	if len(matches) != 4 {
		return spanContext{}, false
	}
	return spanContext{traceID: matches[1], spanID: matches[2], sampled: matches[3] == "1"}, true
}

func loggerWithTrace(base *zap.Logger, sc spanContext, projectID, requestID string) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	fields := traceFields(sc, projectID)
	if requestID != "" {
		fields = append(fields, zap.String("requestId", requestID))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

func traceFields(sc spanContext, projectID string) []zap.Field {
	resource := traceResource(sc, projectID)
	if resource == "" {
		return nil
	}
	return []zap.Field{
		zap.String("logging.googleapis.com/trace", resource),
		zap.String("logging.googleapis.com/spanId", sc.spanID),
		zap.Bool("logging.googleapis.com/trace_sampled", sc.sampled),
	}
}

func traceResource(sc spanContext, projectID string) string {
	if projectID == "" || sc.traceID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/traces/%s", projectID, sc.traceID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func resolveProjectID() string {
	projectIDOnce.Do(func() {
		cachedProjectID = firstNonEmpty(
			os.Getenv("GOOGLE_CLOUD_PROJECT"),
			os.Getenv("GCP_PROJECT"),
			os.Getenv("GCLOUD_PROJECT"),
			os.Getenv("PROJECT_ID"),
		)
	})
	return cachedProjectID
}
