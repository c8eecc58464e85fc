// Package hello provides the "hello" HTTP Cloud Function.
package hello

import (
	"io"
	"net/http"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/go-chi/chi/v5"

	"github.com/janisto/http-v2-cloud-function/internal/platform/logging"
	"github.com/janisto/http-v2-cloud-function/internal/platform/middleware"
)

// EntryPoint is the target name registered with the Functions Framework.
const EntryPoint = "hello"

const (
	greeting     = "Hello"
	startMessage = "Function Execution Started"
)

func init() {
	functions.HTTP(EntryPoint, Handler().ServeHTTP)
}

// Handler returns the function wrapped in its context-only middleware.
// inner runs after the request ID and request logger are on the context.
// It is not routed: every method and path reaches helloHandler.
func Handler(inner ...func(http.Handler) http.Handler) http.Handler {
	mws := chi.Middlewares{
		middleware.RequestID(),
		logging.RequestLogger(),
	}
	return chi.Chain(append(mws, inner...)...).HandlerFunc(helloHandler)
}

func helloHandler(w http.ResponseWriter, r *http.Request) {
	logging.LogInfo(r.Context(), startMessage)
	_, _ = io.WriteString(w, greeting)
}
