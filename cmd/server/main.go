// Command server runs the hello function locally with the same middleware
// it gets when deployed, plus the panic-to-500 translation the platform provides.
package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/janisto/http-v2-cloud-function/functions/hello"
	"github.com/janisto/http-v2-cloud-function/internal/platform/logging"
	"github.com/janisto/http-v2-cloud-function/internal/platform/respond"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

const defaultPort = "8080"

// loadEnv reads an optional .env file. A missing file is not an error.
func loadEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func listenAddr() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	return ":" + port
}

// newHandler places the recoverer inside the function's middleware so panic
// entries carry the request ID and trace fields. Extra middleware runs after it.
func newHandler(extra ...func(http.Handler) http.Handler) http.Handler {
	return hello.Handler(append(chi.Middlewares{respond.Recoverer()}, extra...)...)
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    64 << 10, // 64 KB
	}
}

func main() {
	ctx := context.Background()
	defer func() {
		if err := logging.Sync(); err != nil {
			logging.LogError(ctx, "logger sync error", err)
		}
	}()
	if err := loadEnv(); err != nil {
		logging.LogError(ctx, "failed to load .env", err)
	}

	srv := newServer(listenAddr(), newHandler())

	listenErr := make(chan error, 1)
	go func() {
		logging.LogInfo(ctx, "server listening",
			zap.String("addr", srv.Addr),
			zap.String("target", hello.EntryPoint),
			zap.String("version", Version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-listenErr:
		logging.LogFatal(ctx, "listen failed", err, zap.String("addr", srv.Addr))
	case <-stop:
		logging.LogInfo(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.LogError(shutdownCtx, "server shutdown error", err)
	}
	logging.LogInfo(ctx, "server exited")
}
