package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cosmossdk.io/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/proofofpost/pop/app/health"
)

// Version is set at build time.
var Version = "dev"

type recoveryLogger struct {
	logger log.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("ops handler panic", "error", fmt.Sprint(v...))
}

// newOpsHandler serves Prometheus metrics and the health checks.
func newOpsHandler(checker *health.Checker, logger log.Logger) http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	checker.RegisterRoutes(router)

	logged := handlers.CustomLoggingHandler(io.Discard, router, func(_ io.Writer, p handlers.LogFormatterParams) {
		logger.Debug("ops request", "method", p.Request.Method, "path", p.URL.Path, "status", p.StatusCode, "size", p.Size)
	})
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger}),
		handlers.PrintRecoveryStack(false),
	)(logged)
}

func serveOps(ctx context.Context, addr string, handler http.Handler, logger log.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting ops server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
