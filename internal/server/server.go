package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/memovox/memovox/internal/logging"
)

// Options carries request-independent data into the handlers.
type Options struct {
	Modes    []string
	Warnings []string
}

func Handler(hub *Hub, svc RecordingService, account AccountService, opts Options) http.Handler {
	mux := http.NewServeMux()

	registerWSRoute(mux, hub)
	registerAPIRoutes(mux, svc, account, opts)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// Serve runs the HTTP server until ctx is canceled, then drains
// in-flight requests.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logging.WithComponent("server").Info().Str("addr", addr).Msg("API listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
