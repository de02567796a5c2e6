package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mfigueredo/tokenbridge/internal/observability/logger"
)

// ServerConfig bounds the listener.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Start serves handler on cfg.Addr until ctx is canceled, then drains
// in-flight requests for up to 10 seconds.
func Start(ctx context.Context, cfg ServerConfig, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log := logger.L().With(logger.Component("http"))
	log.Info("server listening", logger.String("addr", cfg.Addr))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info("server draining")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
