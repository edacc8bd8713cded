package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/clieb/do-dyndns/pkg/metrics"
)

// runWithInterval runs the reconciliation once, or, when --interval is set,
// on a ticker alongside a small health/metrics HTTP server. The interval
// shape is for environments without a systemd timer; a run failure there is
// logged and the next tick tries again.
func runWithInterval(ctx context.Context, run func(context.Context) error) error {
	if interval <= 0 {
		return run(ctx)
	}

	metrics.InitMetrics()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health/alive", func(w http.ResponseWriter, r *http.Request) {
		metrics.IncrementReqs(r)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		metrics.IncrementReqs(r)
		w.WriteHeader(http.StatusOK)
	})
	server := &http.Server{Addr: listenAddr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen on %s: %s", listenAddr, err)
		}
	}()
	log.Infof("serving health and metrics on %s, reconciling every %s", listenAddr, interval)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	if err := run(ctx); err != nil {
		log.Error(err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var cause error
loop:
	for {
		select {
		case <-ticker.C:
			if err := run(ctx); err != nil {
				log.Error(err)
			}
		case <-done:
			break loop
		case <-ctx.Done():
			cause = ctx.Err()
			break loop
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped gracefully")
	return cause
}
