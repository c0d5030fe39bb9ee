package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/swalang/internal/logging"
	"github.com/fruitsalade/swalang/internal/metrics"
	"github.com/fruitsalade/swalang/internal/workspace"
)

// cmdWatch reloads the root folder and the suggestion board on an interval
// and prints a line for every committed state change.
func cmdWatch(ctx context.Context, w *workspace.Workspace, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	metricsAddr := fs.String("metrics", os.Getenv("METRICS_ADDR"), "Serve Prometheus metrics on this address")
	interval := fs.Duration("interval", 30*time.Second, "Reload interval")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *metricsAddr != "" {
		srv := &http.Server{Addr: *metricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logging.Info("metrics server listening", zap.String("addr", *metricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("metrics server", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	unsubscribe := w.Subscribe(func(s workspace.Snapshot) {
		fmt.Printf("%s  folders=%d nodes=%d busy=%t suggestions=%d diverged=%d\n",
			time.Now().Format(time.TimeOnly),
			len(s.Files.NodesByParent), s.Files.NodeCount(), s.Files.ActionInFlight,
			len(s.Votes.Suggestions), len(s.Votes.Errors))
	})
	defer unsubscribe()

	refresh := func(force bool) {
		if err := w.Files.Load(ctx, nil, force); err != nil {
			logging.Warn("reload files", zap.Error(err))
		}
		if err := w.Votes.Load(ctx); err != nil {
			logging.Warn("reload suggestions", zap.Error(err))
		}
	}
	refresh(false)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			refresh(true)
		}
	}
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return mux
}
