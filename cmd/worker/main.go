// Command worker runs the ingest job poll loop: it leases queued jobs,
// normalizes and classifies their source files, and persists the
// resulting events.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.chromium.org/luci/common/logging"
	"go.chromium.org/luci/common/logging/gologger"

	"github.com/xpnow/bugpanel/internal/config"
	"github.com/xpnow/bugpanel/internal/dbutil"
	"github.com/xpnow/bugpanel/internal/ingestjob"
	"github.com/xpnow/bugpanel/internal/metrics"
	"github.com/xpnow/bugpanel/internal/objectstore"
	"github.com/xpnow/bugpanel/internal/sourcefile"
)

func main() {
	ctx := gologger.StdConfig.Use(context.Background())
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logging.Errorf(ctx, "worker exited: %s", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := dbutil.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := dbutil.Migrate(db); err != nil {
		return err
	}

	store, err := objectstore.New(cfg.ObjectStorePath, cfg.UploadPath)
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return err
	}

	m := metrics.New()
	jobs := ingestjob.NewStore(db)
	files := sourcefile.NewStore(db)
	runner := ingestjob.NewRunner(db, jobs, files, store, cfg.DateOrder, loc, cfg.BlockSize, m)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux()}
	go func() {
		logging.Infof(ctx, "serving metrics on %s", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Errorf(ctx, "metrics server: %s", err)
		}
	}()

	logging.Infof(ctx, "polling for ingest jobs every %s", cfg.PollInterval)
	runner.Loop(ctx, cfg.PollInterval)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return metricsSrv.Shutdown(shutdownCtx)
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
