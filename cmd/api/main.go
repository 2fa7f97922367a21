// Command api serves the JSON HTTP surface: upload sessions, ingest
// jobs, events, evidence lookups, report packs, and dictionary search.
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
	"github.com/xpnow/bugpanel/internal/httpapi"
	"github.com/xpnow/bugpanel/internal/ingestjob"
	"github.com/xpnow/bugpanel/internal/objectstore"
	"github.com/xpnow/bugpanel/internal/reportpack"
	"github.com/xpnow/bugpanel/internal/sourcefile"
	"github.com/xpnow/bugpanel/internal/uploadsession"
)

func main() {
	ctx := gologger.StdConfig.Use(context.Background())
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logging.Errorf(ctx, "api exited: %s", err)
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

	files := sourcefile.NewStore(db)
	uploads := uploadsession.NewService(db, store, files)
	jobs := ingestjob.NewStore(db)
	packs := reportpack.NewStore(db, store)

	srv := httpapi.NewServer(db, uploads, files, jobs, packs, store, cfg.CORSAllowOrigins)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logging.Errorf(ctx, "http server shutdown: %s", err)
		}
	}()

	logging.Infof(ctx, "serving api on %s", cfg.HTTPAddr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
