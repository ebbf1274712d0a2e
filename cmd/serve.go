package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/jep-dashboard/internal/config"
	"github.com/sells-group/jep-dashboard/internal/dashboard"
	"github.com/sells-group/jep-dashboard/internal/loader"
	"github.com/sells-group/jep-dashboard/internal/model"
	"github.com/sells-group/jep-dashboard/internal/store"
)

var (
	servePort    int
	serveNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		return runServer(ctx, cfg, st, port, cfg.Source.Watch && !serveNoWatch)
	},
}

// serverEnv holds the pieces a running dashboard is built from.
type serverEnv struct {
	cache  *loader.Cache
	server *dashboard.Server
}

// buildServer wires the cache, load observers and dashboard for c.
func buildServer(c *config.Config, st store.Store) (*serverEnv, error) {
	opts, err := loaderOptions(c)
	if err != nil {
		return nil, err
	}

	cache := loader.NewCache(opts)
	recorder := store.NewLoadRecorder(st)
	cache.OnLoad(func(path string, tbl *model.Table, err error, elapsed time.Duration) {
		dashboard.ObserveLoad(path, tbl, err, elapsed)
		recorder.Observe(path, tbl, err, elapsed)
		if err != nil {
			zap.L().Warn("source load failed", zap.String("path", path), zap.Error(err))
		}
	})

	srv, err := dashboard.New(dashboard.Options{
		SourcePath:  c.Source.Path,
		Delimiter:   opts.Delimiter,
		CORSOrigins: c.Server.CORSOrigins,
	}, cache, st)
	if err != nil {
		return nil, err
	}
	return &serverEnv{cache: cache, server: srv}, nil
}

func runServer(ctx context.Context, c *config.Config, st store.Store, port int, watch bool) error {
	env, err := buildServer(c, st)
	if err != nil {
		return err
	}

	// Warm the cache so a missing file is reported at startup.
	if _, err := env.cache.Get(ctx, c.Source.Path); err != nil {
		if le, ok := loader.AsLoadError(err); ok {
			zap.L().Warn(le.Message())
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           env.server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if watch {
		w, err := loader.NewWatcher(env.cache, c.Source.Path, 0, nil)
		if err != nil {
			return err
		}
		if err := w.Start(gctx); err != nil {
			zap.L().Warn("file watcher disabled", zap.Error(err))
		} else {
			defer w.Stop()
		}
	}

	g.Go(func() error {
		zap.L().Info("starting server", zap.Int("port", port), zap.String("source", c.Source.Path))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "disable reloading when the source file changes")
	rootCmd.AddCommand(serveCmd)
}
