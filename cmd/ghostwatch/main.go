// Package main runs the ghostwatch service: the snapshot pipeline and the
// HTTP presentation layer.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"ghostwatch/internal/baseline"
	"ghostwatch/internal/cache"
	"ghostwatch/internal/config"
	"ghostwatch/internal/core"
	"ghostwatch/internal/pipeline"
	"ghostwatch/internal/source"
	"ghostwatch/internal/telemetry"
	"ghostwatch/internal/web"
)

const shutdownTimeout = 10 * time.Second

var logger = loggo.GetLogger("ghostwatch")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("ghostwatch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg, err := config.ParseConfig(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		_, _ = fmt.Fprintf(stderr, "ghostwatch: %v\n", err)
		return 2
	}
	if err := loggo.ConfigureLoggers(cfg.LogConfig); err != nil {
		_, _ = fmt.Fprintf(stderr, "ghostwatch: log config: %v\n", err)
		return 2
	}
	if err := serve(ctx, cfg); err != nil {
		if pipeline.IsFatal(err) {
			logger.Criticalf("pipeline stopped: %v", err)
		} else {
			logger.Errorf("%v", err)
		}
		return 1
	}
	return 0
}

// serve runs until ctx is cancelled or a stage fails.
func serve(ctx context.Context, cfg config.Config) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint)
	if err != nil {
		return errors.Annotate(err, "telemetry")
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	store, err := core.OpenEventStore(ctx, cfg.Storage)
	if err != nil {
		return errors.Annotate(err, "open event store")
	}
	defer func() { _ = store.Close() }()

	blobs, err := cfg.Blob.Open(ctx)
	if err != nil {
		return errors.Annotate(err, "open blob store")
	}
	src, err := source.New(source.Config{
		BaseURL:     cfg.SourceURL,
		UserAgent:   cfg.UserAgent,
		Clock:       clock.WallClock,
		Limiter:     cfg.Limiter(),
		OffsetsPath: cfg.OffsetsPath,
		Logger:      loggo.GetLogger("ghostwatch.source"),
	})
	if err != nil {
		return errors.Annotate(err, "source")
	}

	metrics := core.NewMetrics()
	views := cache.New()
	engine, err := pipeline.NewEngine(pipeline.Config{
		Source:      src,
		Baselines:   baseline.New(blobs, loggo.GetLogger("ghostwatch.baseline")),
		Store:       store,
		Sink:        views,
		Clock:       clock.WallClock,
		MinInterval: cfg.MinInterval,
		RetryDelay:  cfg.RetryDelay,
		ViewLimit:   cfg.ViewLimit,
		Logger:      loggo.GetLogger("ghostwatch.pipeline"),
		Metrics:     metrics,
	})
	if err != nil {
		return errors.Annotate(err, "start pipeline")
	}

	handler := web.NewHandler(web.Config{
		Views:    views,
		State:    func() string { return engine.State().String() },
		Gatherer: metrics.Registry(),
		Logger:   loggo.GetLogger("ghostwatch.web"),
	})
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	engineDone := make(chan error, 1)
	go func() { engineDone <- engine.Wait() }()
	serverDone := make(chan error, 1)
	go func() { serverDone <- srv.ListenAndServe() }()
	logger.Infof("serving on %s, fetching from %s", cfg.ListenAddr, cfg.SourceURL)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Infof("shutting down")
	case runErr = <-engineDone:
		engineDone = nil
	case serveErr := <-serverDone:
		runErr = errors.Annotate(serveErr, "http server")
	}

	handler.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warningf("http shutdown: %v", err)
	}
	engine.Kill()
	if engineDone != nil {
		if err := <-engineDone; err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}
