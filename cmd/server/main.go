package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/derby-console/internal/config"
	"github.com/DoyleJ11/derby-console/internal/console"
	"github.com/DoyleJ11/derby-console/internal/derby"
	"github.com/DoyleJ11/derby-console/internal/httpapi"
	"github.com/DoyleJ11/derby-console/internal/logger"
	"github.com/DoyleJ11/derby-console/internal/store"
	"github.com/DoyleJ11/derby-console/internal/timer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	st, err := store.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, st.Close()) }()

	archive, err := timer.OpenArchive(cfg.TimerArchivePath)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, archive.Close()) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := derby.New(st, log, derby.WithDNFTime(cfg.DNFTime))
	con, err := console.New(ctx, d, archive, log)
	if err != nil {
		return err
	}

	if cfg.TimerInput != "" {
		src, err := openTimerInput(cfg.TimerInput)
		if err != nil {
			return err
		}
		defer src.Close()
		go readTimer(ctx, src, con, log)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.SetupRoutes(con, d, archive, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	stop()
	<-con.Done()
	log.Info("stopped")
	return err
}

func openTimerInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open timer input: %w", err)
	}
	return f, nil
}

// readTimer feeds timer lines to the console until the input ends.
func readTimer(ctx context.Context, src io.Reader, con *console.Console, log *zap.Logger) {
	r := timer.NewReader(src, log)
	err := r.Run(ctx, func(ctx context.Context, line string) error {
		_, err := con.PostReading(ctx, line)
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("timer input failed", zap.Error(err))
		return
	}
	log.Info("timer input closed")
}
