package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaz8081/sphinxasr/internal/audio"
	"github.com/chaz8081/sphinxasr/internal/server"
	"github.com/chaz8081/sphinxasr/internal/transcribe"
)

const shutdownTimeout = 10 * time.Second

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	common := commonFlags{jsonLogs: true}
	common.register(fs)
	addr := fs.String("addr", "", "listen address (default: server.addr)")
	preload := fs.Bool("preload", false, "load the decoder before accepting requests")
	noWatch := fs.Bool("no-watch", false, "do not reload the decoder when model files change")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: sphinxasr serve [flags]")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	cfg, err := common.setup()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	log := slog.Default()
	t := transcribe.FromConfig(cfg, transcribe.WithLogger(log))
	defer t.Stop()

	if *preload {
		start := time.Now()
		if err := t.Open(); err != nil {
			return err
		}
		log.Info("decoder loaded", "elapsed", time.Since(start).Round(time.Millisecond))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Watch && !*noWatch {
		w, err := server.NewWatcher(
			[]string{cfg.Decoder.Dictionary, cfg.Decoder.LanguageModel},
			t.Reload, server.DefaultDebounce)
		if err != nil {
			log.Warn("model file watching disabled", "error", err)
		} else {
			defer w.Close()
			go w.Run(ctx)
		}
	}

	format := audio.Format{
		SampleRate:  int(cfg.Audio.SampleRate),
		SampleWidth: audio.SampleWidth,
		Channels:    1,
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(t, trainFunc(cfg), format, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
