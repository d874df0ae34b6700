package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chaz8081/sphinxasr/internal/models"
)

func runDownload(args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: sphinxasr download [flags]")
		fmt.Fprintln(fs.Output(), "\nInstalls to decoder.acoustic_model and the first train.base_dictionaries entry.")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	cfg, err := common.setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return models.Download(ctx, cfg, os.Stdout)
}
