package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chaz8081/sphinxasr/internal/config"
	"github.com/chaz8081/sphinxasr/internal/lm"
	"github.com/chaz8081/sphinxasr/internal/train"
)

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	graphPath := fs.String("graph", "", "intent graph JSON, or - for stdin (default: train.intent_graph)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: sphinxasr train [flags]")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	cfg, err := common.setup()
	if err != nil {
		return err
	}

	path := *graphPath
	if path == "" {
		path = cfg.Train.IntentGraph
	}
	var graph *lm.Graph
	if path == "-" {
		graph, err = lm.ParseGraph(os.Stdin)
	} else {
		graph, err = lm.ReadGraphFile(path)
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := trainFunc(cfg)(ctx, graph)
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %s (%d words)\n", cfg.Decoder.Dictionary, result.Words)
	fmt.Printf("Wrote %s\n", cfg.Decoder.LanguageModel)
	if len(result.Guessed) > 0 {
		fmt.Printf("Guessed pronunciations: %s\n", strings.Join(result.Guessed, " "))
	}
	if len(result.Missing) > 0 {
		fmt.Printf("Missing pronunciations: %s\n", strings.Join(result.Missing, " "))
	}
	return nil
}

// trainFunc resolves training options from the config on every run, so
// base dictionaries edited on disk are picked up.
func trainFunc(cfg *config.Config) func(context.Context, *lm.Graph) (*train.Result, error) {
	return func(ctx context.Context, graph *lm.Graph) (*train.Result, error) {
		opts, err := train.FromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return train.Train(ctx, graph, opts)
	}
}
