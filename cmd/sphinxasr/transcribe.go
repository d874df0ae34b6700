package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/chaz8081/sphinxasr/internal/audio"
	"github.com/chaz8081/sphinxasr/internal/transcribe"
)

func runTranscribe(args []string) error {
	fs := flag.NewFlagSet("transcribe", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	reference := fs.String("reference", "", "expected transcript; prints word error rate to stderr")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: sphinxasr transcribe [flags] [file.wav ...]")
		fmt.Fprintln(fs.Output(), "\nWith no files, a WAV stream is read from stdin.")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	cfg, err := common.setup()
	if err != nil {
		return err
	}

	t := transcribe.FromConfig(cfg)
	defer t.Stop()

	out := json.NewEncoder(os.Stdout)
	if fs.NArg() == 0 {
		result, err := transcribeStdin(t, cfg.Audio.ChunkFrames)
		if err != nil {
			return err
		}
		report(result, *reference)
		return out.Encode(result)
	}

	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		result, err := t.TranscribeWAV(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		slog.Debug("transcribed", "path", path)
		report(result, *reference)
		if err := out.Encode(result); err != nil {
			return err
		}
	}
	return nil
}

// transcribeStdin streams a WAV file from stdin into the decoder chunk by
// chunk.
func transcribeStdin(t *transcribe.Transcriber, chunkFrames int) (*transcribe.Transcription, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "Reading WAV data from stdin (pipe a file, e.g. < speech.wav)...")
	}

	// The WAV decoder wants an io.ReadSeeker, so stdin is buffered.
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	stream, err := audio.NewWAVStream(bytes.NewReader(data), chunkFrames)
	if err != nil {
		return nil, err
	}
	format := stream.Format()
	if format.Channels != 1 {
		return nil, transcribe.ErrNotMono
	}

	chunks := make(chan []byte, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pumpErr := make(chan error, 1)
	go func() { pumpErr <- stream.Pump(ctx, chunks) }()

	result, err := t.TranscribeStream(chunks, format)
	cancel()
	if perr := <-pumpErr; perr != nil && err == nil {
		err = perr
	}
	return result, err
}

// report prints word errors against the reference transcript.
func report(result *transcribe.Transcription, reference string) {
	if reference == "" {
		return
	}
	hyp := ""
	if result != nil {
		hyp = result.Text
	}
	we := transcribe.CompareWords(reference, hyp)
	fmt.Fprintf(os.Stderr, "WER %.2f%% (S=%d I=%d D=%d N=%d)\n",
		we.Rate*100, we.Substitutions, we.Insertions, we.Deletions, we.ReferenceWords)
}
