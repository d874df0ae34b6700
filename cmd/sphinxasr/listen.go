package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/chaz8081/sphinxasr/internal/audio"
	"github.com/chaz8081/sphinxasr/internal/transcribe"
)

func runListen(args []string) error {
	fs := flag.NewFlagSet("listen", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	maxDuration := fs.Duration("max", 30*time.Second, "stop recording after this long")
	savePath := fs.String("save", "", "also write the captured audio to this WAV file")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: sphinxasr listen [flags]")
		fmt.Fprintln(fs.Output(), "\nRecords from the default microphone until Enter, Ctrl+C, or -max.")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	cfg, err := common.setup()
	if err != nil {
		return err
	}

	t := transcribe.FromConfig(cfg)
	defer t.Stop()
	// Load before recording so the first words are not lost to model loading.
	if err := t.Open(); err != nil {
		return err
	}

	recorder, err := audio.NewRecorder(cfg.Audio.SampleRate)
	if err != nil {
		return fmt.Errorf("%w (check microphone access for this terminal)", err)
	}
	defer recorder.Close()

	captured, err := recorder.Start()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *maxDuration)
	defer cancel()

	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "Listening... press Enter to stop.")
		go func() {
			_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
			cancel()
		}()
	}
	go func() {
		<-ctx.Done()
		recorder.Stop()
	}()

	chunks := captured
	var saved []int16
	if *savePath != "" {
		tee := make(chan []byte, cap(captured))
		go func() {
			defer close(tee)
			for c := range captured {
				saved = append(saved, audio.BytesToInt16(c)...)
				tee <- c
			}
		}()
		chunks = tee
	}

	result, err := t.TranscribeStream(chunks, recorder.Format())
	if err != nil {
		return err
	}

	if *savePath != "" {
		if err := saveWAV(*savePath, saved, int(cfg.Audio.SampleRate)); err != nil {
			return err
		}
	}
	return json.NewEncoder(os.Stdout).Encode(result)
}

func saveWAV(path string, samples []int16, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := audio.EncodeWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
