// Command sphinxasr transcribes speech with Pocketsphinx and retrains its
// dictionary and language model from an intent graph.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/chaz8081/sphinxasr/internal/config"
)

const usage = `Usage: sphinxasr <command> [flags]

Commands:
  transcribe   transcribe WAV files, or a WAV stream on stdin
  listen       transcribe one utterance from the microphone
  train        generate the dictionary and language model from an intent graph
  serve        run the HTTP and websocket service
  download     fetch the en-us acoustic model and base dictionary
  init-config  write the default config file

Run 'sphinxasr <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "transcribe":
		err = runTranscribe(args)
	case "listen":
		err = runListen(args)
	case "train":
		err = runTrain(args)
	case "serve":
		err = runServe(args)
	case "download":
		err = runDownload(args)
	case "init-config":
		err = runInitConfig(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// commonFlags are shared by every command that loads the config.
type commonFlags struct {
	configPath string
	debug      bool
	logLevel   string
	jsonLogs   bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to config file (default: ~/.config/sphinxasr/config.yaml)")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging, including decoder output")
	fs.StringVar(&c.logLevel, "log-level", "", "override log_level (debug, info, warn, error)")
}

// setup loads the config, applies flag overrides and installs the logger.
func (c *commonFlags) setup() (*config.Config, error) {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if c.debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	opts := &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.LogLevel)}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if c.jsonLogs {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return cfg, nil
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, nil
	}

	cfg := config.Default()
	cfg.ExpandPaths()
	return cfg, nil
}

func runInitConfig(args []string) error {
	fs := flag.NewFlagSet("init-config", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: sphinxasr init-config\n\nWrites the default config to %s unless it exists.\n", config.DefaultConfigPath())
	}
	_ = fs.Parse(args)

	path, err := config.WriteDefault()
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Printf("Config already exists at %s\n", config.DefaultConfigPath())
		return nil
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
