// observer is the command-line front end for the cross-lens pattern
// persistence engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"observer/internal/config"
	"observer/internal/logging"
	"observer/internal/metrics"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// app carries what every command needs.
type app struct {
	cfg        *config.Config
	configPath string
	log        *logging.Logger
	metrics    *metrics.ObserverMetrics
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
}

var errUsage = errors.New("usage")

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("observer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	dumpMetrics := fs.Bool("metrics", false, "write metrics in text exposition format after the command")
	fs.Usage = func() { usage(stderr) }

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		usage(stderr)
		return 2
	}

	path := *configPath
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}

	logCfg, err := cfg.Logging.LoggerConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Error configuring logging: %v\n", err)
		return 1
	}
	if logCfg.Output == "stdout" {
		// stdout carries command output.
		logCfg.Output = "stderr"
	}
	if logCfg.Output == "stderr" {
		logCfg.Writer = stderr
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening log: %v\n", err)
		return 1
	}
	defer logger.Close()

	ctx := logging.ContextWithRequestID(context.Background(), logging.NewRequestID())
	a := &app{
		cfg:        cfg,
		configPath: path,
		log:        logger.WithContext(ctx),
		metrics:    metrics.New(),
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "signature":
		err = a.cmdSignature(rest)
	case "detect":
		err = a.cmdDetect(rest)
	case "pair":
		err = a.cmdPair(rest)
	case "import":
		err = a.cmdImport(rest)
	case "fingerprint":
		err = a.cmdFingerprint(rest)
	case "remove":
		err = a.cmdRemove(rest)
	case "health":
		err = a.cmdHealth(ctx, rest)
	case "serve":
		err = a.cmdServe(rest)
	case "help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", cmd)
		usage(stderr)
		return 2
	}

	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, err)
			return 2
		}
		if errors.Is(err, errUnhealthy) {
			return 1
		}
		a.log.Error("command failed", "command", cmd, "error", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if *dumpMetrics || cfg.Metrics.Enabled {
		if err := a.writeMetrics(); err != nil {
			fmt.Fprintf(stderr, "Error writing metrics: %v\n", err)
			return 1
		}
	}
	return 0
}

func (a *app) writeMetrics() error {
	if a.cfg.Metrics.OutputPath == "" {
		return a.metrics.WritePrometheus(a.stdout)
	}
	f, err := os.Create(a.cfg.Metrics.OutputPath)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	if err := a.metrics.WritePrometheus(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `observer - cross-lens pattern persistence

Usage: observer [options] <command> [args]

Commands:
  signature <input.json>         Extract a pattern signature from a distribution summary
  detect <windows.json>          Find a pattern shared by two non-overlapping lens windows
  pair [flags] <short> <long>    Pair a short and a long artifact through the cache
  import <entries.json>          Add entries to the journal
  remove <id>...                 Delete entries from the journal
  fingerprint                    Print the journal's dataset fingerprint
  serve                          Pair artifacts read as JSON lines from stdin
  health                         Check configuration, schemas and the journal
  help                           Show this help message

Options:
  -config <path>  Path to config file
  -metrics        Write metrics after the command`)
}
