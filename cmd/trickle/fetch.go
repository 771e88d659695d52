package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/sirupsen/logrus"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/ligustah/trickle/internal/config"
	"github.com/ligustah/trickle/internal/downloader"
	tricklehttp "github.com/ligustah/trickle/internal/http"
	"github.com/ligustah/trickle/internal/logging"
	"github.com/ligustah/trickle/internal/progress"
	"github.com/ligustah/trickle/internal/sink"
)

// headerFlags collects repeated -header "Key: Value" arguments.
type headerFlags map[string]string

func (h headerFlags) String() string {
	parts := make([]string, 0, len(h))
	for k, v := range h {
		parts = append(parts, k+": "+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func (h headerFlags) Set(s string) error {
	k, v, err := config.ParseHeader(s)
	if err != nil {
		return err
	}
	h[k] = v
	return nil
}

// runFetch downloads a URL into a bucket. SIGINT and SIGTERM abort the
// transfer, SIGUSR1 toggles pause and resume.
func runFetch(args []string) int {
	cfg, code := parseFetchFlags(args)
	if code != ExitSuccess {
		return code
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(sigCh)

	return fetch(ctx, cfg, sigCh, os.Stderr)
}

// parseFetchFlags builds the configuration from defaults, an optional YAML
// file, TRICKLE_ environment variables and flags, in that order.
func parseFetchFlags(args []string) (config.Config, int) {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)

	url := fs.String("url", "", "Source URL to download (required)")
	output := fs.String("output", "", "Destination directory or bucket URL, e.g. file:///data, s3://bucket, gs://bucket (default: current directory)")
	name := fs.String("name", "", "Destination object name (default: server filename or URL basename)")
	token := fs.String("token", "", "Bearer token sent with every request")
	headers := headerFlags{}
	fs.Var(headers, "header", `Extra request header "Key: Value" (repeatable)`)
	chunkSize := fs.String("chunk-size", "", "Size of each range request (default 4MB)")
	maxRetries := fs.Int("max-retries", 0, "Attempts per chunk (default 5)")
	retryBackoff := fs.Duration("retry-backoff", 0, "Base retry backoff, attempt n waits n times this (default 1s)")
	showProgress := fs.Bool("progress", false, "Show progress output")
	overwrite := fs.Bool("overwrite", false, "Replace an existing destination object")
	noStream := fs.Bool("no-stream", false, "Read each chunk in one piece instead of streaming")
	configPath := fs.String("config", "", "YAML configuration file")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error (default info)")
	logFormat := fs.String("log-format", "", "Log format: text or json (default text)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: trickle fetch [options]

Download a URL as a sequence of HTTP range requests into a local directory
or object storage bucket. Send SIGUSR1 to pause or resume, SIGINT to abort.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return config.Config{}, ExitInvalidArgs
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return config.Config{}, ExitInvalidArgs
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return config.Config{}, ExitInvalidArgs
	}

	override := config.Config{
		URL:        *url,
		Output:     *output,
		Name:       *name,
		Token:      *token,
		Headers:    headers,
		MaxRetries: *maxRetries,
		Overwrite:  *overwrite,
		Progress:   *showProgress,
		Retry:      config.RetryConfig{Backoff: *retryBackoff},
		Log:        config.LogConfig{Level: *logLevel, Format: *logFormat},
	}
	if *chunkSize != "" {
		size, err := progress.ParseBytes(*chunkSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid chunk size: %v\n", err)
			return config.Config{}, ExitInvalidArgs
		}
		override.ChunkSize = size
	}
	cfg = cfg.Merge(override)
	if *noStream {
		cfg.Streaming = false
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		return config.Config{}, ExitInvalidArgs
	}
	return cfg, ExitSuccess
}

// fetch runs one transfer to completion, reacting to signals until it
// settles.
func fetch(ctx context.Context, cfg config.Config, signals <-chan os.Signal, stderr io.Writer) int {
	log, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: stderr,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	output, err := resolveOutput(cfg.Output)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	bkt, err := sink.OpenBucket(ctx, output)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening bucket: %v\n", err)
		return ExitStorageError
	}
	defer bkt.Close()

	client := tricklehttp.NewClient(tricklehttp.DefaultOptions())
	dcfg := cfg.DownloaderConfig()
	dcfg.Logger = log

	// Callbacks can fire before Start returns, so they reach the transfer
	// through current and size the reporter once discovery has finished.
	var current atomic.Pointer[downloader.Transfer]
	var reporter *progress.Reporter
	if cfg.Progress {
		reporter = progress.NewReporter(progress.Options{
			ChunkSize:      cfg.ChunkSize,
			Output:         stderr,
			UpdateInterval: cfg.ProgressInterval,
			SourceURL:      cfg.URL,
		})
		sizeReporter := func() {
			if tr := current.Load(); tr != nil {
				reporter.SetTotalSize(tr.Size())
			}
		}
		reporter.Start()
		defer reporter.Stop()

		dcfg.OnProgress = func(p int) {
			sizeReporter()
			reporter.Update(p)
		}
		dcfg.OnStatus = func(s downloader.Status) {
			sizeReporter()
			reporter.SetStatus(string(s))
		}
	}

	opener := sink.NewBucket(bkt, sink.Options{Overwrite: cfg.Overwrite})
	tr := downloader.Start(ctx, client, opener, dcfg)
	current.Store(tr)
	log.WithFields(logrus.Fields{
		"transfer_id": tr.ID(),
		"output":      output,
	}).Info("Transfer started")

wait:
	for {
		select {
		case <-tr.Done():
			break wait
		case sig := <-signals:
			handleSignal(tr, sig, stderr)
		}
	}

	err = tr.Err()
	if reporter != nil {
		reporter.SetTotalSize(tr.Size())
		reporter.Stop()
	}

	code := exitCode(err)
	switch code {
	case ExitSuccess:
		fmt.Fprintf(stderr, "[trickle] Download complete: %s (%s)\n", opener.Key(tr.Name()), output)
	case ExitAborted:
		fmt.Fprintln(stderr, "[trickle] Download aborted")
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}

// handleSignal toggles pause on SIGUSR1 and aborts on anything else.
func handleSignal(tr *downloader.Transfer, sig os.Signal, stderr io.Writer) {
	if sig == syscall.SIGUSR1 {
		if tr.IsPaused() {
			fmt.Fprintln(stderr, "\n[trickle] Resuming...")
			tr.Resume()
		} else {
			fmt.Fprintln(stderr, "\n[trickle] Pausing, send SIGUSR1 again to resume")
			tr.Pause()
		}
		return
	}

	fmt.Fprintln(stderr, "\n[trickle] Received interrupt, aborting...")
	tr.Abort()
}

// resolveOutput turns a local directory into a file:// bucket URL. An empty
// output means the current directory.
func resolveOutput(output string) (string, error) {
	if strings.Contains(output, "://") {
		return output, nil
	}
	if output == "" {
		output = "."
	}
	abs, err := filepath.Abs(output)
	if err != nil {
		return "", fmt.Errorf("resolve output directory: %w", err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}
