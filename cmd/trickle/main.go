package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ligustah/trickle/internal/downloader"
	tricklehttp "github.com/ligustah/trickle/internal/http"
)

// Exit codes
const (
	ExitSuccess           = 0
	ExitGeneralError      = 1
	ExitInvalidArgs       = 2
	ExitSourceNotAccess   = 3
	ExitRangeNotSupported = 4
	ExitStorageError      = 5
	ExitTransferFailed    = 6
	ExitAborted           = 130
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "fetch":
		return runFetch(cmdArgs)
	case "info":
		return runInfo(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: trickle <command> [options]

Commands:
  fetch     Download a URL chunk by chunk into a local directory or bucket
  info      Show size, ETag and range support of a URL

Run 'trickle <command> -h' for command-specific help.`)
}

// exitCode maps a transfer result onto a process exit code.
func exitCode(err error) int {
	var (
		sizeErr      *downloader.SizeDiscoveryError
		sinkErr      *downloader.SinkAcquisitionError
		exhaustedErr *downloader.ChunkExhaustedError
		partialErr   *downloader.PartialWriteError
	)

	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, downloader.ErrAborted):
		return ExitAborted
	case errors.Is(err, tricklehttp.ErrRangeNotSupported):
		return ExitRangeNotSupported
	case errors.As(err, &sizeErr):
		return ExitSourceNotAccess
	case errors.As(err, &sinkErr), errors.As(err, &partialErr):
		return ExitStorageError
	case errors.As(err, &exhaustedErr):
		return ExitTransferFailed
	default:
		return ExitGeneralError
	}
}
