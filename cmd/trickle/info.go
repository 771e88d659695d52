package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ligustah/trickle/internal/downloader"
	tricklehttp "github.com/ligustah/trickle/internal/http"
	"github.com/ligustah/trickle/internal/progress"
)

// runInfo prints what a HEAD request reveals about a URL.
func runInfo(args []string) int {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)

	url := fs.String("url", "", "URL to inspect (required)")
	token := fs.String("token", "", "Bearer token")
	headers := headerFlags{}
	fs.Var(headers, "header", `Extra request header "Key: Value" (repeatable)`)
	timeout := fs.Duration("timeout", 30*time.Second, "Request timeout")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: trickle info [options]

Show the size, ETag and range support of a URL.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if *url == "" {
		fmt.Fprintln(os.Stderr, "Error: -url is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	opts := tricklehttp.DefaultOptions()
	opts.Timeout = *timeout
	client := tricklehttp.NewClient(opts)

	return printInfo(context.Background(), os.Stdout, os.Stderr, client, *url, tricklehttp.BuildHeader(*token, headers))
}

func printInfo(ctx context.Context, stdout, stderr io.Writer, client *tricklehttp.Client, url string, header http.Header) int {
	info, err := client.Head(ctx, url, header)
	if err != nil {
		fmt.Fprintf(stderr, "Error accessing source URL: %v\n", err)
		return ExitSourceNotAccess
	}

	size := "unknown"
	if info.Size >= 0 {
		size = fmt.Sprintf("%d (%s)", info.Size, progress.FormatBytes(info.Size))
	}
	ranges := "no"
	if info.AcceptsRanges {
		ranges = "yes"
	}

	fmt.Fprintf(stdout, "URL:            %s\n", url)
	fmt.Fprintf(stdout, "Size:           %s\n", size)
	if info.ETag != "" {
		fmt.Fprintf(stdout, "ETag:           %s\n", info.ETag)
	}
	fmt.Fprintf(stdout, "Accepts ranges: %s\n", ranges)
	if info.ContentType != "" {
		fmt.Fprintf(stdout, "Content type:   %s\n", info.ContentType)
	}
	if !info.LastModified.IsZero() {
		fmt.Fprintf(stdout, "Last modified:  %s\n", info.LastModified.Format(time.RFC1123))
	}
	fmt.Fprintf(stdout, "Suggested name: %s\n", downloader.SuggestedName("", info.Filename, url))

	return ExitSuccess
}
