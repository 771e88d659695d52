// Package progress provides progress accounting and reporting for downloads.
//
// [Percent] is the accounting rule used by the downloader: committed plus
// in-flight bytes as a floored, clamped percentage of the total.
//
// [Reporter] outputs human-readable progress information to stderr,
// including completion percentage, transfer speed, ETA and the latest status.
//
// # Usage
//
//	reporter := progress.NewReporter(Options{
//	    TotalSize: totalBytes,
//	    ChunkSize: chunkSize,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	// Feed from downloader callbacks
//	reporter.Update(percent)
//	reporter.SetStatus(status)
//
// # Output Format
//
//	[trickle] Downloading: https://example.com/file.tar.gz
//	[trickle] Total size: 2.50 GB | Chunks: 640 x 4.00 MB
//	[trickle] Progress: 45% | 1.12 GB / 2.50 GB | Speed: 12.00 MB/s | ETA: 1m 58s | downloading
package progress
