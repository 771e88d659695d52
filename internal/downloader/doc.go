// Package downloader runs a single resumable HTTP download with pause,
// resume and abort controls.
//
// A transfer discovers the resource size with a HEAD request, acquires a
// destination from a sink.Opener and then fetches the resource as a strictly
// sequential series of range requests. Each chunk is retried with linear
// backoff before the transfer gives up.
//
// # Usage
//
//	t := downloader.Start(ctx, tricklehttp.NewClient(tricklehttp.DefaultOptions()), bucket, downloader.Config{
//	    URL:        url,
//	    ChunkSize:  4 * 1024 * 1024,
//	    MaxRetries: 3,
//	    OnProgress: func(p int) { reporter.Update(p) },
//	})
//	t.Pause()
//	t.Resume()
//	err := t.Wait()
//
// # Controls
//
// Pause takes effect at the next gate: before a chunk is dispatched, before
// a retry, between fragments of a streaming response and before a received
// chunk is written. Pause is ignored once finalizing has begun. Abort is
// permanent. It cancels the in-flight request or destination close, wakes a
// paused transfer and makes Wait return ErrAborted. The destination is
// closed exactly once however the transfer ends.
//
// # Callbacks
//
// OnProgress values never decrease. OnStatus receives preparing, downloading,
// paused, "retrying <start>-<end>, attempt <n>", finalizing, done, aborted
// and error. Status callbacks for Pause, Resume and Abort run on the calling
// goroutine.
package downloader
