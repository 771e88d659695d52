package progress

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the progress reporter.
type Options struct {
	// TotalSize is the total size in bytes to download. It may be left
	// zero and supplied later with SetTotalSize.
	TotalSize int64

	// ChunkSize is the size of each chunk (for display).
	ChunkSize int64

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration

	// SourceURL is the URL being downloaded (for display).
	SourceURL string
}

// Reporter prints human-readable progress for a single transfer. It is fed
// percentages and status strings, typically from the downloader callbacks.
type Reporter struct {
	opts Options

	mu         sync.Mutex
	percent    atomic.Int32
	total      atomic.Int64
	status     atomic.Value // string
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
	stopCh     chan struct{}
	doneCh     chan struct{}
	started    bool
	stopped    bool
	announced  bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	r := &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	r.total.Store(opts.TotalSize)
	r.status.Store("")
	return r
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.mu.Lock()
	if r.started || r.stopped {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.startTime = time.Now()
	r.lastUpdate = r.startTime
	r.mu.Unlock()

	fmt.Fprintf(r.opts.Output, "[trickle] Downloading: %s\n", r.opts.SourceURL)
	r.announceSize()

	go r.updateLoop()
}

// Stop stops the progress reporter and prints a final line.
// It waits for the update loop to exit.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	started := r.started
	r.mu.Unlock()

	close(r.stopCh)
	if started {
		<-r.doneCh
	}
}

// Update records the latest percentage. Lower values than the current one
// are ignored.
func (r *Reporter) Update(percent int) {
	for {
		cur := r.percent.Load()
		if int32(percent) <= cur {
			return
		}
		if r.percent.CompareAndSwap(cur, int32(percent)) {
			return
		}
	}
}

// SetTotalSize records the total size once it is known.
func (r *Reporter) SetTotalSize(size int64) {
	r.total.Store(size)
}

// announceSize prints the size line the first time the size is known.
// It runs before the update loop starts and then only on the loop.
func (r *Reporter) announceSize() {
	total := r.total.Load()
	if r.announced || total <= 0 {
		return
	}
	r.announced = true
	fmt.Fprintf(r.opts.Output, "[trickle] Total size: %s | Chunks: %d x %s\n",
		formatBytes(total),
		r.totalChunks(),
		formatBytes(r.opts.ChunkSize),
	)
}

// SetStatus records the latest status line.
func (r *Reporter) SetStatus(status string) {
	r.status.Store(status)
}

// Percent returns the last recorded percentage.
func (r *Reporter) Percent() int {
	return int(r.percent.Load())
}

func (r *Reporter) totalChunks() int64 {
	if r.opts.ChunkSize <= 0 {
		return 0
	}
	return (r.total.Load() + r.opts.ChunkSize - 1) / r.opts.ChunkSize
}

// completedBytes estimates the transferred bytes from the percentage.
func (r *Reporter) completedBytes() int64 {
	return r.total.Load() * int64(r.percent.Load()) / 100
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.announceSize()
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.announceSize()
			r.printProgress()
		}
	}
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	now := time.Now()
	completed := r.completedBytes()

	// Calculate speed
	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(completed-r.lastBytes) / elapsed

	r.lastUpdate = now
	r.lastBytes = completed

	eta := "calculating..."
	if speed > 0 {
		remaining := float64(r.total.Load() - completed)
		eta = formatDuration(time.Duration(remaining / speed * float64(time.Second)))
	}

	fmt.Fprintf(r.opts.Output, "\r[trickle] Progress: %d%% | %s / %s | Speed: %s/s | ETA: %s | %s    ",
		r.percent.Load(),
		formatBytes(completed),
		formatBytes(r.total.Load()),
		formatBytes(int64(speed)),
		eta,
		r.status.Load().(string),
	)
}

// printFinalStatus outputs the final status.
func (r *Reporter) printFinalStatus() {
	completed := r.completedBytes()
	duration := time.Since(r.startTime)
	avgSpeed := float64(completed) / duration.Seconds()

	fmt.Fprintf(r.opts.Output, "\r[trickle] Progress: %d%% | %s / %s | %s    \n",
		r.percent.Load(),
		formatBytes(completed),
		formatBytes(r.total.Load()),
		r.status.Load().(string),
	)
	fmt.Fprintf(r.opts.Output, "[trickle] Total time: %s | Average speed: %s/s\n",
		formatDuration(duration),
		formatBytes(int64(avgSpeed)),
	)
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes is exported for use by other packages.
func FormatBytes(b int64) string {
	return formatBytes(b)
}

// ParseBytes parses a human-readable byte string (e.g., "256MB").
func ParseBytes(s string) (int64, error) {
	var multiplier int64 = 1
	s = strings.TrimSpace(s)

	switch {
	case strings.HasSuffix(s, "TB"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "B"):
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid byte string: %s", s)
	}

	return int64(value * float64(multiplier)), nil
}
