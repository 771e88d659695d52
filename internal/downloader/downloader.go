package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	tricklehttp "github.com/ligustah/trickle/internal/http"
	"github.com/ligustah/trickle/internal/sink"
)

// Defaults applied by Start.
const (
	DefaultChunkSize      = 4 * 1024 * 1024
	DefaultRetryBackoff   = time.Second
	DefaultReadBufferSize = 32 * 1024
)

// Transport issues the requests a transfer needs. *tricklehttp.Client
// implements it.
type Transport interface {
	Head(ctx context.Context, url string, header http.Header) (*tricklehttp.FileInfo, error)
	GetRange(ctx context.Context, url string, header http.Header, startByte, endByte int64) (*tricklehttp.RangeResponse, error)
}

// Config configures a transfer. Start copies it; it is never modified.
type Config struct {
	// URL is the resource to download.
	URL string

	// Name is the destination name hint. When empty the server's
	// Content-Disposition filename or the URL basename is used.
	Name string

	// Token is sent as a bearer token unless Headers sets Authorization.
	Token string

	// Headers are added to every request and win over computed defaults.
	Headers map[string]string

	// ChunkSize is the size of each range request.
	// Default: 4MB
	ChunkSize int64

	// MaxRetries is the number of attempts allowed per chunk. Values below
	// one allow a single attempt.
	MaxRetries int

	// RetryBackoff is the base delay; attempt n waits n × RetryBackoff.
	// Default: 1s
	RetryBackoff time.Duration

	// ProgressInterval enables periodic progress emission while
	// downloading. Zero disables the ticker.
	ProgressInterval time.Duration

	// DisableStreaming reads each chunk in one piece instead of
	// accounting fragments as they arrive.
	DisableStreaming bool

	// ReadBufferSize is the fragment size for streaming reads.
	// Default: 32KB
	ReadBufferSize int

	// OnProgress receives percentages in [0, 100]. Values never decrease.
	OnProgress func(percent int)

	// OnStatus receives status updates.
	OnStatus func(status Status)

	// Logger receives structured logs. Default: logrus.StandardLogger()
	Logger logrus.FieldLogger
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if c.Headers != nil {
		headers := make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			headers[k] = v
		}
		c.Headers = headers
	}
	return c
}

// Transfer is a running download and its control surface. All methods are
// safe for concurrent use.
type Transfer struct {
	id        string
	cfg       Config
	transport Transport
	opener    sink.Opener
	header    http.Header
	log       logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	phase         Phase
	name          string
	total         int64
	committed     int64
	inFlight      int64
	reported      int
	paused        bool
	aborted       bool
	settled       bool
	changed       chan struct{}
	attemptCancel context.CancelFunc

	progressMu  sync.Mutex
	lastEmitted int

	done chan struct{}
	err  error
}

// Start begins downloading cfg.URL into a destination acquired from opener
// and returns immediately. Cancelling ctx has the same effect as Abort.
func Start(ctx context.Context, transport Transport, opener sink.Opener, cfg Config) *Transfer {
	cfg = cfg.withDefaults()
	id := uuid.NewString()

	runCtx, cancel := context.WithCancel(ctx)
	t := &Transfer{
		id:          id,
		cfg:         cfg,
		transport:   transport,
		opener:      opener,
		header:      tricklehttp.BuildHeader(cfg.Token, cfg.Headers),
		log:         cfg.Logger.WithFields(logrus.Fields{"transfer_id": id, "url": cfg.URL}),
		ctx:         runCtx,
		cancel:      cancel,
		changed:     make(chan struct{}),
		lastEmitted: -1,
		done:        make(chan struct{}),
	}

	go t.run(ctx)
	return t
}

// ID returns the unique identifier of this transfer.
func (t *Transfer) ID() string {
	return t.id
}

// Name returns the destination name, or "" before it has been chosen.
func (t *Transfer) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name
}

// Size returns the total size in bytes, or 0 before it has been discovered.
func (t *Transfer) Size() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Done is closed once the transfer has settled.
func (t *Transfer) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the transfer settles and returns its result.
func (t *Transfer) Wait() error {
	<-t.done
	return t.err
}

// Err returns the result of a settled transfer, or nil while it is running.
func (t *Transfer) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

func (t *Transfer) run(parent context.Context) {
	stop := context.AfterFunc(parent, t.Abort)
	defer stop()

	t.finish(t.transfer())
}

// transfer runs preparing, sink acquisition, the chunk loop and finalizing.
// The sink is closed exactly once on every path.
func (t *Transfer) transfer() (err error) {
	t.setPhase(PhasePreparing)
	t.emitStatus(StatusPreparing)

	name, err := t.discover()
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.name = name
	t.mu.Unlock()

	w, err := t.opener.Open(t.ctx, name)
	if err != nil {
		return &SinkAcquisitionError{Name: name, Err: err}
	}
	out := &onceCloser{w: w}
	defer func() {
		if err == nil {
			return
		}
		if cerr := out.Close(); cerr != nil {
			t.log.WithError(cerr).Debug("Closing destination after failure")
		}
	}()
	t.setPhase(PhaseSinkReady)
	t.log.WithField("name", name).Info("Destination ready")

	stopTicker := t.startTicker()
	defer stopTicker()

	t.setPhase(PhaseChunkLoop)
	for {
		if t.IsAborted() {
			return ErrAborted
		}

		t.mu.Lock()
		r, ok := nextRange(t.committed, t.cfg.ChunkSize, t.total)
		t.mu.Unlock()
		if !ok {
			break
		}

		if err := t.wait(); err != nil {
			return err
		}
		if err := t.fetchChunk(r, out); err != nil {
			return err
		}

		t.log.WithField("range", r.String()).Debug("Chunk committed")
		t.emitProgress(true)
		t.emitStatus(StatusDownloading)
	}

	t.setPhase(PhaseFinalizing)
	if t.IsAborted() {
		return ErrAborted
	}
	stopTicker()
	t.emitStatus(StatusFinalizing)

	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	t.emitProgress(true)
	return nil
}

// discover determines the total size and the destination name.
func (t *Transfer) discover() (string, error) {
	info, err := t.transport.Head(t.ctx, t.cfg.URL, t.header)
	if err != nil {
		return "", &SizeDiscoveryError{URL: t.cfg.URL, Reason: "request failed", Err: err}
	}
	if info.Size <= 0 {
		return "", &SizeDiscoveryError{URL: t.cfg.URL, Reason: "missing or zero content length"}
	}

	t.mu.Lock()
	t.total = info.Size
	t.mu.Unlock()

	name := SuggestedName(t.cfg.Name, info.Filename, t.cfg.URL)
	t.log.WithFields(logrus.Fields{
		"size":           info.Size,
		"etag":           info.ETag,
		"accepts_ranges": info.AcceptsRanges,
		"name":           name,
	}).Info("Discovered remote file")

	return name, nil
}

// finish settles the transfer with err. The outcome is decided under the
// same lock that marks the transfer settled, so an Abort either lands before
// it and turns the result into ErrAborted or is ignored.
func (t *Transfer) finish(err error) {
	if err != nil && (errors.Is(err, ErrAborted) || t.ctx.Err() != nil) {
		t.Abort()
	}

	t.mu.Lock()
	switch {
	case t.aborted:
		err = ErrAborted
		t.phase = PhaseAborted
	case err == nil:
		t.phase = PhaseDone
	default:
		t.phase = PhaseFailed
	}
	phase := t.phase
	t.settled = true
	t.paused = false
	t.attemptCancel = nil
	t.err = err
	t.mu.Unlock()

	t.log.WithField("phase", phase.String()).Debug("Phase changed")
	switch phase {
	case PhaseDone:
		t.log.Info("Transfer complete")
		t.emitStatus(StatusDone)
	case PhaseFailed:
		t.log.WithError(err).Error("Transfer failed")
		t.emitStatus(StatusError)
	}

	t.cancel()
	close(t.done)
}

// startTicker emits progress every ProgressInterval while the transfer is
// neither paused nor aborted. The returned stop function is idempotent.
func (t *Transfer) startTicker() (stop func()) {
	if t.cfg.ProgressInterval <= 0 {
		return func() {}
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)

		ticker := time.NewTicker(t.cfg.ProgressInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				return
			case <-t.ctx.Done():
				return
			case <-ticker.C:
				if !t.IsPaused() && !t.IsAborted() {
					t.emitProgress(false)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}

// onceCloser guarantees the destination is closed at most once.
type onceCloser struct {
	w    io.WriteCloser
	once sync.Once
	err  error
}

func (c *onceCloser) Write(p []byte) (int, error) {
	return c.w.Write(p)
}

func (c *onceCloser) Close() error {
	c.once.Do(func() {
		c.err = c.w.Close()
	})
	return c.err
}
