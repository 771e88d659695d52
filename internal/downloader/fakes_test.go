package downloader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	tricklehttp "github.com/ligustah/trickle/internal/http"
)

// fakeTransport serves data from memory.
type fakeTransport struct {
	data     []byte
	size     int64 // reported size; defaults to len(data)
	filename string
	headErr  error
	headGate chan struct{} // Head blocks until closed, when set

	// fragment is the number of bytes returned per body Read; 0 means all.
	fragment int

	mu sync.Mutex
	// failures maps a range start to the number of 503 answers left.
	failures map[int64]int
	// truncate maps a range start to the number of half-bodies left.
	truncate map[int64]int
	// stallBody makes the body for a range start block after half its bytes.
	stallBody map[int64]bool
	// stall is called before answering; it may block or return an error.
	stall    func(ctx context.Context, r Range) error
	requests []Range
	headers  []http.Header
}

func newFakeTransport(data []byte) *fakeTransport {
	return &fakeTransport{
		data:      data,
		size:      int64(len(data)),
		failures:  make(map[int64]int),
		truncate:  make(map[int64]int),
		stallBody: make(map[int64]bool),
	}
}

func (f *fakeTransport) Head(ctx context.Context, url string, header http.Header) (*tricklehttp.FileInfo, error) {
	if f.headGate != nil {
		select {
		case <-f.headGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	f.headers = append(f.headers, header.Clone())
	f.mu.Unlock()

	if f.headErr != nil {
		return nil, f.headErr
	}
	return &tricklehttp.FileInfo{Size: f.size, AcceptsRanges: true, Filename: f.filename}, nil
}

func (f *fakeTransport) GetRange(ctx context.Context, url string, header http.Header, start, end int64) (*tricklehttp.RangeResponse, error) {
	r := Range{Start: start, End: end}

	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.headers = append(f.headers, header.Clone())
	fail := f.failures[start] > 0
	if fail {
		f.failures[start]--
	}
	truncate := f.truncate[start] > 0
	if truncate {
		f.truncate[start]--
	}
	stallBody := f.stallBody[start]
	stall := f.stall
	f.mu.Unlock()

	if stall != nil {
		if err := stall(ctx, r); err != nil {
			return nil, err
		}
	}
	if fail {
		return nil, &tricklehttp.StatusError{Code: http.StatusServiceUnavailable, Status: "503 Service Unavailable"}
	}

	body := f.data[start : end+1]
	var reader io.Reader = &fragmentReader{data: body, fragment: f.fragment}
	if truncate {
		reader = io.MultiReader(
			&fragmentReader{data: body[:len(body)/2], fragment: f.fragment},
			errReader{io.ErrUnexpectedEOF},
		)
	}
	if stallBody {
		reader = io.MultiReader(
			&fragmentReader{data: body[:len(body)/2], fragment: f.fragment},
			stallingBody{ctx},
		)
	}

	return &tricklehttp.RangeResponse{
		Body:          io.NopCloser(reader),
		StatusCode:    http.StatusPartialContent,
		ContentLength: int64(len(body)),
	}, nil
}

func (f *fakeTransport) Requests() []Range {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Range(nil), f.requests...)
}

type fragmentReader struct {
	data     []byte
	fragment int
}

func (r *fragmentReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := len(p)
	if r.fragment > 0 && n > r.fragment {
		n = r.fragment
	}
	n = copy(p[:n], r.data)
	r.data = r.data[n:]
	return n, nil
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// stallingBody blocks until its context is cancelled.
type stallingBody struct{ ctx context.Context }

func (b stallingBody) Read([]byte) (int, error) {
	<-b.ctx.Done()
	return 0, b.ctx.Err()
}

// memSink records writes and closes.
type memSink struct {
	mu         sync.Mutex
	buf        bytes.Buffer
	writes     []int
	closes     int
	failWrites int
	// shortWrites is the number of writes left that store half of p and fail.
	shortWrites int
}

func (s *memSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites > 0 {
		s.failWrites--
		return 0, errors.New("disk full")
	}
	if s.shortWrites > 0 {
		s.shortWrites--
		half := len(p) / 2
		s.writes = append(s.writes, half)
		s.buf.Write(p[:half])
		return half, errors.New("disk full")
	}
	s.writes = append(s.writes, len(p))
	return s.buf.Write(p)
}

func (s *memSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *memSink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf.Bytes()...)
}

func (s *memSink) Writes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.writes...)
}

func (s *memSink) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// gatedSink blocks Close until release is closed. closing is closed when
// Close is entered.
type gatedSink struct {
	memSink
	closing chan struct{}
	release chan struct{}
}

func newGatedSink() *gatedSink {
	return &gatedSink{closing: make(chan struct{}), release: make(chan struct{})}
}

func (s *gatedSink) Close() error {
	close(s.closing)
	<-s.release
	return s.memSink.Close()
}

// memOpener hands out a single memSink.
type memOpener struct {
	sink *memSink
	err  error

	mu    sync.Mutex
	names []string
}

func newMemOpener() *memOpener {
	return &memOpener{sink: &memSink{}}
}

func (o *memOpener) Open(ctx context.Context, name string) (io.WriteCloser, error) {
	o.mu.Lock()
	o.names = append(o.names, name)
	o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	return o.sink, nil
}

func (o *memOpener) Names() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.names...)
}

// recorder collects callback values.
type recorder struct {
	mu       sync.Mutex
	statuses []Status
	progress []int
	// onProgress runs after a value is recorded, outside the lock.
	onProgress func(int)
}

func (r *recorder) attach(cfg Config) Config {
	cfg.OnStatus = func(s Status) {
		r.mu.Lock()
		r.statuses = append(r.statuses, s)
		r.mu.Unlock()
	}
	cfg.OnProgress = func(p int) {
		r.mu.Lock()
		r.progress = append(r.progress, p)
		hook := r.onProgress
		r.mu.Unlock()
		if hook != nil {
			hook(p)
		}
	}
	return cfg
}

func (r *recorder) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}

func (r *recorder) Progress() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.progress...)
}

func (r *recorder) HasStatus(s Status) bool {
	for _, got := range r.Statuses() {
		if got == s {
			return true
		}
	}
	return false
}
