// Package testutils provides shared test infrastructure.
package testutils

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// TestFile defines a test file with size and data.
type TestFile struct {
	Name string
	Size int64
	Data []byte
	// Filename is sent as the Content-Disposition filename when set.
	Filename string
}

// GenerateTestData generates test data of the given size.
// For files <= 10MB, uses deterministic pattern. For larger files, uses random data.
func GenerateTestData(t *testing.T, size int64) []byte {
	t.Helper()
	data := make([]byte, size)
	if size <= 10*1024*1024 {
		for i := range data {
			data[i] = byte(i % 256)
		}
	} else {
		if _, err := rand.Read(data); err != nil {
			t.Fatalf("generate random data: %v", err)
		}
	}
	return data
}

// ServerOptions configures a RangeServer.
type ServerOptions struct {
	// Token, when set, is required as a bearer token on every request.
	Token string

	// FailRanges makes the next N GETs for a range start offset answer 503.
	FailRanges map[int64]int
}

// RangeServer serves TestFiles with HEAD and Range support and records
// every GET range it answers.
type RangeServer struct {
	*httptest.Server

	mu       sync.Mutex
	files    map[string]TestFile
	opts     ServerOptions
	failures map[int64]int
	requests []string
	heads    int
}

// StartTestHTTPServer starts an HTTP server that serves test files with range request support.
func StartTestHTTPServer(t *testing.T, files []TestFile) *RangeServer {
	t.Helper()
	return StartRangeServer(t, files, ServerOptions{})
}

// StartRangeServer starts a RangeServer with fault injection options.
// The server is closed when the test ends.
func StartRangeServer(t *testing.T, files []TestFile, opts ServerOptions) *RangeServer {
	t.Helper()

	s := &RangeServer{
		files:    make(map[string]TestFile),
		opts:     opts,
		failures: make(map[int64]int),
	}
	for _, f := range files {
		s.files["/"+f.Name] = f
	}
	for start, n := range opts.FailRanges {
		s.failures[start] = n
	}

	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Requests returns the Range headers received so far, in order.
func (s *RangeServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Heads returns the number of HEAD requests received so far.
func (s *RangeServer) Heads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heads
}

func (s *RangeServer) serve(w http.ResponseWriter, r *http.Request) {
	if s.opts.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.opts.Token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	f, ok := s.files[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}

	data := f.Data
	size := int64(len(data))
	etag := fmt.Sprintf(`"%s"`, r.URL.Path)

	if f.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Filename))
	}

	if r.Method == http.MethodHead {
		s.mu.Lock()
		s.heads++
		s.mu.Unlock()
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("ETag", etag)
		return
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.Header().Set("ETag", etag)
		w.Write(data)
		return
	}

	// Parse range header: bytes=start-end
	bounds := strings.TrimPrefix(rangeHeader, "bytes=")
	parts := strings.Split(bounds, "-")
	start, _ := strconv.ParseInt(parts[0], 10, 64)
	end, _ := strconv.ParseInt(parts[1], 10, 64)

	s.mu.Lock()
	s.requests = append(s.requests, rangeHeader)
	fail := s.failures[start] > 0
	if fail {
		s.failures[start]--
	}
	s.mu.Unlock()

	if fail {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	if start >= size {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	if end >= size {
		end = size - 1
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusPartialContent)
	w.Write(data[start : end+1])
}

// CompareReaderToData compares reader output with expected data in chunks.
// This is memory-efficient for large files.
func CompareReaderToData(t *testing.T, reader io.Reader, expected []byte) {
	t.Helper()

	chunkSize := 1024 * 1024 // 1MB
	buf := make([]byte, chunkSize)
	offset := 0

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if offset+n > len(expected) {
				t.Fatalf("read more data than expected: offset=%d, n=%d, expected len=%d",
					offset, n, len(expected))
			}
			if !bytes.Equal(buf[:n], expected[offset:offset+n]) {
				t.Fatalf("data mismatch at offset %d", offset)
			}
			offset += n
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read error at offset %d: %v", offset, err)
		}
	}

	if offset != len(expected) {
		t.Fatalf("incomplete read: got %d bytes, want %d", offset, len(expected))
	}
}
