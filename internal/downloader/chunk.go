package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	tricklehttp "github.com/ligustah/trickle/internal/http"
)

// fetchChunk downloads r and writes it to out, retrying failed attempts with
// linear backoff. Each attempt moves through dispatch, streaming and commit;
// a failure other than abort leads to a backoff wait and another dispatch.
func (t *Transfer) fetchChunk(r Range, out io.Writer) error {
	log := t.log.WithField("range", r.String())

	maxAttempts := t.cfg.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		if err := t.wait(); err != nil {
			return err
		}

		err := t.attempt(r, out)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrAborted) || t.ctx.Err() != nil {
			return ErrAborted
		}
		var partial *PartialWriteError
		if errors.As(err, &partial) {
			return err
		}

		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   err,
		}).Warn("Chunk attempt failed")

		if attempt >= maxAttempts {
			return &ChunkExhaustedError{Range: r, Attempts: attempt, Err: err}
		}

		t.emitStatus(RetryingStatus(r, attempt))
		if err := t.backoff(attempt); err != nil {
			return err
		}
	}
}

// attempt performs a single dispatch of r. On success the chunk has been
// written to out and counted as committed.
func (t *Transfer) attempt(r Range, out io.Writer) error {
	ctx, cancel := context.WithCancel(t.ctx)
	defer cancel()

	if !t.beginAttempt(cancel) {
		return ErrAborted
	}
	committed := false
	defer func() {
		t.endAttempt(committed)
	}()

	resp, err := t.transport.GetRange(ctx, t.cfg.URL, t.header, r.Start, r.End)
	if err != nil {
		return &ChunkFetchError{Range: r, StatusCode: statusCode(err), Err: err}
	}
	defer resp.Body.Close()

	var data []byte
	if t.cfg.DisableStreaming {
		data, err = io.ReadAll(io.LimitReader(resp.Body, r.Len()+1))
	} else {
		data, err = t.stream(resp.Body, r)
	}
	if err != nil {
		if errors.Is(err, ErrAborted) {
			return err
		}
		return &ChunkFetchError{Range: r, StatusCode: resp.StatusCode, Err: err}
	}
	if int64(len(data)) != r.Len() {
		return &ChunkFetchError{
			Range:      r,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: got %d bytes, want %d", ErrChunkLength, len(data), r.Len()),
		}
	}

	// Received but not yet durable: honour a pause or abort before writing.
	if err := t.wait(); err != nil {
		return err
	}

	// Only a write that stored nothing can be repeated without leaving an
	// overlap in the destination.
	if n, err := out.Write(data); err != nil {
		if n > 0 {
			return &PartialWriteError{Range: r, Written: n, Err: err}
		}
		return fmt.Errorf("write chunk %s: %w", r, err)
	}

	t.mu.Lock()
	t.committed += int64(len(data))
	t.inFlight = 0
	t.mu.Unlock()
	committed = true

	return nil
}

// stream reads body fragment by fragment, accounting each fragment as
// in-flight and checking the pause gate between fragments.
func (t *Transfer) stream(body io.Reader, r Range) ([]byte, error) {
	data := make([]byte, 0, r.Len())
	buf := make([]byte, t.cfg.ReadBufferSize)

	for {
		n, err := body.Read(buf)
		if n > 0 {
			if int64(len(data)+n) > r.Len() {
				return nil, fmt.Errorf("%w: more than %d bytes", ErrChunkLength, r.Len())
			}
			data = append(data, buf[:n]...)

			t.mu.Lock()
			t.inFlight += int64(n)
			t.mu.Unlock()
			t.emitProgress(false)
		}
		if err == io.EOF {
			return data, nil
		}
		if err != nil {
			return nil, err
		}
		if err := t.wait(); err != nil {
			return nil, err
		}
	}
}

// beginAttempt installs cancel as the active cancel token and clears
// in-flight bytes. It reports false if the transfer was aborted meanwhile.
func (t *Transfer) beginAttempt(cancel context.CancelFunc) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.aborted {
		return false
	}
	t.attemptCancel = cancel
	t.inFlight = 0
	return true
}

// endAttempt drops the active cancel token. In-flight bytes of a failed
// attempt are discarded.
func (t *Transfer) endAttempt(committed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attemptCancel = nil
	if !committed {
		t.inFlight = 0
	}
}

// backoff waits attempt × RetryBackoff, returning early with ErrAborted.
func (t *Transfer) backoff(attempt int) error {
	timer := time.NewTimer(time.Duration(attempt) * t.cfg.RetryBackoff)
	defer timer.Stop()

	select {
	case <-t.ctx.Done():
		return ErrAborted
	case <-timer.C:
		return nil
	}
}

func statusCode(err error) int {
	var se *tricklehttp.StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
