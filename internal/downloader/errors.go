package downloader

import (
	"errors"
	"fmt"
)

// ErrAborted is returned when the transfer was aborted by the caller, either
// through Transfer.Abort or by cancelling the context passed to Start.
var ErrAborted = errors.New("downloader: transfer aborted")

// ErrChunkLength is returned when a range response carries more or fewer
// bytes than requested.
var ErrChunkLength = errors.New("downloader: chunk length mismatch")

// SizeDiscoveryError is returned when the total size cannot be determined.
// It is never retried.
type SizeDiscoveryError struct {
	URL    string
	Reason string
	Err    error
}

func (e *SizeDiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("size discovery failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("size discovery failed: %s", e.Reason)
}

func (e *SizeDiscoveryError) Unwrap() error {
	return e.Err
}

// SinkAcquisitionError is returned when the destination cannot be opened.
// It is never retried.
type SinkAcquisitionError struct {
	Name string
	Err  error
}

func (e *SinkAcquisitionError) Error() string {
	return fmt.Sprintf("cannot open destination %q: %v", e.Name, e.Err)
}

func (e *SinkAcquisitionError) Unwrap() error {
	return e.Err
}

// ChunkFetchError describes one failed attempt at a chunk. StatusCode is 0
// when no response was received.
type ChunkFetchError struct {
	Range      Range
	StatusCode int
	Err        error
}

func (e *ChunkFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch bytes %s: status %d: %v", e.Range, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch bytes %s: %v", e.Range, e.Err)
}

func (e *ChunkFetchError) Unwrap() error {
	return e.Err
}

// ChunkExhaustedError is returned when a chunk failed on every allowed
// attempt. Err is the error of the last attempt.
//
// Use errors.As to extract the failing range.
type ChunkExhaustedError struct {
	Range    Range
	Attempts int
	Err      error
}

func (e *ChunkExhaustedError) Error() string {
	return fmt.Sprintf("chunk %s failed after %d attempts: %v", e.Range, e.Attempts, e.Err)
}

func (e *ChunkExhaustedError) Unwrap() error {
	return e.Err
}

// PartialWriteError is returned when the destination accepted part of a chunk
// before failing. The chunk cannot be written again without duplicating
// bytes, so it is never retried.
type PartialWriteError struct {
	Range   Range
	Written int
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("write chunk %s: stored %d of %d bytes: %v", e.Range, e.Written, e.Range.Len(), e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}
