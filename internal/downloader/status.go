package downloader

import "fmt"

// Status is a human-readable transfer status passed to Config.OnStatus.
type Status string

// Fixed status vocabulary. Retries use RetryingStatus.
const (
	StatusPreparing   Status = "preparing"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusFinalizing  Status = "finalizing"
	StatusDone        Status = "done"
	StatusAborted     Status = "aborted"
	StatusError       Status = "error"
)

// RetryingStatus returns the status emitted before retrying r.
func RetryingStatus(r Range, attempt int) Status {
	return Status(fmt.Sprintf("retrying %d-%d, attempt %d", r.Start, r.End, attempt))
}

// Phase is the lifecycle stage of a transfer.
type Phase uint8

const (
	// PhasePreparing covers size discovery and destination naming.
	PhasePreparing Phase = iota
	// PhaseSinkReady means the destination has been acquired.
	PhaseSinkReady
	// PhaseChunkLoop means chunks are being fetched and committed.
	PhaseChunkLoop
	// PhaseFinalizing means all bytes are committed and the sink is closing.
	PhaseFinalizing
	// PhaseDone is terminal: the transfer succeeded.
	PhaseDone
	// PhaseAborted is terminal: the transfer was aborted.
	PhaseAborted
	// PhaseFailed is terminal: the transfer failed.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePreparing:
		return "preparing"
	case PhaseSinkReady:
		return "sink_ready"
	case PhaseChunkLoop:
		return "chunk_loop"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseDone:
		return "done"
	case PhaseAborted:
		return "aborted"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Terminal reports whether p is a final phase.
func (p Phase) Terminal() bool {
	return p >= PhaseDone
}
