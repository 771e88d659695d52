package downloader

import (
	"github.com/ligustah/trickle/internal/progress"
)

// Pause suspends the transfer at its next gate: before a chunk, before a
// retry, between fragments of a streaming response, or before a commit.
// It is a no-op once the transfer is aborted, finalizing or settled.
func (t *Transfer) Pause() {
	t.mu.Lock()
	if t.settled || t.aborted || t.phase == PhaseFinalizing {
		t.mu.Unlock()
		return
	}
	t.paused = true
	t.notifyLocked()
	t.mu.Unlock()

	t.log.Info("Transfer paused")
	t.emitStatus(StatusPaused)
}

// Resume releases a paused transfer. It cannot undo Abort.
func (t *Transfer) Resume() {
	t.mu.Lock()
	if t.settled || t.aborted {
		t.mu.Unlock()
		return
	}
	t.paused = false
	t.notifyLocked()
	t.mu.Unlock()

	t.log.Info("Transfer resumed")
	t.emitStatus(StatusDownloading)
}

// Abort permanently stops the transfer. The in-flight request is cancelled,
// the progress ticker stops and Wait returns ErrAborted. During finalizing
// the destination close is cancelled and the transfer still reports
// ErrAborted. Calling Abort more than once, or after the transfer settled,
// does nothing.
func (t *Transfer) Abort() {
	t.mu.Lock()
	if t.settled || t.aborted {
		t.mu.Unlock()
		return
	}
	t.aborted = true
	cancelAttempt := t.attemptCancel
	t.attemptCancel = nil
	t.notifyLocked()
	t.mu.Unlock()

	if cancelAttempt != nil {
		cancelAttempt()
	}
	t.cancel()

	t.log.Warn("Transfer aborted")
	t.emitStatus(StatusAborted)
}

// IsPaused reports whether the transfer is paused.
func (t *Transfer) IsPaused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// IsAborted reports whether Abort was called. Once true it stays true.
func (t *Transfer) IsAborted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.aborted
}

// Phase returns the current lifecycle phase.
func (t *Transfer) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Progress returns the completion percentage from committed and in-flight
// bytes. It never decreases, even when a failed attempt discards in-flight
// bytes.
func (t *Transfer) Progress() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := progress.Percent(t.committed, t.inFlight, t.total)
	if p < t.reported {
		return t.reported
	}
	t.reported = p
	return p
}

// wait is the pause gate. It returns ErrAborted immediately once aborted,
// blocks while paused and returns nil otherwise.
func (t *Transfer) wait() error {
	for {
		t.mu.Lock()
		if t.aborted {
			t.mu.Unlock()
			return ErrAborted
		}
		if !t.paused {
			t.mu.Unlock()
			return nil
		}
		changed := t.changed
		t.mu.Unlock()

		select {
		case <-changed:
		case <-t.ctx.Done():
			return ErrAborted
		}
	}
}

// notifyLocked wakes every goroutine blocked in wait. t.mu must be held.
func (t *Transfer) notifyLocked() {
	close(t.changed)
	t.changed = make(chan struct{})
}

func (t *Transfer) setPhase(p Phase) {
	t.mu.Lock()
	t.phase = p
	t.mu.Unlock()
	t.log.WithField("phase", p.String()).Debug("Phase changed")
}

// emitStatus invokes the status callback. It may run on the goroutine
// calling Pause, Resume or Abort.
func (t *Transfer) emitStatus(s Status) {
	if t.cfg.OnStatus != nil {
		t.cfg.OnStatus(s)
	}
}

// emitProgress invokes the progress callback with the current percentage.
// Unless force is set, repeated values are suppressed. Emission is
// serialized so callers never observe values out of order.
func (t *Transfer) emitProgress(force bool) {
	if t.cfg.OnProgress == nil {
		return
	}
	t.progressMu.Lock()
	defer t.progressMu.Unlock()

	p := t.Progress()
	if !force && p == t.lastEmitted {
		return
	}
	t.lastEmitted = p
	t.cfg.OnProgress(p)
}
