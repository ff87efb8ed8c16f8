package radio

import (
	"errors"
	"fmt"
	"time"

	"flexdx-bridge/internal/domain"
	"flexdx-bridge/internal/observability"
)

// ErrNoSlice indicates a tune request arrived before the radio reported
// any slice.
var ErrNoSlice = errors.New("no slice available")

// pendingQsy tracks one outstanding tune request awaiting the radio's
// confirmation. A new request supersedes the previous one; only one
// deadline timer is ever armed.
type pendingQsy struct {
	index  int
	freqHz int64
	mode   domain.Mode
	timer  *time.Timer
}

// SetFrequency tunes the transmit slice (or, absent one, any known
// slice) to freqHz and, when mode is non-empty, switches its mode. A
// request the slice already satisfies succeeds without sending
// anything. Otherwise the request is recorded as pending and reconciled
// against the radio's subsequent slice reports; if none matches within
// the QSY deadline, a slice update reflecting the requested target is
// synthesized so downstream consumers still observe the change.
func (c *Client) SetFrequency(freqHz int64, mode domain.Mode) error {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}

	sl := c.targetSliceLocked()
	if sl == nil {
		c.mu.Unlock()
		return ErrNoSlice
	}
	if sl.FrequencyHz() == freqHz && (mode == "" || sl.Mode == mode) {
		c.mu.Unlock()
		return nil
	}

	if c.qsy != nil {
		c.qsy.timer.Stop()
	}
	q := &pendingQsy{index: sl.Index, freqHz: freqHz, mode: mode}
	q.timer = time.AfterFunc(c.cfg.QsyDeadline, func() { c.qsyDeadline(q) })
	c.qsy = q

	needMode := mode != "" && sl.Mode != mode
	index := sl.Index
	c.mu.Unlock()

	c.Send(fmt.Sprintf("slice tune %d %.6f", index, float64(freqHz)/1e6), nil)
	if needMode {
		c.Send(fmt.Sprintf("slice set %d mode=%s", index, mode), nil)
	}
	// The radio sometimes suppresses the echo of a tune it considers a
	// no-op; re-subscribing forces a full slice report.
	c.Send("sub slice all", nil)
	return nil
}

// targetSliceLocked picks the slice a tune request applies to: the
// transmit slice when one exists, else any slice. The caller holds c.mu.
func (c *Client) targetSliceLocked() *domain.RadioSlice {
	var any *domain.RadioSlice
	for _, sl := range c.slices {
		if sl.TX {
			return sl
		}
		if any == nil || sl.Index < any.Index {
			any = sl
		}
	}
	return any
}

// filterQsyLocked applies the QSY reconciliation filter to a freshly
// updated slice and reports whether the update should be forwarded. A
// report matching the pending frequency but not yet the pending mode is
// an intermediate state and is suppressed; a full match clears the
// pending request and is forwarded. The caller holds c.mu.
func (c *Client) filterQsyLocked(sl *domain.RadioSlice) bool {
	q := c.qsy
	if q == nil || q.index != sl.Index {
		return true
	}
	if sl.FrequencyHz() != q.freqHz {
		return true
	}
	if q.mode != "" && sl.Mode != q.mode {
		return false
	}
	q.timer.Stop()
	c.qsy = nil
	return true
}

// qsyDeadline fires when the radio never confirmed a pending tune: it
// synthesizes a slice update carrying the requested target values and
// clears the pending state.
func (c *Client) qsyDeadline(q *pendingQsy) {
	c.mu.Lock()
	if c.qsy != q {
		c.mu.Unlock()
		return
	}
	c.qsy = nil

	sl, ok := c.slices[q.index]
	if !ok {
		sl = &domain.RadioSlice{Index: q.index}
		c.slices[q.index] = sl
	}
	sl.FrequencyMHz = float64(q.freqHz) / 1e6
	if q.mode != "" {
		sl.Mode = q.mode
	}
	snapshot := *sl
	c.mu.Unlock()

	observability.RecordQsyTimeout()
	c.logger.Printf("tune to %d Hz not confirmed, forcing slice update", q.freqHz)
	c.emit(domain.Event{Type: domain.EventSliceUpdated, Time: time.Now(), Slice: &snapshot})
}
