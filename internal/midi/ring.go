// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package midi

import "sync/atomic"

// Ring is a lock-free, single-producer/single-consumer fixed-capacity FIFO
// of Event records, the MIDI-ring half of the device-side abstraction's
// o2h_midi/h2o_midi rings. Unlike internal/ring's byte-granular Buffer, MIDI
// events are fixed-size typed records, so this is a dedicated element ring
// rather than a reuse of the byte ring.
type Ring struct {
	buf   []Event
	mask  uint64
	write atomic.Uint64
	read  atomic.Uint64
}

// NewRing creates a Ring with at least the requested capacity in events,
// rounded up to the next power of two.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &Ring{
		buf:  make([]Event, size),
		mask: uint64(size - 1),
	}
}

// Cap returns the ring's capacity in events.
func (r *Ring) Cap() int { return len(r.buf) }

// ReadSpace returns the number of events currently queued.
func (r *Ring) ReadSpace() int {
	return int(r.write.Load() - r.read.Load())
}

// WriteSpace returns the number of events that can still be pushed.
func (r *Ring) WriteSpace() int {
	return len(r.buf) - r.ReadSpace()
}

// Push appends ev to the ring. It returns false, dropping the event, when
// the ring is full; callers must log and count this as MidiRingOverflow.
// Only the single writer goroutine may call Push.
func (r *Ring) Push(ev Event) bool {
	if r.WriteSpace() == 0 {
		return false
	}
	w := r.write.Load()
	r.buf[w&r.mask] = ev
	r.write.Store(w + 1)
	return true
}

// PeekAll returns a snapshot slice of all currently queued events without
// consuming them, oldest first. The returned slice is freshly allocated and
// safe to retain. Only the single reader goroutine may call PeekAll/Drop.
func (r *Ring) PeekAll() []Event {
	n := r.ReadSpace()
	if n == 0 {
		return nil
	}
	out := make([]Event, n)
	base := r.read.Load()
	for i := 0; i < n; i++ {
		out[i] = r.buf[(base+uint64(i))&r.mask]
	}
	return out
}

// Drop advances the read pointer past n events (after the caller has
// consumed them via PeekAll), the typed equivalent of ring.Buffer's
// discard-read. Only the single reader goroutine may call Drop.
func (r *Ring) Drop(n int) {
	avail := r.ReadSpace()
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return
	}
	r.read.Store(r.read.Load() + uint64(n))
}
