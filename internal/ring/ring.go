// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ring provides a lock-free, byte-granular, single-producer/
// single-consumer FIFO suitable for use between a realtime audio callback
// and a device I/O thread. It is the Go equivalent of a JACK-style
// ringbuffer: one writer goroutine, one reader goroutine, no locks, no
// allocation on the hot path once created.
package ring

import (
	"sync/atomic"
)

// Buffer is a fixed-capacity SPSC byte FIFO. The zero value is not usable;
// construct with New. A Buffer must have exactly one writer goroutine and
// exactly one reader goroutine for the lifetime of the buffer; mixing
// readers or writers breaks the lock-free invariants.
type Buffer struct {
	buf   []byte
	mask  uint64
	write atomic.Uint64 // only written by the writer, read by both
	read  atomic.Uint64 // only written by the reader, read by both

	locked bool
}

// New creates a Buffer with at least the requested capacity in bytes,
// rounded up to the next power of two so that index wrapping can be done
// with a mask instead of a modulo. The backing array is page-locked with
// mlock (see ring_unix.go/ring_other.go) so the realtime thread never
// faults servicing a page-in.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	size := nextPow2(capacity)
	b := &Buffer{
		buf:  make([]byte, size),
		mask: uint64(size - 1),
	}
	b.locked = mlock(b.buf) == nil
	return b
}

// Close unlocks the backing memory, if it was locked. It must not be called
// while the reader or writer goroutine may still be using the buffer.
func (b *Buffer) Close() {
	if b.locked {
		munlock(b.buf)
		b.locked = false
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Cap returns the buffer's total capacity in bytes.
func (b *Buffer) Cap() int {
	return len(b.buf)
}

// ReadSpace returns the number of bytes currently available to read. Safe
// to call from either thread.
func (b *Buffer) ReadSpace() int {
	w := b.write.Load()
	r := b.read.Load()
	return int(w - r)
}

// WriteSpace returns the number of bytes currently available to write.
// Safe to call from either thread.
func (b *Buffer) WriteSpace() int {
	return len(b.buf) - b.ReadSpace()
}

// Write copies len(src) bytes into the buffer and advances the write
// pointer. It must only be called from the single writer goroutine. It
// returns the number of bytes actually written, which is less than
// len(src) if WriteSpace() was insufficient; callers decide whether a
// short write is an overflow.
func (b *Buffer) Write(src []byte) int {
	space := b.WriteSpace()
	n := len(src)
	if n > space {
		n = space
	}
	if n == 0 {
		return 0
	}
	w := b.write.Load()
	start := int(w & b.mask)
	end := start + n
	if end <= len(b.buf) {
		copy(b.buf[start:end], src[:n])
	} else {
		first := len(b.buf) - start
		copy(b.buf[start:], src[:first])
		copy(b.buf[:end-len(b.buf)], src[first:n])
	}
	b.write.Store(w + uint64(n))
	return n
}

// Read copies up to len(dst) bytes out of the buffer into dst and advances
// the read pointer, returning the number of bytes copied. If dst is nil,
// Read instead discards up to n bytes (the advance-without-copy "NULL
// read" of the C ringbuffer contract) where n is given by discard; pass 0
// for discard when dst is non-nil. It must only be called from the single
// reader goroutine.
func (b *Buffer) Read(dst []byte, discard int) int {
	n := discard
	if dst != nil {
		n = len(dst)
	}
	space := b.ReadSpace()
	if n > space {
		n = space
	}
	if n == 0 {
		return 0
	}
	r := b.read.Load()
	if dst != nil {
		start := int(r & b.mask)
		end := start + n
		if end <= len(b.buf) {
			copy(dst[:n], b.buf[start:end])
		} else {
			first := len(b.buf) - start
			copy(dst[:first], b.buf[start:])
			copy(dst[first:n], b.buf[:end-len(b.buf)])
		}
	}
	b.read.Store(r + uint64(n))
	return n
}

// Peek copies up to len(dst) bytes without advancing the read pointer. It
// must only be called from the single reader goroutine.
func (b *Buffer) Peek(dst []byte) int {
	n := len(dst)
	space := b.ReadSpace()
	if n > space {
		n = space
	}
	if n == 0 {
		return 0
	}
	r := b.read.Load()
	start := int(r & b.mask)
	end := start + n
	if end <= len(b.buf) {
		copy(dst[:n], b.buf[start:end])
	} else {
		first := len(b.buf) - start
		copy(dst[:first], b.buf[start:])
		copy(dst[first:n], b.buf[:end-len(b.buf)])
	}
	return n
}
