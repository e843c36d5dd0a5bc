// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pcm provides a zero-copy byte view for 32-bit float audio,
// generalizing the original fixed 2-channel (I/Q) int16 byte-view helpers
// to the arbitrary channel-count float32 frames that flow through the
// device-side rings. The host adapter and device transport both keep
// audio interleaved end to end, so there is no planar boundary to cross.
package pcm

import (
	"runtime"
	"unsafe"
)

const bytesPerSample = 4 // float32

// BytesView reinterprets x as a []byte of the same underlying array without
// copying, for handing interleaved float32 frames to a byte-granular ring
// buffer (internal/ring). It is "fast" in the same sense as a FastWrite
// helper: it avoids a copy by aliasing the backing array directly.
//
//go:nosplit
func BytesView(x []float32) []byte {
	if len(x) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&x[0])), len(x)*bytesPerSample)
	runtime.KeepAlive(x)
	return b
}

// FloatsView is the inverse of BytesView: it reinterprets b (whose length
// must be a multiple of 4) as a []float32 over the same backing array.
//
//go:nosplit
func FloatsView(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	f := unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/bytesPerSample)
	runtime.KeepAlive(b)
	return f
}
