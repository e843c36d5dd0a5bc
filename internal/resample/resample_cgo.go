// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build cgo

package resample

/*
#cgo pkg-config: samplerate
#include <stdlib.h>
#include <samplerate.h>

extern long owbridgeSRCCallback(void *cb_data, float **data);
*/
import "C"

import (
	"fmt"
	"runtime/cgo"
	"unsafe"
)

// libsamplerateConverter binds directly to libsamplerate's callback-driven
// SRC_STATE, grounded on original_source's use of src_callback_new /
// src_callback_read in resampler_o2j/resampler_j2o and on the cgo wrapper
// style of the retrieved libsamplerate.go example (malloc'd scratch, manual
// float32<->C.float copies rather than unsafe reinterpretation, since
// libsamplerate's own buffers are not addressable from Go).
type libsamplerateConverter struct {
	state    *C.SRC_STATE
	channels int
	handle   cgo.Handle
	reader   Reader

	cin     *C.float // malloc'd scratch fed to the reader callback
	cinCap  int       // capacity of cin, in frames
	scratch []float32 // Go-side staging buffer reused across calls
}

// New constructs a libsamplerate-backed Converter for the given quality
// (passed through as libsamplerate's converter_type) and channel count.
func New(quality Quality, channels int) (Converter, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("resample: channels must be > 0, got %d", channels)
	}

	c := &libsamplerateConverter{channels: channels}
	c.handle = cgo.NewHandle(c)

	var cerr C.int
	c.state = C.src_callback_new(
		(C.src_callback_t)(C.owbridgeSRCCallback),
		C.int(quality),
		C.int(channels),
		&cerr,
		unsafe.Pointer(c.handle),
	)
	if c.state == nil {
		c.handle.Delete()
		return nil, fmt.Errorf("resample: src_callback_new failed: %s", C.GoString(C.src_strerror(cerr)))
	}
	return c, nil
}

func (c *libsamplerateConverter) SetReader(r Reader) {
	c.reader = r
}

func (c *libsamplerateConverter) Channels() int {
	return c.channels
}

func (c *libsamplerateConverter) ensureCIn(frames int) {
	if frames <= c.cinCap {
		return
	}
	if c.cin != nil {
		C.free(unsafe.Pointer(c.cin))
	}
	n := C.size_t(frames * c.channels)
	c.cin = (*C.float)(C.malloc(n * C.size_t(unsafe.Sizeof(C.float(0)))))
	c.cinCap = frames
}

// pull is called synchronously by owbridgeSRCCallback from within
// src_callback_read. It copies whatever the installed Reader hands back
// into malloc'd memory so the pointer handed to libsamplerate never aliases
// Go-managed memory, and returns the number of frames copied.
func (c *libsamplerateConverter) pull() (*C.float, C.long) {
	if c.reader == nil {
		return nil, 0
	}
	buf := c.reader()
	n := len(buf) / c.channels
	if n == 0 {
		return nil, 0
	}
	c.ensureCIn(n)
	dst := unsafe.Slice(c.cin, n*c.channels)
	for i, v := range buf[:n*c.channels] {
		dst[i] = C.float(v)
	}
	return c.cin, C.long(n)
}

//export owbridgeSRCCallback
func owbridgeSRCCallback(cbData unsafe.Pointer, data **C.float) C.long {
	h := cgo.Handle(uintptr(cbData))
	conv, ok := h.Value().(*libsamplerateConverter)
	if !ok || conv == nil {
		return 0
	}
	ptr, n := conv.pull()
	*data = ptr
	return n
}

func (c *libsamplerateConverter) Process(ratio float64, outFrames int, out []float32) (int, error) {
	if outFrames <= 0 {
		return 0, nil
	}
	need := outFrames * c.channels
	if len(out) < need {
		return 0, fmt.Errorf("resample: out buffer too small: have %d, need %d", len(out), need)
	}
	if len(c.scratch) < need {
		c.scratch = make([]float32, need)
	}
	cout := (*C.float)(C.malloc(C.size_t(need) * C.size_t(unsafe.Sizeof(C.float(0)))))
	defer C.free(unsafe.Pointer(cout))

	gen := C.src_callback_read(c.state, C.double(ratio), C.long(outFrames), cout)
	if gen < 0 {
		var cerr C.int = C.src_error(c.state)
		return 0, fmt.Errorf("resample: src_callback_read failed: %s", C.GoString(C.src_strerror(cerr)))
	}

	n := int(gen) * c.channels
	slice := unsafe.Slice(cout, n)
	for i := 0; i < n; i++ {
		out[i] = float32(slice[i])
	}
	return int(gen), nil
}

func (c *libsamplerateConverter) Reset() error {
	if rc := C.src_reset(c.state); rc != 0 {
		return fmt.Errorf("resample: src_reset failed: %s", C.GoString(C.src_strerror(rc)))
	}
	return nil
}

func (c *libsamplerateConverter) Close() {
	if c.state != nil {
		C.src_delete(c.state)
		c.state = nil
	}
	if c.cin != nil {
		C.free(unsafe.Pointer(c.cin))
		c.cin = nil
	}
	c.handle.Delete()
}
