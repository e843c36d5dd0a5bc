// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build cgo

package device

/*
#cgo pkg-config: libusb-1.0
#include <stdlib.h>
#include <libusb-1.0/libusb.h>
*/
import "C"

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/halcyon-audio/owbridge/internal/midi"
	"github.com/halcyon-audio/owbridge/internal/ring"
)

// usbAudioClass is the USB-IF class code for Audio/Video devices (bDeviceClass
// or the audio control interface's bInterfaceClass).
const usbAudioClass = 0x01

// libusbContext wraps a single libusb_context, shared by every libusbDevice
// enumerated from it. Grounded on the handle-registry idiom in api_cgo.go
// (one mutex-guarded handle, explicit Open/Close lifecycle) and the
// runtime/cgo.Handle pattern used by resample_cgo.go's callback trampoline.
type libusbContext struct {
	mu  sync.Mutex
	ctx *C.libusb_context
}

// OpenLibusbContext initializes a new libusb session.
func OpenLibusbContext() (*libusbContext, error) {
	var ctx *C.libusb_context
	if rc := C.libusb_init(&ctx); rc != 0 {
		return nil, fmt.Errorf("device: libusb_init failed: %d", int(rc))
	}
	return &libusbContext{ctx: ctx}, nil
}

// Close releases the libusb session. No libusbDevice obtained from this
// context may be used afterward.
func (c *libusbContext) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx != nil {
		C.libusb_exit(c.ctx)
		c.ctx = nil
	}
}

var (
	processCtxOnce sync.Once
	processCtx     *libusbContext
	processCtxErr  error
)

// Enumerate lists real USB audio-class devices using a process-wide libusb
// context opened lazily on first use. It is the cgo-backed counterpart to
// device_pure.go's stub, used by cmd/owbridge's device listing and the
// production enumerate function wired into a session.
func Enumerate() ([]Handle, error) {
	processCtxOnce.Do(func() {
		processCtx, processCtxErr = OpenLibusbContext()
	})
	if processCtxErr != nil {
		return nil, processCtxErr
	}
	return processCtx.Enumerate()
}

// Enumerate lists attached USB devices whose device descriptor declares the
// audio class, returning one Handle per match. Interface descriptors are not
// inspected, so a device that declares its class per interface is not
// listed. It does not open or claim anything until Activate is called on
// the returned Handle.
func (c *libusbContext) Enumerate() ([]Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var list **C.libusb_device
	n := C.libusb_get_device_list(c.ctx, &list)
	if n < 0 {
		return nil, fmt.Errorf("device: libusb_get_device_list failed: %d", int(n))
	}
	defer C.libusb_free_device_list(list, 1)

	devs := unsafe.Slice(list, int(n))
	var out []Handle
	for _, d := range devs {
		var desc C.struct_libusb_device_descriptor
		if rc := C.libusb_get_device_descriptor(d, &desc); rc != 0 {
			continue
		}
		if desc.bDeviceClass != usbAudioClass {
			continue
		}
		out = append(out, &libusbDevice{
			ctx:  c,
			dev:  d,
			desc: Descriptor{
				Name:    fmt.Sprintf("usb:%04x:%04x", uint16(desc.idVendor), uint16(desc.idProduct)),
				Bus:     uint8(C.libusb_get_bus_number(d)),
				Address: uint8(C.libusb_get_device_address(d)),
				// Channel counts, sample rate, and transfer granularity are
				// only known once the audio class interface's alternate
				// settings are parsed during Activate; enumeration alone
				// cannot populate them.
			},
		})
	}
	return out, nil
}

// libusbDevice is a real-hardware Handle backed by a claimed libusb
// interface. It is a transport skeleton: it owns device open/close and the
// rings/status word the resampler core and host adapter depend on, but does
// not yet submit isochronous transfers on the O->H/H->O endpoints.
type libusbDevice struct {
	ctx  *libusbContext
	dev  *C.libusb_device
	desc Descriptor

	handle *C.libusb_device_handle

	status     atomic.Int32
	h2oEnabled atomic.Bool

	o2hAudio *ring.Buffer
	h2oAudio *ring.Buffer
	o2hMIDI  *midi.Ring
	h2oMIDI  *midi.Ring

	seq           atomic.Uint64
	h2oLatency    int
	h2oMaxLatency int
	dllSnap       DLLSnapshot

	stop chan struct{}
	wg   sync.WaitGroup
}

func (d *libusbDevice) Descriptor() Descriptor { return d.desc }

func (d *libusbDevice) Status() Status     { return Status(d.status.Load()) }
func (d *libusbDevice) SetStatus(s Status) { d.status.Store(int32(s)) }

func (d *libusbDevice) O2HAudio() *ring.Buffer { return d.o2hAudio }
func (d *libusbDevice) H2OAudio() *ring.Buffer { return d.h2oAudio }
func (d *libusbDevice) O2HMIDI() *midi.Ring    { return d.o2hMIDI }
func (d *libusbDevice) H2OMIDI() *midi.Ring    { return d.h2oMIDI }

func (d *libusbDevice) H2OEnabled() bool     { return d.h2oEnabled.Load() }
func (d *libusbDevice) SetH2OEnabled(v bool) { d.h2oEnabled.Store(v) }

func (d *libusbDevice) StoreSnapshot(h2oLatency, h2oMaxLatency int, dll DLLSnapshot) {
	d.seq.Add(1)
	d.h2oLatency = h2oLatency
	d.h2oMaxLatency = h2oMaxLatency
	d.dllSnap = dll
	d.seq.Add(1)
}

func (d *libusbDevice) LoadSnapshot() (h2oLatency, h2oMaxLatency int, dll DLLSnapshot) {
	for {
		s1 := d.seq.Load()
		if s1&1 != 0 {
			continue
		}
		h2oLatency, h2oMaxLatency, dll = d.h2oLatency, d.h2oMaxLatency, d.dllSnap
		if d.seq.Load() == s1 {
			return
		}
	}
}

func (d *libusbDevice) ResetLatencyMax() { d.h2oMaxLatency = 0 }

const (
	libusbRingFrames = 128 * 64
	libusbMIDIEvents = 64
)

// Activate opens the device, claims its first interface, allocates the
// audio/MIDI rings, and starts the libusb event-handling loop. The actual
// isochronous transfer submission for the O->H/H->O endpoints is not yet
// implemented; see the TODO below.
func (d *libusbDevice) Activate(ctx context.Context, priority int) error {
	var h *C.libusb_device_handle
	if e := C.libusb_open(d.dev, &h); e != 0 {
		return fmt.Errorf("device: libusb_open failed: %d", int(e))
	}
	d.handle = h

	if e := C.libusb_claim_interface(d.handle, 0); e != 0 {
		C.libusb_close(d.handle)
		d.handle = nil
		return fmt.Errorf("device: libusb_claim_interface failed: %d", int(e))
	}

	frameSize := FrameSize(d.desc.Inputs)
	if frameSize == 0 {
		frameSize = FrameSize(2)
	}
	d.o2hAudio = ring.New(libusbRingFrames * frameSize)
	d.h2oAudio = ring.New(libusbRingFrames * frameSize)
	d.o2hMIDI = midi.NewRing(libusbMIDIEvents)
	d.h2oMIDI = midi.NewRing(libusbMIDIEvents)

	d.status.Store(int32(StatusWait))
	d.stop = make(chan struct{})
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// Pin to this OS thread before requesting realtime scheduling:
		// sched_setscheduler(2) applies to the calling thread, and Go would
		// otherwise be free to migrate this goroutine to an unprioritized
		// thread on its next blocking call.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		// Best-effort, same as jclient.c's set_rt_priority: a failure here
		// (e.g. insufficient privilege for SCHED_FIFO) is not fatal to the
		// transfer loop.
		_ = setCallingThreadRealtimePriority(priority)

		// TODO: submit and resubmit isochronous transfers for the device's
		// O->H and H->O audio endpoints and the MIDI interface's bulk
		// endpoints, pushing/pulling the rings above from their completion
		// callbacks. For now this loop only pumps libusb's event handling
		// so cancellation (Deactivate) and any control transfers succeed.
		tv := C.struct_timeval{tv_sec: 0, tv_usec: 100000}
		for {
			select {
			case <-d.stop:
				return
			case <-ctx.Done():
				return
			default:
				C.libusb_handle_events_timeout(d.ctx.ctx, &tv)
			}
		}
	}()
	return nil
}

func (d *libusbDevice) Deactivate() error {
	if d.stop != nil {
		close(d.stop)
		d.wg.Wait()
		d.stop = nil
	}
	if d.handle != nil {
		C.libusb_release_interface(d.handle, 0)
		C.libusb_close(d.handle)
		d.handle = nil
	}
	d.status.Store(int32(StatusStop))
	return nil
}

func (d *libusbDevice) Wait(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if d.Status() == StatusStop || d.Status() == StatusError {
				return nil
			}
		}
	}
}

func (d *libusbDevice) Close() error {
	return d.Deactivate()
}
