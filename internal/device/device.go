// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package device

import (
	"context"
	"errors"

	"github.com/halcyon-audio/owbridge/internal/midi"
	"github.com/halcyon-audio/owbridge/internal/ring"
)

// ErrCGoRequired is returned by Enumerate when the binary was built without
// cgo: real USB enumeration only ships as a libusb cgo binding.
var ErrCGoRequired = errors.New("device: real USB enumeration requires cgo")

// DefaultPriority passed to Activate leaves the platform's default thread
// scheduling in place rather than requesting a specific realtime priority.
// Mirrors config.DefaultPriority without importing the config package.
const DefaultPriority = -1

// Descriptor is the static, enumeration-time shape of a device: its I/O
// channel counts, sample rate, and transfer granularity.
type Descriptor struct {
	Name    string
	Bus     uint8
	Address uint8

	// Inputs is the number of channels the device produces (O->H direction,
	// "outputs" in original_source's device_desc naming convention).
	Inputs int
	// Outputs is the number of channels the device accepts (H->O direction).
	Outputs int

	SampleRate        float64
	FramesPerTransfer int
}

// FrameSize returns the byte size of one interleaved frame of n channels of
// 32-bit float audio.
func FrameSize(channels int) int {
	return channels * 4
}

// DLLSnapshot is the device-side copy of the fields the resampler core
// needs to cross-correlate clock domains, guarded by the seqlock behind
// Handle's LoadSnapshot/StoreSnapshot
// rather than the fine-grained mutex the original C uses: a seqlock or
// double-buffered snapshot for the device DLL/latency group, no mutexes
// on the realtime path.
type DLLSnapshot struct {
	KDev uint64
}

// Handle is the contract the resampler core and host adapter depend on for
// the device side. It is implementation-agnostic: a FakeDevice satisfies
// it for tests and demos, and a real implementation would back it with
// libusb isochronous/bulk transfers.
type Handle interface {
	Descriptor() Descriptor

	Status() Status
	SetStatus(Status)

	// O2HAudio is the device-to-host audio ring: the device-side transfer
	// thread writes, the resampler core's O->H reader reads.
	O2HAudio() *ring.Buffer
	// H2OAudio is the host-to-device audio ring: the resampler core's H->O
	// path writes, the device-side transfer thread reads.
	H2OAudio() *ring.Buffer

	O2HMIDI() *midi.Ring
	H2OMIDI() *midi.Ring

	// H2OEnabled reports whether H->O audio consumption is currently
	// enabled, gated by the host adapter's port-connection observer.
	H2OEnabled() bool
	SetH2OEnabled(bool)

	// LoadSnapshot and StoreSnapshot access the device-side latency/DLL
	// snapshot fields under the device's own seqlock.
	LoadSnapshot() (h2oLatency, h2oMaxLatency int, dll DLLSnapshot)
	StoreSnapshot(h2oLatency, h2oMaxLatency int, dll DLLSnapshot)
	ResetLatencyMax()

	// Activate starts the device-side O->H and H->O transfer threads.
	// priority is the realtime scheduling priority to request for those
	// threads (config.DefaultPriority leaves the platform default in
	// place); an implementation that has no real OS threads to prioritize
	// is free to ignore it.
	Activate(ctx context.Context, priority int) error
	// Deactivate stops them; it is safe to call even if Activate was never
	// called or already returned an error.
	Deactivate() error

	// Wait blocks until the device signals shutdown, or until ctx is
	// canceled, whichever comes first.
	Wait(ctx context.Context) error

	// Close releases all resources. The Handle must not be used afterward.
	Close() error
}
