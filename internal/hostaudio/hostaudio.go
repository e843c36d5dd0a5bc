// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hostaudio implements the host audio adapter: the glue between a
// host audio server's realtime callback and the resampler core, replicating
// original_source/src/jclient.c's jclient_process_cb ordering — compute
// ratios, then O->H audio, then H->O audio, then O->H MIDI, then H->O
// MIDI — against an abstract Server rather than JACK directly.
package hostaudio

import "errors"

// ErrCGoRequired is returned by NewPortAudioServer when the binary was built
// without cgo, since the concrete backend is a cgo binding to PortAudio.
var ErrCGoRequired = errors.New("hostaudio: PortAudio backend requires cgo")

// ProcessFn is the realtime audio callback a Server drives once per cycle.
// currentFrameTime is the host clock time (seconds) at the start of the
// cycle, matching dll.UpdateErr's convention; in is the interleaved host
// input for this cycle (nil/empty if input is disabled or unavailable);
// out is the interleaved buffer the callback must fill with exactly
// BufferSize() times the output channel count passed to Open samples.
type ProcessFn func(currentFrameTime float64, in, out []float32)

// Server is the host audio transport the Adapter drives. A PortAudioServer
// backs it in production (hostaudio_cgo.go); FakeServer backs it in tests.
type Server interface {
	// Open configures and opens (but does not start) a full-duplex stream
	// at the given sample rate, block size, and channel counts.
	Open(sampleRate float64, bufferSize, inChannels, outChannels int) error

	// SetProcess installs the realtime callback. Must be called before
	// Start.
	SetProcess(fn ProcessFn)
	// SetXrunCallback installs a callback invoked whenever the server
	// detects a buffer under/overrun.
	SetXrunCallback(fn func())
	// SetShutdownCallback installs a callback invoked when the server
	// shuts the stream down out-of-band.
	SetShutdownCallback(fn func())

	Start() error
	Stop() error
	Close() error

	SampleRate() float64
	BufferSize() int

	// H2OEnabled reports whether H->O (host-to-device) audio should be
	// consumed this cycle. Under PortAudio there is no per-port connection
	// graph to observe, so this instead reflects whether the stream was
	// opened with a non-zero input channel count, evaluated once at
	// Open/Start rather than per-cycle.
	H2OEnabled() bool
}
