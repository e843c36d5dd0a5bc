// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package resample implements the asynchronous sample-rate converter: a
// pull-based converter whose ratio may change from one Process call to the
// next, mirroring the
// src_callback_read/src_callback_new contract of libsamplerate that
// original_source's jclient.c drives directly.
//
// Two implementations satisfy Converter: a cgo binding to libsamplerate
// (resample_cgo.go, built when cgo is enabled) and a pure-Go linear
// resampler fallback (resample_pure.go, built otherwise) for platforms
// without a C toolchain or libsamplerate available.
package resample

import "fmt"

// Quality mirrors libsamplerate's converter_type enum. The pure-Go fallback
// only implements linear
// interpolation and accepts any Quality value, matching libsamplerate's own
// behavior of degrading gracefully rather than rejecting quality settings
// it can still honor at reduced fidelity.
type Quality int

const (
	QualityBest Quality = iota
	QualityMedium
	QualityFastest
	QualityZeroOrderHold
	QualityLinear
)

func (q Quality) String() string {
	switch q {
	case QualityBest:
		return "best"
	case QualityMedium:
		return "medium"
	case QualityFastest:
		return "fastest"
	case QualityZeroOrderHold:
		return "zero-order-hold"
	case QualityLinear:
		return "linear"
	default:
		return fmt.Sprintf("quality(%d)", int(q))
	}
}

// Reader supplies the next chunk of interleaved input frames to a
// Converter, pull-style. It is called synchronously from within Process
// and may be called more than once per Process call. The returned slice is
// borrowed: it must remain valid until the next call to Reader (or until
// Process returns), matching the "pointer to caller-owned memory" contract
// of the reader callback this is modeled on.
//
// An empty (possibly nil) return means no more input is currently
// available; implementations must treat this as "yield what's been
// generated so far" rather than an error.
type Reader func() (interleaved []float32)

// Converter is an asynchronous sample-rate converter: the ratio may vary
// from one Process call to the next.
type Converter interface {
	// SetReader installs the pull-based input source. Must be called
	// before the first Process call.
	SetReader(r Reader)

	// Process pulls input from the installed Reader on demand and writes
	// up to outFrames generated frames, interleaved across Channels()
	// channels, into out (which must be at least outFrames*Channels()
	// long). It returns the number of frames actually generated, which is
	// less than outFrames only when the Reader ran out of input.
	Process(ratio float64, outFrames int, out []float32) (int, error)

	// Reset clears internal converter state (filter history) without
	// releasing any underlying resources.
	Reset() error

	// Channels returns the fixed channel count the Converter was created
	// with.
	Channels() int

	// Close releases any resources held by the Converter (C state, scratch
	// buffers). The Converter must not be used after Close.
	Close()
}
