// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dll implements the delay-locked loop that tracks the
// instantaneous ratio r = F_dev/F_host between the device clock domain and
// the host clock domain. It is a second-order control loop:
// a proportional term (gain b) and an integral term (gain c) derived from a
// bandwidth parameter ω and the nominal cycle period T = B/F_host.
//
// The C implementation this was distilled from (original_source's
// jclient.c) calls into a dll.c that was not available, so the loop-filter
// coefficients here are the standard second-order DLL formulation also
// used by jackd's own internal transport clock, not a line-for-line port.
package dll

import "math"

// DLL tracks F_dev/F_host from periodic (host-time, device-frame-count)
// observations. The zero value is not ready for use; call Init.
type DLL struct {
	fHost float64
	fDev  float64

	ratio        float64
	ratioAvg     float64
	lastRatioAvg float64
	ratioSum     float64

	b, c float64 // loop filter gains
	i2   float64 // integral term accumulator

	kHost uint64 // cumulative device frames consumed by the O->H path

	tPrev     float64
	lastT     float64
	kDevPrev  uint64
	kDevSnap  uint64
	err       float64
	firstTime bool
}

// STARTUP_TIME is the nominal number of seconds the loop spends in BOOT
// before its first average is computed.
const STARTUP_TIME = 5.0

// Init resets the DLL for a new nominal host sample rate, device sample
// rate, host block size, and USB transfer granularity. framesPerTransfer
// is accepted to mirror the C API and is not used.
func (d *DLL) Init(fHost, fDev float64, bufSize, framesPerTransfer int) {
	d.fHost = fHost
	d.fDev = fDev
	d.ratio = fDev / fHost
	d.ratioAvg = d.ratio
	d.lastRatioAvg = d.ratio
	d.ratioSum = 0
	d.i2 = 0
	d.kHost = 0
	d.tPrev = 0
	d.kDevPrev = 0
	d.kDevSnap = 0
	d.err = 0
	d.firstTime = true
	d.SetLoopFilter(1.0, bufSize, fHost)
}

// SetLoopFilter derives the proportional (b) and integral (c) gains from a
// bandwidth parameter ω and the nominal cycle period B/F_host. Larger ω
// converges faster but tracks noisier (used entering BOOT); smaller ω is
// slower but smoother (used entering RUN).
func (d *DLL) SetLoopFilter(omega float64, bufSize int, fHost float64) {
	t := float64(bufSize) / fHost
	w := 2 * math.Pi * omega
	d.b = math.Sqrt2 * w * t
	d.c = w * w * t * t
}

// LoadDeviceSnapshot records the device-side running frame counter
// observed under the device's snapshot spinlock/seqlock. It must be called
// once per cycle, before UpdateErr, so UpdateErr can cross-correlate the
// two clock domains.
func (d *DLL) LoadDeviceSnapshot(kDev uint64) {
	d.kDevSnap = kDev
}

// UpdateErr computes the phase error between the observed device frame
// count (set by the most recent LoadDeviceSnapshot call) and the count
// predicted from the elapsed host time at the nominal device rate.
func (d *DLL) UpdateErr(t float64) {
	d.lastT = t
	if d.firstTime {
		return
	}
	dt := t - d.tPrev
	predicted := float64(d.kDevPrev) + dt*d.fDev
	d.err = float64(d.kDevSnap) - predicted
}

// Update advances the loop filter integrators and the ratio estimate using
// the error computed by the last UpdateErr call, then commits the new
// reference point for the next cycle.
func (d *DLL) Update() {
	d.i2 += d.c * d.err
	d.ratio += (d.b*d.err + d.i2) / d.fHost
	d.ratioSum += d.ratio
	d.tPrev = d.lastT
	d.kDevPrev = d.kDevSnap
}

// FirstTimeRun initializes the filter integrators consistent with the
// current error so the first real Update() does not see a spurious jump.
// It must be called once, immediately after the first UpdateErr, when
// transitioning READY -> BOOT.
func (d *DLL) FirstTimeRun() {
	d.tPrev = d.lastT
	d.kDevPrev = d.kDevSnap
	d.i2 = 0
	d.err = 0
	d.firstTime = false
	d.ratioSum = 0
}

// CalcAvg computes the mean ratio over the last n Update() calls (tracked
// via a running sum reset on each call) and rotates it into RatioAvg,
// moving the previous average into LastRatioAvg. n must match the number
// of Update() calls since the previous CalcAvg (or FirstTimeRun).
func (d *DLL) CalcAvg(n int) {
	if n <= 0 {
		return
	}
	d.lastRatioAvg = d.ratioAvg
	d.ratioAvg = d.ratioSum / float64(n)
	d.ratioSum = 0
}

// Ratio returns the current instantaneous ratio estimate.
func (d *DLL) Ratio() float64 { return d.ratio }

// RatioAvg returns the most recently computed windowed average.
func (d *DLL) RatioAvg() float64 { return d.ratioAvg }

// LastRatioAvg returns the windowed average prior to the most recent one.
func (d *DLL) LastRatioAvg() float64 { return d.lastRatioAvg }

// Converged reports whether the TUNE->RUN convergence criterion is
// satisfied: |ratio_avg - last_ratio_avg| < thres.
func (d *DLL) Converged(thres float64) bool {
	return math.Abs(d.ratioAvg-d.lastRatioAvg) < thres
}

// KHost returns the cumulative device-frame counter advanced by
// IncrementHostFrames.
func (d *DLL) KHost() uint64 { return d.kHost }

// IncrementHostFrames advances the host-side cumulative device-frame
// counter by the number of device frames consumed in the current cycle's
// O->H read.
func (d *DLL) IncrementHostFrames(frames int) {
	d.kHost += uint64(frames)
}

// Rescale adjusts the ratio for a change of nominal host sample rate
// without a full re-Init: ratio := lastRatioAvg * fHostNew / fHostOld.
func (d *DLL) Rescale(fHostNew float64) {
	d.ratio = d.lastRatioAvg * fHostNew / d.fHost
	d.fHost = fHostNew
}
