// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package resampler implements the resampler core: the per-cycle state
// machine that drives a device's two async sample-rate converters from a
// delay-locked loop and moves audio between a device.Handle's rings and the
// host audio adapter's buffers. It is distilled from original_source's
// resampler_compute_ratios,
// resampler_o2j, resampler_j2o, resampler_reset_buffers and
// resampler_reset_dll, kept in their exact branch order and renamed to the
// O->H / H->O direction naming used throughout this module.
package resampler

import (
	"math"
	"sync/atomic"

	"github.com/halcyon-audio/owbridge/internal/device"
	"github.com/halcyon-audio/owbridge/internal/dll"
	"github.com/halcyon-audio/owbridge/internal/errs"
	"github.com/halcyon-audio/owbridge/internal/notify"
	"github.com/halcyon-audio/owbridge/internal/pcm"
	"github.com/halcyon-audio/owbridge/internal/resample"
)

// Status is the resampler core's own 4-state machine, distinct from
// device.Status's 6-state device-side enum: the two are related but
// advanced independently, with the resampler writing into the device's
// status at specific transitions.
type Status int

const (
	StatusReady Status = iota
	StatusBoot
	StatusTune
	StatusRun
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusBoot:
		return "boot"
	case StatusTune:
		return "tune"
	case StatusRun:
		return "run"
	default:
		return "unknown"
	}
}

// Constants mirror original_source's jclient.c #defines.
const (
	MaxReadFrames  = 5
	StartupTime    = 5.0
	LogTime        = 2.0
	RatioDiffThres = 1e-5
	MaxLatency     = 8192 * 2
)

// Resampler owns one device's clock-domain synchronization: the DLL, its two
// async SRCs, and the scratch buffers the per-cycle O2H/H2O/ComputeRatios
// calls operate on. The zero value is not usable; construct with New.
type Resampler struct {
	dev device.Handle

	o2hSRC resample.Converter
	h2oSRC resample.Converter

	o2hChannels int
	h2oChannels int

	dll dll.DLL

	sampleRate float64 // nominal host sample rate
	bufsize    int      // B: host block size in frames

	status Status

	o2hRatio float64
	h2oRatio float64

	logCycles        int
	logControlCycles int

	initialized bool // resettable per-resampler, not process-global

	xruns atomic.Int64

	notify *notify.Chan

	// O->H state.
	o2hOutBuf       []float32 // bufsize*o2hChannels
	o2hReadBuf      []float32 // MaxReadFrames*o2hChannels scratch for the reader
	lastO2HFrame    []float32 // o2hChannels: held on underrun
	lastFrames      int
	readingAtO2HEnd bool
	o2hLatency      int
	o2hMaxLatency   int

	// H->O state.
	h2oOutBuf      []float32 // 8*bufsize*h2oChannels headroom
	h2oQueue       []float32 // 8*bufsize*h2oChannels headroom
	h2oQueueFrames int
	h2oAux         []float32 // bufsize*h2oChannels: this cycle's host input, set by SetH2OInput
	h2oSilence     []float32 // bufsize*h2oChannels of zeros, reported when the queue is empty
	p2oAcc         float64
}

// New constructs a Resampler bound to dev, driving o2hSRC (device rate ->
// host rate) and h2oSRC (host rate -> device rate). The SRCs' Channels()
// must match the device descriptor's Inputs/Outputs respectively.
func New(dev device.Handle, o2hSRC, h2oSRC resample.Converter, n *notify.Chan) *Resampler {
	r := &Resampler{
		dev:         dev,
		o2hSRC:      o2hSRC,
		h2oSRC:      h2oSRC,
		o2hChannels: o2hSRC.Channels(),
		h2oChannels: h2oSRC.Channels(),
		notify:      n,
	}
	o2hSRC.SetReader(r.readO2H)
	h2oSRC.SetReader(r.readH2O)
	return r
}

// Status reports the resampler core's own 4-state status.
func (r *Resampler) Status() Status { return r.status }

// BufferFrames returns the current host block size B that ResetBuffers was
// last called with.
func (r *Resampler) BufferFrames() int { return r.bufsize }

// DeviceFrame returns the DLL's cumulative device-frame counter (dll.k_host
// in original_source), the device-clock frame corresponding to host frame 0
// of the current cycle, used to place O->H MIDI events.
func (r *Resampler) DeviceFrame() uint64 { return r.dll.KHost() }

// O2HRatio and H2ORatio report the SRC ratios currently in effect, useful
// for diagnostics and tests.
func (r *Resampler) O2HRatio() float64 { return r.o2hRatio }
func (r *Resampler) H2ORatio() float64 { return r.h2oRatio }

// Latencies reports the most recent O->H read-side latency sample and its
// running maximum, in bytes of ring read space. These are surfaced here rather than under the
// device's own seqlock since they are resampler-core bookkeeping, not
// device-snapshot state.
func (r *Resampler) Latencies() (latency, maxLatency int) {
	return r.o2hLatency, r.o2hMaxLatency
}

// IncrementXrun records an xrun observed by the host adapter: the xrun
// notification increments a shared atomic counter. It is the one Resampler
// method that may be called from a goroutine other than the one driving
// ComputeRatios/O2H/H2O.
func (r *Resampler) IncrementXrun() {
	r.xruns.Add(1)
	r.notifyEvent(errs.Xrun, "")
}

func (r *Resampler) takeXruns() int {
	return int(r.xruns.Swap(0))
}

func (r *Resampler) notifyEvent(kind errs.Kind, detail string) {
	if r.notify == nil {
		return
	}
	r.notify.Notify(notify.Event{Kind: kind, Detail: detail})
}

// ResetBuffers (re)allocates the scratch buffers for a new host block size B,
// handling the case where the host changes its buffer size mid-stream.
// O->H buffers are sized to exactly one block; H->O buffers and the queue
// carry 8x headroom so an async ratio excursion never overflows them before
// the next ComputeRatios cycle corrects it (original_source's
// resampler_reset_buffers: "The 8 times scale allow up to more than 192 kHz
// sample rate").
func (r *Resampler) ResetBuffers(bufsize int) {
	r.bufsize = bufsize

	r.o2hOutBuf = make([]float32, bufsize*r.o2hChannels)
	r.o2hReadBuf = make([]float32, MaxReadFrames*r.o2hChannels)
	r.lastO2HFrame = make([]float32, r.o2hChannels)
	r.lastFrames = 1
	r.readingAtO2HEnd = false
	r.o2hLatency = 0
	r.o2hMaxLatency = 0

	r.h2oOutBuf = make([]float32, 8*bufsize*r.h2oChannels)
	r.h2oQueue = make([]float32, 8*bufsize*r.h2oChannels)
	r.h2oQueueFrames = 0
	r.h2oAux = make([]float32, bufsize*r.h2oChannels)
	r.h2oSilence = make([]float32, bufsize*r.h2oChannels)
	r.p2oAcc = 0
}

// ResetDLL (re)initializes or rescales the DLL for a new nominal host
// sample rate, mirroring resampler_reset_dll's one-shot init flag: a full
// dll.Init only happens the first time this resampler is used, or whenever
// the device status has regressed below RUN; afterward, a sample-rate
// change just rescales the existing average ratio. The one-shot init flag
// is modeled as per-resampler state rather than process-global, since a
// process may own more than one device.
func (r *Resampler) ResetDLL(deviceSampleRate, newHostRate float64, framesPerTransfer int) {
	if !r.initialized || r.dev.Status() < device.StatusRun {
		r.dll.Init(newHostRate, deviceSampleRate, r.bufsize, framesPerTransfer)
		r.dev.SetStatus(device.StatusReady)
		r.initialized = true
	} else {
		r.dll.Rescale(newHostRate)
		r.dev.SetStatus(device.StatusReady)
		r.logCycles = 0
		r.logControlCycles = int(StartupTime * newHostRate / float64(r.bufsize))
	}
	r.o2hRatio = r.dll.Ratio()
	r.sampleRate = newHostRate
}

// ComputeRatios runs one cycle of the resampler core's state machine at
// host time t (seconds, matching dll.UpdateErr's convention). It returns
// true when the caller should skip this cycle's O2H/H2O audio work
// entirely (the READY->BOOT handshake, or a fatal negative-ratio fault),
// exactly replicating resampler_compute_ratios's early-return branches in
// order.
func (r *Resampler) ComputeRatios(t float64) bool {
	xruns := r.takeXruns()

	_, _, dllSnap := r.dev.LoadSnapshot()
	r.dll.LoadDeviceSnapshot(dllSnap.KDev)

	devStatus := r.dev.Status()

	if r.status == StatusReady && devStatus <= device.StatusBoot {
		if devStatus == device.StatusReady {
			r.dev.SetStatus(device.StatusBoot)
		}
		return true
	}

	if r.status == StatusReady && devStatus == device.StatusWait {
		r.dll.UpdateErr(t)
		r.dll.FirstTimeRun()

		r.dll.SetLoopFilter(1.0, r.bufsize, r.sampleRate)
		r.status = StatusBoot

		r.logCycles = 0
		r.logControlCycles = int(StartupTime * r.sampleRate / float64(r.bufsize))
		return false
	}

	if xruns > 0 {
		r.o2hRatio = r.dll.Ratio() * float64(1+xruns)
		r.h2oRatio = 1.0 / r.o2hRatio
		r.runO2H()

		r.dev.ResetLatencyMax()
		r.o2hMaxLatency = 0
		return false
	}

	r.dll.UpdateErr(t)
	r.dll.Update()

	if r.dll.Ratio() < 0.0 {
		r.dev.SetStatus(device.StatusError)
		r.notifyEvent(errs.NegativeRatio, "")
		return true
	}

	r.o2hRatio = r.dll.Ratio()
	r.h2oRatio = 1.0 / r.o2hRatio

	r.logCycles++
	if r.logCycles == r.logControlCycles {
		r.dll.CalcAvg(r.logControlCycles)
		r.logCycles = 0

		if r.status == StatusBoot {
			r.dll.SetLoopFilter(0.05, r.bufsize, r.sampleRate)
			r.status = StatusTune
			r.logControlCycles = int(LogTime * r.sampleRate / float64(r.bufsize))
		}

		if r.status == StatusTune && r.dll.Converged(RatioDiffThres) {
			r.dll.SetLoopFilter(0.02, r.bufsize, r.sampleRate)
			r.status = StatusRun
			r.dev.SetStatus(device.StatusRun)
		}
	}

	return false
}

// O2H runs the device->host SRC for one cycle and returns the generated
// interleaved frames (valid until the next Resampler call). Call once per
// cycle, after ComputeRatios returns false.
func (r *Resampler) O2H() []float32 {
	r.runO2H()
	return r.o2hOutBuf
}

func (r *Resampler) runO2H() {
	gen, err := r.o2hSRC.Process(r.o2hRatio, r.bufsize, r.o2hOutBuf)
	if err != nil || gen != r.bufsize {
		r.notifyEvent(errs.UnexpectedSrcOutput, "o2h")
	}
}

// SetH2OInput stages this cycle's interleaved host input frames (bufsize
// frames of h2oChannels each) to be queued by the next H2O call.
func (r *Resampler) SetH2OInput(interleaved []float32) {
	copy(r.h2oAux, interleaved)
}

// H2O appends the staged host input to the resampling queue, runs the
// host->device SRC, and writes the result to the device's H->O ring if the
// resampler core has reached RUN; otherwise the generated audio is
// discarded, since H->O audio is only written to the device once the
// resampler has reached RUN. Call once per cycle, only when the host
// adapter's H->O input is enabled.
func (r *Resampler) H2O() {
	copy(r.h2oQueue[r.h2oQueueFrames*r.h2oChannels:], r.h2oAux)
	r.h2oQueueFrames += r.bufsize

	r.p2oAcc += float64(r.bufsize) * (r.h2oRatio - 1.0)
	inc := int(math.Trunc(r.p2oAcc))
	r.p2oAcc -= float64(inc)
	frames := r.bufsize + inc
	if frames < 0 {
		frames = 0
	}

	need := frames * r.h2oChannels
	if len(r.h2oOutBuf) < need {
		r.h2oOutBuf = make([]float32, need)
	}

	gen, err := r.h2oSRC.Process(r.h2oRatio, frames, r.h2oOutBuf)
	if err != nil || gen != frames {
		r.notifyEvent(errs.UnexpectedSrcOutput, "h2o")
	}

	if r.status < StatusRun {
		return
	}

	out := r.h2oOutBuf[:gen*r.h2oChannels]
	bytes := pcm.BytesView(out)
	dst := r.dev.H2OAudio()
	if len(bytes) <= dst.WriteSpace() {
		dst.Write(bytes)
	} else {
		r.notifyEvent(errs.RingOverflow, "h2o")
	}
}

// readO2H is the pull-based Reader the O->H SRC calls on demand. It
// reproduces resampler_o2p_reader's two modes: catch-up (producing silence
// until the device ring holds at least one buffer's worth, then discarding
// every whole frame in it before producing real output) and
// drain-tail (steady-state reads, holding the last frame across an
// underrun).
func (r *Resampler) readO2H() []float32 {
	ringBuf := r.dev.O2HAudio()
	frameBytes := device.FrameSize(r.o2hChannels)
	rs := ringBuf.ReadSpace()

	if r.readingAtO2HEnd {
		r.o2hLatency = rs
		if r.o2hLatency > r.o2hMaxLatency {
			r.o2hMaxLatency = r.o2hLatency
		}

		if rs >= frameBytes {
			frames := rs / frameBytes
			if frames > MaxReadFrames {
				frames = MaxReadFrames
			}
			n := ringBuf.Read(pcm.BytesView(r.o2hReadBuf[:frames*r.o2hChannels]), 0)
			got := n / 4 / r.o2hChannels
			if got > 0 {
				copy(r.lastO2HFrame, r.o2hReadBuf[(got-1)*r.o2hChannels:got*r.o2hChannels])
			}
			r.lastFrames = got
			r.dll.IncrementHostFrames(got)
			return r.o2hReadBuf[:got*r.o2hChannels]
		}

		r.notifyEvent(errs.RingUnderrun, "o2h")
		if r.lastFrames > 1 {
			copy(r.o2hReadBuf[0:r.o2hChannels], r.lastO2HFrame)
		}
		for f := 1; f < MaxReadFrames; f++ {
			copy(r.o2hReadBuf[f*r.o2hChannels:(f+1)*r.o2hChannels], r.o2hReadBuf[0:r.o2hChannels])
		}
		r.lastFrames = MaxReadFrames
		r.dll.IncrementHostFrames(MaxReadFrames)
		return r.o2hReadBuf[:MaxReadFrames*r.o2hChannels]
	}

	o2hBufSize := r.bufsize * frameBytes
	if rs >= o2hBufSize {
		discard := (rs / frameBytes) * frameBytes
		ringBuf.Read(nil, discard)
		r.readingAtO2HEnd = true
	}
	for i := range r.o2hReadBuf {
		r.o2hReadBuf[i] = 0
	}
	r.lastFrames = MaxReadFrames
	r.dll.IncrementHostFrames(MaxReadFrames)
	return r.o2hReadBuf[:MaxReadFrames*r.o2hChannels]
}

// readH2O is the pull-based Reader the H->O SRC calls on demand. If the
// queue holds staged frames, they are handed over once and the queue is
// cleared; otherwise a full block of silence is reported so the SRC keeps
// producing its requested frame count without stalling
// (resampler_p2o_reader's empty-queue branch).
func (r *Resampler) readH2O() []float32 {
	if r.h2oQueueFrames == 0 {
		return r.h2oSilence
	}
	frames := r.h2oQueueFrames
	out := r.h2oQueue[:frames*r.h2oChannels]
	r.h2oQueueFrames = 0
	return out
}
