// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package device

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/halcyon-audio/owbridge/internal/midi"
	"github.com/halcyon-audio/owbridge/internal/pcm"
	"github.com/halcyon-audio/owbridge/internal/ring"
)

// FakeDevice is an in-memory Handle implementation for tests and demos. It
// synthesizes an O->H sine wave at its own pace and discards whatever
// arrives on H->O, standing in for the USB transport that is out of scope
// for this repo.
type FakeDevice struct {
	desc Descriptor

	status atomic.Int32

	o2hAudio *ring.Buffer
	h2oAudio *ring.Buffer
	o2hMIDI  *midi.Ring
	h2oMIDI  *midi.Ring

	h2oEnabled atomic.Bool

	seq           atomic.Uint64
	h2oLatency    int
	h2oMaxLatency int
	dllSnap       DLLSnapshot

	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	cancel context.CancelFunc
	wg     sync.WaitGroup

	sineHz float64
	phase  float64
}

// NewFakeDevice constructs a FakeDevice. ringFrames sizes the audio rings
// in frames (converted to bytes per the descriptor's channel counts);
// midiEvents sizes the MIDI rings in events; sineHz is the frequency of the
// synthetic O->H test tone.
func NewFakeDevice(desc Descriptor, ringFrames, midiEvents int, sineHz float64) *FakeDevice {
	return &FakeDevice{
		desc:       desc,
		o2hAudio:   ring.New(ringFrames * FrameSize(desc.Inputs)),
		h2oAudio:   ring.New(ringFrames * FrameSize(desc.Outputs)),
		o2hMIDI:    midi.NewRing(midiEvents),
		h2oMIDI:    midi.NewRing(midiEvents),
		shutdownCh: make(chan struct{}),
		sineHz:     sineHz,
	}
}

func (d *FakeDevice) Descriptor() Descriptor { return d.desc }

func (d *FakeDevice) Status() Status { return Status(d.status.Load()) }

func (d *FakeDevice) SetStatus(s Status) { d.status.Store(int32(s)) }

func (d *FakeDevice) O2HAudio() *ring.Buffer { return d.o2hAudio }
func (d *FakeDevice) H2OAudio() *ring.Buffer { return d.h2oAudio }

func (d *FakeDevice) O2HMIDI() *midi.Ring { return d.o2hMIDI }
func (d *FakeDevice) H2OMIDI() *midi.Ring { return d.h2oMIDI }

func (d *FakeDevice) H2OEnabled() bool     { return d.h2oEnabled.Load() }
func (d *FakeDevice) SetH2OEnabled(v bool) { d.h2oEnabled.Store(v) }

// LoadSnapshot and StoreSnapshot implement a seqlock rather than a mutex:
// the writer bumps an odd/even sequence counter around the write, and the
// reader retries if it observed a write in progress or in flight.
func (d *FakeDevice) StoreSnapshot(h2oLatency, h2oMaxLatency int, dll DLLSnapshot) {
	d.seq.Add(1)
	d.h2oLatency = h2oLatency
	d.h2oMaxLatency = h2oMaxLatency
	d.dllSnap = dll
	d.seq.Add(1)
}

func (d *FakeDevice) LoadSnapshot() (h2oLatency, h2oMaxLatency int, dll DLLSnapshot) {
	for {
		s1 := d.seq.Load()
		if s1&1 != 0 {
			continue
		}
		h2oLatency = d.h2oLatency
		h2oMaxLatency = d.h2oMaxLatency
		dll = d.dllSnap
		s2 := d.seq.Load()
		if s1 == s2 {
			return h2oLatency, h2oMaxLatency, dll
		}
	}
}

func (d *FakeDevice) ResetLatencyMax() {
	lat, _, dll := d.LoadSnapshot()
	d.StoreSnapshot(lat, 0, dll)
}

func (d *FakeDevice) Activate(ctx context.Context, priority int) error {
	// FakeDevice synthesizes audio on ordinary goroutines; it has no real
	// transfer threads to apply a realtime scheduling priority to.
	_ = priority
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(2)
	go d.runO2H(runCtx)
	go d.runH2O(runCtx)
	return nil
}

func (d *FakeDevice) Deactivate() error {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	return nil
}

// Shutdown signals Wait to return and moves the device to StatusStop; it is
// idempotent.
func (d *FakeDevice) Shutdown() {
	d.shutdownOnce.Do(func() {
		d.SetStatus(StatusStop)
		close(d.shutdownCh)
	})
}

func (d *FakeDevice) Wait(ctx context.Context) error {
	select {
	case <-d.shutdownCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *FakeDevice) Close() error {
	d.o2hAudio.Close()
	d.h2oAudio.Close()
	return nil
}

func (d *FakeDevice) runO2H(ctx context.Context) {
	defer d.wg.Done()

	frames := d.desc.FramesPerTransfer
	if frames <= 0 {
		frames = 64
	}
	channels := d.desc.Inputs
	if channels <= 0 {
		return
	}
	rate := d.desc.SampleRate
	if rate <= 0 {
		rate = 48000
	}
	period := time.Duration(float64(frames) / rate * float64(time.Second))
	if period <= 0 {
		period = time.Millisecond
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	buf := make([]float32, frames*channels)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for f := 0; f < frames; f++ {
				s := float32(math.Sin(2 * math.Pi * d.sineHz * d.phase / rate))
				d.phase++
				for c := 0; c < channels; c++ {
					buf[f*channels+c] = s
				}
			}
			d.o2hAudio.Write(pcm.BytesView(buf))
		}
	}
}

func (d *FakeDevice) runH2O(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for d.h2oAudio.ReadSpace() > 0 {
				if d.h2oAudio.Read(nil, d.h2oAudio.ReadSpace()) == 0 {
					break
				}
			}
		}
	}
}
