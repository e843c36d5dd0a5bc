// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hostaudio

import (
	"fmt"

	"github.com/halcyon-audio/owbridge/internal/device"
	"github.com/halcyon-audio/owbridge/internal/errs"
	"github.com/halcyon-audio/owbridge/internal/midi"
	"github.com/halcyon-audio/owbridge/internal/notify"
	"github.com/halcyon-audio/owbridge/internal/resampler"
)

// Adapter wires a Server, a device.Handle, and a resampler.Resampler
// together and installs the realtime process callback that replicates
// jclient_process_cb's strict ordering: compute_ratios, O->H audio, H->O
// audio, O->H MIDI, H->O MIDI.
type Adapter struct {
	server   Server
	dev      device.Handle
	res      *resampler.Resampler
	notify   *notify.Chan
	midiPort MIDIPort

	devFramePeriodUS float64 // device clock microseconds-per-frame, for MIDI scheduling
}

// NewAdapter constructs an Adapter. devSampleRate is the device's nominal
// clock rate, used to convert MIDI device timestamps (microseconds) to
// device frame numbers for host-cycle scheduling.
func NewAdapter(server Server, dev device.Handle, res *resampler.Resampler, n *notify.Chan, devSampleRate float64) *Adapter {
	a := &Adapter{
		server:           server,
		dev:              dev,
		res:              res,
		notify:           n,
		devFramePeriodUS: 1.0e6 / devSampleRate,
	}
	server.SetProcess(a.process)
	server.SetXrunCallback(res.IncrementXrun)
	server.SetShutdownCallback(a.shutdown)
	dev.SetH2OEnabled(server.H2OEnabled())
	return a
}

// SetMIDIPort installs the host MIDI transport. Without one, o2hMIDI's
// result is computed but never delivered and host MIDI input never reaches
// PushH2OMIDI, which is the default state every test in this package
// exercises.
func (a *Adapter) SetMIDIPort(p MIDIPort) {
	a.midiPort = p
}

func (a *Adapter) shutdown() {
	a.dev.SetStatus(device.StatusStop)
	o2hLatency, o2hMaxLatency := a.res.Latencies()
	h2oLatency, h2oMaxLatency, _ := a.dev.LoadSnapshot()
	a.notifyEvent(errs.ShutdownRequested, fmt.Sprintf(
		"final latencies (bytes): o2h=%d (max %d) h2o=%d (max %d)",
		o2hLatency, o2hMaxLatency, h2oLatency, h2oMaxLatency,
	))
}

func (a *Adapter) notifyEvent(kind errs.Kind, detail string) {
	if a.notify == nil {
		return
	}
	a.notify.Notify(notify.Event{Kind: kind, Detail: detail})
}

// process is the Server's installed ProcessFn. It must not allocate beyond
// what the persistent pcm helpers already amortize, and must never block.
func (a *Adapter) process(currentFrameTime float64, in, out []float32) {
	if a.res.ComputeRatios(currentFrameTime) {
		return
	}

	o2h := a.res.O2H()
	copy(out, o2h)

	if a.dev.H2OEnabled() {
		a.res.SetH2OInput(in)
		a.res.H2O()
	}

	a.deliverO2HMIDI()
	a.pollH2OMIDI()
}

// deliverO2HMIDI writes this cycle's scheduled device->host MIDI events to
// the host MIDI output port, if one is attached. Errors are swallowed: the
// realtime callback must never block or propagate failures back to the host
// server, matching how xrun/shutdown conditions are reported via notify
// rather than returned.
func (a *Adapter) deliverO2HMIDI() {
	scheduled := a.o2hMIDI()
	if a.midiPort == nil || len(scheduled) == 0 {
		return
	}
	if err := a.midiPort.WriteOut(scheduled); err != nil {
		a.notifyEvent(errs.MidiWriteFailed, err.Error())
	}
}

// pollH2OMIDI drains host MIDI input from the attached MIDI port and pushes
// each event onto the device's H->O ring, stamping it with the device's
// current frame time since host MIDI input carries no device-clock
// timestamp of its own.
func (a *Adapter) pollH2OMIDI() {
	if a.midiPort == nil {
		return
	}
	events, err := a.midiPort.ReadIn()
	if err != nil {
		a.notifyEvent(errs.MidiReadFailed, err.Error())
		return
	}
	deviceTimeUS := uint64(float64(a.res.DeviceFrame()) * a.devFramePeriodUS)
	for _, ev := range events {
		a.PushH2OMIDI(deviceTimeUS, ev.Status, ev.Data)
	}
}

// o2hMIDI forwards queued device->host MIDI events into a scheduled slice
// (jclient_o2p_midi), consuming only the monotone-ordered prefix of the
// ring so a delayed/out-of-order tail waits for the next cycle.
func (a *Adapter) o2hMIDI() []midi.Scheduled {
	ring := a.dev.O2HMIDI()
	pending := ring.PeekAll()
	if len(pending) == 0 {
		return nil
	}

	scheduled, consumed := midi.ScheduleToHost(pending, a.res.DeviceFrame(), a.devFramePeriodUS, a.res.BufferFrames())
	ring.Drop(consumed)
	return scheduled
}

// PushH2OMIDI encodes a host MIDI message (status + data bytes) and pushes
// it onto the device's H->O MIDI ring, for the host-side caller to invoke
// as it receives MIDI input events. Silently drops unrecognized statuses
// and logs MidiRingOverflow on a full ring.
func (a *Adapter) PushH2OMIDI(deviceTimeUS uint64, status byte, data []byte) {
	if a.res.Status() < resampler.StatusRun {
		return
	}
	ev, ok := midi.EncodeHostToDevice(deviceTimeUS, status, data)
	if !ok {
		return
	}
	if !a.dev.H2OMIDI().Push(ev) {
		a.notifyEvent(errs.MidiRingOverflow, "h2o")
	}
}

// Open opens the host server at the given host sample rate and block size
// with the device's channel counts, resizes the resampler's scratch buffers
// accordingly, and resets its DLL for the device and host rates.
func (a *Adapter) Open(sampleRate float64, bufferSize int) error {
	desc := a.dev.Descriptor()
	if err := a.server.Open(sampleRate, bufferSize, desc.Outputs, desc.Inputs); err != nil {
		return err
	}
	a.res.ResetBuffers(bufferSize)
	a.res.ResetDLL(desc.SampleRate, sampleRate, desc.FramesPerTransfer)
	a.dev.SetH2OEnabled(a.server.H2OEnabled())
	return nil
}

func (a *Adapter) Start() error { return a.server.Start() }
func (a *Adapter) Stop() error  { return a.server.Stop() }
func (a *Adapter) Close() error { return a.server.Close() }
