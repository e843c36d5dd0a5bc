// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build cgo

package hostaudio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rakyll/portmidi"

	"github.com/halcyon-audio/owbridge/internal/midi"
)

// midiInitOnce guards portmidi.Initialize, mirroring PortAudioServer's
// one-shot portaudio.Initialize call.
var (
	midiInitOnce sync.Once
	midiInitErr  error
)

// PortMIDIPort is the production MIDIPort backend, wrapping rakyll/portmidi's
// default input/output streams the same way PortAudioServer wraps
// gordonklaus/portaudio's default devices.
type PortMIDIPort struct {
	in  *portmidi.Stream
	out *portmidi.Stream
}

// NewPortMIDIPort opens the default host MIDI input and output devices, if
// any are available. Either side is left nil if no default device exists;
// WriteOut/ReadIn are then no-ops for that direction.
func NewPortMIDIPort() (MIDIPort, error) {
	midiInitOnce.Do(func() {
		midiInitErr = portmidi.Initialize()
	})
	if midiInitErr != nil {
		return nil, fmt.Errorf("hostaudio: portmidi init: %w", midiInitErr)
	}

	p := &PortMIDIPort{}
	if id := portmidi.DefaultInputDeviceID(); id >= 0 {
		in, err := portmidi.NewInputStream(id, 1024)
		if err != nil {
			return nil, fmt.Errorf("hostaudio: open midi input: %w", err)
		}
		p.in = in
	}
	if id := portmidi.DefaultOutputDeviceID(); id >= 0 {
		// Zero latency tells PortMidi to ignore event timestamps and output
		// immediately in arrival order; USB-MIDI's own device-clock
		// timestamps already carried the sample-accurate placement this
		// event needed, by the time it reaches O->H scheduling.
		out, err := portmidi.NewOutputStream(id, 1024, 0)
		if err != nil {
			return nil, fmt.Errorf("hostaudio: open midi output: %w", err)
		}
		p.out = out
	}
	return p, nil
}

// WriteOut writes events to the default MIDI output device, if one was
// found. PortMidi's stream is not frame-accurate the way a device ring
// buffer is: events are delivered in arrival order, not placed at their
// scheduled FrameOffset within the host cycle.
func (p *PortMIDIPort) WriteOut(events []midi.Scheduled) error {
	if p.out == nil || len(events) == 0 {
		return nil
	}
	pmEvents := make([]portmidi.Event, len(events))
	for i, ev := range events {
		var d1, d2 int64
		if len(ev.Data) > 0 {
			d1 = int64(ev.Data[0])
		}
		if len(ev.Data) > 1 {
			d2 = int64(ev.Data[1])
		}
		pmEvents[i] = portmidi.Event{
			Status: int64(ev.Status),
			Data1:  d1,
			Data2:  d2,
		}
	}
	return p.out.Write(pmEvents)
}

// ReadIn polls the default MIDI input device, if one was found, and
// transcribes any pending events.
func (p *PortMIDIPort) ReadIn() ([]HostMIDIEvent, error) {
	if p.in == nil {
		return nil, nil
	}
	ready, err := p.in.Poll()
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, nil
	}
	events, err := p.in.Read(1024)
	if err != nil {
		return nil, err
	}
	out := make([]HostMIDIEvent, len(events))
	for i, ev := range events {
		out[i] = HostMIDIEvent{
			Status: byte(ev.Status),
			Data:   []byte{byte(ev.Data1), byte(ev.Data2)},
		}
	}
	return out, nil
}

func (p *PortMIDIPort) Close() error {
	var joined []error
	if p.in != nil {
		if err := p.in.Close(); err != nil {
			joined = append(joined, err)
		}
	}
	if p.out != nil {
		if err := p.out.Close(); err != nil {
			joined = append(joined, err)
		}
	}
	return errors.Join(joined...)
}
