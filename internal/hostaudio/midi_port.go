// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hostaudio

import "github.com/halcyon-audio/owbridge/internal/midi"

// MIDIPort is the host MIDI transport an Adapter delivers O->H MIDI events
// to and reads host MIDI input from for H->O forwarding. PortMIDIPort backs
// it in production (midi_port_cgo.go); an Adapter with no MIDIPort set
// still computes O->H scheduling and accepts PushH2OMIDI calls, it just has
// nowhere to send/receive host MIDI, which is what every test in this
// package exercises directly.
type MIDIPort interface {
	// WriteOut delivers this cycle's scheduled O->H MIDI events to the host
	// MIDI output port. Called from the realtime process callback; must not
	// block for long.
	WriteOut(events []midi.Scheduled) error
	// ReadIn drains host MIDI input received since the last call.
	ReadIn() ([]HostMIDIEvent, error)
	Close() error
}

// HostMIDIEvent is one host MIDI input message pending H->O forwarding via
// Adapter.PushH2OMIDI.
type HostMIDIEvent struct {
	Status byte
	Data   []byte
}
