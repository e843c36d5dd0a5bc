// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !cgo

package hostaudio

// NewPortMIDIPort always fails on a non-cgo build: PortMidi only ships a
// cgo binding.
func NewPortMIDIPort() (MIDIPort, error) {
	return nil, ErrCGoRequired
}
