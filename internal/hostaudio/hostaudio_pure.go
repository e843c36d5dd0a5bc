// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !cgo

package hostaudio

// NewPortAudioServer always fails on a non-cgo build: PortAudio only ships
// a cgo binding. Use FakeServer for tests and demos on such builds.
func NewPortAudioServer() (Server, error) {
	return nil, ErrCGoRequired
}
