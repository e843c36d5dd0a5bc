// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build cgo

package hostaudio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioServer is the production Server backend, a thin adapter over
// gordonklaus/portaudio's callback-based full-duplex Stream (grounded in
// the pack's richinsley-goshadertoy audio.Microphone: initialize, pick
// default host API devices, OpenStream with a Go callback, Start/Close).
// The callbacks installed with SetXrunCallback and SetShutdownCallback are
// stored but never invoked: this backend reports no xruns and no
// out-of-band shutdowns.
type PortAudioServer struct {
	mu sync.Mutex

	stream *portaudio.Stream

	sampleRate  float64
	bufferSize  int
	inChannels  int
	outChannels int

	process  ProcessFn
	onXrun   func()
	onDown   func()
	openedAt float64
}

// NewPortAudioServer initializes the PortAudio library and returns a Server
// ready to Open. Callers must call Close exactly once when done.
func NewPortAudioServer() (Server, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("hostaudio: portaudio init: %w", err)
	}
	return &PortAudioServer{}, nil
}

func (s *PortAudioServer) Open(sampleRate float64, bufferSize, inChannels, outChannels int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	host, err := portaudio.DefaultHostApi()
	if err != nil {
		return fmt.Errorf("hostaudio: default host api: %w", err)
	}

	params := portaudio.HighLatencyParameters(host.DefaultInputDevice, host.DefaultOutputDevice)
	params.SampleRate = sampleRate
	params.FramesPerBuffer = bufferSize
	params.Input.Channels = inChannels
	params.Output.Channels = outChannels

	stream, err := portaudio.OpenStream(params, s.callback)
	if err != nil {
		return fmt.Errorf("hostaudio: open stream: %w", err)
	}

	s.stream = stream
	s.sampleRate = sampleRate
	s.bufferSize = bufferSize
	s.inChannels = inChannels
	s.outChannels = outChannels
	return nil
}

func (s *PortAudioServer) callback(in, out []float32) {
	if s.process == nil {
		for i := range out {
			out[i] = 0
		}
		return
	}
	t := s.stream.Time().Seconds()
	s.process(t, in, out)
}

func (s *PortAudioServer) SetProcess(fn ProcessFn)         { s.process = fn }
func (s *PortAudioServer) SetXrunCallback(fn func())       { s.onXrun = fn }
func (s *PortAudioServer) SetShutdownCallback(fn func())   { s.onDown = fn }
func (s *PortAudioServer) SampleRate() float64             { return s.sampleRate }
func (s *PortAudioServer) BufferSize() int                 { return s.bufferSize }
func (s *PortAudioServer) H2OEnabled() bool                { return s.inChannels > 0 }

func (s *PortAudioServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return fmt.Errorf("hostaudio: Start called before Open")
	}
	return s.stream.Start()
}

func (s *PortAudioServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	return s.stream.Stop()
}

func (s *PortAudioServer) Close() error {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			return err
		}
	}
	return portaudio.Terminate()
}
