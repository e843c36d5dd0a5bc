// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hostaudio

import (
	"sync"
	"time"
)

// FakeServer is an in-memory Server for tests and demos: it drives the
// installed ProcessFn on a ticker at its configured sample rate/buffer
// size, feeding a caller-suppliable input buffer and capturing the last
// output buffer produced, in place of a real PortAudio stream.
type FakeServer struct {
	mu sync.Mutex

	sampleRate  float64
	bufferSize  int
	inChannels  int
	outChannels int
	h2oEnabled  bool

	process ProcessFn
	onXrun  func()
	onDown  func()

	input     []float32
	lastOut   []float32
	frameTime float64

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewFakeServer constructs a FakeServer. h2oEnabled fixes the H2OEnabled
// result, standing in for O1's "non-zero input channel count at open"
// resolution.
func NewFakeServer(h2oEnabled bool) *FakeServer {
	return &FakeServer{h2oEnabled: h2oEnabled}
}

func (s *FakeServer) Open(sampleRate float64, bufferSize, inChannels, outChannels int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampleRate = sampleRate
	s.bufferSize = bufferSize
	s.inChannels = inChannels
	s.outChannels = outChannels
	s.input = make([]float32, bufferSize*inChannels)
	s.lastOut = make([]float32, bufferSize*outChannels)
	return nil
}

func (s *FakeServer) SetProcess(fn ProcessFn)       { s.process = fn }
func (s *FakeServer) SetXrunCallback(fn func())     { s.onXrun = fn }
func (s *FakeServer) SetShutdownCallback(fn func()) { s.onDown = fn }
func (s *FakeServer) SampleRate() float64           { return s.sampleRate }
func (s *FakeServer) BufferSize() int                { return s.bufferSize }
func (s *FakeServer) H2OEnabled() bool               { return s.h2oEnabled }

// SetInput stages the interleaved host input delivered to the next Process
// callback invocation.
func (s *FakeServer) SetInput(interleaved []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.input, interleaved)
}

// LastOutput returns a copy of the most recently produced output buffer.
func (s *FakeServer) LastOutput() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float32, len(s.lastOut))
	copy(out, s.lastOut)
	return out
}

// InjectXrun synchronously invokes the installed xrun callback, standing in
// for a host-detected buffer under/overrun.
func (s *FakeServer) InjectXrun() {
	if s.onXrun != nil {
		s.onXrun()
	}
}

// Tick runs exactly one cycle of the installed ProcessFn synchronously,
// without requiring Start's background ticker; most adapter tests drive
// FakeServer this way for determinism.
func (s *FakeServer) Tick() {
	if s.process == nil {
		return
	}
	s.mu.Lock()
	in := s.input
	out := s.lastOut
	t := s.frameTime
	s.frameTime += float64(s.bufferSize) / s.sampleRate
	s.mu.Unlock()

	s.process(t, in, out)
}

func (s *FakeServer) Start() error {
	s.stop = make(chan struct{})
	period := time.Duration(float64(s.bufferSize) / s.sampleRate * float64(time.Second))
	if period <= 0 {
		period = time.Millisecond
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.Tick()
			}
		}
	}()
	return nil
}

func (s *FakeServer) Stop() error {
	if s.stop != nil {
		close(s.stop)
		s.wg.Wait()
		s.stop = nil
	}
	return nil
}

func (s *FakeServer) Close() error {
	return s.Stop()
}
