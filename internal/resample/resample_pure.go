// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !cgo

package resample

import "fmt"

// linearConverter is a pure-Go fallback async SRC used when cgo (and so
// libsamplerate) is unavailable. It implements linear interpolation only,
// matching libsamplerate's own SRC_LINEAR behavior rather than attempting
// to approximate the sinc-based quality modes; Quality is accepted for API
// compatibility with the cgo build but otherwise ignored.
type linearConverter struct {
	channels int
	reader   Reader

	pending []float32 // unconsumed input carried from the previous Process call
	frac    float64    // fractional position into the next input frame
	have    bool       // at least one input frame has been seen (x0 valid)
	x0, x1  []float32  // last two input frames, length channels each
}

// New constructs the pure-Go linear-interpolation Converter. quality is
// accepted to match the cgo-backed constructor's signature but has no
// effect.
func New(quality Quality, channels int) (Converter, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("resample: channels must be > 0, got %d", channels)
	}
	return &linearConverter{
		channels: channels,
		x0:       make([]float32, channels),
		x1:       make([]float32, channels),
	}, nil
}

func (c *linearConverter) SetReader(r Reader) {
	c.reader = r
}

func (c *linearConverter) Channels() int {
	return c.channels
}

// next returns the next input frame (length Channels()), pulling more from
// the Reader when the carried-over pending buffer is exhausted. ok is false
// when the Reader has no more input to offer.
func (c *linearConverter) next() (frame []float32, ok bool) {
	for len(c.pending) < c.channels {
		if c.reader == nil {
			return nil, false
		}
		more := c.reader()
		if len(more) == 0 {
			return nil, false
		}
		c.pending = append(c.pending, more...)
	}
	frame = c.pending[:c.channels]
	c.pending = c.pending[c.channels:]
	return frame, true
}

func (c *linearConverter) Process(ratio float64, outFrames int, out []float32) (int, error) {
	if outFrames <= 0 {
		return 0, nil
	}
	need := outFrames * c.channels
	if len(out) < need {
		return 0, fmt.Errorf("resample: out buffer too small: have %d, need %d", len(out), need)
	}
	if ratio <= 0 {
		return 0, fmt.Errorf("resample: ratio must be > 0, got %v", ratio)
	}

	if !c.have {
		f, ok := c.next()
		if !ok {
			return 0, nil
		}
		copy(c.x0, f)
		f, ok = c.next()
		if !ok {
			copy(c.x1, c.x0)
		} else {
			copy(c.x1, f)
		}
		c.have = true
	}

	step := 1.0 / ratio
	gen := 0
	for gen < outFrames {
		for i := 0; i < c.channels; i++ {
			out[gen*c.channels+i] = c.x0[i] + float32(c.frac)*(c.x1[i]-c.x0[i])
		}
		gen++
		c.frac += step
		for c.frac >= 1.0 {
			c.frac -= 1.0
			copy(c.x0, c.x1)
			f, ok := c.next()
			if !ok {
				return gen, nil
			}
			copy(c.x1, f)
		}
	}
	return gen, nil
}

func (c *linearConverter) Reset() error {
	c.pending = nil
	c.frac = 0
	c.have = false
	return nil
}

func (c *linearConverter) Close() {}
