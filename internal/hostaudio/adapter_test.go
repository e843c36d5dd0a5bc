// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hostaudio

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halcyon-audio/owbridge/internal/device"
	"github.com/halcyon-audio/owbridge/internal/midi"
	"github.com/halcyon-audio/owbridge/internal/resample"
	"github.com/halcyon-audio/owbridge/internal/resampler"
)

// passthroughConverter is a minimal Converter test double: it pulls exactly
// enough input frames to satisfy outFrames and copies them straight
// through, so adapter-level tests can assert on wiring and ordering without
// depending on SRC numerics.
type passthroughConverter struct {
	channels int
	reader   resample.Reader
}

func (c *passthroughConverter) SetReader(r resample.Reader) { c.reader = r }

func (c *passthroughConverter) Process(ratio float64, outFrames int, out []float32) (int, error) {
	n := 0
	for n < outFrames {
		in := c.reader()
		if len(in) == 0 {
			break
		}
		frames := len(in) / c.channels
		for f := 0; f < frames && n < outFrames; f++ {
			copy(out[n*c.channels:(n+1)*c.channels], in[f*c.channels:(f+1)*c.channels])
			n++
		}
	}
	return n, nil
}

func (c *passthroughConverter) Reset() error  { return nil }
func (c *passthroughConverter) Channels() int { return c.channels }
func (c *passthroughConverter) Close()        {}

func newTestAdapter(t *testing.T) (*Adapter, *FakeServer, device.Handle, *resampler.Resampler) {
	t.Helper()

	desc := device.Descriptor{
		Name:              "test",
		Inputs:            2,
		Outputs:           2,
		SampleRate:        48000,
		FramesPerTransfer: 8,
	}
	dev := device.NewFakeDevice(desc, 128*64, 16, 1000)
	res := resampler.New(dev, &passthroughConverter{channels: desc.Inputs}, &passthroughConverter{channels: desc.Outputs}, nil)

	server := NewFakeServer(true)
	a := NewAdapter(server, dev, res, nil, desc.SampleRate)
	require.NoError(t, a.Open(desc.SampleRate, 128))

	return a, server, dev, res
}

func TestAdapterOpenEnablesH2OFromServer(t *testing.T) {
	t.Parallel()

	_, _, dev, _ := newTestAdapter(t)
	require.True(t, dev.H2OEnabled())
}

func TestAdapterProcessSkipsUntilDeviceReady(t *testing.T) {
	t.Parallel()

	_, server, dev, _ := newTestAdapter(t)
	require.Equal(t, device.StatusReady, dev.Status())

	server.Tick()
	require.Equal(t, device.StatusBoot, dev.Status())
}

func TestAdapterProcessFillsOutputExactlyBufsizeFrames(t *testing.T) {
	t.Parallel()

	_, server, dev, _ := newTestAdapter(t)
	dev.SetStatus(device.StatusWait)

	server.Tick()

	out := server.LastOutput()
	require.Len(t, out, 128*2)
}

func TestAdapterXrunCallbackReachesResampler(t *testing.T) {
	t.Parallel()

	_, server, dev, res := newTestAdapter(t)
	dev.SetStatus(device.StatusWait)
	server.Tick() // READY -> BOOT in the resampler core

	server.InjectXrun()
	baseRatio := res.O2HRatio()
	server.Tick()

	require.InDelta(t, baseRatio*2, res.O2HRatio(), 1e-9)
}

// TestAdapterMIDIForwardingMatchesScenario5 covers three O->H events at
// device times t, t+10us, t+1ms, with F_host=48000, B=128: the first two
// land at the same host frame offset, the third at frame ~48. A 1 MHz
// device clock (framePeriodUS == 1) is used so the
// device-time-to-frame conversion is exact, isolating the scheduling
// behavior under test from unrelated floating-point rounding.
func TestAdapterMIDIForwardingMatchesScenario5(t *testing.T) {
	t.Parallel()

	const devSampleRate = 1_000_000.0

	desc := device.Descriptor{
		Name:              "test",
		Inputs:            2,
		Outputs:           2,
		SampleRate:        devSampleRate,
		FramesPerTransfer: 8,
	}
	dev := device.NewFakeDevice(desc, 128*64, 16, 1000)
	res := resampler.New(dev, &passthroughConverter{channels: desc.Inputs}, &passthroughConverter{channels: desc.Outputs}, nil)
	server := NewFakeServer(true)
	a := NewAdapter(server, dev, res, nil, devSampleRate)
	require.NoError(t, a.Open(48000, 128))

	dev.SetStatus(device.StatusWait)
	server.Tick() // READY -> BOOT

	devRing := dev.O2HMIDI()
	base := res.DeviceFrame()

	ev1, _ := midi.EncodeHostToDevice(base, 0x90, []byte{64, 100})
	ev2, _ := midi.EncodeHostToDevice(base+10, 0x90, []byte{65, 100})
	ev3, _ := midi.EncodeHostToDevice(base+1000, 0x90, []byte{66, 100})
	require.True(t, devRing.Push(ev1))
	require.True(t, devRing.Push(ev2))
	require.True(t, devRing.Push(ev3))

	scheduled := a.o2hMIDI()
	require.Len(t, scheduled, 3)
	require.Equal(t, scheduled[0].FrameOffset, scheduled[1].FrameOffset)
	require.Equal(t, 48, scheduled[2].FrameOffset)
}

func TestPushH2OMIDIDroppedBelowRun(t *testing.T) {
	t.Parallel()

	a, _, dev, _ := newTestAdapter(t)
	require.Less(t, dev.Status(), device.StatusRun)

	a.PushH2OMIDI(0, 0x90, []byte{64, 100})
	require.Zero(t, dev.H2OMIDI().ReadSpace())
}
