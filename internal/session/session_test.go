// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halcyon-audio/owbridge/internal/config"
	"github.com/halcyon-audio/owbridge/internal/device"
	"github.com/halcyon-audio/owbridge/internal/hostaudio"
	"github.com/halcyon-audio/owbridge/internal/resample"
)

// passthroughConverter pulls exactly enough input frames to satisfy
// outFrames and copies them straight through.
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

func newConverters(desc device.Descriptor, quality resample.Quality) (resample.Converter, resample.Converter) {
	return &passthroughConverter{channels: desc.Inputs}, &passthroughConverter{channels: desc.Outputs}
}

func newTestDevices() []device.Handle {
	descA := device.Descriptor{Name: "a", Bus: 1, Address: 1, Inputs: 2, Outputs: 2, SampleRate: 48000, FramesPerTransfer: 8}
	descB := device.Descriptor{Name: "b", Bus: 1, Address: 2, Inputs: 2, Outputs: 2, SampleRate: 48000, FramesPerTransfer: 8}
	return []device.Handle{
		device.NewFakeDevice(descA, 128*64, 16, 1000),
		device.NewFakeDevice(descB, 128*64, 16, 1000),
	}
}

func TestRunFailsWithoutEnumerate(t *testing.T) {
	t.Parallel()

	s, err := NewSession(
		WithServer(hostaudio.NewFakeServer(true)),
		WithConverters(newConverters),
	)
	require.NoError(t, err)

	err = s.Run(context.Background())
	require.Error(t, err)
}

func TestRunFailsWhenNoDevicesFound(t *testing.T) {
	t.Parallel()

	s, err := NewSession(
		WithEnumerate(func() ([]device.Handle, error) { return nil, nil }),
		WithServer(hostaudio.NewFakeServer(true)),
		WithConverters(newConverters),
	)
	require.NoError(t, err)

	err = s.Run(context.Background())
	require.Error(t, err)
}

func TestSelectorNarrowsByAddress(t *testing.T) {
	t.Parallel()

	devs := newTestDevices()
	s, err := NewSession(
		WithEnumerate(func() ([]device.Handle, error) { return devs, nil }),
		WithSelector(config.Options{Address: 2}),
		WithServer(hostaudio.NewFakeServer(true)),
		WithConverters(newConverters),
	)
	require.NoError(t, err)

	picked, err := s.selectDevice(devs)
	require.NoError(t, err)
	require.Equal(t, "b", picked.Descriptor().Name)
}

func TestSelectorReturnsErrorWhenNoMatch(t *testing.T) {
	t.Parallel()

	devs := newTestDevices()
	s, err := NewSession(
		WithSelector(config.Options{Address: 99}),
	)
	require.NoError(t, err)

	_, err = s.selectDevice(devs)
	require.Error(t, err)
}

func TestRunStartsAdapterAndRespectsControlLoop(t *testing.T) {
	t.Parallel()

	devs := newTestDevices()[:1]
	server := hostaudio.NewFakeServer(true)

	controlCalled := make(chan struct{})
	s, err := NewSession(
		WithEnumerate(func() ([]device.Handle, error) { return devs, nil }),
		WithServer(server),
		WithConverters(newConverters),
		WithHostFormat(48000, 128),
		WithControlLoop(func(ctx context.Context, dev device.Handle, adapter *hostaudio.Adapter) error {
			close(controlCalled)
			<-ctx.Done()
			return ctx.Err()
		}),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx) }()

	select {
	case <-controlCalled:
	case <-time.After(time.Second):
		t.Fatal("control loop never invoked")
	}

	cancel()
	require.ErrorIs(t, <-runErr, context.Canceled)
}

func TestRunWithoutControlLoopWaitsOnContext(t *testing.T) {
	t.Parallel()

	devs := newTestDevices()[:1]
	s, err := NewSession(
		WithEnumerate(func() ([]device.Handle, error) { return devs, nil }),
		WithServer(hostaudio.NewFakeServer(true)),
		WithConverters(newConverters),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx) }()

	cancel()
	require.ErrorIs(t, <-runErr, context.Canceled)
}
