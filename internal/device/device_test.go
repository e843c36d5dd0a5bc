// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatusOrdering(t *testing.T) {
	t.Parallel()

	require.True(t, StatusReady < StatusBoot)
	require.True(t, StatusBoot < StatusWait)
	require.True(t, StatusWait < StatusRun)
	require.True(t, StatusRun < StatusStop)
	require.True(t, StatusStop < StatusError)
	require.True(t, StatusError.AtLeast(StatusReady))
	require.False(t, StatusReady.AtLeast(StatusBoot))
}

func TestFrameSize(t *testing.T) {
	t.Parallel()
	require.Equal(t, 8, FrameSize(2))
}

func newTestDescriptor() Descriptor {
	return Descriptor{
		Name:              "test",
		Inputs:            2,
		Outputs:           2,
		SampleRate:        48000,
		FramesPerTransfer: 8,
	}
}

func TestFakeDeviceSnapshotSeqlock(t *testing.T) {
	t.Parallel()

	d := NewFakeDevice(newTestDescriptor(), 64, 16, 1000)
	defer d.Close()

	d.StoreSnapshot(10, 20, DLLSnapshot{KDev: 5})
	lat, maxLat, dll := d.LoadSnapshot()
	require.Equal(t, 10, lat)
	require.Equal(t, 20, maxLat)
	require.Equal(t, uint64(5), dll.KDev)

	d.ResetLatencyMax()
	lat, maxLat, _ = d.LoadSnapshot()
	require.Equal(t, 10, lat)
	require.Equal(t, 0, maxLat)
}

func TestFakeDeviceActivateProducesO2HAudio(t *testing.T) {
	t.Parallel()

	d := NewFakeDevice(newTestDescriptor(), 4096, 16, 1000)
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, d.Activate(ctx, DefaultPriority))
	require.Eventually(t, func() bool {
		return d.O2HAudio().ReadSpace() > 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, d.Deactivate())
}

func TestFakeDeviceShutdownUnblocksWait(t *testing.T) {
	t.Parallel()

	d := NewFakeDevice(newTestDescriptor(), 64, 16, 1000)
	defer d.Close()

	done := make(chan error, 1)
	go func() {
		done <- d.Wait(context.Background())
	}()

	d.Shutdown()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Shutdown")
	}
	require.Equal(t, StatusStop, d.Status())

	// Shutdown must be idempotent.
	d.Shutdown()
}

func TestFakeDeviceWaitRespectsContext(t *testing.T) {
	t.Parallel()

	d := NewFakeDevice(newTestDescriptor(), 64, 16, 1000)
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := d.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSelector(t *testing.T) {
	t.Parallel()

	descs := []Descriptor{
		{Name: "a", Bus: 1, Address: 2, Inputs: 2, Outputs: 2},
		{Name: "b", Bus: 1, Address: 3, Inputs: 4, Outputs: 4},
		{Name: "c", Bus: 2, Address: 1, Inputs: 2, Outputs: 2},
	}

	sel := NewSelector(WithBus(1), WithMinChannels(4, 4))
	got := sel(descs)
	require.NotNil(t, got)
	require.Equal(t, "b", got.Name)

	sel = NewSelector(WithBus(9))
	require.Nil(t, sel(descs))
}
