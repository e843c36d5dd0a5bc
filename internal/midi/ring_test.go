// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package midi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingPushPeekDrop(t *testing.T) {
	t.Parallel()

	r := NewRing(2) // rounds up to 2
	require.Equal(t, 2, r.Cap())

	require.True(t, r.Push(Event{DeviceTimeUS: 1}))
	require.True(t, r.Push(Event{DeviceTimeUS: 2}))
	require.False(t, r.Push(Event{DeviceTimeUS: 3}), "push must fail once the ring is full")

	events := r.PeekAll()
	require.Len(t, events, 2)
	require.Equal(t, uint64(1), events[0].DeviceTimeUS)
	require.Equal(t, uint64(2), events[1].DeviceTimeUS)

	r.Drop(1)
	require.Equal(t, 1, r.ReadSpace())
	require.Equal(t, 1, r.WriteSpace())

	require.True(t, r.Push(Event{DeviceTimeUS: 3}))
	events = r.PeekAll()
	require.Len(t, events, 2)
	require.Equal(t, uint64(2), events[0].DeviceTimeUS)
	require.Equal(t, uint64(3), events[1].DeviceTimeUS)
}

func TestRingDropClampsToAvailable(t *testing.T) {
	t.Parallel()

	r := NewRing(4)
	r.Push(Event{DeviceTimeUS: 1})
	r.Drop(100)
	require.Equal(t, 0, r.ReadSpace())
}
