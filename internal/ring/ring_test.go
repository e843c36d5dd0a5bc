// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBufferBasic(t *testing.T) {
	t.Parallel()

	b := New(64)
	defer b.Close()

	require.Equal(t, 64, b.Cap())
	require.Equal(t, 0, b.ReadSpace())
	require.Equal(t, 64, b.WriteSpace())

	n := b.Write([]byte("hello"))
	require.Equal(t, 5, n)
	require.Equal(t, 5, b.ReadSpace())
	require.Equal(t, 59, b.WriteSpace())

	dst := make([]byte, 5)
	n = b.Read(dst, 0)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(dst))
	require.Equal(t, 0, b.ReadSpace())
}

func TestBufferDiscardRead(t *testing.T) {
	t.Parallel()

	b := New(16)
	defer b.Close()

	b.Write([]byte("abcdefgh"))
	n := b.Read(nil, 3)
	require.Equal(t, 3, n)
	require.Equal(t, 5, b.ReadSpace())

	dst := make([]byte, 5)
	b.Read(dst, 0)
	require.Equal(t, "defgh", string(dst))
}

func TestBufferShortWriteOnOverflow(t *testing.T) {
	t.Parallel()

	b := New(4)
	defer b.Close()

	n := b.Write([]byte("abcdefgh"))
	assert.Equal(t, 4, n, "write should be clamped to available space")
}

// TestBufferSpaceInvariant exercises the read_space + write_space == C
// invariant over a randomized sequence of interleaved writes and reads of
// varying sizes against a single Buffer, with no concurrency (the property
// itself does not depend on thread interleaving, only on byte accounting
// being consistent).
func TestBufferSpaceInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 256).Draw(t, "capacity")
		b := New(capacity)
		defer b.Close()
		cap := b.Cap()

		var reference []byte
		steps := rapid.IntRange(1, 64).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(t, "doWrite") {
				chunk := rapid.SliceOfN(rapid.Byte(), 0, 32).Draw(t, "chunk")
				n := b.Write(chunk)
				reference = append(reference, chunk[:n]...)
			} else {
				n := rapid.IntRange(0, 32).Draw(t, "readLen")
				dst := make([]byte, n)
				got := b.Read(dst, 0)
				if !assertPrefix(t, reference, dst[:got]) {
					t.Fatalf("read returned bytes out of FIFO order")
				}
				reference = reference[got:]
			}

			rs := b.ReadSpace()
			ws := b.WriteSpace()
			if rs+ws != cap {
				t.Fatalf("read_space(%d) + write_space(%d) != capacity(%d)", rs, ws, cap)
			}
			if rs != len(reference) {
				t.Fatalf("read_space(%d) != reference pending(%d)", rs, len(reference))
			}
		}
	})
}

func assertPrefix(t *rapid.T, reference, got []byte) bool {
	t.Helper()
	if len(got) > len(reference) {
		return false
	}
	for i := range got {
		if got[i] != reference[i] {
			return false
		}
	}
	return true
}
