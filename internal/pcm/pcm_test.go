// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pcm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesViewRoundTrip(t *testing.T) {
	t.Parallel()

	x := []float32{1.5, -2.25, 3.0}
	b := BytesView(x)
	require.Len(t, b, len(x)*4)

	back := FloatsView(b)
	require.Equal(t, x, back)
}

func TestViewsEmpty(t *testing.T) {
	t.Parallel()

	require.Nil(t, BytesView(nil))
	require.Nil(t, FloatsView(nil))
}
