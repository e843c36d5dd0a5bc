// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halcyon-audio/owbridge/internal/resample"
)

func TestCheckBlocksFlag(t *testing.T) {
	t.Parallel()

	_, err := CheckBlocksFlag(0)
	require.Error(t, err)

	_, err = CheckBlocksFlag(-1)
	require.Error(t, err)

	got, err := CheckBlocksFlag(8)
	require.NoError(t, err)
	require.Equal(t, 8, got)
}

func TestCheckQualityFlag(t *testing.T) {
	t.Parallel()

	for _, v := range []int{0, 1, 2, 3, 4} {
		got, err := CheckQualityFlag(v)
		require.NoError(t, err)
		require.Equal(t, resample.Quality(v), got)
	}

	_, err := CheckQualityFlag(5)
	require.Error(t, err)

	_, err = CheckQualityFlag(-1)
	require.Error(t, err)
}

func TestCheckPriorityFlag(t *testing.T) {
	t.Parallel()

	got, err := CheckPriorityFlag(-1)
	require.NoError(t, err)
	require.Equal(t, -1, got)

	got, err = CheckPriorityFlag(50)
	require.NoError(t, err)
	require.Equal(t, 50, got)

	_, err = CheckPriorityFlag(-2)
	require.Error(t, err)
}

func TestFlagSetParsesDefaults(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	build := FlagSet(fs)
	require.NoError(t, fs.Parse(nil))

	opts, err := build()
	require.NoError(t, err)
	require.Equal(t, Options{
		Bus:               0,
		Address:           0,
		BlocksPerTransfer: DefaultBlocksPerTransfer,
		Quality:           resample.QualityBest,
		Priority:          DefaultPriority,
	}, opts)
}

func TestFlagSetParsesOverrides(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	build := FlagSet(fs)
	require.NoError(t, fs.Parse([]string{
		"-bus", "2",
		"-address", "5",
		"-blocks", "16",
		"-quality", "4",
		"-priority", "10",
	}))

	opts, err := build()
	require.NoError(t, err)
	require.Equal(t, Options{
		Bus:               2,
		Address:           5,
		BlocksPerTransfer: 16,
		Quality:           resample.QualityLinear,
		Priority:          10,
	}, opts)
}

func TestFlagSetRejectsInvalidBlocks(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	build := FlagSet(fs)
	require.NoError(t, fs.Parse([]string{"-blocks", "0"}))

	_, err := build()
	require.Error(t, err)
}

func TestSelectFiltersWildcardOnZero(t *testing.T) {
	t.Parallel()

	require.Empty(t, Options{}.SelectFilters())
	require.Len(t, Options{Bus: 1}.SelectFilters(), 1)
	require.Len(t, Options{Bus: 1, Address: 2}.SelectFilters(), 2)
}
