// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config builds the CLI-derived configuration object that selects
// and parameterizes a device: bus/address selection, USB transfer block
// count, SRC quality, and realtime scheduling priority. One CheckXFlag or
// ParseXFlag function per flag, each with its own long usage text constant,
// mirroring the helpers/parse convention this module was adapted from.
package config

import (
	"flag"
	"fmt"

	"github.com/halcyon-audio/owbridge/internal/device"
	"github.com/halcyon-audio/owbridge/internal/resample"
)

// Options is the fully-validated configuration object assembled from CLI
// flags (or programmatic construction in tests): which device to select,
// the blocks-per-transfer count (validated and stored, but not read by any
// other package), the SRC quality, and the realtime scheduling priority
// applied to the device's transfer thread.
type Options struct {
	Bus     uint8
	Address uint8

	BlocksPerTransfer int
	Quality           resample.Quality
	Priority          int
}

// DefaultBlocksPerTransfer is the default -blocks value. The value ends up
// in Options.BlocksPerTransfer, which no device backend reads, so it does
// not change queueing or latency.
const DefaultBlocksPerTransfer = 8

// DefaultPriority means "leave the device transfer thread's scheduling
// unchanged" rather than requesting a specific realtime priority.
const DefaultPriority = -1

const BusFlagHelp = `bus: USB Bus Number
Select a device by USB bus number. A value of 0 matches any bus. Must be
combined with -address to fully identify a single device when more than
one device is attached.`

const AddressFlagHelp = `address: USB Device Address
Select a device by USB device address on the chosen bus. A value of 0
matches any address.`

const BlocksFlagHelp = `count: Blocks Per Transfer
Sets the number of device transfer periods per transfer. The value is
validated and stored, but no device backend reads it, so it has no effect
on queueing or latency. Must be greater than 0.`

// CheckBlocksFlag validates a -blocks value.
func CheckBlocksFlag(val int) (int, error) {
	if val <= 0 {
		return 0, fmt.Errorf("invalid blocks per transfer; got %d, want >0", val)
	}
	return val, nil
}

const QualityFlagHelp = `0-4: SRC Quality
Sets the asynchronous sample-rate converter quality, mirroring
libsamplerate's converter_type enum: 0 is the highest quality (and most
CPU-intensive), 3 is zero-order-hold (cheapest, lowest quality) and 4 is
linear.`

// CheckQualityFlag validates a -quality value and returns it as a
// resample.Quality.
func CheckQualityFlag(val int) (resample.Quality, error) {
	if val < int(resample.QualityBest) || val > int(resample.QualityLinear) {
		return 0, fmt.Errorf("invalid SRC quality; got %d, want 0-4", val)
	}
	return resample.Quality(val), nil
}

const PriorityFlagHelp = `priority|-1: Realtime Scheduling Priority
Requests SCHED_FIFO realtime scheduling at this priority for the device's
transfer thread on unix platforms; elsewhere the value is ignored. A value
of -1 leaves that thread's scheduling unchanged. The host audio server's
own threads are not affected.`

// CheckPriorityFlag validates a -priority value.
func CheckPriorityFlag(val int) (int, error) {
	if val != DefaultPriority && val < 0 {
		return 0, fmt.Errorf("invalid realtime priority; got %d, want >=0 or -1", val)
	}
	return val, nil
}

// SelectFilters builds the device.FilterFn chain implied by o's Bus/Address
// fields, with 0 treated as a wildcard for either field (matching the CLI
// help text).
func (o Options) SelectFilters() []device.FilterFn {
	var filters []device.FilterFn
	if o.Bus != 0 {
		filters = append(filters, device.WithBus(o.Bus))
	}
	if o.Address != 0 {
		filters = append(filters, device.WithAddress(o.Address))
	}
	return filters
}

// FlagSet registers owbridge's flags on fs and returns a function that
// validates the parsed values into an Options. Call the returned function
// only after fs.Parse has run.
func FlagSet(fs *flag.FlagSet) func() (Options, error) {
	busOpt := fs.Uint("bus", 0, BusFlagHelp)
	addrOpt := fs.Uint("address", 0, AddressFlagHelp)
	blocksOpt := fs.Int("blocks", DefaultBlocksPerTransfer, BlocksFlagHelp)
	qualityOpt := fs.Int("quality", int(resample.QualityBest), QualityFlagHelp)
	priorityOpt := fs.Int("priority", DefaultPriority, PriorityFlagHelp)

	return func() (Options, error) {
		if *busOpt > 255 {
			return Options{}, fmt.Errorf("invalid bus number; got %d, want 0-255", *busOpt)
		}
		if *addrOpt > 255 {
			return Options{}, fmt.Errorf("invalid device address; got %d, want 0-255", *addrOpt)
		}

		blocks, err := CheckBlocksFlag(*blocksOpt)
		if err != nil {
			return Options{}, err
		}

		quality, err := CheckQualityFlag(*qualityOpt)
		if err != nil {
			return Options{}, err
		}

		priority, err := CheckPriorityFlag(*priorityOpt)
		if err != nil {
			return Options{}, err
		}

		return Options{
			Bus:               uint8(*busOpt),
			Address:           uint8(*addrOpt),
			BlocksPerTransfer: blocks,
			Quality:           quality,
			Priority:          priority,
		}, nil
	}
}
