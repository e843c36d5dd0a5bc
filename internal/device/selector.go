// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package device

// SelectFn picks a single device out of a list of candidate descriptors, or
// returns nil if none are suitable. It is not meant to be implemented
// directly; construct one with NewSelector from a chain of FilterFns.
type SelectFn func(descs []Descriptor) *Descriptor

// FilterFn narrows a list of candidate descriptors to a subset, or returns
// nil/empty if none are suitable.
type FilterFn func(descs []Descriptor) []Descriptor

// NewSelector builds a SelectFn that runs descs through each filter in
// order and returns the first remaining descriptor, or nil if any filter
// empties the list. Used to narrow candidates by CLI-supplied bus/address.
func NewSelector(filters ...FilterFn) SelectFn {
	return func(descs []Descriptor) *Descriptor {
		cur := descs
		for _, f := range filters {
			cur = f(cur)
			if len(cur) == 0 {
				return nil
			}
		}
		return &cur[0]
	}
}

// WithNoopFilter accepts every candidate unchanged; useful as a placeholder
// in a filter chain built up conditionally.
func WithNoopFilter() FilterFn {
	return func(descs []Descriptor) []Descriptor {
		return descs
	}
}

// WithBus keeps only devices on the given USB bus id.
func WithBus(bus uint8) FilterFn {
	return func(descs []Descriptor) []Descriptor {
		var res []Descriptor
		for _, d := range descs {
			if d.Bus == bus {
				res = append(res, d)
			}
		}
		return res
	}
}

// WithAddress keeps only the device at the given USB device address.
func WithAddress(addr uint8) FilterFn {
	return func(descs []Descriptor) []Descriptor {
		var res []Descriptor
		for _, d := range descs {
			if d.Address == addr {
				res = append(res, d)
			}
		}
		return res
	}
}

// WithName keeps only devices whose Name matches exactly.
func WithName(name string) FilterFn {
	return func(descs []Descriptor) []Descriptor {
		var res []Descriptor
		for _, d := range descs {
			if d.Name == name {
				res = append(res, d)
			}
		}
		return res
	}
}

// WithMinChannels keeps only devices that can supply at least inputs
// O->H channels and accept at least outputs H->O channels.
func WithMinChannels(inputs, outputs int) FilterFn {
	return func(descs []Descriptor) []Descriptor {
		var res []Descriptor
		for _, d := range descs {
			if d.Inputs >= inputs && d.Outputs >= outputs {
				res = append(res, d)
			}
		}
		return res
	}
}
