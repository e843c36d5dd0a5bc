// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package device defines the device-side abstraction: the contract the
// resampler core and host adapter depend on, independent of any concrete
// USB transport. Handle is implemented by a FakeDevice for testing and
// demos, and sketched against libusb in device_cgo.go for real hardware;
// the USB device driver itself is out of scope.
package device

// Status is the device-side status word, an ordered enum with the explicit
// total order READY < BOOT < WAIT < RUN < STOP < ERROR. The zero value is
// StatusReady.
type Status int

const (
	StatusReady Status = iota
	StatusBoot
	StatusWait
	StatusRun
	StatusStop
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "READY"
	case StatusBoot:
		return "BOOT"
	case StatusWait:
		return "WAIT"
	case StatusRun:
		return "RUN"
	case StatusStop:
		return "STOP"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// AtLeast reports whether s is ordered at or after other in the total
// order above, matching the resampler core's "device_status <= BOOT" style
// comparisons.
func (s Status) AtLeast(other Status) bool {
	return s >= other
}
