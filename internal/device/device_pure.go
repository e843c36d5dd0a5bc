// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !cgo

package device

// Enumerate always fails on a non-cgo build: real USB device discovery only
// ships as a libusb cgo binding. Use NewFakeDevice for tests and demos on
// such builds.
func Enumerate() ([]Handle, error) {
	return nil, ErrCGoRequired
}
