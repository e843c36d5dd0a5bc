// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !unix

package ring

// mlock is a no-op on platforms without an mlock(2) equivalent wired up
// (e.g. Windows, which would need VirtualLock via golang.org/x/sys/windows).
func mlock(b []byte) error {
	return nil
}

func munlock(b []byte) error {
	return nil
}
