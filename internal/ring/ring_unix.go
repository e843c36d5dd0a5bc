// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build unix

package ring

import "golang.org/x/sys/unix"

// mlock page-locks the ring buffer's backing array so the realtime thread
// never takes a page fault reading or writing it. Failure is non-fatal: a
// Buffer still functions correctly, just without the realtime paging
// guarantee, so the error is only used to skip the matching munlock.
func mlock(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Mlock(b)
}

func munlock(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Munlock(b)
}
