// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !unix

package device

// setCallingThreadRealtimePriority is a no-op on platforms without a
// sched_setscheduler(2) equivalent wired up (e.g. Windows, which would need
// SetThreadPriority via golang.org/x/sys/windows).
func setCallingThreadRealtimePriority(priority int) error {
	return nil
}
