// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build unix

package device

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// schedFIFO is Linux/BSD's SCHED_FIFO realtime scheduling policy.
const schedFIFO = 1

type schedParam struct {
	priority int32
}

// setCallingThreadRealtimePriority requests SCHED_FIFO scheduling at the
// given priority for the calling OS thread, mirroring jclient.c's
// set_rt_priority (jack_acquire_real_time_scheduling) applied to the
// device-side transfer threads. The caller must hold runtime.LockOSThread
// for the duration this priority should apply. A negative priority is
// config.DefaultPriority ("leave the default scheduling alone") and is a
// no-op.
func setCallingThreadRealtimePriority(priority int) error {
	if priority < 0 {
		return nil
	}
	param := schedParam{priority: int32(priority)}
	// tid 0 means "the calling thread" for sched_setscheduler(2).
	_, _, errno := unix.Syscall(unix.SYS_SCHED_SETSCHEDULER, 0, schedFIFO, uintptr(unsafe.Pointer(&param)))
	if errno != 0 {
		return fmt.Errorf("device: sched_setscheduler: %w", errno)
	}
	return nil
}
