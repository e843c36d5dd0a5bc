// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package notify provides a non-blocking event channel for surfacing
// realtime-path conditions (xruns, ring overflow/underrun, unexpected SRC
// output, MIDI ring overflow, fatal errors) to a goroutine observing
// asynchronously, without ever blocking the realtime thread that raises
// them: errors in the realtime path are never thrown or unwound, only
// counted or logged, and the cycle continues.
package notify

import (
	"errors"
	"sync"

	"github.com/halcyon-audio/owbridge/internal/errs"
)

// Event is a single notification: the error kind that occurred and an
// optional detail value (e.g. an xrun count or a ring's current fill
// level) for logging.
type Event struct {
	Kind   errs.Kind
	Detail string
}

// Chan is a bound, non-blocking event sink: a realtime thread calls Notify
// on every occurrence, and a consumer goroutine drains C asynchronously.
// Modeled directly on the event.Chan / callback.StreamChan pattern: the
// callback thread never blocks on send or waits for a receiver.
type Chan struct {
	C    <-chan Event
	c    chan<- Event
	done chan struct{}
	once sync.Once
}

// NewChan creates a Chan with the given channel depth. A depth of 0 drops
// any event raised while no receiver is ready; depth > 0 buffers that many
// events before dropping.
func NewChan(depth uint) *Chan {
	ch := make(chan Event, depth)
	return &Chan{
		C:    ch,
		c:    ch,
		done: make(chan struct{}),
	}
}

// Close stops any further sends on C. It does not close C itself: C is only
// closed from within the next Notify call, so a concurrent Notify never
// sends on a closed channel.
func (n *Chan) Close() error {
	select {
	case <-n.done:
		return errors.New("notify: already closed")
	default:
		close(n.done)
		return nil
	}
}

// Notify raises ev. It never blocks: if the channel is full or closed, the
// event is dropped (the caller is expected to also have counted the
// condition via an atomic counter as part of its own log-and-drop policy).
func (n *Chan) Notify(ev Event) {
	select {
	case <-n.done:
		n.once.Do(func() {
			close(n.c)
		})
		return
	default:
	}

	select {
	case n.c <- ev:
	default:
	}
}
