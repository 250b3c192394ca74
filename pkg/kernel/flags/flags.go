// Copyright 2026 The TickOS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package flags provides event flag words and per-thread signal flags.
//
// Both objects carry one 31-bit flag word with the same wait semantics:
// a waiter names the bits it needs and whether it needs all of them or
// any one; Clear mode consumes the delivered bits on the way out. An
// EventFlags word stands alone and takes any number of waiters; a
// SignalFlags word belongs to one thread, and only that thread may wait
// on it or clear it.
package flags

import (
	"context"

	"tickos.dev/tickos/pkg/errors/rterr"
	"tickos.dev/tickos/pkg/irq"
	"tickos.dev/tickos/pkg/kernel/ktime"
	"tickos.dev/tickos/pkg/kernel/sched"
	"tickos.dev/tickos/pkg/kernel/waiter"
	"tickos.dev/tickos/pkg/log"
)

// Bits is a set of flag bits.
type Bits uint32

// Reserved is the flag bit that words may not use; raising or waiting for
// it fails with EINVAL.
const Reserved Bits = 1 << 31

// Mode selects how a wait is satisfied and whether it consumes what it
// returns.
type Mode uint32

const (
	// All satisfies the wait only when every requested bit is raised.
	All Mode = 1 << iota

	// Any satisfies the wait when at least one requested bit is raised.
	Any

	// Clear removes the returned bits from the word on a successful
	// wait. With a zero mask it empties the whole word.
	Clear
)

// WaitAll and WaitAny are the usual consuming wait modes.
const (
	WaitAll = All | Clear
	WaitAny = Any | Clear
)

// checkWait validates a wait's mask and mode. A zero mask means "any bit
// at all" and works under every mode; a non-zero mask needs All or Any to
// say how much of it is enough.
func checkWait(mask Bits, mode Mode) error {
	if mask&Reserved != 0 {
		return rterr.EINVAL
	}
	if mask != 0 && mode&(All|Any) == 0 {
		return rterr.EINVAL
	}
	return nil
}

// checkBits validates the argument of a raise or clear.
func checkBits(bits Bits) error {
	if bits == 0 || bits&Reserved != 0 {
		return rterr.EINVAL
	}
	return nil
}

// word is the flag state shared by EventFlags and SignalFlags. It does no
// locking; the owning object's controller section guards it.
type word struct {
	bits Bits
}

// try applies one probe of the wait predicate. With a non-zero mask it is
// satisfied when the requested bits are all (All) or partly (Any) raised,
// and returns the raised subset of the mask. With a zero mask it is
// satisfied by any raised bit and returns the whole word. Clear consumes
// exactly what is returned.
func (w *word) try(mask Bits, mode Mode) (Bits, bool) {
	if mask == 0 {
		got := w.bits
		if got == 0 {
			return 0, false
		}
		if mode&Clear != 0 {
			w.bits = 0
		}
		return got, true
	}
	got := w.bits & mask
	if mode&All != 0 {
		if got != mask {
			return 0, false
		}
	} else if got == 0 {
		return 0, false
	}
	if mode&Clear != 0 {
		w.bits &^= got
	}
	return got, true
}

// Config configures an EventFlags or SignalFlags object.
type Config struct {
	// Name identifies the object in logs. For EventFlags an empty name
	// becomes "-"; for SignalFlags it takes the owner's name.
	Name string
}

// EventFlags is a flag word threads wait on and any context raises.
//
// Methods are safe for concurrent use from any number of tasks.
type EventFlags struct {
	name string
	c    *irq.Controller
	clk  ktime.Clock

	// w is the flag word. Guarded by c.
	w word

	// waiters parks tasks whose wait is not yet satisfied. Guarded
	// by c.
	waiters waiter.Queue
}

// New creates an event flags object protected by the given interrupt
// controller and using clk for timed waits.
func New(c *irq.Controller, clk ktime.Clock, cfg Config) (*EventFlags, error) {
	if c == nil || clk == nil {
		return nil, rterr.EINVAL
	}
	name := cfg.Name
	if name == "" {
		name = "-"
	}
	f := &EventFlags{
		name: name,
		c:    c,
		clk:  clk,
	}
	log.Debugf("evflags %q: created", name)
	return f, nil
}

// Name returns the object's name.
func (f *EventFlags) Name() string {
	return f.name
}

// Wait parks the calling task until the mask and mode are satisfied and
// returns the delivered bits.
//
// It fails with EPERM from interrupt context, EINVAL on a bad mask or
// mode, and EINTR when the task is interrupted while parked.
func (f *EventFlags) Wait(ctx context.Context, mask Bits, mode Mode) (Bits, error) {
	if sched.InHandler(ctx) {
		return 0, rterr.EPERM
	}
	if err := checkWait(mask, mode); err != nil {
		return 0, err
	}
	var got Bits
	err := waiter.Block(ctx, f.c, &f.waiters, func() bool {
		var ok bool
		got, ok = f.w.try(mask, mode)
		return ok
	})
	if err != nil {
		return 0, err
	}
	return got, nil
}

// TryWait is Wait without parking: an unsatisfied wait fails with EAGAIN.
// It is safe from interrupt context.
func (f *EventFlags) TryWait(ctx context.Context, mask Bits, mode Mode) (Bits, error) {
	if err := checkWait(mask, mode); err != nil {
		return 0, err
	}
	f.c.Enter()
	got, ok := f.w.try(mask, mode)
	f.c.Leave()
	if !ok {
		return 0, rterr.EAGAIN
	}
	return got, nil
}

// TimedWait is Wait bounded by timeout ticks; it fails with ETIMEDOUT
// when the wait is not satisfied in time. A zero timeout waits one tick.
func (f *EventFlags) TimedWait(ctx context.Context, mask Bits, mode Mode, timeout ktime.Ticks) (Bits, error) {
	if sched.InHandler(ctx) {
		return 0, rterr.EPERM
	}
	if err := checkWait(mask, mode); err != nil {
		return 0, err
	}
	var got Bits
	err := waiter.BlockTimeout(ctx, f.c, &f.waiters, f.clk, timeout, func() bool {
		var ok bool
		got, ok = f.w.try(mask, mode)
		return ok
	})
	if err != nil {
		return 0, err
	}
	return got, nil
}

// Raise ORs bits into the word, wakes every waiter to re-test, and
// returns the word as it was before. It is safe from interrupt context.
//
// It fails with EINVAL when bits is zero or touches Reserved.
func (f *EventFlags) Raise(ctx context.Context, bits Bits) (Bits, error) {
	if err := checkBits(bits); err != nil {
		return 0, err
	}
	f.c.Enter()
	previous := f.w.bits
	f.w.bits |= bits
	f.waiters.WakeAll()
	f.c.Leave()
	return previous, nil
}

// Clear removes bits from the word and returns the word as it was before.
// Thread context only.
//
// It fails with EPERM from interrupt context and EINVAL when bits is zero
// or touches Reserved.
func (f *EventFlags) Clear(ctx context.Context, bits Bits) (Bits, error) {
	if sched.InHandler(ctx) {
		return 0, rterr.EPERM
	}
	if err := checkBits(bits); err != nil {
		return 0, err
	}
	f.c.Enter()
	previous := f.w.bits
	f.w.bits &^= bits
	f.c.Leave()
	return previous, nil
}

// Get reads the word without waiting and without failing on an
// unsatisfied mask: a zero mask returns the full word untouched; a
// non-zero mask returns the raised subset, consuming it in Clear mode.
// It is safe from interrupt context.
func (f *EventFlags) Get(ctx context.Context, mask Bits, mode Mode) (Bits, error) {
	if mask&Reserved != 0 {
		return 0, rterr.EINVAL
	}
	f.c.Enter()
	defer f.c.Leave()
	if mask == 0 {
		return f.w.bits, nil
	}
	got := f.w.bits & mask
	if mode&Clear != 0 {
		f.w.bits &^= got
	}
	return got, nil
}

// Waiting reports whether any task is parked on the object.
func (f *EventFlags) Waiting() bool {
	f.c.Enter()
	defer f.c.Leave()
	return !f.waiters.Empty()
}
