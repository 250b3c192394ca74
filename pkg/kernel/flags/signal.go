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

// SignalFlags is a flag word owned by a single thread. Anyone may raise
// bits on it, interrupt handlers included; only the owner may wait on it,
// read it, or clear it.
type SignalFlags struct {
	name  string
	c     *irq.Controller
	clk   ktime.Clock
	owner *sched.Task

	// w is the signal word. Guarded by c.
	w word

	// waiters holds the owner while it waits. Guarded by c.
	waiters waiter.Queue
}

// NewSignal creates the signal flag word of the owner task. An empty
// cfg.Name takes the owner's name.
func NewSignal(c *irq.Controller, clk ktime.Clock, owner *sched.Task, cfg Config) (*SignalFlags, error) {
	if c == nil || clk == nil || owner == nil {
		return nil, rterr.EINVAL
	}
	name := cfg.Name
	if name == "" {
		name = owner.Name()
	}
	s := &SignalFlags{
		name:  name,
		c:     c,
		clk:   clk,
		owner: owner,
	}
	log.Debugf("sigflags %q: created", name)
	return s, nil
}

// Name returns the object's name.
func (s *SignalFlags) Name() string {
	return s.name
}

// Owner returns the thread the word belongs to.
func (s *SignalFlags) Owner() *sched.Task {
	return s.owner
}

// owned reports whether ctx is the owner running in thread context. A
// handler context carries no task and therefore never passes.
func (s *SignalFlags) owned(ctx context.Context) bool {
	return sched.FromContext(ctx) == s.owner
}

// Raise ORs bits into the word and returns the word as it was before.
// Any context may raise, interrupt handlers included.
//
// The owner is woken unconditionally rather than only when parked, and
// the wake is sticky, so a raise landing between the owner's probe and
// its park is never lost.
//
// It fails with EINVAL when bits is zero or touches Reserved.
func (s *SignalFlags) Raise(ctx context.Context, bits Bits) (Bits, error) {
	if err := checkBits(bits); err != nil {
		return 0, err
	}
	s.c.Enter()
	previous := s.w.bits
	s.w.bits |= bits
	s.c.Leave()
	s.owner.Wake()
	return previous, nil
}

// Wait parks the owner until the mask and mode are satisfied and returns
// the delivered bits. Only the owner may wait.
//
// It fails with EPERM from any other task or from interrupt context,
// EINVAL on a bad mask or mode, and EINTR when the owner is interrupted
// while parked.
func (s *SignalFlags) Wait(ctx context.Context, mask Bits, mode Mode) (Bits, error) {
	if !s.owned(ctx) {
		return 0, rterr.EPERM
	}
	if err := checkWait(mask, mode); err != nil {
		return 0, err
	}
	var got Bits
	err := waiter.Block(ctx, s.c, &s.waiters, func() bool {
		var ok bool
		got, ok = s.w.try(mask, mode)
		return ok
	})
	if err != nil {
		return 0, err
	}
	return got, nil
}

// TryWait is Wait without parking: an unsatisfied wait fails with EAGAIN.
func (s *SignalFlags) TryWait(ctx context.Context, mask Bits, mode Mode) (Bits, error) {
	if !s.owned(ctx) {
		return 0, rterr.EPERM
	}
	if err := checkWait(mask, mode); err != nil {
		return 0, err
	}
	s.c.Enter()
	got, ok := s.w.try(mask, mode)
	s.c.Leave()
	if !ok {
		return 0, rterr.EAGAIN
	}
	return got, nil
}

// TimedWait is Wait bounded by timeout ticks; it fails with ETIMEDOUT
// when the wait is not satisfied in time. A zero timeout waits one tick.
func (s *SignalFlags) TimedWait(ctx context.Context, mask Bits, mode Mode, timeout ktime.Ticks) (Bits, error) {
	if !s.owned(ctx) {
		return 0, rterr.EPERM
	}
	if err := checkWait(mask, mode); err != nil {
		return 0, err
	}
	var got Bits
	err := waiter.BlockTimeout(ctx, s.c, &s.waiters, s.clk, timeout, func() bool {
		var ok bool
		got, ok = s.w.try(mask, mode)
		return ok
	})
	if err != nil {
		return 0, err
	}
	return got, nil
}

// Clear removes bits from the word and returns the word as it was
// before. Owner thread context only.
//
// It fails with EPERM from any other task or from interrupt context, and
// EINVAL when bits is zero or touches Reserved.
func (s *SignalFlags) Clear(ctx context.Context, bits Bits) (Bits, error) {
	if !s.owned(ctx) {
		return 0, rterr.EPERM
	}
	if err := checkBits(bits); err != nil {
		return 0, err
	}
	s.c.Enter()
	previous := s.w.bits
	s.w.bits &^= bits
	s.c.Leave()
	return previous, nil
}

// Get reads the word without waiting and without failing on an
// unsatisfied mask: a zero mask returns the full word untouched; a
// non-zero mask returns the raised subset, consuming it in Clear mode.
// Owner only.
func (s *SignalFlags) Get(ctx context.Context, mask Bits, mode Mode) (Bits, error) {
	if !s.owned(ctx) {
		return 0, rterr.EPERM
	}
	if mask&Reserved != 0 {
		return 0, rterr.EINVAL
	}
	s.c.Enter()
	defer s.c.Leave()
	if mask == 0 {
		return s.w.bits, nil
	}
	got := s.w.bits & mask
	if mode&Clear != 0 {
		s.w.bits &^= got
	}
	return got, nil
}
