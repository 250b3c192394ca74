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

package waiter

import (
	"context"

	"tickos.dev/tickos/pkg/errors/rterr"
	"tickos.dev/tickos/pkg/irq"
	"tickos.dev/tickos/pkg/kernel/ktime"
	"tickos.dev/tickos/pkg/kernel/sched"
)

// Block runs the blocking protocol shared by every primitive: test the
// condition and, when it does not hold, register on the queue and suspend.
// The test and the registration happen in one controller section, so a
// wakeup delivered between them cannot be lost.
//
// The probe runs with the section held; it must not block and must return
// true only once the operation's effect is complete (a claimed slot, a
// consumed flag set). After each resumption the task's interrupted mark is
// checked before the condition is re-tested, so interruption wins over a
// condition that became true while resuming.
//
// Block returns nil once a probe succeeds, or EINTR if the task was marked
// interrupted while blocked. Permission checks belong to the caller;
// callers must not hold the section.
func Block(ctx context.Context, c *irq.Controller, q *Queue, probe func() bool) error {
	t := sched.FromContext(ctx)
	if t == nil {
		return rterr.EPERM
	}
	e := NewEntry(t)
	for {
		c.Enter()
		if probe() {
			c.Leave()
			return nil
		}
		q.Add(&e)
		c.Leave()

		t.Park()

		c.Enter()
		q.Remove(&e)
		c.Leave()

		if t.Interrupted() {
			return rterr.EINTR
		}
	}
}

// BlockTimeout is Block with a deadline of timeout ticks on clk. A zero
// timeout counts as one tick. Within each round the probe runs before the
// deadline test, so a wakeup racing the deadline still wins; the remaining
// budget is recomputed from the clock after every resumption. The timer is
// armed inside the section, together with the registration, so ticks that
// elapse on the way into the park are not lost from the budget.
func BlockTimeout(ctx context.Context, c *irq.Controller, q *Queue, clk ktime.Clock, timeout ktime.Ticks, probe func() bool) error {
	t := sched.FromContext(ctx)
	if t == nil {
		return rterr.EPERM
	}
	if timeout == 0 {
		timeout = 1
	}
	start := clk.Now()
	e := NewEntry(t)
	for {
		c.Enter()
		if probe() {
			c.Leave()
			return nil
		}
		elapsed := ktime.Sub(clk.Now(), start)
		if elapsed >= timeout {
			c.Leave()
			return rterr.ETIMEDOUT
		}
		q.Add(&e)
		expired, stop := clk.After(timeout - elapsed)
		c.Leave()

		t.ParkUntil(expired)
		stop()

		c.Enter()
		q.Remove(&e)
		c.Leave()

		if t.Interrupted() {
			return rterr.EINTR
		}
	}
}
