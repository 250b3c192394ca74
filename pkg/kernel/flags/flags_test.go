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
	"fmt"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"tickos.dev/tickos/pkg/errors/rterr"
	"tickos.dev/tickos/pkg/irq"
	"tickos.dev/tickos/pkg/kernel/ktime"
	"tickos.dev/tickos/pkg/kernel/sched"
	"tickos.dev/tickos/pkg/kernel/waiter"
)

type waitResult struct {
	got Bits
	err error
}

func testFlags(t *testing.T) (*EventFlags, *irq.Controller, *ktime.Manual) {
	t.Helper()
	c := &irq.Controller{}
	clk := ktime.NewManual(0)
	f, err := New(c, clk, Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return f, c, clk
}

func threadContext(name string) context.Context {
	return sched.NewContext(context.Background(), sched.New(name))
}

// waitParked polls until n waiters are registered on wq.
func waitParked(t *testing.T, c *irq.Controller, wq *waiter.Queue, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		c.Enter()
		got := wq.Len()
		c.Leave()
		if got >= n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d parked tasks, have %d", n, got)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWaitAllBlocksUntilComplete(t *testing.T) {
	f, c, _ := testFlags(t)
	ctx := threadContext("main")

	if prev, err := f.Raise(ctx, 0b011); err != nil || prev != 0 {
		t.Fatalf("Raise(0b011): got (%#b, %v), wanted (0, nil)", prev, err)
	}

	// 0b011 does not cover mask 0b101 in All mode, so the waiter parks.
	res := make(chan waitResult, 1)
	sched.Start("w", func(ctx context.Context) {
		got, err := f.Wait(ctx, 0b101, WaitAll)
		res <- waitResult{got, err}
	})
	waitParked(t, c, &f.waiters, 1)

	if prev, err := f.Raise(ctx, 0b100); err != nil || prev != 0b011 {
		t.Fatalf("Raise(0b100): got (%#b, %v), wanted (0b11, nil)", prev, err)
	}
	select {
	case r := <-res:
		if r.err != nil || r.got != 0b101 {
			t.Fatalf("Wait: got (%#b, %v), wanted (0b101, nil)", r.got, r.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never completed after the missing bit was raised")
	}
	// The delivered bits were consumed; the unrequested bit survives.
	if got, err := f.Get(ctx, 0, 0); err != nil || got != 0b010 {
		t.Fatalf("Get: got (%#b, %v), wanted (0b10, nil)", got, err)
	}
}

func TestWaitAnyDeliversSubset(t *testing.T) {
	f, _, _ := testFlags(t)
	ctx := threadContext("main")

	if _, err := f.Raise(ctx, 0b011); err != nil {
		t.Fatalf("Raise failed: %v", err)
	}
	got, err := f.Wait(ctx, 0b101, WaitAny)
	if err != nil || got != 0b001 {
		t.Fatalf("Wait(0b101, WaitAny): got (%#b, %v), wanted (0b1, nil)", got, err)
	}
	if left, err := f.Get(ctx, 0, 0); err != nil || left != 0b010 {
		t.Fatalf("Get: got (%#b, %v), wanted (0b10, nil)", left, err)
	}
}

func TestZeroMaskTakesWholeWord(t *testing.T) {
	f, _, _ := testFlags(t)
	ctx := threadContext("main")

	if _, err := f.Raise(ctx, 0b110); err != nil {
		t.Fatalf("Raise failed: %v", err)
	}
	// A zero mask needs no All/Any; Clear alone is a valid mode.
	got, err := f.Wait(ctx, 0, Clear)
	if err != nil || got != 0b110 {
		t.Fatalf("Wait(0, Clear): got (%#b, %v), wanted (0b110, nil)", got, err)
	}
	if left, err := f.Get(ctx, 0, 0); err != nil || left != 0 {
		t.Fatalf("Get after consuming wait: got (%#b, %v), wanted (0, nil)", left, err)
	}
	if _, err := f.TryWait(ctx, 0, Clear); !rterr.Equals(rterr.EAGAIN, err) {
		t.Fatalf("TryWait on an empty word returned %v, wanted EAGAIN", err)
	}
}

func TestRaiseWakesAllWaiters(t *testing.T) {
	f, c, _ := testFlags(t)
	ctx := threadContext("main")

	res := make(chan waitResult, 3)
	for i := 0; i < 3; i++ {
		mask := Bits(1) << i
		sched.Start("w", func(ctx context.Context) {
			got, err := f.Wait(ctx, mask, WaitAll)
			res <- waitResult{got, err}
		})
	}
	waitParked(t, c, &f.waiters, 3)

	// One raise releases the bit-0 and bit-1 waiters; the bit-2 waiter
	// re-tests and parks again.
	if _, err := f.Raise(ctx, 0b011); err != nil {
		t.Fatalf("Raise failed: %v", err)
	}
	released := map[Bits]bool{}
	for i := 0; i < 2; i++ {
		select {
		case r := <-res:
			if r.err != nil {
				t.Fatalf("Wait failed: %v", r.err)
			}
			released[r.got] = true
		case <-time.After(5 * time.Second):
			t.Fatal("a satisfied waiter never completed")
		}
	}
	if !released[0b001] || !released[0b010] {
		t.Fatalf("released waiters got %v, wanted bits 0b1 and 0b10", released)
	}
	select {
	case r := <-res:
		t.Fatalf("bit-2 waiter returned (%#b, %v) without its bit", r.got, r.err)
	case <-time.After(10 * time.Millisecond):
	}
	if !f.Waiting() {
		t.Fatal("Waiting: got false with the bit-2 waiter still parked")
	}

	if _, err := f.Raise(ctx, 0b100); err != nil {
		t.Fatalf("Raise failed: %v", err)
	}
	select {
	case r := <-res:
		if r.err != nil || r.got != 0b100 {
			t.Fatalf("Wait: got (%#b, %v), wanted (0b100, nil)", r.got, r.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("bit-2 waiter never completed")
	}
}

func TestTryWaitFromHandler(t *testing.T) {
	f, _, _ := testFlags(t)
	ctx := threadContext("main")
	hctx := sched.NewHandlerContext(context.Background())

	if _, err := f.Raise(ctx, 0b1010); err != nil {
		t.Fatalf("Raise failed: %v", err)
	}
	got, err := f.TryWait(hctx, 0b1000, WaitAny)
	if err != nil || got != 0b1000 {
		t.Fatalf("TryWait from handler: got (%#b, %v), wanted (0b1000, nil)", got, err)
	}
	if _, err := f.TryWait(hctx, 0b0100, WaitAll); !rterr.Equals(rterr.EAGAIN, err) {
		t.Fatalf("unsatisfied TryWait returned %v, wanted EAGAIN", err)
	}
}

func TestTimedWaitTimesOut(t *testing.T) {
	f, c, clk := testFlags(t)
	res := make(chan waitResult, 1)
	sched.Start("w", func(ctx context.Context) {
		got, err := f.TimedWait(ctx, 0b1, WaitAll, 5)
		res <- waitResult{got, err}
	})
	waitParked(t, c, &f.waiters, 1)

	clk.Advance(4)
	select {
	case r := <-res:
		t.Fatalf("TimedWait returned (%#b, %v) before its deadline", r.got, r.err)
	case <-time.After(10 * time.Millisecond):
	}
	clk.Advance(1)
	select {
	case r := <-res:
		if !rterr.Equals(rterr.ETIMEDOUT, r.err) {
			t.Fatalf("TimedWait returned %v, wanted ETIMEDOUT", r.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("TimedWait did not return at its deadline")
	}
	if f.Waiting() {
		t.Fatal("timed-out waiter still registered")
	}
}

func TestTimedWaitDeliveredInTime(t *testing.T) {
	f, c, clk := testFlags(t)
	res := make(chan waitResult, 1)
	sched.Start("w", func(ctx context.Context) {
		got, err := f.TimedWait(ctx, 0b1, WaitAll, 100)
		res <- waitResult{got, err}
	})
	waitParked(t, c, &f.waiters, 1)
	clk.Advance(50)

	if _, err := f.Raise(threadContext("main"), 0b1); err != nil {
		t.Fatalf("Raise failed: %v", err)
	}
	select {
	case r := <-res:
		if r.err != nil || r.got != 0b1 {
			t.Fatalf("TimedWait: got (%#b, %v), wanted (0b1, nil)", r.got, r.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("TimedWait never completed after the raise")
	}
}

func TestRaiseAndClearWords(t *testing.T) {
	f, _, _ := testFlags(t)
	ctx := threadContext("main")

	// Raise and Clear both report the word as it was, not as it becomes.
	if prev, err := f.Raise(ctx, 0b001); err != nil || prev != 0 {
		t.Fatalf("Raise: got (%#b, %v), wanted (0, nil)", prev, err)
	}
	if prev, err := f.Raise(ctx, 0b010); err != nil || prev != 0b001 {
		t.Fatalf("Raise: got (%#b, %v), wanted (0b1, nil)", prev, err)
	}
	if previous, err := f.Clear(ctx, 0b001); err != nil || previous != 0b011 {
		t.Fatalf("Clear: got (%#b, %v), wanted (0b11, nil)", previous, err)
	}
	if got, err := f.Get(ctx, 0, 0); err != nil || got != 0b010 {
		t.Fatalf("Get: got (%#b, %v), wanted (0b10, nil)", got, err)
	}
	// Get in Clear mode consumes what it returns; with a zero mask it
	// never clears.
	if got, err := f.Get(ctx, 0b010, Clear); err != nil || got != 0b010 {
		t.Fatalf("Get(0b10, Clear): got (%#b, %v), wanted (0b10, nil)", got, err)
	}
	if got, err := f.Get(ctx, 0, Clear); err != nil || got != 0 {
		t.Fatalf("Get after consuming read: got (%#b, %v), wanted (0, nil)", got, err)
	}
}

func TestArgumentValidation(t *testing.T) {
	f, _, _ := testFlags(t)
	ctx := threadContext("main")

	if _, err := f.Wait(ctx, Reserved|0b1, WaitAll); !rterr.Equals(rterr.EINVAL, err) {
		t.Errorf("Wait(reserved bit): got %v, wanted EINVAL", err)
	}
	if _, err := f.Wait(ctx, 0b1, Clear); !rterr.Equals(rterr.EINVAL, err) {
		t.Errorf("Wait(mask without All/Any): got %v, wanted EINVAL", err)
	}
	if _, err := f.TryWait(ctx, 0b1, 0); !rterr.Equals(rterr.EINVAL, err) {
		t.Errorf("TryWait(mask without All/Any): got %v, wanted EINVAL", err)
	}
	if _, err := f.TimedWait(ctx, 0b1, Clear, 5); !rterr.Equals(rterr.EINVAL, err) {
		t.Errorf("TimedWait(mask without All/Any): got %v, wanted EINVAL", err)
	}
	if _, err := f.Raise(ctx, 0); !rterr.Equals(rterr.EINVAL, err) {
		t.Errorf("Raise(0): got %v, wanted EINVAL", err)
	}
	if _, err := f.Raise(ctx, Reserved); !rterr.Equals(rterr.EINVAL, err) {
		t.Errorf("Raise(reserved bit): got %v, wanted EINVAL", err)
	}
	if _, err := f.Clear(ctx, 0); !rterr.Equals(rterr.EINVAL, err) {
		t.Errorf("Clear(0): got %v, wanted EINVAL", err)
	}
	if _, err := f.Get(ctx, Reserved|0b1, 0); !rterr.Equals(rterr.EINVAL, err) {
		t.Errorf("Get(reserved bit): got %v, wanted EINVAL", err)
	}
}

func TestHandlerPermissions(t *testing.T) {
	f, _, _ := testFlags(t)
	hctx := sched.NewHandlerContext(context.Background())

	if _, err := f.Wait(hctx, 0b1, WaitAll); !rterr.Equals(rterr.EPERM, err) {
		t.Errorf("Wait from handler: got %v, wanted EPERM", err)
	}
	if _, err := f.TimedWait(hctx, 0b1, WaitAll, 5); !rterr.Equals(rterr.EPERM, err) {
		t.Errorf("TimedWait from handler: got %v, wanted EPERM", err)
	}
	if _, err := f.Raise(hctx, 0b1); err != nil {
		t.Errorf("Raise from handler: got %v, wanted nil", err)
	}
	if _, err := f.Clear(hctx, 0b1); !rterr.Equals(rterr.EPERM, err) {
		t.Errorf("Clear from handler: got %v, wanted EPERM", err)
	}
	if _, err := f.Get(hctx, 0, 0); err != nil {
		t.Errorf("Get from handler: got %v, wanted nil", err)
	}
}

func TestWaitInterrupted(t *testing.T) {
	f, c, _ := testFlags(t)
	res := make(chan waitResult, 1)
	task := sched.Start("w", func(ctx context.Context) {
		got, err := f.Wait(ctx, 0b1, WaitAll)
		res <- waitResult{got, err}
	})
	waitParked(t, c, &f.waiters, 1)

	task.Interrupt()
	select {
	case r := <-res:
		if !rterr.Equals(rterr.EINTR, r.err) {
			t.Fatalf("interrupted Wait returned %v, wanted EINTR", r.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("interrupted Wait never returned")
	}
	if f.Waiting() {
		t.Fatal("interrupted waiter still registered")
	}
}

func TestManyWaitersOneRaise(t *testing.T) {
	const waiters = 8
	f, c, _ := testFlags(t)

	var g errgroup.Group
	for i := 0; i < waiters; i++ {
		mask := Bits(1) << i
		g.Go(func() error {
			ctx := threadContext("w")
			got, err := f.Wait(ctx, mask, WaitAll)
			if err != nil {
				return err
			}
			if got != mask {
				return fmt.Errorf("Wait: got %#b, wanted %#b", got, mask)
			}
			return nil
		})
	}
	waitParked(t, c, &f.waiters, waiters)

	if _, err := f.Raise(threadContext("main"), (1<<waiters)-1); err != nil {
		t.Fatalf("Raise failed: %v", err)
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("waiter failed: %v", err)
	}
	if got, err := f.Get(threadContext("main"), 0, 0); err != nil || got != 0 {
		t.Fatalf("Get: got (%#b, %v), wanted (0, nil) after every bit was consumed", got, err)
	}
}
