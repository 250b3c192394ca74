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

package sched

import (
	"context"
	"testing"
	"time"

	"tickos.dev/tickos/pkg/kernel/ktime"
)

func TestWakeBeforeParkIsSticky(t *testing.T) {
	task := New("t")
	task.Wake()

	done := make(chan struct{})
	go func() {
		task.Park()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Park did not consume the earlier Wake")
	}
}

func TestRedundantWakesCollapse(t *testing.T) {
	task := New("t")
	task.Wake()
	task.Wake()
	task.Wake()
	task.Park()

	// Exactly one token was pending; a second Park must block.
	woke := make(chan struct{})
	go func() {
		task.Park()
		close(woke)
	}()
	select {
	case <-woke:
		t.Fatal("second Park returned without a new Wake")
	case <-time.After(50 * time.Millisecond):
	}
	task.Wake()
	<-woke
}

func TestParkTimeout(t *testing.T) {
	clk := ktime.NewManual(0)
	task := New("t")

	res := make(chan bool, 1)
	go func() {
		res <- task.ParkTimeout(clk, 10)
	}()

	// Let the parked task arm its timer before moving the clock.
	for deadline := time.Now().Add(5 * time.Second); clk.Timers() == 0; {
		if time.Now().After(deadline) {
			t.Fatal("timer was never armed")
		}
		time.Sleep(time.Millisecond)
	}

	clk.Advance(9)
	select {
	case got := <-res:
		t.Fatalf("ParkTimeout returned %v before its deadline", got)
	case <-time.After(50 * time.Millisecond):
	}

	clk.Advance(1)
	select {
	case got := <-res:
		if got {
			t.Error("ParkTimeout: got woken=true, wanted false (timer)")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ParkTimeout did not return at its deadline")
	}
}

func TestParkTimeoutWoken(t *testing.T) {
	clk := ktime.NewManual(0)
	task := New("t")

	res := make(chan bool, 1)
	go func() {
		res <- task.ParkTimeout(clk, 1000)
	}()

	time.Sleep(10 * time.Millisecond)
	task.Wake()
	select {
	case got := <-res:
		if !got {
			t.Error("ParkTimeout: got woken=false, wanted true")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ParkTimeout did not return after Wake")
	}
}

func TestInterrupt(t *testing.T) {
	task := New("t")
	if task.Interrupted() {
		t.Error("new task already interrupted")
	}
	task.Interrupt()
	if !task.Interrupted() {
		t.Error("Interrupted: got false after Interrupt")
	}
	// The interrupt also woke the task.
	task.Park()

	// The mark is sticky until cleared.
	if !task.Interrupted() {
		t.Error("mark vanished without ClearInterrupt")
	}
	task.ClearInterrupt()
	if task.Interrupted() {
		t.Error("Interrupted: got true after ClearInterrupt")
	}
}

func TestDefaultName(t *testing.T) {
	if got := New("").Name(); got != "-" {
		t.Errorf("Name: got %q, wanted %q", got, "-")
	}
	if got := New("worker").String(); got != "worker" {
		t.Errorf("String: got %q, wanted %q", got, "worker")
	}
}

func TestContextPlumbing(t *testing.T) {
	task := New("t")
	ctx := NewContext(context.Background(), task)

	if got := FromContext(ctx); got != task {
		t.Errorf("FromContext: got %v, wanted %v", got, task)
	}
	if InHandler(ctx) {
		t.Error("InHandler(thread ctx): got true, wanted false")
	}

	// A bare context is not a thread.
	if got := FromContext(context.Background()); got != nil {
		t.Errorf("FromContext(background): got %v, wanted nil", got)
	}
	if !InHandler(context.Background()) {
		t.Error("InHandler(background): got false, wanted true")
	}
}

func TestHandlerContextHidesTask(t *testing.T) {
	task := New("t")
	ctx := NewHandlerContext(NewContext(context.Background(), task))

	if !InHandler(ctx) {
		t.Error("InHandler(handler ctx): got false, wanted true")
	}
	if got := FromContext(ctx); got != nil {
		t.Errorf("FromContext(handler ctx): got %v, wanted nil", got)
	}
}

func TestStart(t *testing.T) {
	ran := make(chan *Task, 1)
	task := Start("runner", func(ctx context.Context) {
		ran <- FromContext(ctx)
	})
	select {
	case got := <-ran:
		if got != task {
			t.Errorf("task in context: got %v, wanted %v", got, task)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("started task never ran")
	}
}
