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

// Package sched provides the thread handles and context plumbing that the
// synchronization primitives build on. Threads are goroutines holding a
// *Task; interrupt handlers are goroutines running under a handler-marked
// context and must never block on a primitive.
package sched

import (
	"runtime"

	"tickos.dev/tickos/pkg/atomicbitops"
	"tickos.dev/tickos/pkg/kernel/ktime"
)

// Task is the handle for one schedulable thread.
//
// Wakeups are sticky: a Wake delivered while the task is running is
// consumed by its next Park, so a wakeup racing a suspension is never
// lost. The flip side is that Park may return spuriously; blocking loops
// re-test their condition after every resumption.
type Task struct {
	// name is fixed at creation and used in logs.
	name string

	// wake is the wakeup token. The single-entry buffer is what makes
	// wakeups sticky; redundant wakes collapse into one token.
	wake chan struct{}

	// interrupted is set by Interrupt and survives until ClearInterrupt,
	// so every blocking call observes it until the thread deals with it.
	interrupted atomicbitops.Bool
}

// New creates a task handle. An empty name becomes "-", the name of
// anonymous kernel objects.
func New(name string) *Task {
	if name == "" {
		name = "-"
	}
	return &Task{
		name: name,
		wake: make(chan struct{}, 1),
	}
}

// Name returns the task's name.
func (t *Task) Name() string {
	return t.name
}

// String implements fmt.Stringer.String.
func (t *Task) String() string {
	return t.name
}

// Wake makes the task runnable. It never blocks and is safe from any
// context, interrupt handlers included.
func (t *Task) Wake() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Park suspends the calling goroutine until the task is woken. If a wake
// arrived since the last Park it returns immediately.
func (t *Task) Park() {
	<-t.wake
}

// ParkUntil is like Park but also resumes when expired becomes readable.
// It reports whether the task was woken; false means expired fired first.
// Callers that need the timer armed atomically with some other state pass
// a channel they armed themselves.
func (t *Task) ParkUntil(expired <-chan struct{}) bool {
	select {
	case <-t.wake:
		return true
	case <-expired:
		return false
	}
}

// ParkTimeout is like Park but gives up after d ticks on c. It reports
// whether the task was woken; false means the timer fired first.
func (t *Task) ParkTimeout(c ktime.Clock, d ktime.Ticks) bool {
	ch, stop := c.After(d)
	defer stop()
	return t.ParkUntil(ch)
}

// Interrupt marks the task interrupted and wakes it. The mark is sticky:
// blocking operations keep failing with the interrupted error until
// ClearInterrupt is called.
func (t *Task) Interrupt() {
	t.interrupted.Store(true)
	t.Wake()
}

// Interrupted returns whether the task is marked interrupted.
func (t *Task) Interrupted() bool {
	return t.interrupted.Load()
}

// ClearInterrupt removes the interrupted mark.
func (t *Task) ClearInterrupt() {
	t.interrupted.Store(false)
}

// Yield hints the scheduler to run something else.
func Yield() {
	runtime.Gosched()
}
