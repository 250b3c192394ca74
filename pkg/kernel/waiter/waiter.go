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

// Package waiter provides the waiting-thread lists that the synchronization
// primitives park on, and the blocking protocol they all share.
package waiter

import (
	"tickos.dev/tickos/pkg/ilist"
	"tickos.dev/tickos/pkg/kernel/sched"
)

// Entry is one parked thread's node on a Queue. The entry lives in the
// blocking call's stack frame and is linked only while that call is
// waiting; every return path unlinks it first.
type Entry struct {
	ilist.Entry[*Entry]

	// task is the thread to wake.
	task *sched.Task

	// queue is the Queue the entry is linked on, nil when unlinked.
	// Guarded by the owning object's interrupt controller.
	queue *Queue
}

// NewEntry returns an entry for t, ready to be added to a queue.
func NewEntry(t *sched.Task) Entry {
	return Entry{task: t}
}

// Task returns the thread this entry belongs to.
func (e *Entry) Task() *sched.Task {
	return e.task
}

// Queue is a FIFO list of waiting threads. Threads are woken in
// registration order.
//
// A Queue has no lock of its own: every operation requires the owning
// object's interrupt controller section to be held.
type Queue struct {
	list ilist.List[*Entry]
}

// Add links e at the back of q.
//
// Preconditions:
//   - The owning controller section must be held.
//   - e must not be linked on any queue.
func (q *Queue) Add(e *Entry) {
	e.queue = q
	q.list.PushBack(e)
}

// Remove unlinks e if it is still linked. A woken entry has already been
// unlinked by its waker, so removing it again is a no-op; callers may
// always unlink on their way out.
//
// Preconditions: the owning controller section must be held.
func (q *Queue) Remove(e *Entry) {
	if e.queue == q {
		q.list.Remove(e)
		e.queue = nil
	}
}

// WakeOne unlinks and wakes the thread that has waited longest, reporting
// whether there was one.
//
// Preconditions: the owning controller section must be held.
func (q *Queue) WakeOne() bool {
	e := q.list.Front()
	if e == nil {
		return false
	}
	q.list.Remove(e)
	e.queue = nil
	e.task.Wake()
	return true
}

// WakeAll unlinks and wakes every waiting thread and returns the number
// woken. Each resumes, re-tests its condition, and re-registers if the
// condition still does not hold.
//
// Preconditions: the owning controller section must be held.
func (q *Queue) WakeAll() int {
	n := 0
	for q.WakeOne() {
		n++
	}
	return n
}

// Empty returns true iff no thread is waiting on q.
//
// Preconditions: the owning controller section must be held.
func (q *Queue) Empty() bool {
	return q.list.Empty()
}

// Len returns the number of waiting threads.
//
// Preconditions: the owning controller section must be held.
func (q *Queue) Len() int {
	return q.list.Len()
}
