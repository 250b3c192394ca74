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

// Package mqueue provides fixed-capacity priority message queues.
//
// A queue owns a preallocated arena of equal-sized slots; no memory is
// allocated after construction. Senders claim a free slot, fill it, and
// publish it onto a priority-ordered ring; receivers drain the ring head.
// Messages with equal priority are delivered in arrival order.
//
// Send, Receive and their Timed variants park the calling task until the
// queue has room or a message, and are therefore thread context only. The
// Try variants never park and are safe from interrupt handlers.
package mqueue

import (
	"context"

	"tickos.dev/tickos/pkg/errors/rterr"
	"tickos.dev/tickos/pkg/irq"
	"tickos.dev/tickos/pkg/kernel/ktime"
	"tickos.dev/tickos/pkg/kernel/sched"
	"tickos.dev/tickos/pkg/kernel/waiter"
	"tickos.dev/tickos/pkg/log"
)

// MaxCapacity is the largest supported slot count; one index value is
// reserved as the null link.
const MaxCapacity = 65534

// SlotOverhead is the per-slot bookkeeping cost in bytes beyond the
// payload: two slot links plus the stored priority.
const SlotOverhead = 8

// StorageSize returns the number of bytes caller-supplied storage must
// provide for a queue with the given geometry.
func StorageSize(capacity, msgSize int) int {
	return capacity * (msgSize + SlotOverhead)
}

// Config configures a MessageQueue.
type Config struct {
	// Name identifies the queue in logs. Empty becomes "-".
	Name string

	// Capacity is the number of message slots, in [1, MaxCapacity].
	Capacity int

	// MsgSize is the fixed payload size of every slot, in bytes, at
	// least 1. Shorter messages are zero padded to this size.
	MsgSize int

	// Storage optionally supplies the arena's backing memory. When nil
	// the queue allocates its own. When non-nil it must hold at least
	// StorageSize(Capacity, MsgSize) bytes; the payload area is carved
	// from its front.
	Storage []byte
}

// DefaultConfig returns the configuration of an anonymous queue with the
// given geometry and queue-allocated storage.
func DefaultConfig(capacity, msgSize int) Config {
	return Config{Capacity: capacity, MsgSize: msgSize}
}

// MessageQueue is a fixed-capacity message queue delivering in descending
// priority order, FIFO among equal priorities.
//
// Methods are safe for concurrent use from any number of tasks.
type MessageQueue struct {
	name string
	c    *irq.Controller
	clk  ktime.Clock

	// a is the slot arena. Guarded by c.
	a *arena

	// senders parks tasks waiting for a free slot, receivers parks
	// tasks waiting for a message. Both guarded by c.
	senders   waiter.Queue
	receivers waiter.Queue
}

// New creates a message queue protected by the given interrupt controller
// and using clk for timed operations.
//
// It fails with EINVAL on a zero geometry or undersized Storage, and with
// EOVERFLOW when Capacity exceeds MaxCapacity.
func New(c *irq.Controller, clk ktime.Clock, cfg Config) (*MessageQueue, error) {
	if c == nil || clk == nil {
		return nil, rterr.EINVAL
	}
	if cfg.Capacity < 1 || cfg.MsgSize < 1 {
		return nil, rterr.EINVAL
	}
	if cfg.Capacity > MaxCapacity {
		return nil, rterr.EOVERFLOW
	}
	payload := cfg.Storage
	if payload == nil {
		payload = make([]byte, cfg.Capacity*cfg.MsgSize)
	} else {
		if len(payload) < StorageSize(cfg.Capacity, cfg.MsgSize) {
			return nil, rterr.EINVAL
		}
		payload = payload[:cfg.Capacity*cfg.MsgSize]
	}
	name := cfg.Name
	if name == "" {
		name = "-"
	}
	q := &MessageQueue{
		name: name,
		c:    c,
		clk:  clk,
		a:    newArena(cfg.Capacity, cfg.MsgSize, payload),
	}
	log.Debugf("mqueue %q: created, capacity %d, msgsize %d", name, cfg.Capacity, cfg.MsgSize)
	return q, nil
}

// Name returns the queue's name.
func (q *MessageQueue) Name() string {
	return q.name
}

// Cap returns the queue's slot count.
func (q *MessageQueue) Cap() int {
	return len(q.a.state)
}

// MsgSize returns the fixed payload size of every slot.
func (q *MessageQueue) MsgSize() int {
	return q.a.msgSize
}

// Len returns the number of queued messages.
func (q *MessageQueue) Len() int {
	q.c.Enter()
	defer q.c.Leave()
	return q.a.count
}

// Empty reports whether no message is queued.
func (q *MessageQueue) Empty() bool {
	return q.Len() == 0
}

// Full reports whether every slot holds a message.
func (q *MessageQueue) Full() bool {
	return q.Len() == q.Cap()
}

func (q *MessageQueue) checkSend(buf []byte, prio Priority) error {
	if len(buf) == 0 || prio > MaxPriority {
		return rterr.EINVAL
	}
	if len(buf) > q.a.msgSize {
		return rterr.EMSGSIZE
	}
	return nil
}

// deposit fills a claimed slot and publishes it. The payload copy runs
// outside any section; the slot stays invisible to receivers until the
// publish.
func (q *MessageQueue) deposit(s index, buf []byte, prio Priority) {
	slot := q.a.slot(s)
	n := copy(slot, buf)
	clear(slot[n:])
	q.c.Enter()
	q.a.publish(s, prio)
	q.receivers.WakeOne()
	q.c.Leave()
}

// withdraw drains a taken slot into buf and releases it. The payload copy
// runs outside any section.
func (q *MessageQueue) withdraw(s index, buf []byte) (int, Priority) {
	prio := q.a.prio[s]
	n := copy(buf, q.a.slot(s))
	q.c.Enter()
	q.a.release(s)
	q.senders.WakeOne()
	q.c.Leave()
	return n, prio
}

// Send queues the message in buf at the given priority, parking the
// calling task while the queue is full. Messages shorter than MsgSize are
// zero padded.
//
// It fails with EPERM from interrupt context, EINVAL on an empty buf or a
// priority above MaxPriority, EMSGSIZE when buf exceeds MsgSize, and
// EINTR when the task is interrupted while parked.
func (q *MessageQueue) Send(ctx context.Context, buf []byte, prio Priority) error {
	if sched.InHandler(ctx) {
		return rterr.EPERM
	}
	if err := q.checkSend(buf, prio); err != nil {
		return err
	}
	var s index
	err := waiter.Block(ctx, q.c, &q.senders, func() bool {
		var ok bool
		s, ok = q.a.claim()
		return ok
	})
	if err != nil {
		return err
	}
	q.deposit(s, buf, prio)
	return nil
}

// TrySend is Send without parking: a full queue fails with EAGAIN. It is
// safe from interrupt context.
func (q *MessageQueue) TrySend(ctx context.Context, buf []byte, prio Priority) error {
	if err := q.checkSend(buf, prio); err != nil {
		return err
	}
	q.c.Enter()
	s, ok := q.a.claim()
	q.c.Leave()
	if !ok {
		return rterr.EAGAIN
	}
	q.deposit(s, buf, prio)
	return nil
}

// TimedSend is Send bounded by timeout ticks; it fails with ETIMEDOUT
// when no slot frees up in time. A zero timeout waits one tick.
func (q *MessageQueue) TimedSend(ctx context.Context, buf []byte, prio Priority, timeout ktime.Ticks) error {
	if sched.InHandler(ctx) {
		return rterr.EPERM
	}
	if err := q.checkSend(buf, prio); err != nil {
		return err
	}
	var s index
	err := waiter.BlockTimeout(ctx, q.c, &q.senders, q.clk, timeout, func() bool {
		var ok bool
		s, ok = q.a.claim()
		return ok
	})
	if err != nil {
		return err
	}
	q.deposit(s, buf, prio)
	return nil
}

// Receive copies the highest-priority, oldest message into buf, parking
// the calling task while the queue is empty. It returns the payload
// length, always MsgSize, and the message's priority. buf must hold a
// full slot.
//
// It fails with EPERM from interrupt context, EINVAL when buf is shorter
// than MsgSize, and EINTR when the task is interrupted while parked.
func (q *MessageQueue) Receive(ctx context.Context, buf []byte) (int, Priority, error) {
	if sched.InHandler(ctx) {
		return 0, 0, rterr.EPERM
	}
	if len(buf) < q.a.msgSize {
		return 0, 0, rterr.EINVAL
	}
	var s index
	err := waiter.Block(ctx, q.c, &q.receivers, func() bool {
		var ok bool
		s, ok = q.a.take()
		return ok
	})
	if err != nil {
		return 0, 0, err
	}
	n, prio := q.withdraw(s, buf)
	return n, prio, nil
}

// TryReceive is Receive without parking: an empty queue fails with
// EAGAIN. It is safe from interrupt context.
func (q *MessageQueue) TryReceive(ctx context.Context, buf []byte) (int, Priority, error) {
	if len(buf) < q.a.msgSize {
		return 0, 0, rterr.EINVAL
	}
	q.c.Enter()
	s, ok := q.a.take()
	q.c.Leave()
	if !ok {
		return 0, 0, rterr.EAGAIN
	}
	n, prio := q.withdraw(s, buf)
	return n, prio, nil
}

// TimedReceive is Receive bounded by timeout ticks; it fails with
// ETIMEDOUT when no message arrives in time. A zero timeout waits one
// tick.
func (q *MessageQueue) TimedReceive(ctx context.Context, buf []byte, timeout ktime.Ticks) (int, Priority, error) {
	if sched.InHandler(ctx) {
		return 0, 0, rterr.EPERM
	}
	if len(buf) < q.a.msgSize {
		return 0, 0, rterr.EINVAL
	}
	var s index
	err := waiter.BlockTimeout(ctx, q.c, &q.receivers, q.clk, timeout, func() bool {
		var ok bool
		s, ok = q.a.take()
		return ok
	})
	if err != nil {
		return 0, 0, err
	}
	n, prio := q.withdraw(s, buf)
	return n, prio, nil
}

// Reset drops every queued message and wakes all parked senders and
// receivers, which re-evaluate against the emptied queue.
//
// It fails with EPERM from interrupt context.
func (q *MessageQueue) Reset(ctx context.Context) error {
	if sched.InHandler(ctx) {
		return rterr.EPERM
	}
	q.c.Enter()
	q.a.reset()
	ns := q.senders.WakeAll()
	nr := q.receivers.WakeAll()
	q.c.Leave()
	if log.IsLogging(log.Debug) {
		log.Debugf("mqueue %q: reset, woke %d senders, %d receivers", q.name, ns, nr)
	}
	return nil
}
