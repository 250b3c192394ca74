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

package mqueue

// index addresses a slot in the arena.
type index uint16

// noIndex is the null slot link.
const noIndex = ^index(0)

// Priority orders messages; higher is delivered first, FIFO among equals.
type Priority uint32

// MaxPriority is the largest usable message priority.
const MaxPriority Priority = 32767

type slotState uint8

const (
	// slotFree: on the free list.
	slotFree slotState = iota

	// slotClaimed: owned by one in-flight send or receive, on neither
	// structure and invisible to everyone else.
	slotClaimed

	// slotQueued: linked on the occupied ring, carrying a message.
	slotQueued
)

// arena is the fixed slot storage behind a MessageQueue: payload bytes for
// capacity slots plus the links that thread the slots onto either the free
// list or the occupied ring.
//
// The occupied ring is circular and doubly linked, ordered by descending
// priority with FIFO among equal priorities; head is the highest-priority,
// oldest slot. The free list is singly linked through next and reuses
// slots most-recently-freed first. Every slot is on exactly one structure,
// or claimed by exactly one in-flight operation.
//
// The arena does no locking: all methods require the owning queue's
// controller section to be held.
type arena struct {
	msgSize int
	payload []byte

	prev  []index
	next  []index
	prio  []Priority
	state []slotState

	// head is the ring head, noIndex when no message is queued.
	head index

	// free is the free list head, noIndex when exhausted.
	free index

	// count is the number of queued messages.
	count int
}

func newArena(capacity, msgSize int, payload []byte) *arena {
	a := &arena{
		msgSize: msgSize,
		payload: payload,
		prev:    make([]index, capacity),
		next:    make([]index, capacity),
		prio:    make([]Priority, capacity),
		state:   make([]slotState, capacity),
		head:    noIndex,
	}
	a.reset()
	return a
}

// slot returns the payload bytes of slot s. Only the slot's current owner
// may touch them.
func (a *arena) slot(s index) []byte {
	off := int(s) * a.msgSize
	return a.payload[off : off+a.msgSize]
}

// claim takes a slot off the free list for a sender to fill, reporting
// false when the queue is full.
func (a *arena) claim() (index, bool) {
	s := a.free
	if s == noIndex {
		return noIndex, false
	}
	a.free = a.next[s]
	a.state[s] = slotClaimed
	a.next[s] = noIndex
	a.prev[s] = noIndex
	return s, true
}

// publish links a claimed slot into the occupied ring: an empty ring is
// the slot alone; a priority above the head's makes it the new head; any
// other lands after the last slot, walking back from the tail, whose
// priority is at least prio. That keeps the ring strictly descending and
// FIFO among equals.
func (a *arena) publish(s index, prio Priority) {
	a.prio[s] = prio
	a.state[s] = slotQueued
	switch {
	case a.head == noIndex:
		a.prev[s] = s
		a.next[s] = s
		a.head = s
	case prio > a.prio[a.head]:
		tail := a.prev[a.head]
		a.next[tail] = s
		a.prev[s] = tail
		a.next[s] = a.head
		a.prev[a.head] = s
		a.head = s
	default:
		ix := a.prev[a.head]
		for prio > a.prio[ix] {
			ix = a.prev[ix]
		}
		nx := a.next[ix]
		a.next[s] = nx
		a.prev[s] = ix
		a.next[ix] = s
		a.prev[nx] = s
	}
	a.count++
}

// take unlinks the head slot, the highest-priority oldest message, and
// hands it to the receiver as claimed. Reports false when nothing is
// queued.
func (a *arena) take() (index, bool) {
	s := a.head
	if s == noIndex {
		return noIndex, false
	}
	if a.count > 1 {
		nx := a.next[s]
		pv := a.prev[s]
		a.prev[nx] = pv
		a.next[pv] = nx
		a.head = nx
	} else {
		a.head = noIndex
	}
	a.count--
	a.state[s] = slotClaimed
	a.next[s] = noIndex
	a.prev[s] = noIndex
	return s, true
}

// release returns a drained slot to the front of the free list.
func (a *arena) release(s index) {
	a.state[s] = slotFree
	a.next[s] = a.free
	a.prev[s] = noIndex
	a.free = s
}

// reset drops every queued message and rebuilds the free list in index
// order. Slots claimed by in-flight operations are left to their owners;
// they rejoin the free list when released, or the ring when published.
func (a *arena) reset() {
	a.head = noIndex
	a.count = 0
	a.free = noIndex
	for i := len(a.state) - 1; i >= 0; i-- {
		s := index(i)
		if a.state[s] == slotClaimed {
			continue
		}
		a.state[s] = slotFree
		a.next[s] = a.free
		a.prev[s] = noIndex
		a.free = s
	}
}
