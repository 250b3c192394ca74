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

package ktime

import (
	"tickos.dev/tickos/pkg/atomicbitops"
	"tickos.dev/tickos/pkg/ilist"
	"tickos.dev/tickos/pkg/sync"
)

// Manual is a Clock that only moves when Advance is called. It is intended
// for tests that need deterministic deadlines.
type Manual struct {
	now atomicbitops.Uint32

	// mu protects timers.
	mu     sync.Mutex
	timers ilist.List[*manualTimer]
}

type manualTimer struct {
	ilist.Entry[*manualTimer]

	deadline Ticks
	ch       chan struct{}

	// linked is true while the timer sits on the clock's list. It is
	// guarded by the clock's mu.
	linked bool
}

// NewManual returns a Manual clock reading start.
func NewManual(start Ticks) *Manual {
	return &Manual{
		now: atomicbitops.FromUint32(uint32(start)),
	}
}

// Now implements Clock.Now.
func (m *Manual) Now() Ticks {
	return Ticks(m.now.Load())
}

// After implements Clock.After.
func (m *Manual) After(d Ticks) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	if d == 0 {
		ch <- struct{}{}
		return ch, func() {}
	}
	t := &manualTimer{
		deadline: m.Now() + d,
		ch:       ch,
		linked:   true,
	}
	m.mu.Lock()
	m.timers.PushBack(t)
	m.mu.Unlock()
	stop := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if t.linked {
			m.timers.Remove(t)
			t.linked = false
		}
	}
	return ch, stop
}

// Timers returns the number of armed timers. Tests use it to hold back
// Advance until a waiter has armed its timer.
func (m *Manual) Timers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timers.Len()
}

// Advance moves the clock forward by d ticks and fires every timer whose
// deadline has been reached.
func (m *Manual) Advance(d Ticks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := Ticks(m.now.Load()) + d
	m.now.Store(uint32(now))
	for t := m.timers.Front(); t != nil; {
		next := t.Next()
		// Due iff the modular distance from deadline to now is small,
		// which stays correct across a counter wrap.
		if Sub(now, t.deadline) < 1<<31 {
			m.timers.Remove(t)
			t.linked = false
			t.ch <- struct{}{}
		}
		t = next
	}
}
