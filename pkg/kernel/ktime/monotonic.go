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
	"time"
)

// DefaultTickPeriod is the tick period used when a Monotonic clock is
// created with period 0.
const DefaultTickPeriod = time.Millisecond

// Monotonic is a Clock backed by the host's monotonic clock, dividing real
// time into fixed ticks.
type Monotonic struct {
	epoch  time.Time
	period time.Duration
}

// NewMonotonic returns a Monotonic clock with the given tick period. The
// counter starts at zero.
func NewMonotonic(period time.Duration) *Monotonic {
	if period <= 0 {
		period = DefaultTickPeriod
	}
	return &Monotonic{
		epoch:  time.Now(),
		period: period,
	}
}

// Period returns the tick period.
func (m *Monotonic) Period() time.Duration {
	return m.period
}

// Now implements Clock.Now.
func (m *Monotonic) Now() Ticks {
	return Ticks(time.Since(m.epoch) / m.period)
}

// After implements Clock.After.
func (m *Monotonic) After(d Ticks) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	t := time.AfterFunc(time.Duration(d)*m.period, func() {
		ch <- struct{}{}
	})
	return ch, func() { t.Stop() }
}
