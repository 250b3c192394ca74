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

// Package ktime defines the kernel's tick-based time representation and the
// clocks that provide it.
package ktime

// Ticks is an absolute reading of a tick counter. The counter is monotonic
// and wraps at 2^32; absolute values are therefore meaningless on their own
// and must only be compared through Sub, which is wraparound-safe.
type Ticks uint32

// Sub returns the number of ticks from b to a, assuming the real distance
// is less than half the counter range. Modular arithmetic makes the result
// correct across a counter wrap.
func Sub(a, b Ticks) Ticks {
	return a - b
}

// Clock provides tick readings and one-shot timers. Implementations must be
// safe for use from any goroutine.
type Clock interface {
	// Now returns the current tick count.
	Now() Ticks

	// After returns a channel on which one value is sent once d ticks have
	// elapsed, and a stop function releasing the timer early. The channel
	// is buffered; the send never blocks. After(0) fires immediately.
	After(d Ticks) (<-chan struct{}, func())
}
