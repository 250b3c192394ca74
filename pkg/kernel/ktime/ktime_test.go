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
	"math"
	"testing"
	"time"
)

func TestSubWraparound(t *testing.T) {
	for _, tc := range []struct {
		a, b Ticks
		want Ticks
	}{
		{10, 3, 7},
		{3, 3, 0},
		{0, math.MaxUint32, 1},
		{5, math.MaxUint32 - 4, 10},
		{math.MaxUint32, 0, math.MaxUint32},
	} {
		if got := Sub(tc.a, tc.b); got != tc.want {
			t.Errorf("Sub(%d, %d): got %d, wanted %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestManualAdvance(t *testing.T) {
	c := NewManual(100)
	if got := c.Now(); got != 100 {
		t.Errorf("Now: got %d, wanted 100", got)
	}

	ch, stop := c.After(5)
	defer stop()

	c.Advance(4)
	select {
	case <-ch:
		t.Fatal("timer fired one tick early")
	default:
	}

	c.Advance(1)
	select {
	case <-ch:
	default:
		t.Fatal("timer did not fire at its deadline")
	}
	if got := c.Now(); got != 105 {
		t.Errorf("Now after Advance: got %d, wanted 105", got)
	}
}

func TestManualZeroDelay(t *testing.T) {
	c := NewManual(0)
	ch, stop := c.After(0)
	defer stop()
	select {
	case <-ch:
	default:
		t.Fatal("After(0) did not fire immediately")
	}
}

func TestManualStop(t *testing.T) {
	c := NewManual(0)
	ch, stop := c.After(3)
	stop()
	c.Advance(10)
	select {
	case <-ch:
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestManualWrap(t *testing.T) {
	c := NewManual(math.MaxUint32 - 1)
	ch, stop := c.After(4)
	defer stop()

	c.Advance(3)
	select {
	case <-ch:
		t.Fatal("timer fired before its deadline across the wrap")
	default:
	}

	c.Advance(1)
	select {
	case <-ch:
	default:
		t.Fatal("timer did not fire after wrapping")
	}
	if got := c.Now(); got != 2 {
		t.Errorf("Now after wrap: got %d, wanted 2", got)
	}
}

func TestMonotonic(t *testing.T) {
	c := NewMonotonic(time.Millisecond)
	start := c.Now()

	ch, stop := c.After(10)
	defer stop()

	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not fire")
	}

	// The monotonic clock can only have moved forward.
	if got := c.Now(); Sub(got, start) == 0 {
		t.Errorf("Now did not advance across a 10 tick timer: start=%d now=%d", start, got)
	}
}
