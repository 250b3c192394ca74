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

package irq

import (
	"testing"
	"time"

	"tickos.dev/tickos/pkg/sync"
)

func TestCriticalExcludes(t *testing.T) {
	var c Controller
	const workers = 8
	const rounds = 1000

	// If sections overlap, the unsynchronized counter pair drifts apart.
	var a, b int
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				c.Critical(func() {
					a++
					b++
				})
			}
		}()
	}
	wg.Wait()

	if a != b || a != workers*rounds {
		t.Errorf("counters diverged: a=%d b=%d, wanted both %d", a, b, workers*rounds)
	}
}

func TestEnterLeave(t *testing.T) {
	var c Controller
	started := make(chan struct{})
	done := make(chan struct{})

	c.Enter()
	go func() {
		close(started)
		c.Enter()
		defer c.Leave()
		close(done)
	}()

	<-started
	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("second Enter succeeded while section was held")
	default:
	}

	c.Leave()
	<-done
}
