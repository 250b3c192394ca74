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

// Package irq models the interrupt-mask domain of a single-core target.
//
// On real hardware the kernel protects its structures by masking
// interrupts. In this host model both thread code and simulated interrupt
// handlers are goroutines, so the mask domain is a mutual exclusion domain:
// entering it stands in for "disable interrupts", leaving it for "restore".
// Every synchronization object belonging to one core shares one Controller.
package irq

import (
	"tickos.dev/tickos/pkg/sync"
)

// Controller serializes all code, thread or handler, that touches kernel
// state within one mask domain.
//
// Sections do not nest. Code that already runs inside a section calls the
// *Locked variants of its helpers instead of re-entering.
type Controller struct {
	mu sync.Mutex
}

// Enter masks interrupts. It returns once the caller owns the domain.
// Callers pair it with a deferred Leave so every exit path restores the
// mask exactly once:
//
//	c.Enter()
//	defer c.Leave()
func (c *Controller) Enter() {
	c.mu.Lock()
}

// Leave restores the interrupt mask.
func (c *Controller) Leave() {
	c.mu.Unlock()
}

// Critical runs fn with interrupts masked.
func (c *Controller) Critical(fn func()) {
	c.Enter()
	defer c.Leave()
	fn()
}
