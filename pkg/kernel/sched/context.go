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

package sched

import (
	"context"
)

// contextID is the sched package's type for context.Context.Value keys.
type contextID int

const (
	// CtxTask is a Context.Value key for the calling task.
	CtxTask contextID = iota

	// CtxHandler is a Context.Value key marking interrupt-handler
	// context.
	CtxHandler
)

// NewContext returns a copy of parent with t attached as the calling task.
func NewContext(parent context.Context, t *Task) context.Context {
	return context.WithValue(parent, CtxTask, t)
}

// FromContext returns the task associated with ctx, or nil if ctx is not a
// thread context.
func FromContext(ctx context.Context) *Task {
	if v := ctx.Value(CtxTask); v != nil {
		return v.(*Task)
	}
	return nil
}

// NewHandlerContext returns a copy of parent marked as interrupt-handler
// context. Any task attached to parent is hidden, so code running under
// the returned context cannot block on a primitive.
func NewHandlerContext(parent context.Context) context.Context {
	ctx := context.WithValue(parent, CtxTask, (*Task)(nil))
	return context.WithValue(ctx, CtxHandler, true)
}

// InHandler reports whether ctx is interrupt-handler context. A context
// carrying no task also counts: whatever runs there is not a schedulable
// thread and must not block.
func InHandler(ctx context.Context) bool {
	if v := ctx.Value(CtxHandler); v != nil && v.(bool) {
		return true
	}
	return FromContext(ctx) == nil
}

// Start launches fn as a new task named name and returns the task handle
// without waiting. fn receives a context carrying the task.
func Start(name string, fn func(ctx context.Context)) *Task {
	t := New(name)
	go fn(NewContext(context.Background(), t))
	return t
}
