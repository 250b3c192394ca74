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

// Package rterr contains the canonical kernel error values. Each failure
// condition the primitives can report maps to exactly one value here, and
// callers test outcomes by direct comparison:
//
//	if err := q.TrySend(ctx, buf, prio); err == rterr.EAGAIN {
//		...
//	}
package rterr

import (
	goErrors "errors"

	"golang.org/x/sys/unix"
	"tickos.dev/tickos/pkg/errors"
)

// The canonical error values.
var (
	// EPERM is returned when a thread-only operation is invoked from
	// interrupt context.
	EPERM = errors.New(unix.EPERM, "operation not permitted")

	// EINTR is returned when a blocked thread is woken because it was
	// marked interrupted.
	EINTR = errors.New(unix.EINTR, "interrupted call")

	// EAGAIN is returned by non-blocking operations that would have had
	// to wait.
	EAGAIN = errors.New(unix.EAGAIN, "try again")

	// EINVAL is returned for malformed arguments: nil or undersized
	// buffers, bad storage geometry, empty masks where one is required,
	// reserved flag bits, or conflicting wait modes.
	EINVAL = errors.New(unix.EINVAL, "invalid argument")

	// EMSGSIZE is returned when a payload does not fit a message slot.
	EMSGSIZE = errors.New(unix.EMSGSIZE, "message too long")

	// ETIMEDOUT is returned when a timed wait reaches its deadline.
	ETIMEDOUT = errors.New(unix.ETIMEDOUT, "timed out")

	// EOVERFLOW is returned when a configured value exceeds its
	// representable range.
	EOVERFLOW = errors.New(unix.EOVERFLOW, "value too large for defined data type")

	// ENOTRECOVERABLE is returned if a wait loop exits without an
	// outcome. It indicates a kernel bug.
	ENOTRECOVERABLE = errors.New(unix.ENOTRECOVERABLE, "state not recoverable")
)

// Equals compares a rterr error to a given error. It matches the canonical
// value itself, anything wrapping it, and any error carrying the same
// unix.Errno.
func Equals(e *errors.Error, err error) bool {
	if err == nil {
		return e == nil
	}
	if e == nil {
		return false
	}
	var e2 *errors.Error
	if goErrors.As(err, &e2) {
		return e.Errno() == e2.Errno()
	}
	var unixErr unix.Errno
	if goErrors.As(err, &unixErr) {
		return e.Errno() == unixErr
	}
	return false
}
