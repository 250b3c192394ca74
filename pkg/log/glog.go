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

package log

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// GoogleEmitter is a wrapper that emits logs in a format compatible with
// package github.com/golang/glog.
type GoogleEmitter struct {
	// Emitter is the underlying emitter.
	Emitter
}

// pid is the process id used for the threadid field, fixed at startup.
// glog pads it to seven columns.
var pid = fmt.Sprintf("%7d", os.Getpid())

// pad2 appends v zero-padded to two digits.
func pad2(buf []byte, v int) []byte {
	return append(buf, '0'+byte(v/10%10), '0'+byte(v%10))
}

// pad6 appends v zero-padded to six digits.
func pad6(buf []byte, v int) []byte {
	for div := 100000; div > 0; div /= 10 {
		buf = append(buf, '0'+byte(v/div%10))
	}
	return buf
}

// Emit emits the message, google-style:
//
//	Lmmdd hh:mm:ss.uuuuuu threadid file:line] msg...
//
// where L is the single-character log level, mmdd the month and day, the
// time has microsecond resolution, threadid is the space-padded pid, and
// file:line is the log statement's call site.
func (g GoogleEmitter) Emit(depth int, level Level, timestamp time.Time, format string, args ...any) {
	// The header is rendered into a stack buffer; lines short enough to
	// fit never allocate.
	var local [256]byte
	buf := local[:0]

	switch level {
	case Warning:
		buf = append(buf, 'W')
	case Info:
		buf = append(buf, 'I')
	case Debug:
		buf = append(buf, 'D')
	}

	_, month, day := timestamp.Date()
	hour, minute, second := timestamp.Clock()
	buf = pad2(buf, int(month))
	buf = pad2(buf, day)
	buf = append(buf, ' ')
	buf = pad2(buf, hour)
	buf = append(buf, ':')
	buf = pad2(buf, minute)
	buf = append(buf, ':')
	buf = pad2(buf, second)
	buf = append(buf, '.')
	buf = pad6(buf, timestamp.Nanosecond()/1000)
	buf = append(buf, ' ')

	buf = append(buf, pid...)
	buf = append(buf, ' ')

	_, file, line, ok := runtime.Caller(depth + 1)
	if !ok {
		file, line = "???", 0
	} else if slash := strings.LastIndexByte(file, byte('/')); slash >= 0 {
		// Trim any directory path from the file.
		file = file[slash+1:]
	}
	buf = append(buf, file...)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, int64(line), 10)
	buf = append(buf, "] "...)

	// The user's format string rides along in the header buffer; the
	// underlying emitter formats the args.
	buf = append(buf, format...)
	buf = append(buf, '\n')

	g.Emitter.Emit(0, level, timestamp, unsafeString(buf), args...)
}
