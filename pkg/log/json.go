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
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// MarshalJSON implements json.Marshaler.MarshalJSON.
func (l Level) MarshalJSON() ([]byte, error) {
	switch l {
	case Warning, Info, Debug:
		return []byte(`"` + strings.ToLower(l.String()) + `"`), nil
	default:
		return nil, fmt.Errorf("unknown level %v", l)
	}
}

// UnmarshalJSON implements json.Unmarshaler.UnmarshalJSON. It accepts both
// the string names and the numeric values of the levels.
func (l *Level) UnmarshalJSON(b []byte) error {
	switch s := string(b); s {
	case "0", `"warning"`:
		*l = Warning
	case "1", `"info"`:
		*l = Info
	case "2", `"debug"`:
		*l = Debug
	default:
		return fmt.Errorf("unknown level %q", s)
	}
	return nil
}

// callSite resolves the log statement depth frames above the Emit call and
// renders it as a message prefix, glog-style. It returns "" if the stack
// cannot be resolved that far.
func callSite(depth int) string {
	_, file, line, ok := runtime.Caller(depth + 2)
	if !ok {
		return ""
	}
	if slash := strings.LastIndexByte(file, byte('/')); slash >= 0 {
		file = file[slash+1:]
	}
	return fmt.Sprintf("%s:%d] ", file, line)
}

// emitJSON marshals record and hands it to the writer. Log records are
// built from known, always-marshalable parts; a marshal failure is a bug in
// this package.
func emitJSON(w *Writer, record any) {
	b, err := json.Marshal(record)
	if err != nil {
		panic(err)
	}
	w.Write(b)
}

// jsonLog is the line format of JSONEmitter.
type jsonLog struct {
	Msg   string    `json:"msg"`
	Level Level     `json:"level"`
	Time  time.Time `json:"time"`
}

// JSONEmitter logs messages in json format.
type JSONEmitter struct {
	*Writer
}

// Emit implements Emitter.Emit.
func (e JSONEmitter) Emit(depth int, level Level, timestamp time.Time, format string, v ...any) {
	emitJSON(e.Writer, jsonLog{
		Msg:   callSite(depth) + fmt.Sprintf(format, v...),
		Level: level,
		Time:  timestamp,
	})
}

// k8sJSONLog is the line format of K8sJSONEmitter. The payload key is "log"
// rather than "msg", which is what fluentd-style collectors expect.
type k8sJSONLog struct {
	Log   string    `json:"log"`
	Level Level     `json:"level"`
	Time  time.Time `json:"time"`
}

// K8sJSONEmitter logs messages in json format that is compatible with
// Kubernetes fluent configuration.
type K8sJSONEmitter struct {
	*Writer
}

// Emit implements Emitter.Emit.
func (e K8sJSONEmitter) Emit(depth int, level Level, timestamp time.Time, format string, v ...any) {
	emitJSON(e.Writer, k8sJSONLog{
		Log:   callSite(depth) + fmt.Sprintf(format, v...),
		Level: level,
		Time:  timestamp,
	})
}
