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

// Binary tickstress exercises the synchronization primitives under load:
// a producer/consumer storm over one message queue, and a broadcast and
// ping-pong workout for the flag objects. It doubles as a smoke test for
// wiring the primitives together the way an application would.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/google/subcommands"

	"tickos.dev/tickos/pkg/log"
)

var (
	debug     = flag.Bool("debug", false, "enable debug logging")
	logFormat = flag.String("log-format", "text", "log format: text, json, or json-k8s")
	logFile   = flag.String("log-file", "", "write logs to this file pattern instead of stderr; %TIMESTAMP% and %COMMAND% expand")
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(mqueueCmd), "")
	subcommands.Register(new(evflagsCmd), "")

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	if *debug {
		log.SetLevel(log.Debug)
	}

	out := io.Writer(os.Stderr)
	if *logFile != "" {
		f, err := log.OpenFile(*logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, log.FileOpts{
			Command:   flag.Arg(0),
			StartTime: time.Now(),
		})
		if err != nil {
			fatalf("error opening log file %q: %v", *logFile, err)
		}
		out = f
	}
	log.SetTarget(newEmitter(*logFormat, out))

	log.Infof("**************** tickstress ****************")
	log.Infof("%s, %s, %d CPUs, PID %d", runtime.Version(), runtime.GOARCH, runtime.NumCPU(), os.Getpid())
	log.Infof("Args: %v", os.Args)

	os.Exit(int(subcommands.Execute(context.Background())))
}

func newEmitter(format string, out io.Writer) log.Emitter {
	switch format {
	case "text":
		return log.GoogleEmitter{Emitter: &log.Writer{Next: out}}
	case "json":
		return log.JSONEmitter{Writer: &log.Writer{Next: out}}
	case "json-k8s":
		return log.K8sJSONEmitter{Writer: &log.Writer{Next: out}}
	}
	fatalf("invalid log format %q, must be 'text', 'json', or 'json-k8s'", format)
	panic("unreachable")
}

// fatalf logs the error and exits with a code unlikely to collide with a
// workload's own exit statuses.
func fatalf(format string, args ...any) {
	log.Warningf(format, args...)
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(128)
}
