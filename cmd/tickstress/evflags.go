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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"tickos.dev/tickos/pkg/irq"
	"tickos.dev/tickos/pkg/kernel/flags"
	"tickos.dev/tickos/pkg/kernel/ktime"
	"tickos.dev/tickos/pkg/kernel/sched"
	"tickos.dev/tickos/pkg/log"
)

// waitBudget bounds every wait in the storm so a lost wakeup turns into a
// visible failure instead of a hang.
const waitBudget ktime.Ticks = 5000

// evflagsCmd implements subcommands.Command for the "evflags" command.
type evflagsCmd struct {
	workers int
	rounds  int
}

// Name implements subcommands.Command.Name.
func (*evflagsCmd) Name() string {
	return "evflags"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*evflagsCmd) Synopsis() string {
	return "run a broadcast/gather storm on event flags and a signal-flags ping-pong"
}

// Usage implements subcommands.Command.Usage.
func (*evflagsCmd) Usage() string {
	return `evflags [flags]

Round after round, a broadcaster raises one bit per waiter on a shared event
flag word; every waiter consumes its bit and acknowledges on a second word,
which the broadcaster gathers. Then two tasks ping-pong their signal flag
words. Every wait is bounded, so a single lost wakeup fails the run.

OPTIONS:
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *evflagsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.workers, "workers", 8, "number of waiter tasks, at most 31")
	f.IntVar(&c.rounds, "messages", 1000, "broadcast rounds, and signal ping-pong round-trips")
}

// Execute implements subcommands.Command.Execute.
func (c *evflagsCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if c.workers < 1 || c.rounds < 1 {
		fatalf("-workers and -messages must be positive")
	}
	if c.workers > 31 {
		// One bit per waiter, and bit 31 is reserved.
		log.Warningf("capping -workers to 31, one flag bit per waiter")
		c.workers = 31
	}

	irqc := &irq.Controller{}
	clk := ktime.NewMonotonic(ktime.DefaultTickPeriod)
	req, err := flags.New(irqc, clk, flags.Config{Name: "req"})
	if err != nil {
		fatalf("creating request flags: %v", err)
	}
	ack, err := flags.New(irqc, clk, flags.Config{Name: "ack"})
	if err != nil {
		fatalf("creating ack flags: %v", err)
	}

	start := time.Now()
	allMask := flags.Bits(1)<<c.workers - 1
	var g errgroup.Group
	for w := 0; w < c.workers; w++ {
		bit := flags.Bits(1) << w
		w := w
		g.Go(func() error {
			tctx := sched.NewContext(ctx, sched.New(fmt.Sprintf("waiter-%d", w)))
			for r := 0; r < c.rounds; r++ {
				if _, err := req.TimedWait(tctx, bit, flags.WaitAll, waitBudget); err != nil {
					return fmt.Errorf("waiter %d round %d: %w", w, r, err)
				}
				if _, err := ack.Raise(tctx, bit); err != nil {
					return fmt.Errorf("waiter %d round %d ack: %w", w, r, err)
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		tctx := sched.NewContext(ctx, sched.New("broadcast"))
		for r := 0; r < c.rounds; r++ {
			// One raise wakes every waiter; the gather completes
			// only once each of them consumed its own bit.
			if _, err := req.Raise(tctx, allMask); err != nil {
				return fmt.Errorf("broadcast round %d: %w", r, err)
			}
			if _, err := ack.TimedWait(tctx, allMask, flags.WaitAll, waitBudget); err != nil {
				return fmt.Errorf("gather round %d: %w", r, err)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Warningf("event flags storm failed: %v", err)
		return subcommands.ExitFailure
	}
	stormElapsed := time.Since(start)

	pings, err := c.signalPing(ctx, irqc, clk)
	if err != nil {
		log.Warningf("signal ping-pong failed: %v", err)
		return subcommands.ExitFailure
	}

	elapsed := time.Since(start)
	fmt.Fprintf(os.Stdout, "PASS: evflags: %d wakes over %d rounds in %v, %d signal round-trips in %v\n",
		c.workers*c.rounds, c.rounds, stormElapsed.Round(time.Millisecond),
		pings, (elapsed - stormElapsed).Round(time.Millisecond))
	return subcommands.ExitSuccess
}

// signalPing bounces one bit between the signal flag words of two tasks
// and returns the number of completed round-trips.
func (c *evflagsCmd) signalPing(ctx context.Context, irqc *irq.Controller, clk ktime.Clock) (int, error) {
	const ping = flags.Bits(1)
	a := sched.New("ping-a")
	b := sched.New("ping-b")
	sa, err := flags.NewSignal(irqc, clk, a, flags.Config{})
	if err != nil {
		return 0, err
	}
	sb, err := flags.NewSignal(irqc, clk, b, flags.Config{})
	if err != nil {
		return 0, err
	}

	var g errgroup.Group
	g.Go(func() error {
		actx := sched.NewContext(ctx, a)
		for r := 0; r < c.rounds; r++ {
			if _, err := sa.TimedWait(actx, ping, flags.WaitAll, waitBudget); err != nil {
				return fmt.Errorf("ping round %d: %w", r, err)
			}
			if _, err := sb.Raise(actx, ping); err != nil {
				return fmt.Errorf("pong round %d: %w", r, err)
			}
		}
		return nil
	})
	g.Go(func() error {
		bctx := sched.NewContext(ctx, b)
		for r := 0; r < c.rounds; r++ {
			if _, err := sa.Raise(bctx, ping); err != nil {
				return fmt.Errorf("serve round %d: %w", r, err)
			}
			if _, err := sb.TimedWait(bctx, ping, flags.WaitAll, waitBudget); err != nil {
				return fmt.Errorf("return round %d: %w", r, err)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return c.rounds, nil
}
