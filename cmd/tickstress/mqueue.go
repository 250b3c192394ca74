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
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"tickos.dev/tickos/pkg/atomicbitops"
	"tickos.dev/tickos/pkg/errors/rterr"
	"tickos.dev/tickos/pkg/irq"
	"tickos.dev/tickos/pkg/kernel/ktime"
	"tickos.dev/tickos/pkg/kernel/mqueue"
	"tickos.dev/tickos/pkg/kernel/sched"
	"tickos.dev/tickos/pkg/log"
)

// mqueueCmd implements subcommands.Command for the "mqueue" command.
type mqueueCmd struct {
	workers  int
	messages int
	capacity int
	msgSize  int
	rate     float64
	inject   bool
}

// Name implements subcommands.Command.Name.
func (*mqueueCmd) Name() string {
	return "mqueue"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*mqueueCmd) Synopsis() string {
	return "run a producer/consumer storm over one message queue and verify delivery"
}

// Usage implements subcommands.Command.Usage.
func (*mqueueCmd) Usage() string {
	return `mqueue [flags]

Runs <workers> producer tasks against <workers> consumer tasks on a single
priority message queue, optionally injecting extra messages from a simulated
interrupt handler, then drains the leftovers and checks that every message
sent was delivered exactly once.

OPTIONS:
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *mqueueCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.workers, "workers", 4, "number of producer tasks, and of consumer tasks")
	f.IntVar(&c.messages, "messages", 1000, "messages each producer sends")
	f.IntVar(&c.capacity, "capacity", 64, "queue slots")
	f.IntVar(&c.msgSize, "msgsize", 8, "slot payload size in bytes")
	f.Float64Var(&c.rate, "rate", 0, "per-producer send rate in messages per second, 0 for unpaced")
	f.BoolVar(&c.inject, "inject", true, "also inject messages from a simulated interrupt handler")
}

// Execute implements subcommands.Command.Execute.
func (c *mqueueCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if c.workers < 1 || c.messages < 1 || c.capacity < 1 {
		fatalf("-workers, -messages and -capacity must be positive")
	}
	if c.msgSize < 4 {
		fatalf("-msgsize must be at least 4 to carry a message id")
	}

	irqc := &irq.Controller{}
	clk := ktime.NewMonotonic(ktime.DefaultTickPeriod)
	q, err := mqueue.New(irqc, clk, mqueue.Config{
		Name:     "stress",
		Capacity: c.capacity,
		MsgSize:  c.msgSize,
	})
	if err != nil {
		fatalf("creating queue: %v", err)
	}

	// One id per potential message; injected ids sit above the producer
	// range. sent marks the ids that actually entered the queue, seen
	// counts deliveries per id.
	injectCount := 0
	if c.inject {
		injectCount = c.messages / 10
	}
	total := c.workers*c.messages + injectCount
	sent := make([]atomicbitops.Uint32, total)
	seen := make([]atomicbitops.Uint32, total)
	var producersDone atomicbitops.Bool

	start := time.Now()
	var gProd, gCons errgroup.Group
	for w := 0; w < c.workers; w++ {
		w := w
		gProd.Go(func() error {
			tctx := sched.NewContext(ctx, sched.New(fmt.Sprintf("tx-%d", w)))
			var lim *rate.Limiter
			if c.rate > 0 {
				lim = rate.NewLimiter(rate.Limit(c.rate), 1)
			}
			buf := make([]byte, c.msgSize)
			for i := 0; i < c.messages; i++ {
				if lim != nil {
					if err := lim.Wait(ctx); err != nil {
						return err
					}
				}
				id := uint32(w*c.messages + i)
				binary.LittleEndian.PutUint32(buf, id)
				if err := q.Send(tctx, buf, mqueue.Priority(id%8)); err != nil {
					return fmt.Errorf("send %d: %w", id, err)
				}
				sent[id].Store(1)
			}
			return nil
		})
	}
	if c.inject {
		gProd.Go(func() error {
			// A periodic interrupt: one TrySend per tick. It must
			// never park, and a full queue means the message is
			// dropped, exactly as a real handler would drop it.
			hctx := sched.NewHandlerContext(ctx)
			tick := time.NewTicker(ktime.DefaultTickPeriod)
			defer tick.Stop()
			dropLog := log.BasicRateLimitedLogger(100 * time.Millisecond)
			buf := make([]byte, c.msgSize)
			base := uint32(c.workers * c.messages)
			drops := 0
			for i := 0; i < injectCount; i++ {
				<-tick.C
				id := base + uint32(i)
				binary.LittleEndian.PutUint32(buf, id)
				if err := q.TrySend(hctx, buf, mqueue.MaxPriority); err != nil {
					if rterr.Equals(rterr.EAGAIN, err) {
						drops++
						dropLog.Debugf("inject %d: queue full, dropped", id)
						continue
					}
					return fmt.Errorf("inject %d: %w", id, err)
				}
				sent[id].Store(1)
			}
			log.Infof("injector: %d sent, %d dropped on a full queue", injectCount-drops, drops)
			return nil
		})
	}
	for w := 0; w < c.workers; w++ {
		w := w
		gCons.Go(func() error {
			tctx := sched.NewContext(ctx, sched.New(fmt.Sprintf("rx-%d", w)))
			buf := make([]byte, c.msgSize)
			for {
				_, _, err := q.TimedReceive(tctx, buf, 50)
				if err != nil {
					if rterr.Equals(rterr.ETIMEDOUT, err) {
						if producersDone.Load() {
							return nil
						}
						continue
					}
					return fmt.Errorf("receive: %w", err)
				}
				id := binary.LittleEndian.Uint32(buf)
				if int(id) >= total {
					return fmt.Errorf("received unknown id %d", id)
				}
				seen[id].Add(1)
			}
		})
	}

	if err := gProd.Wait(); err != nil {
		log.Warningf("producer failed: %v", err)
		return subcommands.ExitFailure
	}
	producersDone.Store(true)
	if err := gCons.Wait(); err != nil {
		log.Warningf("consumer failed: %v", err)
		return subcommands.ExitFailure
	}

	drained, err := c.drain(ctx, q, seen)
	if err != nil {
		log.Warningf("drain failed: %v", err)
		return subcommands.ExitFailure
	}

	delivered := 0
	bad := 0
	for id := range sent {
		s, n := sent[id].Load(), seen[id].Load()
		switch {
		case s == 1 && n == 1:
			delivered++
		case s == 1 && n == 0:
			log.Warningf("message %d sent but never delivered", id)
			bad++
		case n > 1:
			log.Warningf("message %d delivered %d times", id, n)
			bad++
		case s == 0 && n != 0:
			log.Warningf("message %d delivered without being sent", id)
			bad++
		}
	}
	elapsed := time.Since(start)
	if bad > 0 {
		fmt.Fprintf(os.Stdout, "FAIL: mqueue: %d conservation violations\n", bad)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(os.Stdout, "PASS: mqueue: %d messages delivered (%d in final drain) in %v, %.0f msg/s\n",
		delivered, drained, elapsed.Round(time.Millisecond), float64(delivered)/elapsed.Seconds())
	return subcommands.ExitSuccess
}

// drain empties the queue after the workers have stopped, retrying under
// an exponential backoff to absorb any straggling publish. With no
// concurrent senders left, successive receives must come out in
// non-increasing priority order.
func (c *mqueueCmd) drain(ctx context.Context, q *mqueue.MessageQueue, seen []atomicbitops.Uint32) (int, error) {
	tctx := sched.NewContext(ctx, sched.New("drain"))
	buf := make([]byte, c.msgSize)
	drained := 0
	lastPrio := mqueue.MaxPriority

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	b.MaxElapsedTime = time.Second
	for {
		op := func() error {
			_, prio, err := q.TryReceive(tctx, buf)
			if err != nil {
				if rterr.Equals(rterr.EAGAIN, err) {
					return err
				}
				return backoff.Permanent(err)
			}
			if prio > lastPrio {
				return backoff.Permanent(fmt.Errorf("drain order violated: priority %d after %d", prio, lastPrio))
			}
			lastPrio = prio
			id := binary.LittleEndian.Uint32(buf)
			if int(id) >= len(seen) {
				return backoff.Permanent(fmt.Errorf("drained unknown id %d", id))
			}
			seen[id].Add(1)
			drained++
			return nil
		}
		if err := backoff.Retry(op, b); err != nil {
			if rterr.Equals(rterr.EAGAIN, err) {
				// The queue stayed empty for the whole budget.
				return drained, nil
			}
			return drained, err
		}
		b.Reset()
	}
}
