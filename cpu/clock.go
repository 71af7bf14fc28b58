// Copyright 2026 The sim6502 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import (
	"context"
	"time"
)

// DefaultClockRate is the simulated clock frequency used when none is
// configured: 3 MHz, one cycle roughly every 333ns.
const DefaultClockRate = 3_000_000

// A Clock paces emulated execution against a simulated clock
// frequency. It carries no timing debt between calls: an instruction
// that overruns its cycle budget on the host never causes later
// instructions to skip their delays.
type Clock struct {
	period time.Duration // duration of a single cycle; 0 disables throttling
}

// NewClock returns a clock running at 'rate' cycles per second. A rate
// of zero or less disables throttling entirely, which is useful for
// deterministic tests.
func NewClock(rate int) *Clock {
	c := &Clock{}
	if rate > 0 {
		c.period = time.Duration(int64(time.Second) / int64(rate))
	}
	return c
}

// CycleDuration returns the simulated duration of n clock cycles.
func (c *Clock) CycleDuration(n int) time.Duration {
	return time.Duration(n) * c.period
}

// Throttle blocks until the simulated duration of n cycles has passed,
// given that 'elapsed' of it has already been spent executing on the
// host. If the instruction already took longer than its simulated
// duration, Throttle returns immediately; lost time is never repaid by
// shortening later waits. The wait honors context cancellation so a
// long-running emulation loop can be stopped between instructions.
func (c *Clock) Throttle(ctx context.Context, n int, elapsed time.Duration) error {
	wait := c.CycleDuration(n) - elapsed
	if wait <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(wait)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
