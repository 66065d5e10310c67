// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xsync implements synchronization primitives missing from the standard sync package.
package xsync

import (
	"sync"

	"github.com/pkg/errors"
)

// Barrier is a reusable (cyclic) synchronization point for a fixed number of parties:
// each call to Wait blocks until all parties have called Wait for the current phase.
//
// After the last party arrives, the barrier resets for the next phase, so the same
// Barrier can separate an arbitrary sequence of write and read phases.
//
// It uses sync.Cond to coordinate changes.
type Barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	parties int
	waiting int
	phase   uint64
}

// NewBarrier creates a Barrier for the given number of parties. It panics if parties <= 0.
func NewBarrier(parties int) *Barrier {
	if parties <= 0 {
		panic(errors.Errorf("xsync.NewBarrier(%d): number of parties must be positive", parties))
	}
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Parties returns the number of goroutines that must call Wait to release a phase.
func (b *Barrier) Parties() int {
	return b.parties
}

// Phase returns how many phases have been completed so far.
func (b *Barrier) Phase() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// Wait blocks until all parties have reached the barrier.
//
// Writes done by any party before calling Wait are visible to every party after Wait returns.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	phase := b.phase
	b.waiting++
	if b.waiting == b.parties {
		b.waiting = 0
		b.phase++
		b.cond.Broadcast()
		return
	}
	// Loop is needed because sync.Cond.Wait() can have spurious wakeups.
	for phase == b.phase {
		b.cond.Wait()
	}
}
