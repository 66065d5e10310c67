// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xsync

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrier(t *testing.T) {
	const parties = 8
	const phases = 20
	b := NewBarrier(parties)
	require.Equal(t, parties, b.Parties())

	// Each phase every party writes its slot, waits, then checks all slots of that phase were written.
	var slots [parties]atomic.Int64
	var failures atomic.Int32
	var wg sync.WaitGroup
	for p := range parties {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for phase := range phases {
				slots[p].Store(int64(phase))
				b.Wait()
				for ii := range parties {
					if slots[ii].Load() < int64(phase) {
						failures.Add(1)
					}
				}
				b.Wait()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for barrier parties")
	}
	assert.Zero(t, failures.Load())
	assert.Equal(t, uint64(2*phases), b.Phase())
}

func TestBarrierSingleParty(t *testing.T) {
	b := NewBarrier(1)
	b.Wait()
	b.Wait()
	assert.Equal(t, uint64(2), b.Phase())
}

func TestBarrierInvalid(t *testing.T) {
	assert.Panics(t, func() { NewBarrier(0) })
}
