// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool dispatches a fixed grid of independent units of work onto goroutines.
//
// The assignment of units to workers is static: it depends only on the grid size and on
// the pool's parallelism, never on timing.
package workerspool

import (
	"runtime"
	"sync"
)

type Pool struct {
	// maxParallelism is the limit of workers used by RunGrid.
	// 0 disables parallelism, and a negative value means unlimited.
	maxParallelism int
}

// New return a new Pool of workers with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	return &Pool{maxParallelism: runtime.NumCPU()}
}

// NewWithParallelism returns a new Pool with the given maxParallelism. See SetMaxParallelism.
func NewWithParallelism(maxParallelism int) *Pool {
	return &Pool{maxParallelism: maxParallelism}
}

// IsEnabled returns whether parallelism is enabled (maxParallelism is != 0)
func (w *Pool) IsEnabled() bool {
	return w.maxParallelism != 0
}

// IsUnlimited returns whether parallelism is unlimited (maxParallelism < 0)
func (w *Pool) IsUnlimited() bool {
	return w.maxParallelism < 0
}

// MaxParallelism is the limit of concurrent workers.
// If set to 0 parallelism is disabled.
// If set to -1 parallelism is unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism sets the maxParallelism.
//
// You should only change the parallelism while no grid is running.
func (w *Pool) SetMaxParallelism(maxParallelism int) {
	w.maxParallelism = maxParallelism
}

// Workers returns the number of workers RunGrid uses for a grid of count units.
// It returns 0 if the grid is run inline, in the calling goroutine.
func (w *Pool) Workers(count int) int {
	if count <= 0 || w.maxParallelism == 0 {
		return 0
	}
	if w.maxParallelism < 0 {
		return count
	}
	return min(count, w.maxParallelism)
}

// RunGrid calls task(worker, idx) once for every idx in [0, count), and returns when all calls returned.
//
// Unit idx is run by worker idx % numWorkers, in increasing order of idx within a worker,
// where numWorkers = Workers(count). If parallelism is disabled every unit runs inline, in
// order, with worker 0.
func (w *Pool) RunGrid(count int, task func(worker, idx int)) {
	numWorkers := w.Workers(count)
	if numWorkers == 0 {
		for idx := range count {
			task(0, idx)
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for worker := range numWorkers {
		go func() {
			defer wg.Done()
			for idx := worker; idx < count; idx += numWorkers {
				task(worker, idx)
			}
		}()
	}
	wg.Wait()
}
