// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/tilegemm/internal/workerspool"
	"github.com/gomlx/tilegemm/pkg/core/matrix"
	"github.com/pkg/errors"
)

// Env holds the external collaborators a kernel runs with.
type Env struct {
	// Pool dispatches the blocks.
	Pool *workerspool.Pool

	// Alloc provides the shared and local scope buffers.
	Alloc Allocator

	// Hook, if not nil, is called after every store to the output.
	Hook WriteHook
}

// KernelFn computes c = at^T x b following plan.
//
// The kernel is called only after the plan was validated for the operands' dimensions, and
// after checking that c doesn't overlap at or b: it must write every element of c exactly once.
type KernelFn func(at, b, c *matrix.Matrix, plan TilingPlan, env *Env)

// Priority of a kernel: the registered kernel with the highest priority is the default.
type Priority int

// Priorities of the kernels registered by this package.
const (
	// PriorityReference is the naive triple loop: only used if explicitly selected.
	PriorityReference Priority = 0

	// PriorityBLAS is gonum's BLAS, which ignores the plan's tiling.
	PriorityBLAS Priority = 10

	// PriorityWhole is the whole-matrix staging kernel.
	PriorityWhole Priority = 20

	// PriorityTiled is the fully tiled kernel, the default.
	PriorityTiled Priority = 100
)

type kernelRegistration struct {
	name     string
	fn       KernelFn
	priority Priority
}

var (
	kernelsMu         sync.Mutex
	registeredKernels []kernelRegistration
)

func init() {
	RegisterKernel("reference", referenceKernel, PriorityReference)
	RegisterKernel("blas", blasKernel, PriorityBLAS)
	RegisterKernel("whole", wholeKernel, PriorityWhole)
	RegisterKernel("tiled", tiledKernel, PriorityTiled)
}

// RegisterKernel registers a kernel under the given name, replacing any previous kernel with the same name.
//
// To be safe, call RegisterKernel during initialization of a package.
func RegisterKernel(name string, fn KernelFn, priority Priority) {
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	registeredKernels = slices.DeleteFunc(registeredKernels, func(r kernelRegistration) bool { return r.name == name })
	registeredKernels = append(registeredKernels, kernelRegistration{name: name, fn: fn, priority: priority})
	slices.SortStableFunc(registeredKernels, func(a, b kernelRegistration) int {
		if a.priority != b.priority {
			return int(b.priority - a.priority)
		}
		return strings.Compare(a.name, b.name)
	})
}

// Kernels returns the names of the registered kernels, from the highest priority to the lowest.
func Kernels() []string {
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	names := make([]string, len(registeredKernels))
	for ii, r := range registeredKernels {
		names[ii] = r.name
	}
	return names
}

// lookupKernel returns the kernel with the given name, or the default (highest priority) kernel if name is empty.
func lookupKernel(name string) (string, KernelFn, error) {
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	if len(registeredKernels) == 0 {
		return "", nil, errors.New("no GEMM kernels registered")
	}
	if name == "" {
		r := registeredKernels[0]
		return r.name, r.fn, nil
	}
	for _, r := range registeredKernels {
		if r.name == name {
			return r.name, r.fn, nil
		}
	}
	names := make([]string, len(registeredKernels))
	for ii, r := range registeredKernels {
		names[ii] = r.name
	}
	return "", nil, configErrorf("unknown GEMM kernel %q, registered kernels are %q", name, names)
}
