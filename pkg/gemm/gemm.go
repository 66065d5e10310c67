// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package gemm implements dense float32 matrix multiplication with an explicit multi-level tiling:
//
//	C[i, j] = Σ_k A_transposed[k, i] * B[k, j]
//
// where A is given transposed (shaped [K, M]), B is shaped [K, N] and C is [M, N].
//
// The output is partitioned in blocks, each block in virtual-thread tiles, and each of those in
// one micro-tile per physical thread (see TilingPlan). Operands are staged from the caller's
// matrices (global scope) into per-block shared buffers, and from there into per-thread local
// buffers, before being accumulated into per-thread accumulators and written back.
//
// Example:
//
//	c, err := gemm.Multiply(aTransposed, b, gemm.DefaultPlan())
//
// Or, with a reusable Engine configured by a string (see NewWithConfig):
//
//	engine := gemm.MustNewWithConfig("tiled:block=64,vthread=2,thread=8,micro=4,kouter=256,kinner=16")
//	c, err := engine.Multiply(aTransposed, b)
package gemm

import (
	"os"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tilegemm/internal/workerspool"
	"github.com/gomlx/tilegemm/pkg/core/matrix"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ConfigEnvVar is the environment variable with the default configuration used by New.
//
// The format is "<kernel>:<plan>", see NewWithConfig.
const ConfigEnvVar = "TILEGEMM_CONFIG"

// DefaultConfig is the configuration used by New if ConfigEnvVar is not set.
var DefaultConfig string

// Engine multiplies matrices with one kernel and one TilingPlan.
//
// Configure it (SetMaxParallelism, SetAllocator, SetWriteHook) before using it: Multiply can be
// called concurrently, but the setters must not.
type Engine struct {
	kernelName string
	kernel     KernelFn
	plan       TilingPlan
	pool       *workerspool.Pool
	alloc      Allocator
	hook       WriteHook
}

// New returns a new Engine configured by:
//
// 1. The environment variable ConfigEnvVar, if defined.
// 2. Next the variable DefaultConfig, if defined.
// 3. The highest priority kernel ("tiled") with DefaultPlan().
func New() (*Engine, error) {
	if config, found := os.LookupEnv(ConfigEnvVar); found {
		return NewWithConfig(config)
	}
	return NewWithConfig(DefaultConfig)
}

// NewWithConfig returns a new Engine for the configuration "<kernel>:<plan>", where "<kernel>" is
// one of Kernels() and "<plan>" is parsed by ParsePlan. Either part can be omitted:
//
//	"tiled"                          -> "tiled" kernel, DefaultPlan()
//	"block=64,thread=8"              -> default kernel, plan over DefaultPlan()
//	"whole:kouter=512"               -> "whole" kernel, plan over DefaultPlan()
//	""                               -> default kernel, DefaultPlan()
func NewWithConfig(config string) (*Engine, error) {
	kernelName, planConfig := splitConfig(config)
	name, kernel, err := lookupKernel(kernelName)
	if err != nil {
		return nil, err
	}
	plan, err := ParsePlan(planConfig)
	if err != nil {
		return nil, errors.WithMessagef(err, "gemm.NewWithConfig(%q)", config)
	}
	e := &Engine{
		kernelName: name,
		kernel:     kernel,
		plan:       plan,
		pool:       workerspool.New(),
		alloc:      NewPoolAllocator(),
	}
	klog.V(1).Infof("gemm: new engine %s", e)
	return e, nil
}

// MustNew is like New, but panics on error.
func MustNew() *Engine {
	e, err := New()
	if err != nil {
		exceptions.Panicf("gemm.MustNew(): %+v", err)
	}
	return e
}

// MustNewWithConfig is like NewWithConfig, but panics on error.
func MustNewWithConfig(config string) *Engine {
	e, err := NewWithConfig(config)
	if err != nil {
		exceptions.Panicf("gemm.MustNewWithConfig(%q): %+v", config, err)
	}
	return e
}

// String returns the engine's configuration, in the format accepted by NewWithConfig.
func (e *Engine) String() string {
	return e.kernelName + ":" + e.plan.String()
}

// KernelName returns the name of the kernel used by the engine.
func (e *Engine) KernelName() string { return e.kernelName }

// Plan returns the engine's TilingPlan.
func (e *Engine) Plan() TilingPlan { return e.plan }

// SetPlan changes the engine's TilingPlan. It returns an error if the plan is not internally consistent.
func (e *Engine) SetPlan(plan TilingPlan) error {
	if err := plan.ValidateFactors(); err != nil {
		return err
	}
	e.plan = plan
	return nil
}

// SetMaxParallelism sets the maximum number of blocks computed concurrently.
// 0 computes one block at a time in the calling goroutine, and -1 means unlimited.
// The default is runtime.NumCPU().
func (e *Engine) SetMaxParallelism(maxParallelism int) *Engine {
	e.pool.SetMaxParallelism(maxParallelism)
	return e
}

// MaxParallelism returns the maximum number of blocks computed concurrently.
func (e *Engine) MaxParallelism() int { return e.pool.MaxParallelism() }

// SetAllocator sets the Allocator used for the output and the staging buffers.
// The default is a new PoolAllocator.
func (e *Engine) SetAllocator(alloc Allocator) *Engine {
	e.alloc = alloc
	return e
}

// Allocator returns the Allocator in use.
func (e *Engine) Allocator() Allocator { return e.alloc }

// SetWriteHook sets a hook called after every store to the output. Use nil to remove it.
func (e *Engine) SetWriteHook(hook WriteHook) *Engine {
	e.hook = hook
	return e
}

// Multiply returns at^T x b: at is shaped [K, M], b is [K, N] and the result is [M, N].
//
// The result is allocated in the global scope of the engine's Allocator, and it is owned by the caller.
// It returns an error wrapping ErrConfiguration if the dimensions don't fit the engine's plan,
// before any computation is done.
func (e *Engine) Multiply(at, b *matrix.Matrix) (*matrix.Matrix, error) {
	return e.multiply(at, b, e.plan)
}

func (e *Engine) multiply(at, b *matrix.Matrix, plan TilingPlan) (*matrix.Matrix, error) {
	if err := checkOperands(at, b, plan); err != nil {
		return nil, err
	}
	_, flat := e.alloc.Alloc(ScopeGlobal, at.Cols*b.Cols)
	c, err := matrix.FromFlat(at.Cols, b.Cols, flat)
	if err != nil {
		return nil, err
	}
	e.run(at, b, c, plan)
	return c, nil
}

// MultiplyInto computes c = at^T x b, overwriting every element of c.
//
// The output c must be shaped [M, N] and must not share memory with at or b.
// It returns an error wrapping ErrConfiguration otherwise, or if the dimensions don't fit the
// engine's plan: in which case c is not touched.
func (e *Engine) MultiplyInto(at, b, c *matrix.Matrix) error {
	if err := checkOperands(at, b, e.plan); err != nil {
		return err
	}
	if c == nil {
		return configErrorf("output matrix is nil")
	}
	if c.Rows != at.Cols || c.Cols != b.Cols {
		return configErrorf("output %s doesn't match the product of A_transposed %s and B %s, wanted [%dx%d]",
			c, at, b, at.Cols, b.Cols)
	}
	if len(c.Flat) != c.Size() {
		return configErrorf("output %s has %d elements", c, len(c.Flat))
	}
	if c.Overlaps(at) || c.Overlaps(b) {
		return configErrorf("output %s shares memory with the operands", c)
	}
	e.run(at, b, c, e.plan)
	return nil
}

func (e *Engine) run(at, b, c *matrix.Matrix, plan TilingPlan) {
	klog.V(1).Infof("gemm.%s: C[%dx%d] = A_transposed[%dx%d]^T x B[%dx%d], plan=%s, grid=%+v",
		e.kernelName, c.Rows, c.Cols, at.Rows, at.Cols, b.Rows, b.Cols, plan, plan.Grid(c.Rows, c.Cols))
	env := &Env{Pool: e.pool, Alloc: e.alloc, Hook: e.hook}
	e.kernel(at, b, c, plan, env)
}

// checkOperands validates the operands and the plan for their dimensions.
func checkOperands(at, b *matrix.Matrix, plan TilingPlan) error {
	if at == nil || b == nil {
		return configErrorf("operands must not be nil")
	}
	for _, operand := range []struct {
		name string
		m    *matrix.Matrix
	}{{"A_transposed", at}, {"B", b}} {
		if operand.m.Rows <= 0 || operand.m.Cols <= 0 || len(operand.m.Flat) != operand.m.Size() {
			return configErrorf("operand %s %s is invalid: it has %d elements", operand.name, operand.m, len(operand.m.Flat))
		}
	}
	if at.Rows != b.Rows {
		return configErrorf("reduction dimensions don't match: A_transposed %s has K=%d, B %s has K=%d",
			at, at.Rows, b, b.Rows)
	}
	return plan.Validate(at.Cols, b.Cols, at.Rows)
}

var (
	defaultEngine     *Engine
	defaultEngineOnce sync.Once
)

// getDefaultEngine returns the engine used by the package-level Multiply: the default kernel with
// the default parallelism.
func getDefaultEngine() *Engine {
	defaultEngineOnce.Do(func() {
		defaultEngine = MustNewWithConfig("")
	})
	return defaultEngine
}

// Multiply returns at^T x b computed with the default ("tiled") kernel and the given plan.
//
// It returns an error wrapping ErrConfiguration if the plan doesn't exactly tile the dimensions,
// before any computation is done.
func Multiply(at, b *matrix.Matrix, plan TilingPlan) (*matrix.Matrix, error) {
	return getDefaultEngine().multiply(at, b, plan)
}

// MustMultiply is like Multiply, but panics on error.
func MustMultiply(at, b *matrix.Matrix, plan TilingPlan) *matrix.Matrix {
	c, err := Multiply(at, b, plan)
	if err != nil {
		exceptions.Panicf("gemm.MustMultiply: %+v", err)
	}
	return c
}
