// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// gemmbench multiplies random matrices with each of the registered GEMM kernels, and reports
// the time, the throughput and the error of each against the reference kernel.
//
// Example:
//
//	go run ./cmd/gemmbench -m=512 -n=512 -k=2048 -config="block=64,thread=8,kouter=256"
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"
	"unsafe"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/tilegemm/pkg/core/matrix"
	"github.com/gomlx/tilegemm/pkg/gemm"
	"github.com/gomlx/tilegemm/pkg/support/xslices"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sys/cpu"
	"k8s.io/klog/v2"
)

var (
	flagM = flag.Int("m", 256, "Number of rows of the output (columns of A_transposed).")
	flagN = flag.Int("n", 256, "Number of columns of the output and of B.")
	flagK = flag.Int("k", 1024, "Size of the reduction axis: rows of A_transposed and B.")

	flagConfig = flag.String("config", "", "Tiling plan used by all kernels, as a comma-separated list of "+
		"key=value, e.g. \"block=64,vthread=2,thread=8,micro=4,kouter=256,kinner=16\". Empty for the default plan.")
	flagKernels = flag.String("kernels", "", "Comma-separated list of kernels to benchmark. "+
		"Empty for all registered kernels.")
	flagRuns        = flag.Int("runs", 3, "Number of runs per kernel: the best time is reported.")
	flagVerify      = flag.Bool("verify", true, "Compare the result of each kernel with the reference kernel.")
	flagParallelism = flag.Int("parallelism", runtime.NumCPU(), "Maximum number of blocks computed concurrently: "+
		"0 runs them sequentially, -1 means unlimited.")
	flagCPUInfo = flag.Bool("cpuinfo", false, "Print the CPU features detected.")
	flagSeed    = flag.Uint64("seed", 42, "Random seed for the operands.")
)

// float32Epsilon is the difference between 1 and the next float32.
const float32Epsilon = 1.0 / (1 << 23)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *flagCPUInfo {
		printCPUInfo()
	}
	m, n, k := *flagM, *flagN, *flagK
	plan := must.M1(gemm.ParsePlan(*flagConfig))
	must.M(plan.Validate(m, n, k))
	if *flagRuns <= 0 {
		klog.Fatalf("-runs=%d must be positive", *flagRuns)
	}
	kernels := gemm.Kernels()
	if *flagKernels != "" {
		kernels = strings.Split(*flagKernels, ",")
		for _, kernel := range kernels {
			if !slices.Contains(gemm.Kernels(), kernel) {
				must.M(errors.Errorf("unknown kernel %q, registered kernels are %q", kernel, gemm.Kernels()))
			}
		}
	}

	rng := rand.New(rand.NewPCG(*flagSeed, *flagSeed))
	at, b := matrix.Random(k, m, rng), matrix.Random(k, n, rng)
	fmt.Println(titleStyle.Render(fmt.Sprintf("C[%dx%d] = A_transposed[%dx%d]^T x B[%dx%d]", m, n, k, m, k, n)))
	fmt.Printf("plan: %s\n", plan)
	fmt.Printf("operands: %s\n", humanize.Bytes(uint64(at.Memory()+b.Memory())))

	var reference *matrix.Matrix
	if *flagVerify {
		reference = gemm.Reference(at, b)
	}
	results := benchmark(kernels, plan, at, b)

	fmt.Println()
	tolerance := 4 * float32(k) * float32Epsilon
	table := newTableWithReds(lipgloss.Left, lipgloss.Right)
	table.Table.Headers("kernel", "best time", "GFLOP/s", "max |error|", "shared/run", "local/run")
	flops := 2 * float64(m) * float64(n) * float64(k)
	for _, r := range results {
		errCell, red := "-", false
		if reference != nil {
			maxDiff, _ := xslices.MaxAbsDiff(reference.Flat, r.c.Flat)
			errCell = fmt.Sprintf("%.3g", maxDiff)
			red = !(maxDiff <= tolerance)
		}
		table.Row(red,
			r.kernel,
			r.best.String(),
			humanize.FormatFloat("#,###.##", flops/r.best.Seconds()/1e9),
			errCell,
			humanize.Bytes(uint64(r.shared.Bytes()/int64(*flagRuns))),
			humanize.Bytes(uint64(r.local.Bytes()/int64(*flagRuns))))
	}
	fmt.Println(table.Table.Render())
	if len(table.Reds) > 0 {
		klog.Errorf("%d kernels have errors above the tolerance of %g", len(table.Reds), tolerance)
		os.Exit(1)
	}
}

type result struct {
	kernel        string
	best          time.Duration
	c             *matrix.Matrix
	shared, local gemm.ScopeStats
}

// benchmark runs each kernel *flagRuns times, with a progress bar on stderr.
func benchmark(kernels []string, plan gemm.TilingPlan, at, b *matrix.Matrix) []result {
	bar := progressbar.NewOptions(len(kernels)**flagRuns,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("benchmarking"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.ThemeASCII))
	defer func() { _ = bar.Finish() }()

	results := make([]result, 0, len(kernels))
	for _, kernel := range kernels {
		engine := must.M1(gemm.NewWithConfig(kernel + ":" + plan.String()))
		engine.SetMaxParallelism(*flagParallelism)
		alloc := gemm.NewPoolAllocator()
		engine.SetAllocator(alloc)
		r := result{kernel: kernel, c: matrix.New(at.Cols, b.Cols)}
		for run := range *flagRuns {
			bar.Describe(fmt.Sprintf("%-10s", kernel))
			start := time.Now()
			must.M(engine.MultiplyInto(at, b, r.c))
			elapsed := time.Since(start)
			if run == 0 || elapsed < r.best {
				r.best = elapsed
			}
			klog.V(1).Infof("%s: run #%d took %s", kernel, run, elapsed)
			_ = bar.Add(1)
		}
		r.shared, r.local = alloc.Stats(gemm.ScopeShared), alloc.Stats(gemm.ScopeLocal)
		results = append(results, r)
	}
	return results
}

func printCPUInfo() {
	fmt.Println(titleStyle.Render("CPU"))
	table := newTableWithReds(lipgloss.Right, lipgloss.Left)
	table.Table.Headers("feature", "value")
	table.Row(false, "GOOS/GOARCH", runtime.GOOS+"/"+runtime.GOARCH)
	table.Row(false, "NumCPU", humanize.Comma(int64(runtime.NumCPU())))
	table.Row(false, "Cache line", humanize.Bytes(uint64(unsafe.Sizeof(cpu.CacheLinePad{}))))
	switch runtime.GOARCH {
	case "amd64":
		table.Row(false, "AVX2", fmt.Sprint(cpu.X86.HasAVX2))
		table.Row(false, "FMA", fmt.Sprint(cpu.X86.HasFMA))
		table.Row(false, "AVX512F", fmt.Sprint(cpu.X86.HasAVX512F))
	case "arm64":
		table.Row(false, "ASIMD", fmt.Sprint(cpu.ARM64.HasASIMD))
		table.Row(false, "SVE", fmt.Sprint(cpu.ARM64.HasSVE))
	}
	fmt.Println(table.Table.Render())
}
