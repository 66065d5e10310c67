// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
)

// String returns the plan in the format accepted by ParsePlan.
func (p TilingPlan) String() string {
	return fmt.Sprintf("block=%dx%d,vthread=%dx%d,thread=%dx%d,micro=%dx%d,kouter=%d,kinner=%d,vector=%d",
		p.BlockRows, p.BlockCols, p.VThreadRows, p.VThreadCols, p.ThreadRows, p.ThreadCols,
		p.MicroRows, p.MicroCols, p.ReductionOuter, p.ReductionInner, p.VectorWidth)
}

// ParsePlan parses a comma-separated list of key=value settings, applied over DefaultPlan().
//
// Keys "block", "vthread", "thread" and "micro" take either "<rows>x<cols>" or a single value used
// for both axes. Keys "kouter", "kinner" and "vector" take one value. E.g.:
//
//	block=64,vthread=2,thread=8,micro=4,kouter=256,kinner=16
//
// If "vector" is not given, the largest power of 2 <= DefaultVectorWidth that divides the
// micro-tile columns is used. The resulting plan is checked with ValidateFactors.
func ParsePlan(config string) (TilingPlan, error) {
	plan := DefaultPlan()
	config = strings.TrimSpace(config)
	if config == "" {
		return plan, nil
	}
	var vectorSet bool
	for _, part := range strings.Split(config, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			return plan, configErrorf("plan setting %q is not in the form key=value", part)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		var err error
		switch key {
		case "block":
			plan.BlockRows, plan.BlockCols, err = parsePair(key, value)
		case "vthread":
			plan.VThreadRows, plan.VThreadCols, err = parsePair(key, value)
		case "thread":
			plan.ThreadRows, plan.ThreadCols, err = parsePair(key, value)
		case "micro":
			plan.MicroRows, plan.MicroCols, err = parsePair(key, value)
		case "kouter":
			plan.ReductionOuter, err = parsePositive(key, value)
		case "kinner":
			plan.ReductionInner, err = parsePositive(key, value)
		case "vector":
			plan.VectorWidth, err = parsePositive(key, value)
			vectorSet = true
		default:
			return plan, configErrorf("unknown plan setting %q in %q", key, config)
		}
		if err != nil {
			return plan, err
		}
	}
	if !vectorSet {
		plan.VectorWidth = vectorWidthFor(plan.MicroCols)
	}
	if err := plan.ValidateFactors(); err != nil {
		return plan, err
	}
	return plan, nil
}

// MustParsePlan is like ParsePlan, but panics on error.
func MustParsePlan(config string) TilingPlan {
	plan, err := ParsePlan(config)
	if err != nil {
		exceptions.Panicf("MustParsePlan(%q): %+v", config, err)
	}
	return plan
}

func parsePositive(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil || v <= 0 {
		return 0, configErrorf("plan setting %s=%q must be a positive integer", key, value)
	}
	return v, nil
}

func parsePair(key, value string) (rows, cols int, err error) {
	rowsStr, colsStr, found := strings.Cut(strings.ToLower(value), "x")
	if !found {
		rows, err = parsePositive(key, value)
		return rows, rows, err
	}
	if rows, err = parsePositive(key, rowsStr); err != nil {
		return
	}
	cols, err = parsePositive(key, colsStr)
	return
}

// splitConfig splits a configuration "<kernel>:<plan>" in its parts.
// A configuration without ":" is a plan if it has a "=", otherwise it is a kernel name.
func splitConfig(config string) (kernelName, planConfig string) {
	config = strings.TrimSpace(config)
	if idx := strings.Index(config, ":"); idx != -1 {
		return strings.TrimSpace(config[:idx]), config[idx+1:]
	}
	if strings.Contains(config, "=") {
		return "", config
	}
	return config, ""
}
