package verifier

import (
	"fmt"

	"github.com/illmade-knight/go-pubsubbridge/pkg/types"
)

// Verdict is the outcome of a comparison.
type Verdict int

const (
	Fail Verdict = iota
	Pass
)

func (v Verdict) String() string {
	if v == Pass {
		return "Pass"
	}
	return "Fail"
}

// Mismatch describes the message that decided a failed comparison.
type Mismatch struct {
	Message types.OutboundMessage
	CountA  int
	CountB  int
}

// Result is the verdict of Compare plus diagnostics.
type Result struct {
	Verdict Verdict
	// Reason is empty on Pass.
	Reason   string
	Mismatch *Mismatch
	TotalA   int
	TotalB   int
	// DistinctA and DistinctB count distinct messages on each side.
	DistinctA int
	DistinctB int
}

// Compare reports whether a and b contain the same messages with the same
// multiplicities. Either side being empty is a failure.
//
// The check is driven by the keys of a: every distinct message of a must
// occur in b exactly as often. The walk stops at the first mismatch, in the
// order messages were first seen in a. A message that occurs only in b is
// not detected.
func Compare(a, b Source) (*Result, error) {
	histA, err := BuildHistogram(a)
	if err != nil {
		return nil, fmt.Errorf("first sequence: %w", err)
	}
	histB, err := BuildHistogram(b)
	if err != nil {
		return nil, fmt.Errorf("second sequence: %w", err)
	}
	return compareHistograms(histA, histB), nil
}

func compareHistograms(histA, histB *Histogram) *Result {
	res := &Result{
		Verdict:   Fail,
		TotalA:    histA.Total(),
		TotalB:    histB.Total(),
		DistinctA: histA.Distinct(),
		DistinctB: histB.Distinct(),
	}
	if histA.Distinct() == 0 || histB.Distinct() == 0 {
		res.Reason = "empty sequence"
		return res
	}

	for _, id := range histA.order {
		countA := histA.counts[id]
		countB, ok := histB.counts[id]
		if !ok {
			res.Reason = "message missing from second sequence"
			res.Mismatch = &Mismatch{Message: histA.samples[id], CountA: countA}
			return res
		}
		if countA != countB {
			res.Reason = "message count differs"
			res.Mismatch = &Mismatch{Message: histA.samples[id], CountA: countA, CountB: countB}
			return res
		}
	}

	res.Verdict = Pass
	return res
}
