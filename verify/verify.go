// Package verify compares decoded depth samples against the originals.
package verify

import (
	"errors"
	"fmt"
	"math"
)

// DefaultTolerance is the absolute difference allowed between samples.
const DefaultTolerance = 1e-5

var (
	// ErrLengthMismatch is returned when the sequences differ in length.
	ErrLengthMismatch = errors.New("verify: length mismatch")
	// ErrValueMismatch is matched by every *MismatchError.
	ErrValueMismatch = errors.New("verify: value mismatch")
)

// MismatchError reports the first pair of samples outside the tolerance.
type MismatchError struct {
	Index int
	A, B  float32
	Diff  float64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("verify: value mismatch at index %d: %v != %v (diff %g)", e.Index, e.A, e.B, e.Diff)
}

// Is makes errors.Is(err, ErrValueMismatch) succeed.
func (e *MismatchError) Is(target error) bool {
	return target == ErrValueMismatch
}

// Compare checks that a and b have the same length and that every pair
// differs by at most tolerance. Pairs are scanned in index order and the
// first violation is returned as a *MismatchError.
//
// Two NaNs compare equal; a NaN against a number is a mismatch.
func Compare(a, b []float32, tolerance float64) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(a), len(b))
	}
	for i := range a {
		d, ok := diff(a[i], b[i])
		if !ok || d > tolerance {
			return &MismatchError{Index: i, A: a[i], B: b[i], Diff: d}
		}
	}
	return nil
}

// diff returns |a-b| and whether the pair is comparable at all.
func diff(a, b float32) (float64, bool) {
	an, bn := isNaN(a), isNaN(b)
	if an || bn {
		return math.NaN(), an && bn
	}
	if a == b {
		// Covers equal infinities, whose difference would be NaN.
		return 0, true
	}
	return math.Abs(float64(a) - float64(b)), true
}

func isNaN(f float32) bool {
	return f != f
}

// Stats summarizes how far two equal-length sequences drift apart.
type Stats struct {
	Count    int
	Exact    int     // pairs that are bit-identical
	MaxDiff  float64 // largest comparable difference
	MaxIndex int     // index of MaxDiff, -1 when Count is 0
	MeanDiff float64
}

// Summarize computes Stats over the common prefix of a and b.
func Summarize(a, b []float32) Stats {
	n := min(len(a), len(b))
	s := Stats{Count: n, MaxIndex: -1}
	var sum float64
	var counted int
	for i := 0; i < n; i++ {
		if math.Float32bits(a[i]) == math.Float32bits(b[i]) {
			s.Exact++
		}
		d, ok := diff(a[i], b[i])
		if !ok || math.IsNaN(d) {
			continue
		}
		sum += d
		counted++
		if s.MaxIndex < 0 || d > s.MaxDiff {
			s.MaxDiff = d
			s.MaxIndex = i
		}
	}
	if counted > 0 {
		s.MeanDiff = sum / float64(counted)
	}
	return s
}
