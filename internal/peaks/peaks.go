// Package peaks finds local maxima in a trace and characterizes their
// prominence and width.
package peaks

import (
	"errors"
	"math"
)

// HeightFactor ties the minimum absolute peak height to the prominence
// threshold, suppressing ripples near a zero baseline
const HeightFactor = 0.75

// ErrNoPeaks means no peak satisfied the thresholds
var ErrNoPeaks = errors.New("peaks: no peaks found")

// Set lists detected peaks in ascending index order
type Set struct {
	Index      []int
	Prominence []float64
	LeftBase   []int
	RightBase  []int
}

// Len returns the number of peaks
func (s Set) Len() int {
	return len(s.Index)
}

// Detect returns the local maxima of v with a prominence of at least
// prominence and a height of at least HeightFactor*prominence.
// An empty set is returned together with ErrNoPeaks. The height gate is
// absolute, so v should be baseline corrected.
func Detect(v []float64, prominence float64) (Set, error) {
	height := HeightFactor * prominence
	var s Set
	for _, p := range LocalMaxima(v) {
		if v[p] < height {
			continue
		}
		prom, lb, rb := Prominence(v, p)
		if prom < prominence {
			continue
		}
		s.Index = append(s.Index, p)
		s.Prominence = append(s.Prominence, prom)
		s.LeftBase = append(s.LeftBase, lb)
		s.RightBase = append(s.RightBase, rb)
	}
	if s.Len() == 0 {
		return s, ErrNoPeaks
	}
	return s, nil
}

// LocalMaxima returns all samples that are larger than both neighbours.
// For flat tops the middle sample is returned (rounded down). The first
// and last sample are never maxima.
func LocalMaxima(v []float64) []int {
	var maxima []int
	n := len(v)
	i := 1
	for i < n-1 {
		if v[i-1] < v[i] {
			ahead := i + 1
			for ahead < n-1 && v[ahead] == v[i] {
				ahead++
			}
			if v[ahead] < v[i] {
				maxima = append(maxima, (i+ahead-1)/2)
				i = ahead
			}
		}
		i++
	}
	return maxima
}

// Prominence returns the vertical distance between the peak and its
// highest base, and the base positions. A base is the minimum between the
// peak and the nearest higher sample (or the trace border) on each side.
func Prominence(v []float64, peak int) (float64, int, int) {
	leftMin := v[peak]
	leftBase := peak
	for i := peak; i >= 0 && v[i] <= v[peak]; i-- {
		if v[i] < leftMin {
			leftMin = v[i]
			leftBase = i
		}
	}
	rightMin := v[peak]
	rightBase := peak
	for i := peak; i < len(v) && v[i] <= v[peak]; i++ {
		if v[i] < rightMin {
			rightMin = v[i]
			rightBase = i
		}
	}
	return v[peak] - math.Max(leftMin, rightMin), leftBase, rightBase
}

// Width is a peak width evaluated at a fraction of its prominence
type Width struct {
	Width  float64 // samples
	Height float64 // evaluation height
	Left   float64 // interpolated left crossing, fractional index
	Right  float64 // interpolated right crossing, fractional index
}

// Widths computes the width of peak k of s at relHeight of its prominence
// (0.5 gives the full width at half prominence)
func Widths(v []float64, s Set, k int, relHeight float64) Width {
	p := s.Index[k]
	h := v[p] - s.Prominence[k]*relHeight

	i := p
	for i > s.LeftBase[k] && v[i] > h {
		i--
	}
	left := float64(i)
	if v[i] < h {
		left += (h - v[i]) / (v[i+1] - v[i])
	}

	i = p
	for i < s.RightBase[k] && v[i] > h {
		i++
	}
	right := float64(i)
	if v[i] < h {
		right -= (h - v[i]) / (v[i-1] - v[i])
	}
	return Width{Width: right - left, Height: h, Left: left, Right: right}
}
