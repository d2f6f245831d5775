// Package waveform holds a captured time-of-flight trace and the baseline
// corrections applied to it before peak detection.
package waveform

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Seconds to microseconds
const timeScale = 1e6

var (
	// ErrEmpty means no samples with non-negative time are left
	ErrEmpty = errors.New("waveform: no samples")
	// ErrLength means two arrays that must be parallel differ in length
	ErrLength = errors.New("waveform: length mismatch")
	// ErrNotIncreasing means the time axis is not strictly increasing
	ErrNotIncreasing = errors.New("waveform: time not strictly increasing")
)

// Waveform is a sign corrected trace restricted to time >= 0.
// Voltage is modified in place by the baseline corrections; Norm is
// recomputed each time.
type Waveform struct {
	Time    []float64 // us
	Voltage []float64
	Norm    []float64 // Voltage / |sum(Voltage)|
}

// Load converts raw samples (time in seconds, instrument voltage) into a
// waveform. Time is rescaled to microseconds, the voltage sign is flipped
// and samples before t=0 are dropped.
func Load(time, raw []float64) (*Waveform, error) {
	if len(time) != len(raw) {
		return nil, fmt.Errorf("%w: %d times, %d voltages", ErrLength, len(time), len(raw))
	}
	w := &Waveform{
		Time:    make([]float64, 0, len(time)),
		Voltage: make([]float64, 0, len(time)),
	}
	for i, t := range time {
		if t < 0 || math.IsNaN(t) {
			continue
		}
		w.Time = append(w.Time, t*timeScale)
		w.Voltage = append(w.Voltage, -raw[i])
	}
	if len(w.Time) == 0 {
		return nil, ErrEmpty
	}
	for i := 1; i < len(w.Time); i++ {
		if w.Time[i] <= w.Time[i-1] {
			return nil, fmt.Errorf("%w: sample %d", ErrNotIncreasing, i)
		}
	}
	w.normalize()
	return w, nil
}

// Len returns the number of samples
func (w *Waveform) Len() int {
	return len(w.Time)
}

// TrailingWindow is the number of samples at the end of the trace that are
// averaged for the default baseline: a tenth of the trace, or all of it for
// traces shorter than ten samples.
func (w *Waveform) TrailingWindow() int {
	n := w.Len() / 10
	if n == 0 {
		n = w.Len()
	}
	return n
}

// SubtractTrailingMean removes the mean of the trailing window from all
// voltages and returns the subtracted value. It assumes that the signal has
// returned to ground at the end of the acquisition window.
func (w *Waveform) SubtractTrailingMean() float64 {
	n := w.TrailingWindow()
	baseline := stat.Mean(w.Voltage[w.Len()-n:], nil)
	floats.AddConst(-baseline, w.Voltage)
	w.normalize()
	return baseline
}

// SubtractBaseline removes a per-sample baseline, e.g. the output of
// Smoother.Baseline for a reference trace
func (w *Waveform) SubtractBaseline(baseline []float64) error {
	if len(baseline) != w.Len() {
		return fmt.Errorf("%w: baseline has %d samples, waveform %d",
			ErrLength, len(baseline), w.Len())
	}
	floats.Sub(w.Voltage, baseline)
	w.normalize()
	return nil
}

func (w *Waveform) normalize() {
	if len(w.Norm) != len(w.Voltage) {
		w.Norm = make([]float64, len(w.Voltage))
	}
	sum := math.Abs(floats.Sum(w.Voltage))
	if sum == 0 {
		for i := range w.Norm {
			w.Norm[i] = 0
		}
		return
	}
	floats.ScaleTo(w.Norm, 1/sum, w.Voltage)
}
